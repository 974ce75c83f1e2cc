package sensor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Command ids understood by sensor services.
const (
	// CmdGetInfoList returns the service's sensor records.
	CmdGetInfoList int32 = 0

	// CmdOps carries a per-sensor sub-command.
	CmdOps int32 = 1
)

// SubCommand selects the operation inside a CmdOps request.
type SubCommand int32

const (
	SubEnable    SubCommand = 0
	SubDisable   SubCommand = 1
	SubSetBatch  SubCommand = 2
	SubSetMode   SubCommand = 3
	SubSetOption SubCommand = 4
	SubReadData  SubCommand = 5
)

// String returns the sub-command name.
func (s SubCommand) String() string {
	switch s {
	case SubEnable:
		return "ENABLE"
	case SubDisable:
		return "DISABLE"
	case SubSetBatch:
		return "SET_BATCH"
	case SubSetMode:
		return "SET_MODE"
	case SubSetOption:
		return "SET_OPTION"
	case SubReadData:
		return "READ_DATA"
	default:
		return fmt.Sprintf("SUB(%d)", int32(s))
	}
}

// TypeID identifies the kind of sensor.
type TypeID int32

const (
	TypeNone                TypeID = 0
	TypeAccelerometer       TypeID = 1
	TypeGyroscope           TypeID = 2
	TypePhotoplethysmograph TypeID = 3
	TypeElectrocardiograph  TypeID = 4
	TypeAmbientLight        TypeID = 5
	TypeMagneticField       TypeID = 6
	TypeBarometer           TypeID = 8
	TypeTemperature         TypeID = 9
	TypeHall                TypeID = 10
	TypeProximity           TypeID = 12
	TypeHumidity            TypeID = 13
)

// String returns the type name.
func (t TypeID) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeAccelerometer:
		return "ACCELEROMETER"
	case TypeGyroscope:
		return "GYROSCOPE"
	case TypePhotoplethysmograph:
		return "PPG"
	case TypeElectrocardiograph:
		return "ECG"
	case TypeAmbientLight:
		return "AMBIENT_LIGHT"
	case TypeMagneticField:
		return "MAGNETIC_FIELD"
	case TypeBarometer:
		return "BAROMETER"
	case TypeTemperature:
		return "TEMPERATURE"
	case TypeHall:
		return "HALL"
	case TypeProximity:
		return "PROXIMITY"
	case TypeHumidity:
		return "HUMIDITY"
	default:
		return fmt.Sprintf("TYPE(%d)", int32(t))
	}
}

// ParseTypeID parses a type name as returned by TypeID.String.
func ParseTypeID(s string) (TypeID, error) {
	for t := TypeNone; t <= TypeHumidity; t++ {
		if name := t.String(); name == s && !strings.HasPrefix(name, "TYPE(") {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("unknown sensor type %q", s)
}

// Sensor id ranges.
const (
	// MedicalBegin is the first sensor id delivered to the medical slot.
	MedicalBegin int32 = 128

	// MedicalEnd is one past the last medical sensor id.
	MedicalEnd int32 = 160
)

// GroupType selects a callback slot.
type GroupType int

const (
	// GroupTraditional receives events of ordinary sensors.
	GroupTraditional GroupType = iota

	// GroupMedical receives events of sensors with ids in
	// [MedicalBegin, MedicalEnd).
	GroupMedical

	groupCount
)

// String returns the group name.
func (g GroupType) String() string {
	switch g {
	case GroupTraditional:
		return "TRADITIONAL"
	case GroupMedical:
		return "MEDICAL"
	default:
		return fmt.Sprintf("GROUP(%d)", int(g))
	}
}

// Valid reports whether g names a callback slot.
func (g GroupType) Valid() bool {
	return g >= GroupTraditional && g < groupCount
}

// GroupOf returns the callback slot for a sensor id.
func GroupOf(sensorID int32) GroupType {
	if sensorID >= MedicalBegin && sensorID < MedicalEnd {
		return GroupMedical
	}
	return GroupTraditional
}

// Info is the normalized description of one sensor.
type Info struct {
	Name            string
	Vendor          string
	FirmwareVersion string
	HardwareVersion string
	TypeID          TypeID
	SensorID        int32
	MaxRange        float32
	Accuracy        float32
	Power           float32
}

// Event is one converted sample set.
type Event struct {
	SensorID  int32
	Version   int32
	Timestamp int64
	Option    uint32
	Mode      int32

	// Values are the samples in physical units. Multi-sample payloads
	// repeat the axes: value i belongs to axis i mod dimension.
	Values []float32
}

// Callback receives converted events. It runs on the driver's notifier
// goroutine with the controller's event mutex held and must not call
// Register or Unregister.
type Callback func(ev *Event) error

// CallbackID identifies a registered callback.
type CallbackID uint64

// Errors.
var (
	// ErrNoSensorServices is returned when discovery binds no service.
	ErrNoSensorServices = fmt.Errorf("%w: no sensor services found", wire.StatusNotSupport)

	// ErrNotReady is returned by operations that need a discovered manager.
	ErrNotReady = fmt.Errorf("%w: manager not ready", wire.StatusInvalidObject)

	// ErrShortRecord is returned for malformed info or event records.
	ErrShortRecord = errors.New("short record")
)
