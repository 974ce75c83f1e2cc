package sensor

import (
	"math"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// MaxDimension is the largest number of axes a coefficient describes.
const MaxDimension = 6

// Physical constants used for normalization.
const (
	// Gravity is standard gravity in m/s².
	Gravity = 9.80665

	// AccelLSB is accelerometer counts per g.
	AccelLSB = 1024

	// Units converts driver milli-units to base units.
	Units = 1000
)

// Coefficient scales raw integer axes of one sensor type into physical
// units. SensorID is filled in by the manager when the catalogue is built.
type Coefficient struct {
	TypeID    TypeID
	SensorID  int32
	Dimension int
	Scale     [MaxDimension]float32
}

// DefaultCoefficients returns the conversion table for the built-in
// sensor types. Types without an entry are delivered unconverted.
func DefaultCoefficients() []Coefficient {
	const mdpsToRad = math.Pi / 180 / Units
	return []Coefficient{
		// mg to m/s²
		{TypeID: TypeAccelerometer, Dimension: 3, Scale: [MaxDimension]float32{
			Gravity / Units, Gravity / Units, Gravity / Units}},
		// mdps to rad/s
		{TypeID: TypeGyroscope, Dimension: 3, Scale: [MaxDimension]float32{
			mdpsToRad, mdpsToRad, mdpsToRad}},
		// 0.1 µT to µT
		{TypeID: TypeMagneticField, Dimension: 3, Scale: [MaxDimension]float32{0.1, 0.1, 0.1}},
		// Pa*100 and centi-degrees
		{TypeID: TypeBarometer, Dimension: 2, Scale: [MaxDimension]float32{0.01, 0.01}},
		{TypeID: TypeTemperature, Dimension: 1, Scale: [MaxDimension]float32{0.01}},
		{TypeID: TypeHumidity, Dimension: 1, Scale: [MaxDimension]float32{0.01}},
	}
}

// ValidateCoefficients checks a conversion table: dimensions must lie in
// [0, MaxDimension] and each type may appear once.
func ValidateCoefficients(coeffs []Coefficient) error {
	seen := make(map[TypeID]bool, len(coeffs))
	for i, c := range coeffs {
		if c.Dimension < 0 || c.Dimension > MaxDimension {
			return wire.Errorf(wire.StatusInvalidParameter, "coefficient %d (%s): dimension %d outside [0, %d]",
				i, c.TypeID, c.Dimension, MaxDimension)
		}
		if seen[c.TypeID] {
			return wire.Errorf(wire.StatusInvalidParameter, "coefficient %d: duplicate type %s", i, c.TypeID)
		}
		seen[c.TypeID] = true
	}
	return nil
}

// scale returns the factor for value index i. Axes beyond the dimension
// repeat; unmapped axes keep 1.0.
func (c *Coefficient) scale(i int) float32 {
	if c == nil || c.Dimension <= 0 {
		return 1
	}
	s := c.Scale[i%min(c.Dimension, MaxDimension)]
	if s == 0 {
		return 1
	}
	return s
}

// Convert scales raw samples into physical units. A nil coefficient leaves
// the values unconverted.
func (c *Coefficient) Convert(raw []int32) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v) * c.scale(i)
	}
	return out
}

// Raw is the inverse of Convert, rounding to the nearest integer.
func (c *Coefficient) Raw(values []float32) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(math.Round(float64(v / c.scale(i))))
	}
	return out
}

// Normalize turns a wire record into an Info, rescaling range, accuracy
// and power into physical units where the sensor type defines them.
func Normalize(r InfoRecord) Info {
	info := Info{
		Name:            r.Name,
		Vendor:          r.Vendor,
		FirmwareVersion: r.FirmwareVersion,
		HardwareVersion: r.HardwareVersion,
		TypeID:          r.TypeID,
		SensorID:        r.SensorID,
		MaxRange:        float32(r.MaxRange),
		Accuracy:        float32(r.Accuracy),
		Power:           float32(r.Power),
	}
	if r.TypeID == TypeAccelerometer {
		// Range and accuracy arrive in counts, power in µA.
		info.MaxRange = float32(float64(r.MaxRange) * Gravity / AccelLSB)
		info.Accuracy = float32(float64(r.Accuracy) * Gravity / AccelLSB)
		info.Power = float32(float64(r.Power) / Units)
	}
	return info
}

// bindCoefficients returns a copy of table with one entry per catalogue
// sensor whose type has a coefficient.
func bindCoefficients(table []Coefficient, infos []Info) []Coefficient {
	byType := make(map[TypeID]Coefficient, len(table))
	for _, c := range table {
		byType[c.TypeID] = c
	}
	var out []Coefficient
	for _, info := range infos {
		c, ok := byType[info.TypeID]
		if !ok {
			continue
		}
		c.SensorID = info.SensorID
		out = append(out, c)
	}
	return out
}
