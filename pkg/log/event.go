package log

import (
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Event represents a trace event captured at any layer.
// Keys are small integers; a new field takes the next free key and old
// readers skip it.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// BindingID identifies the service binding (UUID). Empty for events
	// that are not tied to one binding.
	BindingID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates flow relative to the caller.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Service is the bound service name.
	Service string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Dispatch    *DispatchEvent    `cbor:"10,keyasint,omitempty"` // Dispatch layer
	Notify      *NotifyEvent      `cbor:"11,keyasint,omitempty"` // Event layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Registry layer
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of flow.
type Direction uint8

const (
	// DirectionOut is a call from the caller towards the driver.
	DirectionOut Direction = 0
	// DirectionIn is an upcall from the driver towards the caller.
	DirectionIn Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "OUT"
	case DirectionIn:
		return "IN"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerDispatch is the synchronous command path.
	LayerDispatch Layer = 0
	// LayerEvent is the asynchronous notification path.
	LayerEvent Layer = 1
	// LayerRegistry covers bindings, groups and the sensor manager.
	LayerRegistry Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerDispatch:
		return "DISPATCH"
	case LayerEvent:
		return "EVENT"
	case LayerRegistry:
		return "REGISTRY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryDispatch indicates a Dispatch call.
	CategoryDispatch Category = 0
	// CategoryNotify indicates a driver event delivery.
	CategoryNotify Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryDispatch:
		return "DISPATCH"
	case CategoryNotify:
		return "NOTIFY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DispatchEvent captures one completed Dispatch call.
type DispatchEvent struct {
	// CmdID is the service-defined command id.
	CmdID int32 `cbor:"1,keyasint"`

	// RequestSize is the request buffer length in bytes (0 when absent).
	RequestSize int `cbor:"2,keyasint,omitempty"`

	// ReplySize is the reply buffer length after the call (0 when absent).
	ReplySize int `cbor:"3,keyasint,omitempty"`

	// Status is the result code.
	Status wire.Status `cbor:"4,keyasint"`

	// Duration is how long the driver took. Stored as nanoseconds.
	Duration time.Duration `cbor:"5,keyasint"`
}

// NotifyEvent captures one driver event and its fan-out.
type NotifyEvent struct {
	// EventID is the driver-defined event id.
	EventID uint32 `cbor:"1,keyasint"`

	// Size is the payload length in bytes.
	Size int `cbor:"2,keyasint"`

	// Listeners is the number of listeners the event reached.
	Listeners int `cbor:"3,keyasint"`

	// Failed is the number of listeners that returned an error.
	Failed int `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures binding, group and manager lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityBinding indicates a service handle was bound or released.
	StateEntityBinding StateEntity = 0
	// StateEntityListener indicates a listener registration change.
	StateEntityListener StateEntity = 1
	// StateEntityGroup indicates a service group change.
	StateEntityGroup StateEntity = 2
	// StateEntityManager indicates a sensor manager state change.
	StateEntityManager StateEntity = 3
	// StateEntityCallback indicates a sensor callback slot change.
	StateEntityCallback StateEntity = 4
	// StateEntityCatalogue indicates the sensor catalogue was built.
	StateEntityCatalogue StateEntity = 5
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityBinding:
		return "BINDING"
	case StateEntityListener:
		return "LISTENER"
	case StateEntityGroup:
		return "GROUP"
	case StateEntityManager:
		return "MANAGER"
	case StateEntityCallback:
		return "CALLBACK"
	case StateEntityCatalogue:
		return "CATALOGUE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the result code (if applicable).
	Code *wire.Status `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
