package log

import "time"

// Event represents a SAPI log event captured at any layer.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time

	// Category classifies the event type.
	Category Category

	// SensorID identifies the sensor, when one is involved.
	SensorID *uint8

	// DeviceType is the sensor device type, when known.
	DeviceType string

	// Operation names the request or notification operation
	// ("get", "get-config", "put-config", "observe", "notify").
	Operation string

	// Status is the resulting response code or outcome.
	Status string

	// Message is a short human-readable description.
	Message string

	// Err is the error text, for error events.
	Err string
}

// Category classifies an event.
type Category uint8

const (
	// CategoryRegister covers sensor registration.
	CategoryRegister Category = iota

	// CategoryDispatch covers request dispatch and response composition.
	CategoryDispatch

	// CategoryNotify covers periodic and push notifications.
	CategoryNotify

	// CategoryTransport covers frame-level transport events.
	CategoryTransport

	// CategoryError covers failures at any layer.
	CategoryError
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRegister:
		return "REGISTER"
	case CategoryDispatch:
		return "DISPATCH"
	case CategoryNotify:
		return "NOTIFY"
	case CategoryTransport:
		return "TRANSPORT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
