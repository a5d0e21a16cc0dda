package sapi

import (
	"errors"
	"fmt"

	"github.com/sapi-protocol/sapi-go/pkg/registry"
	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// Composition errors.
var (
	ErrSensorReadFailed = errors.New("sensor read failed")
	ErrPayloadTooLarge  = errors.New("sensor payload too large")
)

// Op selects which sensor callback the composer invokes.
type Op uint8

const (
	// OpValue composes from the read callback.
	OpValue Op = iota

	// OpConfig composes from the read-config callback.
	OpConfig
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpValue:
		return "get"
	case OpConfig:
		return "get-config"
	default:
		return "unknown"
	}
}

// Composer builds complete outgoing message bodies for sensors: it invokes
// the selected callback, bounds-checks the payload, and wraps it in the
// wire envelope.
//
// The payload scratch buffer is owned by the composer and reused across
// calls, so a Composer must not be shared between concurrently composing
// components.
type Composer struct {
	table   *registry.Table
	scratch [wire.MaxPayloadLen]byte
}

// NewComposer creates a composer over the given sensor table.
func NewComposer(table *registry.Table) *Composer {
	return &Composer{table: table}
}

// Compose invokes the sensor's callback for op, wraps the payload in the
// envelope, writes the result into out, and returns the written length.
// On any error, out is left without a committed message.
func (c *Composer) Compose(id registry.SensorID, op Op, out []byte) (int, error) {
	reg, err := c.table.Get(id)
	if err != nil {
		return 0, err
	}

	var read registry.ReadFunc
	switch op {
	case OpValue:
		read = reg.Read
	case OpConfig:
		read = registry.ReadFunc(reg.ReadConfig)
	}
	if read == nil {
		return 0, fmt.Errorf("%w: sensor %q has no %s callback", ErrSensorReadFailed, reg.DeviceType, op)
	}

	n, err := read(c.scratch[:])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSensorReadFailed, err)
	}
	if n < 0 || n > wire.MaxPayloadLen {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, n, wire.MaxPayloadLen)
	}

	return wire.WrapEnvelope(reg.DeviceType, c.scratch[:n], out)
}

// ComposeValue is Compose with OpValue, in the shape the notification
// engine consumes.
func (c *Composer) ComposeValue(id registry.SensorID, out []byte) (int, error) {
	return c.Compose(id, OpValue, out)
}
