package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// MaxSensors is the maximum number of sensors that can be registered.
const MaxSensors = 4

// Registration errors.
var (
	ErrCapacityExceeded    = errors.New("sensor table is full")
	ErrDuplicateDeviceType = errors.New("device type already registered")
	ErrInvalidDeviceType   = errors.New("invalid device type")
	ErrInitFailed          = errors.New("sensor init failed")
	ErrNotFound            = errors.New("sensor not found")
)

// SensorID is the stable handle assigned at registration time.
// IDs are 0-based and increase in registration order.
type SensorID uint8

// InitFunc initializes the sensor hardware. Called synchronously during
// registration; a non-nil error aborts the registration.
type InitFunc func() error

// ReadFunc reads the current sensor value into buf and returns the number
// of bytes written.
type ReadFunc func(buf []byte) (int, error)

// ReadConfigFunc reads the sensor configuration into buf and returns the
// number of bytes written.
type ReadConfigFunc func(buf []byte) (int, error)

// WriteConfigFunc applies a new sensor configuration.
type WriteConfigFunc func(data []byte) error

// Sensor describes one sensor to register: its device type, the four
// capability callbacks, and its observation parameters.
type Sensor struct {
	// DeviceType is the unique sensor identifier used as the URI leaf
	// and the envelope device-type tag. At most wire.MaxDeviceTypeLen
	// bytes.
	DeviceType string

	Init        InitFunc
	Read        ReadFunc
	ReadConfig  ReadConfigFunc
	WriteConfig WriteConfigFunc

	// Frequency is the observation polling interval in seconds.
	// Zero means the sensor is not periodically observed.
	Frequency uint32

	// Observer marks the sensor as observable.
	Observer bool
}

// Registration is a committed table entry.
type Registration struct {
	Sensor

	// ID is the sensor identity assigned at registration.
	ID SensorID

	// ObserverID is assigned once at registration and is stable for the
	// entry's lifetime. Valid only when Observer is set.
	ObserverID uint8
}

// Table is the fixed-capacity sensor directory. It is owned by the SAPI
// core; collaborators receive SensorIDs, never table references.
type Table struct {
	mu             sync.RWMutex
	entries        [MaxSensors]Registration
	count          int
	nextObserverID uint8
}

// NewTable creates an empty sensor table.
func NewTable() *Table {
	return &Table{}
}

// Register adds a sensor to the table and returns its assigned ID.
//
// The init callback is invoked synchronously before the entry is
// committed; if it fails, the slot is not consumed and the table is left
// unchanged. Init runs without the table lock held, so it may look up
// other sensors. Registration order determines both the SensorID and the
// notification processing order.
func (t *Table) Register(s Sensor) (SensorID, error) {
	if s.DeviceType == "" || len(s.DeviceType) > wire.MaxDeviceTypeLen {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceType, s.DeviceType)
	}

	t.mu.Lock()
	err := t.checkSlot(s.DeviceType)
	t.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if s.Init != nil {
		if err := s.Init(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInitFailed, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The table may have changed while init was running.
	if err := t.checkSlot(s.DeviceType); err != nil {
		return 0, err
	}

	id := SensorID(t.count)
	reg := Registration{Sensor: s, ID: id}
	if s.Observer {
		reg.ObserverID = t.nextObserverID
		t.nextObserverID++
	}
	t.entries[t.count] = reg
	t.count++

	return id, nil
}

// checkSlot reports whether a new entry for deviceType may be committed.
// Callers must hold t.mu.
func (t *Table) checkSlot(deviceType string) error {
	if t.count >= MaxSensors {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, MaxSensors)
	}
	for i := 0; i < t.count; i++ {
		if t.entries[i].DeviceType == deviceType {
			return fmt.Errorf("%w: %q", ErrDuplicateDeviceType, deviceType)
		}
	}
	return nil
}

// Resolve returns the SensorID registered for deviceType. Matching is a
// linear scan in registration order; device types are unique, so the first
// match is the only match.
func (t *Table) Resolve(deviceType string) (SensorID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := 0; i < t.count; i++ {
		if t.entries[i].DeviceType == deviceType {
			return t.entries[i].ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, deviceType)
}

// Get returns a copy of the registration for id.
func (t *Table) Get(id SensorID) (Registration, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(id) >= t.count {
		return Registration{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return t.entries[id], nil
}

// Len returns the number of registered sensors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Registrations returns a snapshot of all entries in registration order.
func (t *Table) Registrations() []Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Registration, t.count)
	copy(out, t.entries[:t.count])
	return out
}
