package observe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sapi-protocol/sapi-go/pkg/log"
	"github.com/sapi-protocol/sapi-go/pkg/registry"
	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// ErrNotObserver indicates a push for a sensor that was not registered as
// an observer.
var ErrNotObserver = errors.New("sensor is not an observer")

// Notification is one observation update ready for delivery.
type Notification struct {
	// SensorID identifies the emitting sensor.
	SensorID registry.SensorID

	// DeviceType is the sensor's registered device type.
	DeviceType string

	// Body is the composed envelope. It aliases the engine's message
	// buffer and is only valid for the duration of the sink call; copy
	// it before handing it to anything asynchronous.
	Body []byte

	// MaxAge is the freshness lifetime in seconds.
	MaxAge uint32

	// IsPush marks an explicitly pushed (non-periodic) notification.
	IsPush bool

	// Timestamp is when the notification was composed.
	Timestamp time.Time
}

// Sink consumes composed notifications, typically by handing them to the
// protocol server's notification path.
type Sink func(Notification)

// ComposeFunc builds a notification body for a sensor into out and
// returns the written length.
type ComposeFunc func(id registry.SensorID, out []byte) (int, error)

// Engine drives periodic and push-triggered observation updates.
type Engine struct {
	mu      sync.Mutex
	table   *registry.Table
	compose ComposeFunc
	sink    Sink
	clock   clock.Clock
	logger  log.Logger
	maxAge  uint32

	// start anchors the periodic phase for sensors that have not yet
	// emitted; lastEmit tracks each sensor's most recent periodic
	// emission. Pushes touch neither.
	start    time.Time
	lastEmit [registry.MaxSensors]time.Time

	buf [wire.MaxEnvelopeLen]byte
}

// NewEngine creates a notification engine. clk may be nil for the real
// clock; tests pass clock.NewMock to drive simulated time.
func NewEngine(table *registry.Table, compose ComposeFunc, sink Sink, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		table:   table,
		compose: compose,
		sink:    sink,
		clock:   clk,
		logger:  log.NoopLogger{},
		maxAge:  wire.DefaultMaxAge,
		start:   clk.Now(),
	}
}

// SetLogger sets the event logger. Pass nil to disable logging.
func (e *Engine) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	e.logger = logger
}

// SetMaxAge overrides the notification freshness lifetime in seconds.
func (e *Engine) SetMaxAge(secs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxAge = secs
}

// Tick processes one scheduler tick: every observer whose polling
// interval has elapsed since its last periodic emission emits exactly one
// notification. Sensors are processed in registration order, and one
// sensor's failure never blocks the rest.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for _, reg := range e.table.Registrations() {
		if !reg.Observer || reg.Frequency == 0 {
			continue
		}

		last := e.lastEmit[reg.ID]
		if last.IsZero() {
			last = e.start
		}
		if now.Sub(last) < time.Duration(reg.Frequency)*time.Second {
			continue
		}

		// A failed composition consumes the cycle too: the observer
		// misses this update and the next attempt waits a full
		// interval. emit logs the failure.
		_ = e.emit(reg, false, now)
		e.lastEmit[reg.ID] = now
	}
}

// Push composes and emits a notification for one sensor immediately,
// regardless of its polling schedule. The periodic timer's phase is not
// reset; the two triggers are independent.
func (e *Engine) Push(id registry.SensorID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, err := e.table.Get(id)
	if err != nil {
		return err
	}
	if !reg.Observer {
		return fmt.Errorf("%w: %q", ErrNotObserver, reg.DeviceType)
	}

	return e.emit(reg, true, e.clock.Now())
}

// emit composes the notification body and hands it to the sink.
// Callers hold e.mu.
func (e *Engine) emit(reg registry.Registration, push bool, now time.Time) error {
	n, err := e.compose(reg.ID, e.buf[:])
	if err != nil {
		sid := uint8(reg.ID)
		e.logger.Log(log.Event{
			Timestamp:  now,
			Category:   log.CategoryError,
			SensorID:   &sid,
			DeviceType: reg.DeviceType,
			Operation:  "notify",
			Err:        err.Error(),
		})
		return err
	}

	e.sink(Notification{
		SensorID:   reg.ID,
		DeviceType: reg.DeviceType,
		Body:       e.buf[:n],
		MaxAge:     e.maxAge,
		IsPush:     push,
		Timestamp:  now,
	})

	sid := uint8(reg.ID)
	e.logger.Log(log.Event{
		Timestamp:  now,
		Category:   log.CategoryNotify,
		SensorID:   &sid,
		DeviceType: reg.DeviceType,
		Operation:  "notify",
		Status:     "ok",
	})
	return nil
}
