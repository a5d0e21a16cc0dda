package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sapi-protocol/sapi-go/pkg/observe"
	"github.com/sapi-protocol/sapi-go/pkg/persistence"
	"github.com/sapi-protocol/sapi-go/pkg/registry"
)

// simSensors bundles the simulated sensors so the simulation loop can
// drive their state changes.
type simSensors struct {
	temp     *simTemp
	humidity *simHumidity
	door     *simDoor

	doorID registry.SensorID
}

// simTemp simulates a temperature sensor. It reports a value that drifts
// around a baseline and accepts an "interval=N" configuration string.
type simTemp struct {
	mu       sync.Mutex
	baseline float64
	phase    float64
	interval int
}

func (s *simTemp) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = 21.5
	s.interval = 30
	return nil
}

func (s *simTemp) read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase += 0.1
	value := s.baseline + 2.0*math.Sin(s.phase) + rand.Float64()*0.2
	return copy(buf, strconv.FormatFloat(value, 'f', 1, 64)), nil
}

func (s *simTemp) readConfig(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(buf, fmt.Sprintf("interval=%d", s.interval)), nil
}

func (s *simTemp) writeConfig(data []byte) error {
	interval, err := parseInterval(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	return nil
}

// simHumidity simulates a relative humidity sensor.
type simHumidity struct {
	mu       sync.Mutex
	value    float64
	interval int
}

func (s *simHumidity) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = 45.0
	s.interval = 60
	return nil
}

func (s *simHumidity) read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += rand.Float64() - 0.5
	if s.value < 20 {
		s.value = 20
	}
	if s.value > 90 {
		s.value = 90
	}
	return copy(buf, strconv.FormatFloat(s.value, 'f', 0, 64)), nil
}

func (s *simHumidity) readConfig(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(buf, fmt.Sprintf("interval=%d", s.interval)), nil
}

func (s *simHumidity) writeConfig(data []byte) error {
	interval, err := parseInterval(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	return nil
}

// simDoor simulates a door contact. It has no periodic schedule; state
// changes are pushed through the notification engine as they happen.
type simDoor struct {
	mu   sync.Mutex
	open bool
}

func (s *simDoor) init() error { return nil }

func (s *simDoor) read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return copy(buf, "open"), nil
	}
	return copy(buf, "closed"), nil
}

// toggle flips the door state and reports the new state.
func (s *simDoor) toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = !s.open
	return s.open
}

func parseInterval(data []byte) (int, error) {
	str := string(data)
	val, ok := strings.CutPrefix(str, "interval=")
	if !ok {
		return 0, fmt.Errorf("unrecognized config %q", str)
	}
	interval, err := strconv.Atoi(val)
	if err != nil || interval <= 0 {
		return 0, fmt.Errorf("invalid interval %q", val)
	}
	return interval, nil
}

// registerSensors populates the table with the simulated device fleet.
func registerSensors(table *registry.Table) *simSensors {
	s := &simSensors{
		temp:     &simTemp{},
		humidity: &simHumidity{},
		door:     &simDoor{},
	}

	must := func(id registry.SensorID, err error) registry.SensorID {
		if err != nil {
			log.Fatalf("Sensor registration failed: %v", err)
		}
		return id
	}

	must(table.Register(registry.Sensor{
		DeviceType:  "temp",
		Init:        s.temp.init,
		Read:        s.temp.read,
		ReadConfig:  s.temp.readConfig,
		WriteConfig: s.temp.writeConfig,
		Frequency:   30,
		Observer:    true,
	}))
	must(table.Register(registry.Sensor{
		DeviceType:  "humidity",
		Init:        s.humidity.init,
		Read:        s.humidity.read,
		ReadConfig:  s.humidity.readConfig,
		WriteConfig: s.humidity.writeConfig,
		Frequency:   60,
		Observer:    true,
	}))
	s.doorID = must(table.Register(registry.Sensor{
		DeviceType: "door",
		Init:       s.door.init,
		Read:       s.door.read,
		Observer:   true,
	}))

	return s
}

// runSimulation produces occasional door events, pushed through the
// notification engine outside the periodic schedule, and persists the
// current sensor configurations so they survive a restart.
func runSimulation(engine *observe.Engine, table *registry.Table, sensors *simSensors, store *persistence.StateStore, done <-chan struct{}) {
	doorTimer := time.NewTicker(45 * time.Second)
	saveTimer := time.NewTicker(5 * time.Minute)
	defer doorTimer.Stop()
	defer saveTimer.Stop()

	for {
		select {
		case <-doorTimer.C:
			open := sensors.door.toggle()
			log.Printf("Door is now open=%v", open)
			if err := engine.Push(sensors.doorID); err != nil {
				log.Printf("Door push failed: %v", err)
			}
		case <-saveTimer.C:
			saveConfigs(table, store)
		case <-done:
			saveConfigs(table, store)
			return
		}
	}
}

func saveConfigs(table *registry.Table, store *persistence.StateStore) {
	buf := make([]byte, 64)
	for _, reg := range table.Registrations() {
		if reg.ReadConfig == nil {
			continue
		}
		n, err := reg.ReadConfig(buf)
		if err != nil {
			continue
		}
		if err := store.SetConfig(reg.DeviceType, buf[:n]); err != nil {
			log.Printf("Warning: persisting %s config failed: %v", reg.DeviceType, err)
		}
	}
}

// subscriptionTable is a minimal in-process observer registry keyed by
// sensor and token.
type subscriptionTable struct {
	mu   sync.Mutex
	subs map[registry.SensorID]map[string]struct{}
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{subs: make(map[registry.SensorID]map[string]struct{})}
}

func (t *subscriptionTable) Add(id registry.SensorID, token []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.subs[id]
	if !ok {
		set = make(map[string]struct{})
		t.subs[id] = set
	}
	set[string(token)] = struct{}{}
	return nil
}

func (t *subscriptionTable) Remove(id registry.SensorID, token []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.subs[id]
	if !ok {
		return errors.New("no subscriptions for sensor")
	}
	delete(set, string(token))
	return nil
}
