package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// SensorState contains the persisted sensor configurations.
type SensorState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Configs maps device types to the last accepted configuration
	// payload.
	Configs map[string][]byte `json:"configs,omitempty"`
}

// StateStore manages persistence of sensor state to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a new sensor state store.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save persists the sensor state to disk.
func (s *StateStore) Save(state *SensorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *StateStore) save(state *SensorState) error {
	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the sensor state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (*SensorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*SensorState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &SensorState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SetConfig records the last accepted configuration for a device type and
// saves the state.
func (s *StateStore) SetConfig(deviceType string, cfg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if state == nil {
		state = &SensorState{}
	}
	if state.Configs == nil {
		state.Configs = make(map[string][]byte)
	}

	stored := make([]byte, len(cfg))
	copy(stored, cfg)
	state.Configs[deviceType] = stored
	state.SavedAt = time.Now()

	return s.save(state)
}
