package testutil

import (
	"sync"
	"time"

	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

// Tagged actions are recorded under their tag by a SleeperModule.
type Tagged interface{ SleepTag() string }

// SleepLeft and SleepRight are distinct action types so that two sleepers
// can be registered side by side.
type SleepLeft struct {
	Tag string `json:"tag"`
}

type SleepRight struct {
	Tag string `json:"tag"`
}

func (s SleepLeft) SleepTag() string  { return s.Tag }
func (s SleepRight) SleepTag() string { return s.Tag }

// SleeperModule is a module whose reducer sleeps, recording when each
// reduction ran. It is for concurrency tests only; real reducers never block.
type SleeperModule[A Tagged] struct {
	ID             string
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
}

// NewSleeperModule creates a sleeper reducing actions of type A.
func NewSleeperModule[A Tagged](id string, sleep time.Duration) *SleeperModule[A] {
	return &SleeperModule[A]{
		ID:             id,
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
	}
}

// Record returns the execution record for tag.
func (m *SleeperModule[A]) Record(tag string) (*ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ExecutionTimes[tag]
	return r, ok
}

// Register implements the registry.Module interface.
func (m *SleeperModule[A]) Register(r *registry.Registry) {
	r.RegisterModule(module.New(m.ID, 0, func(n int, a A) (int, error) {
		start := time.Now()
		time.Sleep(m.sleepDuration)
		m.mu.Lock()
		m.ExecutionTimes[a.SleepTag()] = &ExecutionRecord{Start: start, End: time.Now()}
		m.mu.Unlock()
		return n + 1, nil
	}))
}
