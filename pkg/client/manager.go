package client

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRetainedEngines bounds how many channel engines a manager keeps
// warm before the least recently used one is reset and dropped.
const DefaultRetainedEngines = 10

// Manager hands out one engine per channel so that flipping between
// channels keeps each channel's clock and drift state warm. Eviction
// resets the dropped engine so its listeners see a clean teardown.
type Manager struct {
	mu      sync.Mutex
	opts    Options
	engines *lru.Cache[string, *Engine]
}

// NewManager creates a manager retaining up to size engines; size <= 0
// takes DefaultRetainedEngines.
func NewManager(size int, opts Options) (*Manager, error) {
	if size <= 0 {
		size = DefaultRetainedEngines
	}

	cache, err := lru.NewWithEvict[string, *Engine](size, func(_ string, e *Engine) {
		e.Reset()
	})
	if err != nil {
		return nil, err
	}

	return &Manager{opts: opts, engines: cache}, nil
}

// Engine returns the engine for a channel, creating it on first use
func (m *Manager) Engine(channelID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines.Get(channelID); ok {
		return e
	}
	e := New(m.opts)
	m.engines.Add(channelID, e)
	return e
}

// Forget resets and drops a channel's engine if one is retained
func (m *Manager) Forget(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines.Remove(channelID)
}

// Len returns the number of retained engines
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines.Len()
}
