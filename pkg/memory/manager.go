package memory

import (
	"fmt"
	"sync"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
)

// Manager tracks one updater per running simulation.
type Manager struct {
	llm   llm.Client
	graph graph.Client

	mu       sync.Mutex
	updaters map[string]*Updater
}

// NewManager creates the process-wide updater manager.
func NewManager(llmClient llm.Client, graphClient graph.Client) *Manager {
	return &Manager{
		llm:      llmClient,
		graph:    graphClient,
		updaters: map[string]*Updater{},
	}
}

// Create starts an updater for simID feeding graphID. A simulation can have
// at most one updater at a time.
func (m *Manager) Create(simID, graphID string) (*Updater, error) {
	if graphID == "" {
		return nil, fmt.Errorf("graph memory updates require a graph id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.updaters[simID]; exists {
		return nil, fmt.Errorf("simulation %s already has a graph memory updater", simID)
	}
	u := newUpdater(simID, graphID, m.llm, m.graph)
	m.updaters[simID] = u
	return u, nil
}

// Get returns the updater for simID, or nil.
func (m *Manager) Get(simID string) *Updater {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updaters[simID]
}

// Stop shuts the simulation's updater down and forgets it. A missing
// updater is a no-op.
func (m *Manager) Stop(simID string) {
	m.mu.Lock()
	u := m.updaters[simID]
	delete(m.updaters, simID)
	m.mu.Unlock()
	if u != nil {
		u.Stop()
	}
}

// StopAll stops every tracked updater. Idempotent.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.updaters
	m.updaters = map[string]*Updater{}
	m.mu.Unlock()
	for _, u := range all {
		u.Stop()
	}
}
