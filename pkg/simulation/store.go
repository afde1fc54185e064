// Package simulation owns the simulation lifecycle: persisted state, the
// status machine, and the preparation pipeline that turns a built graph
// into profiles plus a generated configuration.
package simulation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// ErrNotFound is returned when a simulation id is unknown.
var ErrNotFound = errors.New("simulation not found")

// ErrInvalidTransition is returned for a status change the lifecycle does
// not allow.
var ErrInvalidTransition = errors.New("invalid simulation status transition")

// Artifact filenames inside a simulation directory.
const (
	StateFile           = "state.json"
	ConfigFile          = "simulation_config.json"
	RedditProfilesFile  = "reddit_profiles.json"
	TwitterProfilesFile = "twitter_profiles.csv"
)

// validTransitions encodes the lifecycle graph. Terminal states re-enter
// the running path through ready re-gating on a forced start.
var validTransitions = map[models.SimulationStatus][]models.SimulationStatus{
	models.SimulationStatusCreated:   {models.SimulationStatusPreparing},
	models.SimulationStatusPreparing: {models.SimulationStatusReady, models.SimulationStatusFailed},
	models.SimulationStatusReady:     {models.SimulationStatusRunning, models.SimulationStatusPreparing},
	models.SimulationStatusRunning: {
		models.SimulationStatusCompleted, models.SimulationStatusStopped,
		models.SimulationStatusFailed, models.SimulationStatusPaused,
	},
	models.SimulationStatusPaused:    {models.SimulationStatusRunning, models.SimulationStatusStopped},
	models.SimulationStatusCompleted: {models.SimulationStatusReady},
	models.SimulationStatusStopped:   {models.SimulationStatusReady},
	models.SimulationStatusFailed:    {models.SimulationStatusReady, models.SimulationStatusPreparing},
}

// CanTransition reports whether the lifecycle allows from → to.
func CanTransition(from, to models.SimulationStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Store persists simulations under uploads/simulations/{id}/.
type Store struct {
	fs *store.Store
}

// NewStore creates a simulation store over the shared filesystem layout.
func NewStore(fs *store.Store) *Store {
	return &Store{fs: fs}
}

// Dir returns the simulation's directory.
func (s *Store) Dir(id string) string { return s.fs.SimulationDir(id) }

// Create allocates a new simulation directory and writes the initial state.
func (s *Store) Create(projectID, graphID string, enableTwitter, enableReddit bool) (*models.Simulation, error) {
	now := time.Now()
	sim := &models.Simulation{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		GraphID:       graphID,
		EnableTwitter: enableTwitter,
		EnableReddit:  enableReddit,
		Status:        models.SimulationStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := os.MkdirAll(s.Dir(sim.ID), 0o755); err != nil {
		return nil, fmt.Errorf("creating simulation directory: %w", err)
	}
	if err := s.Save(sim); err != nil {
		return nil, err
	}
	return sim, nil
}

// Save rewrites state.json after bumping updated_at.
func (s *Store) Save(sim *models.Simulation) error {
	sim.UpdatedAt = time.Now()
	return store.WriteJSON(filepath.Join(s.Dir(sim.ID), StateFile), sim)
}

// Get loads a simulation by id.
func (s *Store) Get(id string) (*models.Simulation, error) {
	var sim models.Simulation
	err := store.ReadJSON(filepath.Join(s.Dir(id), StateFile), &sim)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

// List returns all simulations sorted by created-at descending, optionally
// restricted to one project.
func (s *Store) List(projectID string) ([]*models.Simulation, error) {
	ids, err := s.fs.ListSimulationIDs()
	if err != nil {
		return nil, err
	}
	sims := make([]*models.Simulation, 0, len(ids))
	for _, id := range ids {
		sim, err := s.Get(id)
		if err != nil {
			continue
		}
		if projectID != "" && sim.ProjectID != projectID {
			continue
		}
		sims = append(sims, sim)
	}
	sort.Slice(sims, func(i, j int) bool {
		return sims[i].CreatedAt.After(sims[j].CreatedAt)
	})
	return sims, nil
}

// Delete removes the simulation directory and everything under it.
func (s *Store) Delete(id string) error {
	dir := s.Dir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// SetStatus validates the lifecycle transition and persists it.
func (s *Store) SetStatus(sim *models.Simulation, to models.SimulationStatus) error {
	if sim.Status == to {
		return s.Save(sim)
	}
	if !CanTransition(sim.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sim.Status, to)
	}
	sim.Status = to
	return s.Save(sim)
}
