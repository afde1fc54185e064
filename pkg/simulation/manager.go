package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/profile"
	"github.com/agora-sim/agora/pkg/simconfig"
	"github.com/agora-sim/agora/pkg/store"
)

// preparedStatuses are the states IsPrepared accepts in state.json.
var preparedStatuses = map[models.SimulationStatus]bool{
	models.SimulationStatusReady:     true,
	models.SimulationStatusPreparing: true,
	models.SimulationStatusRunning:   true,
	models.SimulationStatusCompleted: true,
	models.SimulationStatusStopped:   true,
	models.SimulationStatusFailed:    true,
}

// ProgressFunc receives (percent, message) while a preparation runs.
type ProgressFunc func(percent int, message string)

// Manager drives the preparation pipeline and the prepared-state check.
type Manager struct {
	store       *Store
	llm         llm.Client
	graphClient graph.Client
}

// NewManager wires the manager to its collaborators.
func NewManager(simStore *Store, llmClient llm.Client, graphClient graph.Client) *Manager {
	return &Manager{store: simStore, llm: llmClient, graphClient: graphClient}
}

// Store exposes the underlying simulation store.
func (m *Manager) Store() *Store { return m.store }

// PrepareRequest carries the inputs of one preparation run.
type PrepareRequest struct {
	Requirement      string
	DocumentText     string
	DefinedTypes     []string
	UseLLMProfiles   bool
	ParallelProfiles int
	Progress         ProgressFunc
}

// Prepare runs the full pipeline: entity extraction, profile synthesis with
// streaming save, platform profile files, config generation. The simulation
// ends in ready on success and failed (with last_error set) on any error.
func (m *Manager) Prepare(ctx context.Context, simID string, req PrepareRequest) error {
	sim, err := m.store.Get(simID)
	if err != nil {
		return err
	}
	if err := m.store.SetStatus(sim, models.SimulationStatusPreparing); err != nil {
		return err
	}
	if err := m.prepare(ctx, sim, req); err != nil {
		sim.LastError = err.Error()
		if serr := m.store.SetStatus(sim, models.SimulationStatusFailed); serr != nil {
			slog.Error("Could not persist failed simulation state",
				"simulation_id", simID, "error", serr)
		}
		return err
	}
	return m.store.SetStatus(sim, models.SimulationStatusReady)
}

func (m *Manager) prepare(ctx context.Context, sim *models.Simulation, req PrepareRequest) error {
	report := func(pct int, msg string) {
		if req.Progress != nil {
			req.Progress(pct, msg)
		}
	}
	dir := m.store.Dir(sim.ID)

	// 1. Typed entities from the graph.
	report(5, "Reading entities from graph")
	reader := graph.NewEntityReader(m.graphClient)
	filtered, err := reader.FilterDefined(ctx, sim.GraphID, req.DefinedTypes, true)
	if err != nil {
		return fmt.Errorf("reading entities: %w", err)
	}
	if filtered.FilteredCount == 0 {
		return fmt.Errorf("graph %s contains no typed entities", sim.GraphID)
	}
	sim.EntityCount = filtered.FilteredCount
	sim.EntityTypes = filtered.EntityTypesSeen

	// 2. Profiles, with a streaming save so partial runs leave an artifact.
	report(20, fmt.Sprintf("Synthesizing %d agent profiles", filtered.FilteredCount))
	synth := profile.NewSynthesizer(m.llm, m.graphClient, sim.GraphID)
	profiles, err := synth.GenerateAll(ctx, filtered.Entities, profile.GenerateOptions{
		UseLLM:           req.UseLLMProfiles,
		Parallel:         req.ParallelProfiles,
		RealtimePath:     filepath.Join(dir, RedditProfilesFile),
		RealtimePlatform: models.PlatformReddit,
		Progress: func(current, total int, msg string) {
			report(20+50*current/total, msg)
		},
	})
	if err != nil {
		return fmt.Errorf("synthesizing profiles: %w", err)
	}
	sim.ProfileCount = len(profiles)

	// 3. Platform profile files in their required formats.
	if err := profile.WriteRedditProfiles(filepath.Join(dir, RedditProfilesFile), profiles); err != nil {
		return fmt.Errorf("writing reddit profiles: %w", err)
	}
	if err := profile.WriteTwitterProfiles(filepath.Join(dir, TwitterProfilesFile), profiles); err != nil {
		return fmt.Errorf("writing twitter profiles: %w", err)
	}
	report(75, "Profiles persisted")

	// 4. Simulation configuration.
	params, err := simconfig.NewSynthesizer(m.llm).Generate(ctx, simconfig.Request{
		Requirement:  req.Requirement,
		DocumentText: req.DocumentText,
		Profiles:     profiles,
		Platforms:    sim.Platforms(),
	})
	if err != nil {
		return fmt.Errorf("generating simulation config: %w", err)
	}
	if err := store.WriteJSON(filepath.Join(dir, ConfigFile), params); err != nil {
		return fmt.Errorf("writing simulation config: %w", err)
	}
	sim.ConfigGenerated = true
	report(100, "Preparation complete")
	return nil
}

// IsPrepared reports whether a previous preparation completed: the
// directory and all four artifacts exist and state.json is past created
// with config_generated set. A preparing state with every file present is
// the footprint of an interrupted-but-finished run and is auto-upgraded to
// ready.
func (m *Manager) IsPrepared(simID string) (bool, error) {
	dir := m.store.Dir(simID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	sim, err := m.store.Get(simID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}

	for _, name := range []string{StateFile, ConfigFile, RedditProfilesFile, TwitterProfilesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false, nil
		}
	}
	if !preparedStatuses[sim.Status] || !sim.ConfigGenerated {
		return false, nil
	}

	if sim.Status == models.SimulationStatusPreparing {
		if err := m.store.SetStatus(sim, models.SimulationStatusReady); err != nil {
			return false, err
		}
		slog.Info("Auto-upgraded interrupted preparation to ready", "simulation_id", simID)
	}
	return true, nil
}
