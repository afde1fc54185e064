// Package runner supervises the external simulation subprocess: it spawns
// the per-platform binary through a wrapper script, tails its action logs,
// maintains run_state.json, and tears everything down on stop or shutdown.
package runner

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/agora-sim/agora/pkg/memory"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/simulation"
	"github.com/agora-sim/agora/pkg/store"
)

// Selector chooses which platform binaries the wrapper script launches.
type Selector string

// Platform selectors.
const (
	SelectTwitter  Selector = "twitter"
	SelectReddit   Selector = "reddit"
	SelectParallel Selector = "parallel"
)

// Files the runner owns inside a simulation directory.
const (
	RunStateFile  = "run_state.json"
	SimulationLog = "simulation.log"
	ActionsFile   = "actions.jsonl"
)

// recentActionsMax bounds the in-memory ring of recent actions.
const recentActionsMax = 50

// ErrAlreadyRunning is returned by Start when the simulation's process is
// alive and force was not requested.
var ErrAlreadyRunning = fmt.Errorf("simulation already running")

// Options tune process supervision.
type Options struct {
	ScriptPath      string
	MonitorInterval time.Duration
	StopGracePeriod time.Duration
	KillWait        time.Duration
}

func (o Options) withDefaults() Options {
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = 2 * time.Second
	}
	if o.StopGracePeriod <= 0 {
		o.StopGracePeriod = 10 * time.Second
	}
	if o.KillWait <= 0 {
		o.KillWait = 5 * time.Second
	}
	return o
}

// StartRequest carries one Start call's parameters.
type StartRequest struct {
	Selector Selector
	Force    bool
	// EnableGraphMemory streams agent actions into the knowledge graph;
	// requires the simulation to have a graph id.
	EnableGraphMemory bool
}

// Runner tracks every running simulation subprocess in the orchestrator.
type Runner struct {
	opts    Options
	manager *simulation.Manager
	memory  *memory.Manager

	mu    sync.Mutex
	procs map[string]*runningSim
}

// runningSim is the supervision state of one child process.
type runningSim struct {
	simID     string
	dir       string
	platforms []models.Platform
	cmd       *exec.Cmd
	logFile   *os.File
	updater   *memory.Updater

	mu      sync.Mutex
	state   models.RunState
	offsets map[models.Platform]int64

	exited chan error // closed result of cmd.Wait
	done   chan struct{}
}

// New creates a runner over the simulation manager. memoryManager may be
// nil when graph memory updates are disabled process-wide.
func New(opts Options, manager *simulation.Manager, memoryManager *memory.Manager) *Runner {
	return &Runner{
		opts:    opts.withDefaults(),
		manager: manager,
		memory:  memoryManager,
		procs:   map[string]*runningSim{},
	}
}

// Start launches the simulation subprocess. A prepared simulation is a
// precondition; an alive process is rejected unless req.Force, in which
// case it is stopped first and its runtime logs are cleaned (config and
// profile files survive).
func (r *Runner) Start(simID string, req StartRequest) (*models.RunState, error) {
	prepared, err := r.manager.IsPrepared(simID)
	if err != nil {
		return nil, err
	}
	if !prepared {
		return nil, fmt.Errorf("simulation %s is not prepared", simID)
	}
	sim, err := r.manager.Store().Get(simID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if rs, ok := r.procs[simID]; ok && rs.alive() {
		if !req.Force {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, simID)
		}
		r.mu.Unlock()
		if err := r.Stop(simID); err != nil {
			return nil, err
		}
		// Stop moved the persisted status; work from the fresh state.
		if sim, err = r.manager.Store().Get(simID); err != nil {
			return nil, err
		}
		r.mu.Lock()
	}
	defer r.mu.Unlock()

	dir := r.manager.Store().Dir(simID)
	if req.Force {
		cleanRuntimeLogs(dir, models.AllPlatforms())
	}

	// Terminal states re-enter the lifecycle through ready.
	switch sim.Status {
	case models.SimulationStatusCompleted, models.SimulationStatusStopped, models.SimulationStatusFailed:
		if err := r.manager.Store().SetStatus(sim, models.SimulationStatusReady); err != nil {
			return nil, err
		}
	}

	selector := req.Selector
	if selector == "" {
		selector = selectorFor(sim)
	}

	logFile, err := os.OpenFile(filepath.Join(dir, SimulationLog),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening simulation log: %w", err)
	}

	cmd := exec.Command(r.opts.ScriptPath, string(selector), dir)
	cmd.Dir = dir
	// The whole process group gets signaled on stop, catching every
	// descendant the wrapper script spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Merged stdout+stderr straight into the file; a pipe would deadlock
	// once the child outruns an unread buffer.
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("starting simulation process: %w", err)
	}

	var updater *memory.Updater
	if req.EnableGraphMemory {
		if r.memory == nil || sim.GraphID == "" {
			r.killGroup(cmd.Process.Pid)
			logFile.Close()
			return nil, fmt.Errorf("graph memory updates require a graph id and an updater manager")
		}
		updater, err = r.memory.Create(simID, sim.GraphID)
		if err != nil {
			r.killGroup(cmd.Process.Pid)
			logFile.Close()
			return nil, err
		}
	}

	now := time.Now()
	rs := &runningSim{
		simID:     simID,
		dir:       dir,
		platforms: sim.Platforms(),
		cmd:       cmd,
		logFile:   logFile,
		updater:   updater,
		offsets:   map[models.Platform]int64{},
		exited:    make(chan error, 1),
		done:      make(chan struct{}),
		state: models.RunState{
			RunnerStatus: models.RunnerStatusStarting,
			Platforms:    map[models.Platform]models.PlatformRunState{},
			PID:          cmd.Process.Pid,
			StartedAt:    &now,
			UpdatedAt:    now,
		},
	}
	for _, p := range rs.platforms {
		rs.state.Platforms[p] = models.PlatformRunState{Running: true}
	}
	rs.state.RunnerStatus = models.RunnerStatusRunning
	rs.persistState()

	if err := r.manager.Store().SetStatus(sim, models.SimulationStatusRunning); err != nil {
		slog.Warn("Could not persist running status", "simulation_id", simID, "error", err)
	}

	r.procs[simID] = rs
	go func() { rs.exited <- cmd.Wait() }()
	go r.monitor(rs)

	slog.Info("Simulation process started",
		"simulation_id", simID, "pid", cmd.Process.Pid, "selector", selector)
	state := rs.snapshot()
	return &state, nil
}

func selectorFor(sim *models.Simulation) Selector {
	switch {
	case sim.EnableTwitter && sim.EnableReddit:
		return SelectParallel
	case sim.EnableReddit:
		return SelectReddit
	default:
		return SelectTwitter
	}
}

// cleanRuntimeLogs removes the runtime artifacts of a previous run while
// preserving configuration and profile files.
func cleanRuntimeLogs(dir string, platforms []models.Platform) {
	targets := []string{
		filepath.Join(dir, RunStateFile),
		filepath.Join(dir, SimulationLog),
		filepath.Join(dir, "env_status.json"),
	}
	for _, p := range platforms {
		targets = append(targets,
			filepath.Join(dir, string(p), ActionsFile),
			filepath.Join(dir, string(p)+"_simulation.db"),
		)
	}
	for _, t := range targets {
		if err := os.Remove(t); err != nil && !os.IsNotExist(err) {
			slog.Warn("Could not clean runtime artifact", "path", t, "error", err)
		}
	}
}

// Stop terminates the simulation's process group: SIGTERM, a grace window,
// then SIGKILL. The persisted status becomes stopped.
func (r *Runner) Stop(simID string) error {
	r.mu.Lock()
	rs, ok := r.procs[simID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("simulation %s has no tracked process", simID)
	}
	if !rs.alive() {
		return nil
	}

	pid := rs.cmd.Process.Pid
	rs.setStatus(models.RunnerStatusStopping)

	r.signalGroup(pid, syscall.SIGTERM)
	select {
	case <-rs.done:
	case <-time.After(r.opts.StopGracePeriod):
		slog.Warn("Simulation ignored SIGTERM, escalating",
			"simulation_id", simID, "pid", pid)
		r.signalGroup(pid, syscall.SIGKILL)
		select {
		case <-rs.done:
		case <-time.After(r.opts.KillWait):
			slog.Error("Simulation process did not die after SIGKILL",
				"simulation_id", simID, "pid", pid)
		}
	}

	rs.setStatus(models.RunnerStatusStopped)
	rs.persistState()
	if sim, err := r.manager.Store().Get(simID); err == nil {
		if serr := r.manager.Store().SetStatus(sim, models.SimulationStatusStopped); serr != nil {
			slog.Warn("Could not persist stopped status", "simulation_id", simID, "error", serr)
		}
	}
	return nil
}

// StopAll stops every tracked simulation. Used by the shutdown coordinator.
func (r *Runner) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		if err := r.Stop(id); err != nil {
			slog.Warn("Stop during shutdown failed", "simulation_id", id, "error", err)
		}
	}
}

// signalGroup signals the whole process group, falling back to the single
// process when the group cannot be resolved.
func (r *Runner) signalGroup(pid int, sig syscall.Signal) {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		slog.Warn("Could not resolve process group, signaling process directly",
			"pid", pid, "error", err)
		syscall.Kill(pid, sig)
		return
	}
	syscall.Kill(-pgid, sig)
}

func (r *Runner) killGroup(pid int) {
	r.signalGroup(pid, syscall.SIGKILL)
}

// RecoverOrphans scans persisted run states at startup and reconciles
// simulations whose previous orchestrator died: a live orphan process group
// gets killed, and the state is marked stopped either way.
func (r *Runner) RecoverOrphans() {
	sims, err := r.manager.Store().List("")
	if err != nil {
		slog.Warn("Orphan recovery could not list simulations", "error", err)
		return
	}
	for _, sim := range sims {
		if sim.Status != models.SimulationStatusRunning {
			continue
		}
		dir := r.manager.Store().Dir(sim.ID)
		var state models.RunState
		if err := store.ReadJSON(filepath.Join(dir, RunStateFile), &state); err != nil {
			state = models.RunState{}
		}
		if state.PID > 0 && processAlive(state.PID) {
			slog.Warn("Killing orphaned simulation process",
				"simulation_id", sim.ID, "pid", state.PID)
			r.killGroup(state.PID)
		}
		state.RunnerStatus = models.RunnerStatusStopped
		state.UpdatedAt = time.Now()
		if err := store.WriteJSON(filepath.Join(dir, RunStateFile), &state); err != nil {
			slog.Warn("Could not persist recovered run state", "simulation_id", sim.ID, "error", err)
		}
		if err := r.manager.Store().SetStatus(sim, models.SimulationStatusStopped); err != nil {
			slog.Warn("Could not persist recovered status", "simulation_id", sim.ID, "error", err)
		}
	}
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// --- runningSim helpers ---

func (rs *runningSim) alive() bool {
	select {
	case <-rs.done:
		return false
	default:
		return true
	}
}

func (rs *runningSim) setStatus(status models.RunnerStatus) {
	rs.mu.Lock()
	rs.state.RunnerStatus = status
	rs.state.UpdatedAt = time.Now()
	rs.mu.Unlock()
}

func (rs *runningSim) snapshot() models.RunState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	state := rs.state
	state.Platforms = make(map[models.Platform]models.PlatformRunState, len(rs.state.Platforms))
	for k, v := range rs.state.Platforms {
		state.Platforms[k] = v
	}
	state.RecentActions = append([]models.AgentAction(nil), rs.state.RecentActions...)
	return state
}

// persistState writes run_state.json atomically. The state file has exactly
// one writer, the owning runner.
func (rs *runningSim) persistState() {
	state := rs.snapshot()
	if err := store.WriteJSON(filepath.Join(rs.dir, RunStateFile), &state); err != nil {
		slog.Warn("Could not persist run state", "simulation_id", rs.simID, "error", err)
	}
}
