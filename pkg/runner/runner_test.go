package runner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/simulation"
	"github.com/agora-sim/agora/pkg/store"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func fastRunner(t *testing.T, script string) (*Runner, *models.Simulation, *simulation.Store) {
	t.Helper()
	fs, err := store.New(t.TempDir())
	require.NoError(t, err)
	simStore := simulation.NewStore(fs)

	sim, err := simStore.Create("proj", "graph-1", true, false)
	require.NoError(t, err)

	// Fabricate a prepared simulation: all artifacts present, status ready.
	dir := simStore.Dir(sim.ID)
	require.NoError(t, store.WriteJSON(filepath.Join(dir, simulation.ConfigFile), map[string]any{}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, simulation.RedditProfilesFile), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, simulation.TwitterProfilesFile),
		[]byte("user_id,name,username,user_char,description\n"), 0o644))
	sim.ConfigGenerated = true
	require.NoError(t, simStore.SetStatus(sim, models.SimulationStatusPreparing))
	require.NoError(t, simStore.SetStatus(sim, models.SimulationStatusReady))

	mgr := simulation.NewManager(simStore, nil, nil)
	r := New(Options{
		ScriptPath:      script,
		MonitorInterval: 10 * time.Millisecond,
		StopGracePeriod: 500 * time.Millisecond,
		KillWait:        500 * time.Millisecond,
	}, mgr, nil)
	return r, sim, simStore
}

func TestStart_NotPrepared(t *testing.T) {
	script := writeScript(t, "exit 0")
	fs, err := store.New(t.TempDir())
	require.NoError(t, err)
	simStore := simulation.NewStore(fs)
	sim, err := simStore.Create("proj", "g", true, false)
	require.NoError(t, err)

	r := New(Options{ScriptPath: script}, simulation.NewManager(simStore, nil, nil), nil)
	_, err = r.Start(sim.ID, StartRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not prepared")
}

func TestStart_CompletesOnExitZero(t *testing.T) {
	r, sim, simStore := fastRunner(t, writeScript(t, "exit 0"))

	state, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunnerStatusRunning, state.RunnerStatus)
	assert.Greater(t, state.PID, 0)

	require.Eventually(t, func() bool {
		got, err := simStore.Get(sim.ID)
		return err == nil && got.Status == models.SimulationStatusCompleted
	}, 3*time.Second, 20*time.Millisecond)

	final, err := r.GetRunState(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunnerStatusCompleted, final.RunnerStatus)
	assert.NotNil(t, final.CompletedAt)
}

func TestStart_FailureCapturesLogTail(t *testing.T) {
	r, sim, simStore := fastRunner(t, writeScript(t, "echo boom; exit 3"))

	_, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := simStore.Get(sim.ID)
		return err == nil && got.Status == models.SimulationStatusFailed
	}, 3*time.Second, 20*time.Millisecond)

	final, err := r.GetRunState(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunnerStatusFailed, final.RunnerStatus)
	assert.Contains(t, final.LastError, "exit status 3")
	assert.Contains(t, final.LastError, "boom")
}

func TestStart_RejectsConcurrentStart(t *testing.T) {
	r, sim, _ := fastRunner(t, writeScript(t, "sleep 30"))

	_, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)
	defer r.Stop(sim.ID)

	_, err = r.Start(sim.ID, StartRequest{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStart_ForceRestarts(t *testing.T) {
	r, sim, _ := fastRunner(t, writeScript(t, "sleep 30"))

	first, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)

	second, err := r.Start(sim.ID, StartRequest{Force: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.PID, second.PID)

	require.NoError(t, r.Stop(sim.ID))
}

func TestStop_TerminatesProcessGroup(t *testing.T) {
	r, sim, simStore := fastRunner(t, writeScript(t, "sleep 30"))

	state, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)
	pid := state.PID

	require.NoError(t, r.Stop(sim.ID))

	got, err := simStore.Get(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationStatusStopped, got.Status)

	final, err := r.GetRunState(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunnerStatusStopped, final.RunnerStatus)

	assert.Eventually(t, func() bool { return !processAlive(pid) },
		2*time.Second, 20*time.Millisecond)
}

func TestMonitor_FoldsActionLog(t *testing.T) {
	r, sim, _ := fastRunner(t, writeScript(t, "sleep 2"))
	dir := r.manager.Store().Dir(sim.ID)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "twitter"), 0o755))

	_, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)
	defer r.Stop(sim.ID)

	log := `{"round": 1, "agent_id": 3, "agent_name": "Alice", "action_type": "create_post", "action_args": {"content": "hi"}}
{"round": 1, "agent_id": 4, "agent_name": "Bob", "action_type": "like_post"}
{"event_type": "round_end", "round": 1, "simulated_hours": 0.5, "total_rounds": 48}
{"event_type": "simulation_end", "round": 1}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "twitter", ActionsFile), []byte(log), 0o644))

	require.Eventually(t, func() bool {
		state, err := r.GetRunState(sim.ID)
		if err != nil {
			return false
		}
		ps := state.Platforms[models.PlatformTwitter]
		return ps.Completed && ps.ActionCount == 2 && state.CurrentRound == 1
	}, 3*time.Second, 20*time.Millisecond)

	state, err := r.GetRunState(sim.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, state.SimulatedHours, 1e-9)
	assert.Equal(t, 48, state.TotalRounds)
	assert.Len(t, state.RecentActions, 2)
}

func TestRecoverOrphans_MarksDeadRunStopped(t *testing.T) {
	r, sim, simStore := fastRunner(t, writeScript(t, "exit 0"))

	got, err := simStore.Get(sim.ID)
	require.NoError(t, err)
	require.NoError(t, simStore.SetStatus(got, models.SimulationStatusRunning))
	dir := simStore.Dir(sim.ID)
	require.NoError(t, store.WriteJSON(filepath.Join(dir, RunStateFile), &models.RunState{
		RunnerStatus: models.RunnerStatusRunning,
		PID:          1 << 22, // beyond pid_max, certainly dead
	}))

	r.RecoverOrphans()

	after, err := simStore.Get(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationStatusStopped, after.Status)

	var state models.RunState
	require.NoError(t, store.ReadJSON(filepath.Join(dir, RunStateFile), &state))
	assert.Equal(t, models.RunnerStatusStopped, state.RunnerStatus)
}

func TestReadCompleteLines_PartialTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"round\":1}\n{\"round\":2"), 0o644))

	lines, offset := readCompleteLines(path, 0)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(len("{\"round\":1}\n")), offset)

	// Completing the line makes it readable from the saved offset.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines, offset2 := readCompleteLines(path, offset)
	require.Len(t, lines, 1)
	assert.Greater(t, offset2, offset)
	assert.JSONEq(t, `{"round":2}`, string(lines[0]))
}

func TestShutdownCoordinator_Idempotent(t *testing.T) {
	r, sim, simStore := fastRunner(t, writeScript(t, "sleep 30"))
	_, err := r.Start(sim.ID, StartRequest{})
	require.NoError(t, err)

	c := NewShutdownCoordinator(r, nil)
	c.Shutdown()
	c.Shutdown()

	got, err := simStore.Get(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationStatusStopped, got.Status)
}
