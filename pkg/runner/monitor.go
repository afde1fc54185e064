package runner

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agora-sim/agora/pkg/memory"
	"github.com/agora-sim/agora/pkg/models"
)

// errorTailBytes is how much of simulation.log a failure report carries.
const errorTailBytes = 2000

// monitor is the per-simulation supervision loop: it tails the platform
// action logs, folds sentinel events into the run state, and finishes when
// the child's exit status becomes observable.
func (r *Runner) monitor(rs *runningSim) {
	defer close(rs.done)

	ticker := time.NewTicker(r.opts.MonitorInterval)
	defer ticker.Stop()

	var exitErr error
	exited := false
	for !exited {
		select {
		case exitErr = <-rs.exited:
			exited = true
		case <-ticker.C:
		}
		r.pollActionLogs(rs)
		rs.persistState()
	}

	r.finish(rs, exitErr)
}

// finish reconciles the final state after process exit: exit code 0 means
// completed, anything else failed with the log tail as the error. The log
// handle and updater are released here.
func (r *Runner) finish(rs *runningSim, exitErr error) {
	rs.mu.Lock()
	stopping := rs.state.RunnerStatus == models.RunnerStatusStopping ||
		rs.state.RunnerStatus == models.RunnerStatusStopped
	rs.mu.Unlock()

	var final models.SimulationStatus
	switch {
	case stopping:
		// Stop owns the stopped transition; leave the status alone.
		final = ""
	case exitErr == nil:
		rs.setStatus(models.RunnerStatusCompleted)
		now := time.Now()
		rs.mu.Lock()
		rs.state.CompletedAt = &now
		rs.mu.Unlock()
		final = models.SimulationStatusCompleted
	default:
		tail := logTail(filepath.Join(rs.dir, SimulationLog))
		rs.mu.Lock()
		rs.state.RunnerStatus = models.RunnerStatusFailed
		rs.state.LastError = exitErr.Error()
		if tail != "" {
			rs.state.LastError = exitErr.Error() + "\n" + tail
		}
		rs.state.UpdatedAt = time.Now()
		rs.mu.Unlock()
		final = models.SimulationStatusFailed
	}
	rs.persistState()

	if final != "" {
		if sim, err := r.manager.Store().Get(rs.simID); err == nil {
			if err := r.manager.Store().SetStatus(sim, final); err != nil {
				slog.Warn("Could not persist final simulation status",
					"simulation_id", rs.simID, "status", final, "error", err)
			}
		}
	}

	rs.logFile.Close()
	if rs.updater != nil && r.memory != nil {
		r.memory.Stop(rs.simID)
	}
	slog.Info("Simulation monitor finished", "simulation_id", rs.simID, "status", final)
}

// pollActionLogs tails every platform's actions.jsonl from its last offset.
func (r *Runner) pollActionLogs(rs *runningSim) {
	allDone := true
	anyLog := false
	for _, platform := range rs.platforms {
		path := filepath.Join(rs.dir, string(platform), ActionsFile)
		lines, newOffset := readCompleteLines(path, rs.offsets[platform])
		rs.offsets[platform] = newOffset

		for _, line := range lines {
			r.handleRecord(rs, platform, line)
		}

		rs.mu.Lock()
		ps := rs.state.Platforms[platform]
		rs.mu.Unlock()
		if _, err := os.Stat(path); err == nil {
			anyLog = true
			if !ps.Completed {
				allDone = false
			}
		}
	}

	// Every platform that produced a log has signaled simulation_end.
	if anyLog && allDone {
		rs.mu.Lock()
		if rs.state.RunnerStatus == models.RunnerStatusRunning {
			rs.state.RunnerStatus = models.RunnerStatusCompleted
			now := time.Now()
			rs.state.CompletedAt = &now
			rs.state.UpdatedAt = now
		}
		rs.mu.Unlock()
	}
}

// handleRecord folds one JSONL record into the run state. Records with an
// event_type are sentinels; records with an agent_id are agent actions.
func (r *Runner) handleRecord(rs *runningSim, platform models.Platform, line []byte) {
	var action models.AgentAction
	if err := json.Unmarshal(line, &action); err != nil {
		slog.Warn("Skipping malformed action record",
			"simulation_id", rs.simID, "platform", platform, "error", err)
		return
	}
	if action.Platform == "" {
		action.Platform = platform
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	ps := rs.state.Platforms[platform]

	switch action.EventType {
	case models.EventTypeRoundEnd:
		ps.CurrentRound = action.Round
		if action.SimulatedHours > 0 {
			ps.SimulatedHours = action.SimulatedHours
		}
		if action.TotalRounds > 0 {
			rs.state.TotalRounds = action.TotalRounds
		}
	case models.EventTypeSimulationEnd:
		ps.Completed = true
		ps.Running = false
	case "":
		if action.AgentID == nil {
			break
		}
		ps.ActionCount++
		rs.state.RecentActions = append(rs.state.RecentActions, action)
		if len(rs.state.RecentActions) > recentActionsMax {
			rs.state.RecentActions = rs.state.RecentActions[len(rs.state.RecentActions)-recentActionsMax:]
		}
		if rs.updater != nil {
			rs.updater.Enqueue(memory.AgentActivity{
				Platform:   platform,
				AgentID:    *action.AgentID,
				AgentName:  action.AgentName,
				ActionType: action.ActionType,
				Args:       action.ActionArgs,
				Round:      action.Round,
				Timestamp:  action.Timestamp,
			})
		}
	}
	rs.state.Platforms[platform] = ps

	// Global round and simulated hours are the max across platforms.
	rs.state.CurrentRound = 0
	rs.state.SimulatedHours = 0
	for _, p := range rs.state.Platforms {
		if p.CurrentRound > rs.state.CurrentRound {
			rs.state.CurrentRound = p.CurrentRound
		}
		if p.SimulatedHours > rs.state.SimulatedHours {
			rs.state.SimulatedHours = p.SimulatedHours
		}
	}
	rs.state.UpdatedAt = time.Now()
}

// readCompleteLines returns the newline-terminated lines of path past
// offset and the offset of the first unconsumed byte. A partial trailing
// line stays unconsumed until the writer finishes it.
func readCompleteLines(path string, offset int64) ([][]byte, int64) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, offset
	}
	if offset >= int64(len(data)) {
		return nil, offset
	}
	data = data[offset:]

	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return nil, offset
	}
	complete := data[:last+1]

	var lines [][]byte
	for _, line := range bytes.Split(complete, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines, offset + int64(last) + 1
}

// logTail returns the last errorTailBytes of the simulation log, trimmed to
// whole lines.
func logTail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > errorTailBytes {
		data = data[len(data)-errorTailBytes:]
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			data = data[idx+1:]
		}
	}
	return strings.TrimSpace(string(data))
}
