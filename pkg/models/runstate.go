package models

import "time"

// RunnerStatus is the runtime state of the simulation subprocess, tracked
// independently from SimulationStatus.
type RunnerStatus string

// Runner states.
const (
	RunnerStatusIdle      RunnerStatus = "idle"
	RunnerStatusStarting  RunnerStatus = "starting"
	RunnerStatusRunning   RunnerStatus = "running"
	RunnerStatusPaused    RunnerStatus = "paused"
	RunnerStatusStopping  RunnerStatus = "stopping"
	RunnerStatusStopped   RunnerStatus = "stopped"
	RunnerStatusCompleted RunnerStatus = "completed"
	RunnerStatusFailed    RunnerStatus = "failed"
)

// PlatformRunState is the per-platform runtime projection.
type PlatformRunState struct {
	CurrentRound   int     `json:"current_round"`
	SimulatedHours float64 `json:"simulated_hours"`
	Running        bool    `json:"running"`
	Completed      bool    `json:"completed"`
	ActionCount    int     `json:"action_count"`
}

// RunState is the runtime snapshot of a simulation, persisted as run_state.json.
type RunState struct {
	RunnerStatus   RunnerStatus                  `json:"runner_status"`
	CurrentRound   int                           `json:"current_round"`
	TotalRounds    int                           `json:"total_rounds"`
	SimulatedHours float64                       `json:"simulated_hours"`
	TotalHours     int                           `json:"total_hours"`
	Platforms      map[Platform]PlatformRunState `json:"platforms"`
	RecentActions  []AgentAction                 `json:"recent_actions,omitempty"`
	PID            int                           `json:"pid,omitempty"`
	StartedAt      *time.Time                    `json:"started_at,omitempty"`
	CompletedAt    *time.Time                    `json:"completed_at,omitempty"`
	UpdatedAt      time.Time                     `json:"updated_at"`
	LastError      string                        `json:"last_error,omitempty"`
}
