package models

import "time"

// SimulationStatus represents the lifecycle state of a simulation.
type SimulationStatus string

// Simulation lifecycle states.
const (
	SimulationStatusCreated   SimulationStatus = "created"
	SimulationStatusPreparing SimulationStatus = "preparing"
	SimulationStatusReady     SimulationStatus = "ready"
	SimulationStatusRunning   SimulationStatus = "running"
	SimulationStatusPaused    SimulationStatus = "paused"
	SimulationStatusStopped   SimulationStatus = "stopped"
	SimulationStatusCompleted SimulationStatus = "completed"
	SimulationStatusFailed    SimulationStatus = "failed"
)

// Platform identifies a simulated social service.
type Platform string

// Supported platforms.
const (
	PlatformTwitter Platform = "twitter"
	PlatformReddit  Platform = "reddit"
)

// Simulation is the persisted state of one simulation (state.json).
type Simulation struct {
	ID              string           `json:"simulation_id"`
	ProjectID       string           `json:"project_id"`
	GraphID         string           `json:"graph_id"`
	EnableTwitter   bool             `json:"enable_twitter"`
	EnableReddit    bool             `json:"enable_reddit"`
	Status          SimulationStatus `json:"status"`
	EntityCount     int              `json:"entity_count,omitempty"`
	ProfileCount    int              `json:"profile_count,omitempty"`
	EntityTypes     []string         `json:"entity_types,omitempty"`
	ConfigGenerated bool             `json:"config_generated"`
	TwitterStatus   string           `json:"twitter_status,omitempty"`
	RedditStatus    string           `json:"reddit_status,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// AllPlatforms lists every supported platform in fixed twitter-first order.
func AllPlatforms() []Platform {
	return []Platform{PlatformTwitter, PlatformReddit}
}

// Platforms returns the enabled platforms in fixed twitter-first order.
func (s *Simulation) Platforms() []Platform {
	var out []Platform
	if s.EnableTwitter {
		out = append(out, PlatformTwitter)
	}
	if s.EnableReddit {
		out = append(out, PlatformReddit)
	}
	return out
}
