package models

// Event type markers used by sentinel records in the action logs.
const (
	EventTypeRoundEnd      = "round_end"
	EventTypeSimulationEnd = "simulation_end"
)

// AgentAction is one line of {platform}/actions.jsonl written by the external
// simulation. Records carrying an event_type field are sentinels, not actions.
type AgentAction struct {
	Round      int            `json:"round"`
	Timestamp  string         `json:"timestamp"`
	Platform   Platform       `json:"platform,omitempty"`
	AgentID    *int           `json:"agent_id,omitempty"`
	AgentName  string         `json:"agent_name,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	ActionArgs map[string]any `json:"action_args,omitempty"`
	Result     any            `json:"result,omitempty"`
	Success    *bool          `json:"success,omitempty"`

	// Sentinel fields (event records only).
	EventType      string  `json:"event_type,omitempty"`
	SimulatedHours float64 `json:"simulated_hours,omitempty"`
	TotalRounds    int     `json:"total_rounds,omitempty"`
}

// IsEvent reports whether the record is a round_end/simulation_end sentinel.
func (a *AgentAction) IsEvent() bool { return a.EventType != "" }

// IsAgentAction reports whether the record is a genuine agent action.
func (a *AgentAction) IsAgentAction() bool { return a.EventType == "" && a.AgentID != nil }
