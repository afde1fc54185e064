package models

// IPCCommandType identifies the kind of a file-based IPC command.
type IPCCommandType string

// Supported IPC commands.
const (
	IPCCommandInterview      IPCCommandType = "interview"
	IPCCommandBatchInterview IPCCommandType = "batch_interview"
	IPCCommandCloseEnv       IPCCommandType = "close_env"
)

// IPCCommand is written to ipc_commands/{uuid}.json by the orchestrator.
type IPCCommand struct {
	ID        string         `json:"command_id"`
	Type      IPCCommandType `json:"type"`
	Args      map[string]any `json:"args,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// IPCResponseStatus is the state of a command as reported by the simulation.
type IPCResponseStatus string

// IPC response states.
const (
	IPCResponsePending    IPCResponseStatus = "pending"
	IPCResponseProcessing IPCResponseStatus = "processing"
	IPCResponseCompleted  IPCResponseStatus = "completed"
	IPCResponseFailed     IPCResponseStatus = "failed"
)

// IPCResponse is read from ipc_responses/{uuid}.json.
type IPCResponse struct {
	CommandID string            `json:"command_id"`
	Status    IPCResponseStatus `json:"status"`
	Result    map[string]any    `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// EnvStatus is the liveness flag owned by the external simulation
// (env_status.json). Absence or unparseable content means "not alive".
type EnvStatus struct {
	Status           string  `json:"status"` // "alive" or "stopped"
	Timestamp        float64 `json:"timestamp"`
	TwitterAvailable bool    `json:"twitter_available"`
	RedditAvailable  bool    `json:"reddit_available"`
}

// Alive reports whether the environment declares itself running.
func (e *EnvStatus) Alive() bool { return e != nil && e.Status == "alive" }
