package models

import "time"

// TaskStatus represents the state of an asynchronous job.
type TaskStatus string

// Task states.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is an in-memory record of a background job: ontology generation,
// graph build, simulation preparation, or report generation.
type Task struct {
	ID             string         `json:"task_id"`
	Type           string         `json:"type"`
	Status         TaskStatus     `json:"status"`
	Progress       int            `json:"progress"` // 0-100
	Message        string         `json:"message,omitempty"`
	ProgressDetail map[string]any `json:"progress_detail,omitempty"`
	Result         any            `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
