// Package tasks provides the in-process registry of asynchronous jobs.
// There is exactly one Registry per process, owned by the server bootstrap
// and passed explicitly to every component that schedules work.
package tasks

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/agora/pkg/models"
)

// ErrTaskNotFound is returned when a task id is unknown.
var ErrTaskNotFound = errors.New("task not found")

// Update describes a partial mutation of a task. Nil fields are left untouched.
type Update struct {
	Status         *models.TaskStatus
	Progress       *int
	Message        *string
	ProgressDetail map[string]any
	Result         any
	Error          *string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   string
	Status models.TaskStatus
}

// Registry tracks background jobs with status, progress and results.
// All operations are guarded by a single mutex.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*models.Task)}
}

// Create registers a new pending task and returns its id.
func (r *Registry) Create(taskType string, metadata map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	task := &models.Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Status:    models.TaskStatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[task.ID] = task
	return task.ID
}

// Apply performs an atomic partial update. Progress is monotonic while the
// task is processing: a lower value than the current one is ignored.
func (r *Registry) Apply(taskID string, u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if u.Status != nil {
		task.Status = *u.Status
	}
	if u.Progress != nil {
		p := clampProgress(*u.Progress)
		if task.Status != models.TaskStatusProcessing || p >= task.Progress {
			task.Progress = p
		}
	}
	if u.Message != nil {
		task.Message = *u.Message
	}
	if u.ProgressDetail != nil {
		task.ProgressDetail = u.ProgressDetail
	}
	if u.Result != nil {
		task.Result = u.Result
	}
	if u.Error != nil {
		task.Error = *u.Error
	}
	task.UpdatedAt = time.Now()
	return nil
}

// Progress marks the task processing and records progress and message.
func (r *Registry) Progress(taskID string, progress int, message string) error {
	status := models.TaskStatusProcessing
	return r.Apply(taskID, Update{Status: &status, Progress: &progress, Message: &message})
}

// Complete marks the task completed with progress 100 and the given result.
func (r *Registry) Complete(taskID string, result any) error {
	status := models.TaskStatusCompleted
	progress := 100
	return r.Apply(taskID, Update{Status: &status, Progress: &progress, Result: result})
}

// Fail marks the task failed with the given error string.
func (r *Registry) Fail(taskID string, errMsg string) error {
	status := models.TaskStatusFailed
	return r.Apply(taskID, Update{Status: &status, Error: &errMsg})
}

// Get returns a snapshot of the task.
func (r *Registry) Get(taskID string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	snapshot := *task
	return &snapshot, nil
}

// List returns snapshots matching the filter, sorted by created-at descending.
func (r *Registry) List(f Filter) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		if f.Type != "" && task.Type != f.Type {
			continue
		}
		if f.Status != "" && task.Status != f.Status {
			continue
		}
		snapshot := *task
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CleanupOlderThan removes terminal tasks whose last update is older than d.
// Returns the number of tasks removed.
func (r *Registry) CleanupOlderThan(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-d)
	removed := 0
	for id, task := range r.tasks {
		if task.Status.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
