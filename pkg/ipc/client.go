// Package ipc implements the file-based command channel between the
// orchestrator and a running external simulation. Commands are dropped into
// ipc_commands/, answers appear in ipc_responses/, and env_status.json
// carries the simulation's liveness heartbeat.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// ErrTimeout is returned when no response arrives within the call's timeout.
var ErrTimeout = errors.New("ipc command timed out")

const (
	commandsDir   = "ipc_commands"
	responsesDir  = "ipc_responses"
	envStatusFile = "env_status.json"

	// DefaultPollInterval is the response poll cadence; fsnotify events
	// short-circuit the wait when the watcher is available.
	DefaultPollInterval = 500 * time.Millisecond

	// interviewInstruction is prepended to every interview prompt so the
	// interviewed agent answers in plain text instead of invoking tools.
	interviewInstruction = "You are being interviewed. Answer the question below directly in plain text. Do not call tools and do not perform any platform actions.\n\n"
)

// Client sends commands into one simulation's directory.
type Client struct {
	dir          string
	pollInterval time.Duration
}

// NewClient creates a client rooted at the simulation directory.
func NewClient(simulationDir string) *Client {
	return &Client{dir: simulationDir, pollInterval: DefaultPollInterval}
}

// Send writes one command and waits for its response. On success both files
// are removed; on timeout the command file is removed and ErrTimeout
// returned, so the channel never accumulates stale requests.
func (c *Client) Send(ctx context.Context, cmdType models.IPCCommandType, args map[string]any, timeout time.Duration) (*models.IPCResponse, error) {
	id := uuid.NewString()
	cmd := models.IPCCommand{
		ID:        id,
		Type:      cmdType,
		Args:      args,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	cmdPath := filepath.Join(c.dir, commandsDir, id+".json")
	respPath := filepath.Join(c.dir, responsesDir, id+".json")
	if err := os.MkdirAll(filepath.Dir(cmdPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ipc directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(respPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ipc directory: %w", err)
	}
	if err := store.WriteJSON(cmdPath, &cmd); err != nil {
		return nil, fmt.Errorf("writing ipc command: %w", err)
	}

	resp, err := c.waitResponse(ctx, respPath, timeout)
	if err != nil {
		os.Remove(cmdPath)
		return nil, err
	}
	os.Remove(cmdPath)
	os.Remove(respPath)
	return resp, nil
}

// waitResponse polls for the response file, using an fsnotify watcher to
// wake early when the directory supports it.
func (c *Client) waitResponse(ctx context.Context, respPath string, timeout time.Duration) (*models.IPCResponse, error) {
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(respPath)); err == nil {
			events = make(chan fsnotify.Event, 16)
			go func() {
				for ev := range watcher.Events {
					select {
					case events <- ev:
					default:
					}
				}
			}()
		}
	} else {
		slog.Warn("File watcher unavailable, falling back to polling", "error", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if resp, ok := c.tryReadResponse(respPath); ok {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case ev := <-events:
			if ev.Name != respPath {
				continue
			}
		case <-ticker.C:
		}
	}
}

// tryReadResponse reads the response if present and fully written. A file
// that exists but does not parse yet is treated as still in flight.
func (c *Client) tryReadResponse(path string) (*models.IPCResponse, bool) {
	var resp models.IPCResponse
	if err := store.ReadJSON(path, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// EnvStatus reads the simulation's liveness file. Absence or unparseable
// content yields a nil status, which reads as not alive.
func (c *Client) EnvStatus() *models.EnvStatus {
	var status models.EnvStatus
	if err := store.ReadJSON(filepath.Join(c.dir, envStatusFile), &status); err != nil {
		return nil
	}
	return &status
}

// EnvAlive reports whether the external simulation declares itself running.
func (c *Client) EnvAlive() bool {
	return c.EnvStatus().Alive()
}

// Interview asks one agent a question. platform may be empty; the server
// then answers per platform, keyed "twitter_{id}" and "reddit_{id}", and the
// result shape is preserved as-is.
func (c *Client) Interview(ctx context.Context, agentID int, prompt string, platform models.Platform, timeout time.Duration) (*models.IPCResponse, error) {
	args := map[string]any{
		"agent_id": agentID,
		"prompt":   interviewInstruction + prompt,
	}
	if platform != "" {
		args["platform"] = string(platform)
	}
	return c.Send(ctx, models.IPCCommandInterview, args, timeout)
}

// InterviewSpec is one entry of a batch interview.
type InterviewSpec struct {
	AgentID int    `json:"agent_id"`
	Prompt  string `json:"prompt"`
}

// BatchInterview asks several agents in one command.
func (c *Client) BatchInterview(ctx context.Context, interviews []InterviewSpec, platform models.Platform, timeout time.Duration) (*models.IPCResponse, error) {
	entries := make([]map[string]any, len(interviews))
	for i, iv := range interviews {
		entries[i] = map[string]any{
			"agent_id": iv.AgentID,
			"prompt":   interviewInstruction + iv.Prompt,
		}
	}
	args := map[string]any{"interviews": entries}
	if platform != "" {
		args["platform"] = string(platform)
	}
	return c.Send(ctx, models.IPCCommandBatchInterview, args, timeout)
}

// CloseEnv asks the simulation to shut its environment down.
func (c *Client) CloseEnv(ctx context.Context, timeout time.Duration) (*models.IPCResponse, error) {
	return c.Send(ctx, models.IPCCommandCloseEnv, nil, timeout)
}
