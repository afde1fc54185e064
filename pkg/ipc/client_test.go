package ipc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewClient(dir)
	c.pollInterval = 5 * time.Millisecond
	return c, dir
}

// answer watches the commands dir and writes a response for the first
// command that appears.
func answer(t *testing.T, dir string, status models.IPCResponseStatus, result map[string]any) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			entries, _ := os.ReadDir(filepath.Join(dir, commandsDir))
			for _, e := range entries {
				name := e.Name()
				// Skip the dot-prefixed temp siblings WriteJSON renames from.
				if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
					continue
				}
				id := name[:len(name)-len(".json")]
				resp := models.IPCResponse{
					CommandID: id,
					Status:    status,
					Result:    result,
					Timestamp: time.Now().Format(time.RFC3339),
				}
				os.MkdirAll(filepath.Join(dir, responsesDir), 0o755)
				store.WriteJSON(filepath.Join(dir, responsesDir, id+".json"), &resp)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

func TestSend_RoundTrip(t *testing.T) {
	c, dir := newTestClient(t)
	answer(t, dir, models.IPCResponseCompleted, map[string]any{"reply": "ok"})

	resp, err := c.Send(context.Background(), models.IPCCommandInterview,
		map[string]any{"agent_id": 1}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.IPCResponseCompleted, resp.Status)
	assert.Equal(t, "ok", resp.Result["reply"])

	// Both files are cleaned up after a successful exchange.
	cmds, _ := os.ReadDir(filepath.Join(dir, commandsDir))
	resps, _ := os.ReadDir(filepath.Join(dir, responsesDir))
	assert.Empty(t, cmds)
	assert.Empty(t, resps)
}

func TestSend_Timeout(t *testing.T) {
	c, dir := newTestClient(t)

	_, err := c.Send(context.Background(), models.IPCCommandCloseEnv, nil, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	// The stale command file is removed so the channel stays clean.
	cmds, _ := os.ReadDir(filepath.Join(dir, commandsDir))
	assert.Empty(t, cmds)
}

func TestSend_ContextCancel(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.Send(ctx, models.IPCCommandCloseEnv, nil, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInterview_PrependsInstruction(t *testing.T) {
	c, dir := newTestClient(t)

	var captured models.IPCCommand
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			entries, _ := os.ReadDir(filepath.Join(dir, commandsDir))
			if len(entries) > 0 {
				path := filepath.Join(dir, commandsDir, entries[0].Name())
				if store.ReadJSON(path, &captured) == nil {
					resp := models.IPCResponse{CommandID: captured.ID, Status: models.IPCResponseCompleted}
					os.MkdirAll(filepath.Join(dir, responsesDir), 0o755)
					store.WriteJSON(filepath.Join(dir, responsesDir, captured.ID+".json"), &resp)
					return
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	_, err := c.Interview(context.Background(), 7, "What do you think?", models.PlatformTwitter, 2*time.Second)
	require.NoError(t, err)
	<-done

	assert.Equal(t, models.IPCCommandInterview, captured.Type)
	prompt, _ := captured.Args["prompt"].(string)
	assert.Contains(t, prompt, "Do not call tools")
	assert.Contains(t, prompt, "What do you think?")
	assert.Equal(t, "twitter", captured.Args["platform"])
}

func TestEnvStatus(t *testing.T) {
	c, dir := newTestClient(t)

	assert.False(t, c.EnvAlive())

	require.NoError(t, store.WriteJSON(filepath.Join(dir, envStatusFile), &models.EnvStatus{
		Status: "alive", TwitterAvailable: true,
	}))
	status := c.EnvStatus()
	require.NotNil(t, status)
	assert.True(t, status.Alive())
	assert.True(t, status.TwitterAvailable)

	require.NoError(t, os.WriteFile(filepath.Join(dir, envStatusFile), []byte("not json"), 0o644))
	assert.False(t, c.EnvAlive())
}
