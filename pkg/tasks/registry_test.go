package tasks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
)

func TestCreate_StartsPending(t *testing.T) {
	r := NewRegistry()
	id := r.Create("prepare_simulation", map[string]any{"simulation_id": "s1"})

	task, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, "prepare_simulation", task.Type)
	assert.Equal(t, "s1", task.Metadata["simulation_id"])
}

func TestGet_UnknownTask(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestProgress_MonotonicWhileProcessing(t *testing.T) {
	r := NewRegistry()
	id := r.Create("build_graph", nil)

	require.NoError(t, r.Progress(id, 40, "ingesting"))
	require.NoError(t, r.Progress(id, 20, "late update"))

	task, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, "late update", task.Message)
}

func TestComplete_SetsProgress100(t *testing.T) {
	r := NewRegistry()
	id := r.Create("build_graph", nil)
	require.NoError(t, r.Progress(id, 55, "polling"))

	require.NoError(t, r.Complete(id, map[string]any{"graph_id": "g1"}))

	task, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "g1", task.Result.(map[string]any)["graph_id"])
}

func TestFail_RecordsError(t *testing.T) {
	r := NewRegistry()
	id := r.Create("build_graph", nil)

	require.NoError(t, r.Fail(id, "graph backend unavailable"))

	task, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, "graph backend unavailable", task.Error)
}

func TestList_FilterAndOrder(t *testing.T) {
	r := NewRegistry()
	a := r.Create("build_graph", nil)
	time.Sleep(2 * time.Millisecond)
	b := r.Create("prepare_simulation", nil)
	time.Sleep(2 * time.Millisecond)
	c := r.Create("build_graph", nil)

	all := r.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, c, all[0].ID)
	assert.Equal(t, b, all[1].ID)
	assert.Equal(t, a, all[2].ID)

	builds := r.List(Filter{Type: "build_graph"})
	require.Len(t, builds, 2)

	require.NoError(t, r.Fail(a, "x"))
	failed := r.List(Filter{Status: models.TaskStatusFailed})
	require.Len(t, failed, 1)
	assert.Equal(t, a, failed[0].ID)
}

func TestCleanupOlderThan_RemovesOnlyTerminal(t *testing.T) {
	r := NewRegistry()
	done := r.Create("build_graph", nil)
	running := r.Create("build_graph", nil)

	require.NoError(t, r.Complete(done, nil))
	require.NoError(t, r.Progress(running, 10, "working"))

	time.Sleep(5 * time.Millisecond)
	removed := r.CleanupOlderThan(time.Millisecond)
	assert.Equal(t, 1, removed)

	_, err := r.Get(done)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = r.Get(running)
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	id := r.Create("stress", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_ = r.Progress(id, p*2, "tick")
		}(i)
	}
	wg.Wait()

	task, err := r.Get(id)
	require.NoError(t, err)
	assert.LessOrEqual(t, task.Progress, 100)
	assert.Equal(t, models.TaskStatusProcessing, task.Status)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	id := r.Create("build_graph", nil)

	snap, err := r.Get(id)
	require.NoError(t, err)
	snap.Progress = 99

	again, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)
}
