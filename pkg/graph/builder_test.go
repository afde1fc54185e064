package graph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
)

func fastOptions() BuildOptions {
	return BuildOptions{
		ChunkSize:      50,
		ChunkOverlap:   5,
		BatchSize:      2,
		ProcessTimeout: 5 * time.Second,
		PollInterval:   time.Millisecond,
		BatchSpacing:   time.Millisecond,
	}
}

func testOntology() *models.Ontology {
	return &models.Ontology{EntityTypes: []models.EntityTypeSpec{
		{Name: "Person"},
		{Name: "Organization"},
	}}
}

func TestBuild_FullPipeline(t *testing.T) {
	fake := newFakeClient()
	fake.pollsRequired = 2
	fake.nodes = []Node{{UUID: "n1", Name: "Alice", Labels: []string{"Person"}}}
	fake.edges = []Edge{{UUID: "e1", SourceUUID: "n1", TargetUUID: "n2"}}

	var lastPct int
	var pcts []int
	res, err := NewBuilder(fake).Build(context.Background(), testOntology(),
		strings.Repeat("a", 120), "sim-1", fastOptions(), func(pct int, msg string) {
			pcts = append(pcts, pct)
			lastPct = pct
		})
	require.NoError(t, err)

	assert.Equal(t, "graph-sim-1", res.GraphID)
	assert.Equal(t, 1, res.NodeCount)
	assert.Equal(t, 1, res.EdgeCount)
	assert.Equal(t, []string{"Person", "Organization"}, res.EntityTypes)
	assert.Zero(t, res.FailedChunks)
	assert.Equal(t, 100, lastPct)
	for i := 1; i < len(pcts); i++ {
		assert.GreaterOrEqual(t, pcts[i], pcts[i-1])
	}
}

func TestBuild_EmptyText(t *testing.T) {
	_, err := NewBuilder(newFakeClient()).Build(context.Background(), testOntology(),
		"", "sim-1", fastOptions(), nil)
	assert.Error(t, err)
}

func TestBuild_AbortOnChunkError(t *testing.T) {
	fake := newFakeClient()
	fake.failChunks = map[int]bool{1: true, 2: true, 3: true} // exhausts retries

	b := NewBuilder(fake)
	b.retry.InitialDelay = time.Millisecond
	opts := fastOptions()
	opts.OnError = AbortOnChunkError
	_, err := b.Build(context.Background(), testOntology(),
		strings.Repeat("a", 120), "sim-1", opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1")
}

func TestBuild_KeepPartialGraph(t *testing.T) {
	fake := newFakeClient()
	fake.failChunks = map[int]bool{1: true, 2: true, 3: true} // 3 retries of chunk 1

	b := NewBuilder(fake)
	b.retry.InitialDelay = time.Millisecond
	opts := fastOptions()
	opts.OnError = KeepPartialGraph
	res, err := b.Build(context.Background(), testOntology(),
		strings.Repeat("a", 120), "sim-1", opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedChunks)
}

func TestBuild_ProcessingTimeout(t *testing.T) {
	fake := newFakeClient()
	fake.pollsRequired = 1 << 30 // never processed

	opts := fastOptions()
	opts.ProcessTimeout = 10 * time.Millisecond
	_, err := NewBuilder(fake).Build(context.Background(), testOntology(),
		"some text", "sim-1", opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestBuild_ContextCancel(t *testing.T) {
	fake := newFakeClient()
	fake.pollsRequired = 1 << 30

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(fake).Build(ctx, testOntology(), "some text", "sim-1", fastOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
