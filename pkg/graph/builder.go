package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/retry"
)

// ErrorPolicy controls what happens when a chunk fails to ingest after all
// retries.
type ErrorPolicy int

const (
	// AbortOnChunkError fails the whole build on the first chunk error.
	AbortOnChunkError ErrorPolicy = iota
	// KeepPartialGraph skips the failed chunk and finishes the build over
	// whatever was ingested, reporting the failure count in the result.
	KeepPartialGraph
)

// BuildOptions tune one build run. Zero values fall back to the defaults
// below.
type BuildOptions struct {
	ChunkSize      int
	ChunkOverlap   int
	BatchSize      int
	ProcessTimeout time.Duration
	PollInterval   time.Duration
	BatchSpacing   time.Duration
	OnError        ErrorPolicy
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 100
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.ProcessTimeout <= 0 {
		o.ProcessTimeout = 600 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.BatchSpacing <= 0 {
		o.BatchSpacing = time.Second
	}
	return o
}

// BuildResult summarizes a finished build plus the full graph snapshot.
type BuildResult struct {
	GraphID      string   `json:"graph_id"`
	NodeCount    int      `json:"node_count"`
	EdgeCount    int      `json:"edge_count"`
	EntityTypes  []string `json:"entity_types"`
	Nodes        []Node   `json:"nodes"`
	Edges        []Edge   `json:"edges"`
	FailedChunks int      `json:"failed_chunks,omitempty"`
}

// ProgressFunc receives (percent, message) as the build advances.
type ProgressFunc func(percent int, message string)

// Builder runs the create → ontology → chunk → ingest → poll → snapshot
// pipeline against a graph backend.
type Builder struct {
	client Client
	retry  retry.Options
}

// NewBuilder creates a builder over the given backend client.
func NewBuilder(client Client) *Builder {
	return &Builder{client: client}
}

// Build creates a graph named graphName, registers the ontology, and ingests
// text chunk by chunk. It returns the opaque graph id plus a node/edge
// snapshot. progress may be nil.
func (b *Builder) Build(ctx context.Context, o *models.Ontology, text, graphName string, opts BuildOptions, progress ProgressFunc) (*BuildResult, error) {
	opts = opts.withDefaults()
	report := func(pct int, msg string) {
		if progress != nil {
			progress(pct, msg)
		}
	}

	// 1. Create the graph.
	report(5, "Creating graph")
	graphID, err := retry.Call(ctx, "graph.create", b.retry, func(ctx context.Context) (string, error) {
		return b.client.CreateGraph(ctx, graphName)
	})
	if err != nil {
		return nil, err
	}
	report(10, "Graph created")

	// 2. Register the ontology: every entity and edge type with attributes
	// and source/target constraints.
	if err := retry.Do(ctx, "graph.set_ontology", b.retry, func(ctx context.Context) error {
		return b.client.SetOntology(ctx, graphID, o)
	}); err != nil {
		return nil, err
	}
	report(15, "Ontology registered")

	// 3. Chunk the document text.
	chunks := ChunkText(text, opts.ChunkSize, opts.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to ingest into graph %s", graphID)
	}
	slog.Info("Chunked document text", "graph_id", graphID, "chunks", len(chunks))

	// 4. Ingest in batches with spacing between batches for upstream rate
	// limits. Progress covers the 15-55 band.
	var episodeUUIDs []string
	failed := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += opts.BatchSize {
		batchEnd := min(batchStart+opts.BatchSize, len(chunks))
		for i := batchStart; i < batchEnd; i++ {
			name := fmt.Sprintf("episode_%03d", i)
			body := chunks[i]
			uuid, err := retry.Call(ctx, "graph.add_episode", b.retry, func(ctx context.Context) (string, error) {
				return b.client.AddEpisode(ctx, graphID, name, body)
			})
			if err != nil {
				if opts.OnError == AbortOnChunkError {
					return nil, fmt.Errorf("ingesting chunk %d: %w", i, err)
				}
				failed++
				slog.Warn("Skipping failed chunk, keeping partial graph",
					"graph_id", graphID, "chunk", i, "error", err)
				continue
			}
			episodeUUIDs = append(episodeUUIDs, uuid)
		}
		report(15+40*batchEnd/len(chunks), fmt.Sprintf("Ingested %d/%d chunks", batchEnd, len(chunks)))

		if batchEnd < len(chunks) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.BatchSpacing):
			}
		}
	}
	if len(episodeUUIDs) == 0 {
		return nil, fmt.Errorf("all %d chunks failed to ingest into graph %s", len(chunks), graphID)
	}

	// 5. Wait for the backend to process every episode, bounded by a global
	// timeout. Progress covers the 55-90 band.
	if err := b.waitProcessed(ctx, graphID, episodeUUIDs, opts, report); err != nil {
		return nil, err
	}

	// 6. Snapshot nodes and edges.
	report(90, "Fetching graph snapshot")
	nodes, err := retry.Call(ctx, "graph.get_nodes", b.retry, func(ctx context.Context) ([]Node, error) {
		return b.client.GetNodes(ctx, graphID)
	})
	if err != nil {
		return nil, err
	}
	edges, err := retry.Call(ctx, "graph.get_edges", b.retry, func(ctx context.Context) ([]Edge, error) {
		return b.client.GetEdges(ctx, graphID)
	})
	if err != nil {
		return nil, err
	}
	report(100, "Graph build complete")

	return &BuildResult{
		GraphID:      graphID,
		NodeCount:    len(nodes),
		EdgeCount:    len(edges),
		EntityTypes:  o.EntityTypeNames(),
		Nodes:        nodes,
		Edges:        edges,
		FailedChunks: failed,
	}, nil
}

func (b *Builder) waitProcessed(ctx context.Context, graphID string, episodeUUIDs []string, opts BuildOptions, report ProgressFunc) error {
	deadline := time.Now().Add(opts.ProcessTimeout)
	for i, uuid := range episodeUUIDs {
		for {
			processed, err := retry.Call(ctx, "graph.episode_status", b.retry, func(ctx context.Context) (bool, error) {
				return b.client.EpisodeProcessed(ctx, graphID, uuid)
			})
			if err != nil {
				return err
			}
			if processed {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("graph %s: episode processing timed out after %s", graphID, opts.ProcessTimeout)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.PollInterval):
			}
		}
		report(55+35*(i+1)/len(episodeUUIDs), fmt.Sprintf("Processed %d/%d episodes", i+1, len(episodeUUIDs)))
	}
	return nil
}
