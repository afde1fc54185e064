// Package graph holds the orchestrator's view of the external graph backend:
// the client contract, the build pipeline that turns document text into a
// populated graph, and the entity reader used to seed simulations.
package graph

import (
	"context"
	"time"

	"github.com/agora-sim/agora/pkg/models"
)

// Node is one graph node as the backend reports it.
type Node struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	Labels     []string       `json:"labels"`
	Summary    string         `json:"summary,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
}

// Edge is one relationship. ValidAt/InvalidAt are set only when the backend
// tracks temporal validity.
type Edge struct {
	UUID       string         `json:"uuid"`
	SourceUUID string         `json:"source_uuid"`
	TargetUUID string         `json:"target_uuid"`
	Name       string         `json:"name"`
	Fact       string         `json:"fact,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	ValidAt    *time.Time     `json:"valid_at,omitempty"`
	InvalidAt  *time.Time     `json:"invalid_at,omitempty"`
}

// NodeUpsert describes a node to create or update, keyed by (graph, name).
type NodeUpsert struct {
	Name       string
	Labels     []string
	Summary    string
	Attributes map[string]any
}

// EdgeUpsert describes a relationship between two nodes by uuid.
type EdgeUpsert struct {
	SourceUUID string
	TargetUUID string
	Name       string
	Fact       string
}

// Client is the graph backend contract. Every method maps to one remote
// call; callers wrap them in the shared retry helper.
type Client interface {
	CreateGraph(ctx context.Context, name string) (graphID string, err error)
	SetOntology(ctx context.Context, graphID string, o *models.Ontology) error

	// AddEpisode submits one text chunk for asynchronous entity extraction
	// and returns the episode uuid to poll.
	AddEpisode(ctx context.Context, graphID, name, body string) (episodeUUID string, err error)
	EpisodeProcessed(ctx context.Context, graphID, episodeUUID string) (bool, error)

	GetNodes(ctx context.Context, graphID string) ([]Node, error)
	GetEdges(ctx context.Context, graphID string) ([]Edge, error)

	// SearchNodes and SearchEdges run semantic search over the graph.
	SearchNodes(ctx context.Context, graphID, query string, limit int) ([]Node, error)
	SearchEdges(ctx context.Context, graphID, query string, limit int) ([]Edge, error)

	// UpsertNode updates the node named u.Name if it exists in the graph,
	// otherwise creates it. Returns the node uuid either way.
	UpsertNode(ctx context.Context, graphID string, u NodeUpsert) (uuid string, err error)
	CreateEdge(ctx context.Context, graphID string, u EdgeUpsert) error
}
