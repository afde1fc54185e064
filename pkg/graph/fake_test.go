package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/agora-sim/agora/pkg/models"
)

// fakeClient is an in-memory graph backend for tests.
type fakeClient struct {
	mu sync.Mutex

	nodes []Node
	edges []Edge

	episodes      []string
	pollsRequired int
	polls         map[string]int

	failChunks map[int]bool // fail AddEpisode for the nth call (0-based)
	addCalls   int

	upserts     []NodeUpsert
	edgeUpserts []EdgeUpsert
}

func newFakeClient() *fakeClient {
	return &fakeClient{polls: map[string]int{}}
}

func (f *fakeClient) CreateGraph(ctx context.Context, name string) (string, error) {
	return "graph-" + name, nil
}

func (f *fakeClient) SetOntology(ctx context.Context, graphID string, o *models.Ontology) error {
	return nil
}

func (f *fakeClient) AddEpisode(ctx context.Context, graphID, name, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.addCalls
	f.addCalls++
	if f.failChunks[call] {
		return "", fmt.Errorf("backend rejected episode %s", name)
	}
	uuid := fmt.Sprintf("ep-%d", call)
	f.episodes = append(f.episodes, uuid)
	return uuid, nil
}

func (f *fakeClient) EpisodeProcessed(ctx context.Context, graphID, episodeUUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[episodeUUID]++
	return f.polls[episodeUUID] > f.pollsRequired, nil
}

func (f *fakeClient) GetNodes(ctx context.Context, graphID string) ([]Node, error) {
	return f.nodes, nil
}

func (f *fakeClient) GetEdges(ctx context.Context, graphID string) ([]Edge, error) {
	return f.edges, nil
}

func (f *fakeClient) SearchNodes(ctx context.Context, graphID, query string, limit int) ([]Node, error) {
	return f.nodes, nil
}

func (f *fakeClient) SearchEdges(ctx context.Context, graphID, query string, limit int) ([]Edge, error) {
	return f.edges, nil
}

func (f *fakeClient) UpsertNode(ctx context.Context, graphID string, u NodeUpsert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, u)
	for _, n := range f.nodes {
		if n.Name == u.Name {
			return n.UUID, nil
		}
	}
	return fmt.Sprintf("node-%d", len(f.upserts)), nil
}

func (f *fakeClient) CreateEdge(ctx context.Context, graphID string, u EdgeUpsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edgeUpserts = append(f.edgeUpserts, u)
	return nil
}
