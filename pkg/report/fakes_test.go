package report

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
)

// scriptedLLM answers by matching a substring anywhere in the request
// messages; the first matching rule wins. Unmatched requests drain the queue.
type scriptedLLM struct {
	mu    sync.Mutex
	rules []llmRule
	queue []string
	calls []llm.GenerateInput
}

type llmRule struct {
	match  string
	answer string
}

func (s *scriptedLLM) Generate(_ context.Context, in llm.GenerateInput) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, in)

	var all strings.Builder
	for _, m := range in.Messages {
		all.WriteString(m.Content)
		all.WriteString("\n")
	}
	for _, r := range s.rules {
		if strings.Contains(all.String(), r.match) {
			return &llm.Response{Content: r.answer}, nil
		}
	}
	if len(s.queue) > 0 {
		answer := s.queue[0]
		s.queue = s.queue[1:]
		return &llm.Response{Content: answer}, nil
	}
	return nil, fmt.Errorf("no scripted answer for request")
}

// fakeGraph serves canned search results; other methods are inert.
type fakeGraph struct {
	nodes []graph.Node
	edges []graph.Edge

	mu      sync.Mutex
	queries []string
}

func (f *fakeGraph) CreateGraph(context.Context, string) (string, error) { return "g", nil }

func (f *fakeGraph) SetOntology(context.Context, string, *models.Ontology) error { return nil }

func (f *fakeGraph) AddEpisode(context.Context, string, string, string) (string, error) {
	return "ep", nil
}
func (f *fakeGraph) EpisodeProcessed(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeGraph) GetNodes(context.Context, string) ([]graph.Node, error) { return f.nodes, nil }
func (f *fakeGraph) GetEdges(context.Context, string) ([]graph.Edge, error) { return f.edges, nil }

func (f *fakeGraph) SearchNodes(_ context.Context, _ string, query string, limit int) ([]graph.Node, error) {
	f.record(query)
	if limit < len(f.nodes) {
		return f.nodes[:limit], nil
	}
	return f.nodes, nil
}

func (f *fakeGraph) SearchEdges(_ context.Context, _ string, query string, limit int) ([]graph.Edge, error) {
	f.record(query)
	if limit < len(f.edges) {
		return f.edges[:limit], nil
	}
	return f.edges, nil
}

func (f *fakeGraph) UpsertNode(context.Context, string, graph.NodeUpsert) (string, error) {
	return "n", nil
}
func (f *fakeGraph) CreateEdge(context.Context, string, graph.EdgeUpsert) error { return nil }

func (f *fakeGraph) record(query string) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
}
