package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/project"
	"github.com/agora-sim/agora/pkg/report"
	"github.com/agora-sim/agora/pkg/retry"
	"github.com/agora-sim/agora/pkg/simulation"
	"github.com/agora-sim/agora/pkg/store"
	"github.com/agora-sim/agora/pkg/tasks"
)

type scriptedLLM struct {
	mu    sync.Mutex
	rules []llmRule
}

type llmRule struct {
	match  string
	answer string
}

func (s *scriptedLLM) Generate(_ context.Context, in llm.GenerateInput) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	return nil, fmt.Errorf("no scripted answer")
}

type fakeGraph struct {
	nodes []graph.Node
	edges []graph.Edge
}

func (f *fakeGraph) CreateGraph(context.Context, string) (string, error) { return "g-1", nil }

func (f *fakeGraph) SetOntology(context.Context, string, *models.Ontology) error { return nil }

func (f *fakeGraph) AddEpisode(context.Context, string, string, string) (string, error) {
	return "ep-1", nil
}

func (f *fakeGraph) EpisodeProcessed(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeGraph) GetNodes(context.Context, string) ([]graph.Node, error) { return f.nodes, nil }
func (f *fakeGraph) GetEdges(context.Context, string) ([]graph.Edge, error) { return f.edges, nil }

func (f *fakeGraph) SearchNodes(context.Context, string, string, int) ([]graph.Node, error) {
	return f.nodes, nil
}

func (f *fakeGraph) SearchEdges(context.Context, string, string, int) ([]graph.Edge, error) {
	return f.edges, nil
}

func (f *fakeGraph) UpsertNode(context.Context, string, graph.NodeUpsert) (string, error) {
	return "n-1", nil
}

func (f *fakeGraph) CreateEdge(context.Context, string, graph.EdgeUpsert) error { return nil }

type fixedOntology struct{}

func (fixedOntology) Generate(context.Context, []string, string, string) (*models.Ontology, error) {
	return &models.Ontology{EntityTypes: []models.EntityTypeSpec{
		{Name: "Student"}, {Name: "Person"}, {Name: "Organization"},
	}}, nil
}

func newFixture(t *testing.T, client llm.Client, g graph.Client) *Orchestrator {
	t.Helper()
	fs, err := store.New(t.TempDir())
	require.NoError(t, err)
	return &Orchestrator{
		Projects:   project.NewStore(fs),
		Reports:    report.NewStore(fs),
		SimManager: simulation.NewManager(simulation.NewStore(fs), client, g),
		Registry:   tasks.NewRegistry(),
		Ontology:   fixedOntology{},
		LLM:        client,
		Graph:      g,
		BuildOpts: graph.BuildOptions{
			PollInterval: time.Millisecond,
			BatchSpacing: time.Millisecond,
		},
		RetryOpts: retry.Options{MaxRetries: 1, InitialDelay: time.Millisecond},
	}
}

func waitTask(t *testing.T, r *tasks.Registry, taskID string) *models.Task {
	t.Helper()
	var task *models.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = r.Get(taskID)
		return err == nil && task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func TestBuildGraph_CompletesProject(t *testing.T) {
	g := &fakeGraph{
		nodes: []graph.Node{{UUID: "n1", Name: "Alice", Labels: []string{"Entity", "Person"}}},
		edges: []graph.Edge{{UUID: "e1", Fact: "Alice joined the debate"}},
	}
	o := newFixture(t, &scriptedLLM{}, g)

	p, err := o.Projects.Create("rumor study")
	require.NoError(t, err)
	require.NoError(t, o.Projects.SaveExtractedText(p.ID, "Alice works for Acme."))

	taskID, err := o.BuildGraph(p.ID, BuildGraphRequest{Requirement: "simulate rumor spread"})
	require.NoError(t, err)

	task := waitTask(t, o.Registry, taskID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	after, err := o.Projects.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusGraphCompleted, after.Status)
	assert.Equal(t, "g-1", after.GraphID)
	require.NotNil(t, after.Ontology)
	names := after.Ontology.EntityTypeNames()
	assert.Equal(t, "Student", names[0])
}

func TestBuildGraph_RequiresExtractedText(t *testing.T) {
	o := newFixture(t, &scriptedLLM{}, &fakeGraph{})
	p, err := o.Projects.Create("empty")
	require.NoError(t, err)

	_, err = o.BuildGraph(p.ID, BuildGraphRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extracted text")
}

func TestPrepareSimulation_TaskTracksPipeline(t *testing.T) {
	g := &fakeGraph{nodes: []graph.Node{
		{UUID: "n1", Name: "Alice", Labels: []string{"Entity", "Person"}, Summary: "a student"},
		{UUID: "n2", Name: "Acme", Labels: []string{"Entity", "Organization"}, Summary: "a company"},
	}}
	o := newFixture(t, nil, g)

	sim, err := o.SimManager.Store().Create("proj", "g-1", true, true)
	require.NoError(t, err)

	taskID, err := o.PrepareSimulation(sim.ID, simulation.PrepareRequest{
		Requirement:  "simulate rumor spread",
		DefinedTypes: []string{"Person", "Organization"},
	})
	require.NoError(t, err)

	task := waitTask(t, o.Registry, taskID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	prepared, err := o.SimManager.IsPrepared(sim.ID)
	require.NoError(t, err)
	assert.True(t, prepared)
}

func TestGenerateReport_RunsToCompletion(t *testing.T) {
	g := &fakeGraph{edges: []graph.Edge{{Fact: "opinion shifted in round 3"}}}
	client := &scriptedLLM{rules: []llmRule{
		{
			match: "planning an analysis report",
			answer: `{"title": "T", "summary": "S", "sections": [
				{"title": "First"}, {"title": "Second"}]}`,
		},
		{
			match: "Write the",
			answer: `[TOOL_CALL] quick_search(query="alpha")
[TOOL_CALL] quick_search(query="beta")
Final Answer: Grounded findings.`,
		},
	}}
	o := newFixture(t, client, g)

	sim, err := o.SimManager.Store().Create("proj", "g-1", true, false)
	require.NoError(t, err)

	r, taskID, err := o.GenerateReport(sim.ID, "what happened?")
	require.NoError(t, err)
	assert.Equal(t, "g-1", r.GraphID)

	task := waitTask(t, o.Registry, taskID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	final, err := o.Reports.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, final.Status)
	assert.Contains(t, final.Markdown, "Grounded findings.")
}

func TestGenerateReport_FailureMarksTaskFailed(t *testing.T) {
	o := newFixture(t, &scriptedLLM{}, &fakeGraph{})

	sim, err := o.SimManager.Store().Create("proj", "g-1", true, false)
	require.NoError(t, err)

	r, taskID, err := o.GenerateReport(sim.ID, "req")
	require.NoError(t, err)

	task := waitTask(t, o.Registry, taskID)
	assert.Equal(t, models.TaskStatusFailed, task.Status)

	final, err := o.Reports.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, final.Status)
}
