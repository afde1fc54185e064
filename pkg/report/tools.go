// Package report generates simulation analysis reports with a ReACT agent:
// an LLM plans an outline, then writes each section while calling research
// tools against the knowledge graph and the running simulation.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agora-sim/agora/pkg/graph"
	"github.com/agora-sim/agora/pkg/ipc"
	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
)

// Tool is one research capability exposed to the report agent.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]string) (string, error)
}

// searchCallTimeout bounds each graph search a tool makes.
const searchCallTimeout = 30 * time.Second

// --- quick_search ---

// QuickSearch is a single keyword-style graph search.
type QuickSearch struct {
	Graph   graph.Client
	GraphID string
}

func (t *QuickSearch) Name() string { return "quick_search" }

func (t *QuickSearch) Description() string {
	return `quick_search(query, limit): one fast keyword search over the knowledge graph; returns matching facts.`
}

func (t *QuickSearch) Call(ctx context.Context, args map[string]string) (string, error) {
	query := args["query"]
	if query == "" {
		return "", fmt.Errorf("quick_search requires a query")
	}
	limit := 10
	if n, err := strconv.Atoi(args["limit"]); err == nil && n > 0 {
		limit = n
	}

	ctx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	defer cancel()
	edges, err := t.Graph.SearchEdges(ctx, t.GraphID, query, limit)
	if err != nil {
		return "", fmt.Errorf("quick_search: %w", err)
	}
	if len(edges) == 0 {
		return "No facts found for: " + query, nil
	}
	var b strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&b, "- %s\n", e.Fact)
	}
	return b.String(), nil
}

// --- panorama_search ---

// PanoramaSearch partitions matching facts by the temporal validity of
// their edges: still-valid facts are active, invalidated ones historical.
type PanoramaSearch struct {
	Graph   graph.Client
	GraphID string
}

func (t *PanoramaSearch) Name() string { return "panorama_search" }

func (t *PanoramaSearch) Description() string {
	return `panorama_search(query, include_expired="true"): searches the graph and partitions facts into currently active vs historical ones.`
}

func (t *PanoramaSearch) Call(ctx context.Context, args map[string]string) (string, error) {
	query := args["query"]
	if query == "" {
		return "", fmt.Errorf("panorama_search requires a query")
	}
	includeExpired := args["include_expired"] != "false"

	ctx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	defer cancel()
	edges, err := t.Graph.SearchEdges(ctx, t.GraphID, query, 20)
	if err != nil {
		return "", fmt.Errorf("panorama_search: %w", err)
	}

	now := time.Now()
	var active, historical []string
	for _, e := range edges {
		if e.Fact == "" {
			continue
		}
		if e.InvalidAt != nil && e.InvalidAt.Before(now) {
			historical = append(historical, e.Fact)
		} else {
			active = append(active, e.Fact)
		}
	}

	var b strings.Builder
	b.WriteString("Active facts:\n")
	if len(active) == 0 {
		b.WriteString("- none\n")
	}
	for _, f := range active {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	if includeExpired {
		b.WriteString("Historical facts:\n")
		if len(historical) == 0 {
			b.WriteString("- none\n")
		}
		for _, f := range historical {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String(), nil
}

// --- insight_forge ---

// InsightForge decomposes a question into sub-queries and aggregates facts,
// entities and relationship chains from parallel graph searches.
type InsightForge struct {
	LLM     llm.Client
	Graph   graph.Client
	GraphID string
}

func (t *InsightForge) Name() string { return "insight_forge" }

func (t *InsightForge) Description() string {
	return `insight_forge(query, report_context=""): deep research; decomposes the question into sub-queries and returns facts, entities and relationship chains.`
}

type subQueries struct {
	Queries []string `json:"queries"`
}

func (t *InsightForge) Call(ctx context.Context, args map[string]string) (string, error) {
	query := args["query"]
	if query == "" {
		return "", fmt.Errorf("insight_forge requires a query")
	}

	queries := t.decompose(ctx, query, args["report_context"])

	var b strings.Builder
	for _, q := range queries {
		facts, entities := t.searchBoth(ctx, q)
		fmt.Fprintf(&b, "## %s\n", q)
		if len(facts) == 0 && len(entities) == 0 {
			b.WriteString("No results.\n")
			continue
		}
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		for _, e := range entities {
			fmt.Fprintf(&b, "- entity %s: %s\n", e.Name, e.Summary)
		}
	}
	return b.String(), nil
}

// decompose asks the LLM for at most 5 sub-queries, falling back to the
// original question.
func (t *InsightForge) decompose(ctx context.Context, query, reportContext string) []string {
	if t.LLM == nil {
		return []string{query}
	}
	user := query
	if reportContext != "" {
		user = fmt.Sprintf("Report context:\n%s\n\nQuestion: %s", reportContext, query)
	}
	resp, err := t.LLM.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: `Decompose the research question into at most 5 focused search queries. Respond with JSON: {"queries": [str]}`},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return []string{query}
	}
	var out subQueries
	if err := llm.UnmarshalResponse(resp.Content, &out); err != nil || len(out.Queries) == 0 {
		return []string{query}
	}
	if len(out.Queries) > 5 {
		out.Queries = out.Queries[:5]
	}
	return out.Queries
}

// searchBoth runs the edge and node searches concurrently with one shared
// timeout.
func (t *InsightForge) searchBoth(ctx context.Context, query string) ([]string, []graph.Node) {
	ctx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	defer cancel()

	var edges []graph.Edge
	var nodes []graph.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = t.Graph.SearchEdges(gctx, t.GraphID, query, 10)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = t.Graph.SearchNodes(gctx, t.GraphID, query, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil
	}

	var facts []string
	for _, e := range edges {
		if e.Fact != "" {
			facts = append(facts, e.Fact)
		}
	}
	var withSummary []graph.Node
	for _, n := range nodes {
		if n.Summary != "" {
			withSummary = append(withSummary, n)
		}
	}
	return facts, withSummary
}

// --- interview_agents ---

// InterviewAgents selects simulation agents relevant to a topic, generates
// questions, and runs a batch interview over the IPC channel.
type InterviewAgents struct {
	LLM      llm.Client
	IPC      *ipc.Client
	Profiles []models.AgentProfile
	Timeout  time.Duration
}

func (t *InterviewAgents) Name() string { return "interview_agents" }

func (t *InterviewAgents) Description() string {
	return `interview_agents(interview_topic, max_agents="3"): interviews running simulation agents about a topic and aggregates their answers.`
}

type interviewPlan struct {
	Interviews []struct {
		AgentID  int    `json:"agent_id"`
		Question string `json:"question"`
	} `json:"interviews"`
}

func (t *InterviewAgents) Call(ctx context.Context, args map[string]string) (string, error) {
	topic := args["interview_topic"]
	if topic == "" {
		topic = args["topic"]
	}
	if topic == "" {
		return "", fmt.Errorf("interview_agents requires an interview_topic")
	}
	maxAgents := 3
	if n, err := strconv.Atoi(args["max_agents"]); err == nil && n > 0 {
		maxAgents = n
	}
	if !t.IPC.EnvAlive() {
		return "", fmt.Errorf("simulation environment is not alive")
	}

	specs := t.plan(ctx, topic, maxAgents)
	if len(specs) == 0 {
		return "", fmt.Errorf("no agents available to interview")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	resp, err := t.IPC.BatchInterview(ctx, specs, "", timeout)
	if err != nil {
		return "", fmt.Errorf("interview_agents: %w", err)
	}
	if resp.Status == models.IPCResponseFailed {
		return "", fmt.Errorf("interview_agents: %s", resp.Error)
	}

	// Responses may be keyed per platform ("twitter_3", "reddit_3"); the
	// shape is preserved as-is.
	keys := make([]string, 0, len(resp.Result))
	for k := range resp.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Interview topic: %s\n", topic)
	for _, k := range keys {
		fmt.Fprintf(&b, "[%s] %v\n", k, resp.Result[k])
	}
	return b.String(), nil
}

// plan selects agents and questions via the LLM, falling back to asking the
// first maxAgents profiles the topic directly.
func (t *InterviewAgents) plan(ctx context.Context, topic string, maxAgents int) []ipc.InterviewSpec {
	fallback := func() []ipc.InterviewSpec {
		var specs []ipc.InterviewSpec
		for i, p := range t.Profiles {
			if i >= maxAgents {
				break
			}
			specs = append(specs, ipc.InterviewSpec{
				AgentID: p.UserID,
				Prompt:  fmt.Sprintf("What is your view on: %s", topic),
			})
		}
		return specs
	}
	if t.LLM == nil || len(t.Profiles) == 0 {
		return fallback()
	}

	var roster strings.Builder
	for _, p := range t.Profiles {
		fmt.Fprintf(&roster, "- agent_id=%d name=%q type=%s stance_hint=%q\n",
			p.UserID, p.Name, p.EntityType, p.Bio)
	}
	resp, err := t.LLM.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(
				`Select at most %d agents relevant to the interview topic and write one question for each. Respond with JSON: {"interviews": [{"agent_id": int, "question": str}]}`, maxAgents)},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Topic: %s\n\nAgents:\n%s", topic, roster.String())},
		},
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return fallback()
	}
	var plan interviewPlan
	if err := llm.UnmarshalResponse(resp.Content, &plan); err != nil || len(plan.Interviews) == 0 {
		return fallback()
	}

	var specs []ipc.InterviewSpec
	for _, iv := range plan.Interviews {
		if len(specs) >= maxAgents {
			break
		}
		specs = append(specs, ipc.InterviewSpec{AgentID: iv.AgentID, Prompt: iv.Question})
	}
	return specs
}
