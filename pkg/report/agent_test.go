package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/retry"
	"github.com/agora-sim/agora/pkg/store"
)

// stubTool records its calls and answers with a canned fact.
type stubTool struct {
	name string

	mu    sync.Mutex
	calls []map[string]string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return s.name + "(query): stub" }

func (s *stubTool) Call(_ context.Context, args map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, args)
	return fmt.Sprintf("fact about %s", args["query"]), nil
}

func (s *stubTool) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fastRetry() retry.Options {
	return retry.Options{MaxRetries: 1, InitialDelay: time.Millisecond}
}

const twoToolCalls = `I need data.
<tool_call>{"name": "quick_search", "arguments": {"query": "alpha"}}</tool_call>
[TOOL_CALL] quick_search(query="beta")`

func TestGenerate_FullReport(t *testing.T) {
	tool := &stubTool{name: "quick_search"}
	client := &scriptedLLM{queue: []string{
		// Planning.
		`{"title": "Debate Analysis", "summary": "How the debate evolved.",
			"sections": [
				{"title": "Overview"},
				{"title": "Dynamics", "subsections": [{"title": "Drivers"}]}
			]}`,
		// Section "Overview".
		twoToolCalls,
		"Final Answer: The simulation covered a heated debate.",
		// Section "Dynamics": the final body carries a duplicate heading and
		// a deep heading for the cleaner to fix.
		twoToolCalls,
		"Final Answer: ## Dynamics\n\nOpinions split early.\n\n### Detail\n\nClusters formed.",
		// Subsection "Drivers".
		twoToolCalls,
		"Final Answer: Influencers drove the swing.",
	}}

	s := newTestStore(t)
	r, err := s.Create("sim-1", "graph-1", "analyze the debate")
	require.NoError(t, err)

	g := NewGenerator(client, s, []Tool{tool})
	g.RetryOpts = fastRetry()
	require.NoError(t, g.Generate(context.Background(), r, "two platforms, 40 agents"))

	assert.Equal(t, models.ReportStatusCompleted, r.Status)
	assert.Equal(t, 6, tool.callCount())

	// Section files: 1-based, zero-padded, first line is the h2 title.
	sec1, err := os.ReadFile(filepath.Join(s.Dir(r.ID), "section_01.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sec1), "## Overview\n"))
	assert.Contains(t, string(sec1), "heated debate")

	sec2, err := os.ReadFile(filepath.Join(s.Dir(r.ID), "section_02.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sec2), "## Dynamics\n"))
	assert.Contains(t, string(sec2), "### Drivers")
	assert.Contains(t, string(sec2), "**Detail**")
	assert.Contains(t, string(sec2), "Influencers drove the swing.")
	// The duplicate body heading was stripped.
	assert.Equal(t, 1, strings.Count(string(sec2), "## Dynamics"))

	// Full report: one h1, quoted summary, no deep headings left.
	full, err := os.ReadFile(filepath.Join(s.Dir(r.ID), FullReportFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(full), "# Debate Analysis\n"))
	assert.Equal(t, 1, strings.Count(string(full), "# Debate Analysis"))
	assert.Contains(t, string(full), "> How the debate evolved.")
	assert.NotContains(t, string(full), "###")
	assert.Contains(t, string(full), "**Drivers**")

	// Outline, progress and logs persisted.
	var outline models.ReportOutline
	require.NoError(t, store.ReadJSON(filepath.Join(s.Dir(r.ID), OutlineFile), &outline))
	assert.Equal(t, "Debate Analysis", outline.Title)

	p, err := s.ReadProgress(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, p.Status)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, []string{"Overview", "Dynamics"}, p.CompletedSections)

	assert.FileExists(t, filepath.Join(s.Dir(r.ID), AgentLogFile))
	assert.FileExists(t, filepath.Join(s.Dir(r.ID), ConsoleLogFile))

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, got.Status)
	assert.NotEmpty(t, got.Markdown)
}

func TestGenerate_FailureMarksReportFailed(t *testing.T) {
	// Planning falls back, but the first section call errors out.
	client := &scriptedLLM{}
	s := newTestStore(t)
	r, err := s.Create("sim-1", "g", "req")
	require.NoError(t, err)

	g := NewGenerator(client, s, nil)
	g.RetryOpts = fastRetry()
	require.Error(t, g.Generate(context.Background(), r, ""))

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	// The fallback outline was still persisted before the failure.
	assert.FileExists(t, filepath.Join(s.Dir(r.ID), OutlineFile))
}

func TestWriteSection_BudgetExhaustionForcesFinal(t *testing.T) {
	tool := &stubTool{name: "quick_search"}
	fiveCalls := `[TOOL_CALL] quick_search(query="a")
[TOOL_CALL] quick_search(query="b")
[TOOL_CALL] quick_search(query="c")
[TOOL_CALL] quick_search(query="d")
[TOOL_CALL] quick_search(query="e")
[TOOL_CALL] quick_search(query="over budget")`
	client := &scriptedLLM{queue: []string{
		fiveCalls,
		"Final Answer: forced body",
	}}

	s := newTestStore(t)
	g := NewGenerator(client, s, []Tool{tool})
	g.RetryOpts = fastRetry()

	jl := openJobLog(t.TempDir())
	defer jl.close()
	body, err := g.writeSection(context.Background(), jl,
		&models.ReportOutline{Title: "T", Summary: "S"}, "Section", "")
	require.NoError(t, err)
	assert.Equal(t, "forced body", body)
	// The sixth call was refused by the budget.
	assert.Equal(t, 5, tool.callCount())
}

func TestWriteSection_PrematureFinalAnswerRejected(t *testing.T) {
	tool := &stubTool{name: "quick_search"}
	client := &scriptedLLM{queue: []string{
		"Final Answer: premature, no research done",
		twoToolCalls,
		"Final Answer: grounded body",
	}}

	s := newTestStore(t)
	g := NewGenerator(client, s, []Tool{tool})
	g.RetryOpts = fastRetry()

	jl := openJobLog(t.TempDir())
	defer jl.close()
	body, err := g.writeSection(context.Background(), jl,
		&models.ReportOutline{Title: "T", Summary: "S"}, "Section", "")
	require.NoError(t, err)
	assert.Equal(t, "grounded body", body)
	assert.Equal(t, 2, tool.callCount())
}

func TestChat_ToolThenAnswer(t *testing.T) {
	tool := &stubTool{name: "quick_search"}
	client := &scriptedLLM{queue: []string{
		`[TOOL_CALL] quick_search(query="sentiment")`,
		"Final Answer: Sentiment turned negative in round 12.",
	}}

	s := newTestStore(t)
	g := NewGenerator(client, s, []Tool{tool})
	g.RetryOpts = fastRetry()

	answer, err := g.Chat(context.Background(), "# Report", "When did sentiment flip?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sentiment turned negative in round 12.", answer)
	assert.Equal(t, 1, tool.callCount())
}

func TestChat_DirectAnswerWithoutTools(t *testing.T) {
	client := &scriptedLLM{queue: []string{"Round 12, per the report."}}
	g := NewGenerator(client, newTestStore(t), nil)
	g.RetryOpts = fastRetry()

	answer, err := g.Chat(context.Background(), "# Report", "When?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Round 12, per the report.", answer)
}
