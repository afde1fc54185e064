package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/retry"
)

// ReACT loop budgets.
const (
	maxIterations          = 5
	minToolCalls           = 2
	maxToolCallsPerSection = 5
	maxToolCallsPerChat    = 2

	sectionTemp = 0.5
)

// Generator runs the full report job: planning, one ReACT loop per section,
// incremental persistence, final assembly.
type Generator struct {
	llm   llm.Client
	store *Store
	tools []Tool

	// RetryOpts applies to every LLM call the generator makes.
	RetryOpts retry.Options
}

func NewGenerator(client llm.Client, s *Store, tools []Tool) *Generator {
	return &Generator{llm: client, store: s, tools: tools}
}

// Generate produces the whole report. Meta, outline, per-section markdown and
// progress are persisted as the job advances, so a crash leaves partial but
// consistent artifacts behind.
func (g *Generator) Generate(ctx context.Context, r *models.Report, simSummary string) error {
	jl := openJobLog(g.store.Dir(r.ID))
	defer jl.close()
	jl.event("start", "planning", "", "Report generation started", map[string]any{
		"report_id":   r.ID,
		"requirement": r.Requirement,
	})

	fail := func(err error) error {
		r.Status = models.ReportStatusFailed
		r.Error = err.Error()
		g.store.Save(r)
		g.store.WriteProgress(r.ID, &models.ReportProgress{
			Status:            models.ReportStatusFailed,
			Message:           err.Error(),
			CompletedSections: []string{},
		})
		jl.event("error", "failed", "", err.Error(), nil)
		return err
	}

	r.Status = models.ReportStatusPlanning
	if err := g.store.Save(r); err != nil {
		return fail(err)
	}
	g.store.WriteProgress(r.ID, &models.ReportProgress{
		Status:            models.ReportStatusPlanning,
		Progress:          5,
		Message:           "Planning report outline",
		CompletedSections: []string{},
	})

	outline := planOutline(ctx, g.llm, r.Requirement, simSummary)
	if err := g.store.WriteOutline(r.ID, outline); err != nil {
		return fail(err)
	}
	r.Outline = outline
	r.Status = models.ReportStatusGenerating
	if err := g.store.Save(r); err != nil {
		return fail(err)
	}
	jl.event("planning", "generating", "", "Outline planned", map[string]any{
		"title":    outline.Title,
		"sections": len(outline.Sections),
	})

	total := len(outline.Sections)
	var completed []string
	var assembled []string

	for i, section := range outline.Sections {
		progress := 10 + 80*i/total
		g.store.WriteProgress(r.ID, &models.ReportProgress{
			Status:            models.ReportStatusGenerating,
			Progress:          progress,
			Message:           fmt.Sprintf("Writing section %d of %d", i+1, total),
			CurrentSection:    section.Title,
			CompletedSections: append([]string{}, completed...),
		})

		content, err := g.writeTopSection(ctx, jl, outline, section)
		if err != nil {
			return fail(fmt.Errorf("section %q: %w", section.Title, err))
		}
		if err := g.store.WriteSection(r.ID, i+1, content); err != nil {
			return fail(err)
		}
		completed = append(completed, section.Title)
		assembled = append(assembled, content)
		jl.event("section_complete", "generating", section.Title, "Section written", map[string]any{
			"index": i + 1,
		})
		g.store.WriteProgress(r.ID, &models.ReportProgress{
			Status:            models.ReportStatusGenerating,
			Progress:          10 + 80*(i+1)/total,
			Message:           fmt.Sprintf("Completed section %d of %d", i+1, total),
			CompletedSections: append([]string{}, completed...),
		})
	}

	full := fmt.Sprintf("# %s\n\n> %s\n\n---\n\n%s",
		outline.Title, outline.Summary, strings.Join(assembled, "\n\n"))
	full = postProcessReport(full)
	if err := g.store.WriteFullReport(r.ID, full); err != nil {
		return fail(err)
	}

	r.Markdown = full
	r.Status = models.ReportStatusCompleted
	if err := g.store.Save(r); err != nil {
		return fail(err)
	}
	g.store.WriteProgress(r.ID, &models.ReportProgress{
		Status:            models.ReportStatusCompleted,
		Progress:          100,
		Message:           "Report completed",
		CompletedSections: completed,
	})
	jl.event("complete", "completed", "", "Report generation finished", map[string]any{
		"sections": total,
	})
	return nil
}

// writeTopSection writes a section and its subsections, assembling the
// persisted markdown block for section_NN.md.
func (g *Generator) writeTopSection(ctx context.Context, jl *jobLog, outline *models.ReportOutline, section models.OutlineSection) (string, error) {
	body, err := g.writeSection(ctx, jl, outline, section.Title, "")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s", section.Title, cleanSectionBody(body, section.Title))
	for _, sub := range section.Subsections {
		subBody, err := g.writeSection(ctx, jl, outline, sub.Title, section.Title)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\n### %s\n\n%s", sub.Title, cleanSectionBody(subBody, sub.Title))
	}
	return b.String(), nil
}

// writeSection runs the ReACT loop for one (sub)section and returns the raw
// final body.
func (g *Generator) writeSection(ctx context.Context, jl *jobLog, outline *models.ReportOutline, title, parent string) (string, error) {
	section := title
	if parent != "" {
		section = parent + " / " + title
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: g.sectionSystemPrompt()},
		{Role: llm.RoleUser, Content: sectionUserPrompt(outline, title, parent)},
	}

	toolCalls := 0
	var lastContent string
	for iteration := 1; iteration <= maxIterations; iteration++ {
		content, err := g.generate(ctx, "report section", messages, sectionTemp)
		if err != nil {
			return "", err
		}
		lastContent = content
		jl.event("llm_response", "generating", section, "Model responded", map[string]any{
			"iteration": iteration,
			"chars":     len(content),
		})

		if HasFinalAnswer(content) && toolCalls >= minToolCalls {
			return FinalAnswer(content), nil
		}

		calls := ParseToolCalls(content)
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: content})

		if len(calls) == 0 {
			if HasFinalAnswer(content) {
				messages = append(messages, llm.Message{
					Role: llm.RoleUser,
					Content: fmt.Sprintf("You must call at least %d research tools before the final answer. Call a tool now.", minToolCalls),
				})
				continue
			}
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "No tool call or final answer detected. Either call a tool or finish with 'Final Answer:'.",
			})
			continue
		}

		var observations []string
		for _, call := range calls {
			if toolCalls >= maxToolCallsPerSection {
				observations = append(observations, "Tool budget exhausted; no more tool calls are allowed.")
				break
			}
			toolCalls++
			observations = append(observations, g.runTool(ctx, jl, section, call))
		}
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: "Observation:\n" + strings.Join(observations, "\n\n"),
		})

		if toolCalls >= maxToolCallsPerSection {
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "The tool budget is exhausted. Write the complete section now, starting with 'Final Answer:'.",
			})
			content, err := g.generate(ctx, "report section final", messages, sectionTemp)
			if err != nil {
				return "", err
			}
			return FinalAnswer(content), nil
		}
	}

	// Iteration budget ran out; the last response is the best body we have.
	return FinalAnswer(lastContent), nil
}

// runTool executes one parsed call, returning the observation text. Tool
// errors become observations rather than failing the section.
func (g *Generator) runTool(ctx context.Context, jl *jobLog, section string, call ToolCall) string {
	jl.event("tool_call", "generating", section, "Calling tool", map[string]any{
		"tool": call.Name,
		"args": call.Args,
	})
	for _, tool := range g.tools {
		if tool.Name() != call.Name {
			continue
		}
		result, err := tool.Call(ctx, call.Args)
		if err != nil {
			jl.event("tool_result", "generating", section, "Tool failed", map[string]any{
				"tool":  call.Name,
				"error": err.Error(),
			})
			return fmt.Sprintf("[%s] error: %s", call.Name, err)
		}
		jl.event("tool_result", "generating", section, "Tool succeeded", map[string]any{
			"tool":  call.Name,
			"chars": len(result),
		})
		return fmt.Sprintf("[%s]\n%s", call.Name, result)
	}
	return fmt.Sprintf("[%s] error: unknown tool", call.Name)
}

func (g *Generator) generate(ctx context.Context, name string, messages []llm.Message, temp float64) (string, error) {
	resp, err := retry.Call(ctx, name, g.RetryOpts, func(ctx context.Context) (*llm.Response, error) {
		return g.llm.Generate(ctx, llm.GenerateInput{Messages: messages, Temperature: temp})
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// sectionSystemPrompt renders the current tool roster into the prompt so the
// model always sees its real options.
func (g *Generator) sectionSystemPrompt() string {
	var tools strings.Builder
	for _, t := range g.tools {
		fmt.Fprintf(&tools, "- %s\n", t.Description())
	}
	return fmt.Sprintf(`You are a research analyst writing one section of a simulation analysis report.

Available tools:
%s
Rules:
- Call at least %d tools before writing the section. Invoke a tool with either <tool_call>{"name": "tool_name", "arguments": {"key": "value"}}</tool_call> or [TOOL_CALL] tool_name(key="value").
- When your research is sufficient, write the section starting with 'Final Answer:'.
- The section body must not contain markdown headings of any level. Use plain paragraphs and bold text.`, tools.String(), minToolCalls)
}

func sectionUserPrompt(outline *models.ReportOutline, title, parent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report: %s\n%s\n\n", outline.Title, outline.Summary)
	if parent != "" {
		fmt.Fprintf(&b, "Write the subsection %q of section %q.", title, parent)
	} else {
		fmt.Fprintf(&b, "Write the section %q.", title)
	}
	return b.String()
}
