package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
	"github.com/agora-sim/agora/pkg/models"
)

const (
	minSections       = 2
	maxSections       = 5
	maxSubsections    = 2
	planningTemp      = 0.3
	planningSystemMsg = `You are planning an analysis report about a social-opinion simulation.
Produce an outline as JSON: {"title": str, "summary": str, "sections": [{"title": str, "subsections": [{"title": str}]}]}.
Use 2 to 5 top-level sections, each with at most 2 subsections. Titles must be concrete, not generic.`
)

// planOutline asks the LLM for a report outline and normalizes it to the
// 2..5 sections / 0..2 subsections shape. Any failure yields the fallback.
func planOutline(ctx context.Context, client llm.Client, requirement, simSummary string) *models.ReportOutline {
	if client == nil {
		return fallbackOutline(requirement)
	}

	user := fmt.Sprintf("Report requirement: %s", requirement)
	if simSummary != "" {
		user += "\n\nSimulation summary:\n" + simSummary
	}
	resp, err := client.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: planningSystemMsg},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: planningTemp,
		JSONMode:    true,
	})
	if err != nil {
		return fallbackOutline(requirement)
	}

	var outline models.ReportOutline
	if err := llm.UnmarshalResponse(resp.Content, &outline); err != nil {
		return fallbackOutline(requirement)
	}
	if normalizeOutline(&outline, requirement) {
		return &outline
	}
	return fallbackOutline(requirement)
}

// normalizeOutline trims the outline into shape and reports whether it is
// usable at all.
func normalizeOutline(o *models.ReportOutline, requirement string) bool {
	var sections []models.OutlineSection
	for _, s := range o.Sections {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		var subs []models.OutlineSubsection
		for _, sub := range s.Subsections {
			sub.Title = strings.TrimSpace(sub.Title)
			if sub.Title == "" {
				continue
			}
			subs = append(subs, sub)
			if len(subs) == maxSubsections {
				break
			}
		}
		s.Subsections = subs
		sections = append(sections, s)
		if len(sections) == maxSections {
			break
		}
	}
	if len(sections) < minSections {
		return false
	}
	o.Sections = sections
	if strings.TrimSpace(o.Title) == "" {
		o.Title = "Simulation Analysis Report"
	}
	if strings.TrimSpace(o.Summary) == "" {
		o.Summary = requirement
	}
	return true
}

// fallbackOutline is the fixed structure used when planning fails.
func fallbackOutline(requirement string) *models.ReportOutline {
	summary := requirement
	if summary == "" {
		summary = "Analysis of the simulated opinion dynamics."
	}
	return &models.ReportOutline{
		Title:   "Simulation Analysis Report",
		Summary: summary,
		Sections: []models.OutlineSection{
			{Title: "Overview of the Simulation"},
			{Title: "Key Opinion Dynamics", Subsections: []models.OutlineSubsection{
				{Title: "Dominant Narratives"},
				{Title: "Influential Agents"},
			}},
			{Title: "Conclusions and Observations"},
		},
	}
}
