package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
)

// ChatTurn is one prior exchange of a report chat session.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat answers a follow-up question about a finished report. It runs the
// same tool loop as section writing but with a tighter budget.
func (g *Generator) Chat(ctx context.Context, reportMarkdown, question string, history []ChatTurn) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: g.chatSystemPrompt(reportMarkdown)},
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	toolCalls := 0
	for iteration := 1; iteration <= maxIterations; iteration++ {
		content, err := g.generate(ctx, "report chat", messages, sectionTemp)
		if err != nil {
			return "", err
		}
		if HasFinalAnswer(content) {
			return FinalAnswer(content), nil
		}

		calls := ParseToolCalls(content)
		if len(calls) == 0 {
			// Plain answers are accepted in chat; no minimum tool quota.
			return strings.TrimSpace(content), nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: content})
		var observations []string
		for _, call := range calls {
			if toolCalls >= maxToolCallsPerChat {
				observations = append(observations, "Tool budget exhausted; answer with what you have.")
				break
			}
			toolCalls++
			observations = append(observations, g.runChatTool(ctx, call))
		}
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: "Observation:\n" + strings.Join(observations, "\n\n"),
		})

		if toolCalls >= maxToolCallsPerChat {
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "The tool budget is exhausted. Answer the question now.",
			})
			content, err := g.generate(ctx, "report chat final", messages, sectionTemp)
			if err != nil {
				return "", err
			}
			return FinalAnswer(content), nil
		}
	}
	return "", fmt.Errorf("chat did not converge within %d iterations", maxIterations)
}

func (g *Generator) runChatTool(ctx context.Context, call ToolCall) string {
	for _, tool := range g.tools {
		if tool.Name() != call.Name {
			continue
		}
		result, err := tool.Call(ctx, call.Args)
		if err != nil {
			return fmt.Sprintf("[%s] error: %s", call.Name, err)
		}
		return fmt.Sprintf("[%s]\n%s", call.Name, result)
	}
	return fmt.Sprintf("[%s] error: unknown tool", call.Name)
}

func (g *Generator) chatSystemPrompt(reportMarkdown string) string {
	var tools strings.Builder
	for _, t := range g.tools {
		fmt.Fprintf(&tools, "- %s\n", t.Description())
	}
	return fmt.Sprintf(`You answer follow-up questions about a simulation analysis report.

Report:
%s

Available tools (at most %d calls per question):
%s
Call a tool with <tool_call>{"name": "tool_name", "arguments": {"key": "value"}}</tool_call> or [TOOL_CALL] tool_name(key="value"), or answer directly.`,
		reportMarkdown, maxToolCallsPerChat, tools.String())
}
