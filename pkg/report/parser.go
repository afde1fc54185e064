package report

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agora-sim/agora/pkg/llm"
)

// ToolCall is one parsed tool invocation from an LLM response.
type ToolCall struct {
	Name string
	Args map[string]string
}

// finalAnswerMarker terminates the ReACT loop for a section.
const finalAnswerMarker = "Final Answer:"

var (
	xmlCallRe  = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)
	funcCallRe = regexp.MustCompile(`\[TOOL_CALL\]\s*(\w+)\s*\(([^)]*)\)`)
	funcArgRe  = regexp.MustCompile(`(\w+)\s*=\s*"((?:[^"\\]|\\.)*)"`)
)

// ParseToolCalls extracts tool invocations from a response in either the XML
// form <tool_call>{"name": ..., "arguments": {...}}</tool_call> or the
// function form [TOOL_CALL] name(key="value", ...). Calls appear in the order
// they occur in the text.
func ParseToolCalls(text string) []ToolCall {
	var calls []ToolCall

	for _, m := range xmlCallRe.FindAllStringSubmatch(text, -1) {
		var payload struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
			// Damaged JSON inside the tag is worth one repair attempt.
			if err := llm.UnmarshalResponse(m[1], &payload); err != nil {
				continue
			}
		}
		if payload.Name == "" {
			continue
		}
		calls = append(calls, ToolCall{Name: payload.Name, Args: stringifyArgs(payload.Arguments)})
	}

	for _, m := range funcCallRe.FindAllStringSubmatch(text, -1) {
		args := map[string]string{}
		for _, am := range funcArgRe.FindAllStringSubmatch(m[2], -1) {
			args[am[1]] = unescape(am[2])
		}
		calls = append(calls, ToolCall{Name: m[1], Args: args})
	}

	return calls
}

func stringifyArgs(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = strings.Trim(string(b), `"`)
		}
	}
	return out
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ReplaceAll(s, `\\`, `\`)
}

// HasFinalAnswer reports whether the response declares a final answer.
func HasFinalAnswer(text string) bool {
	return strings.Contains(text, finalAnswerMarker)
}

// FinalAnswer returns the content after the final-answer marker, or the whole
// text when no marker is present.
func FinalAnswer(text string) string {
	if idx := strings.Index(text, finalAnswerMarker); idx >= 0 {
		return strings.TrimSpace(text[idx+len(finalAnswerMarker):])
	}
	return strings.TrimSpace(text)
}
