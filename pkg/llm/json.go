package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when no JSON value can be located in model output.
var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSON pulls the first JSON object or array out of raw model output.
// It strips markdown code fences, scans for a balanced {...} or [...] span,
// and falls back to jsonrepair when the span does not parse as-is.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(raw)

	span, ok := balancedSpan(s)
	if !ok {
		// No balanced span at all; let jsonrepair try the whole text.
		fixed, err := jsonrepair.JSONRepair(stripControlChars(s))
		if err != nil || !isValidJSON(fixed) {
			return "", ErrNoJSON
		}
		return fixed, nil
	}
	if isValidJSON(span) {
		return span, nil
	}

	fixed, err := jsonrepair.JSONRepair(stripControlChars(span))
	if err != nil || !isValidJSON(fixed) {
		return "", fmt.Errorf("%w: repair failed", ErrNoJSON)
	}
	return fixed, nil
}

// UnmarshalResponse extracts JSON from raw model output and decodes it into v.
func UnmarshalResponse(raw string, v any) error {
	s, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decoding model JSON: %w", err)
	}
	return nil
}

// stripFences removes a surrounding ```json ... ``` (or plain ```) fence.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// balancedSpan finds the first top-level {...} or [...] span, tracking
// strings and escapes so braces inside values do not confuse the scan.
func balancedSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	// Unbalanced; return the open tail so the caller can attempt repair.
	return s[start:], true
}

// stripControlChars removes raw control characters (except \n and \t) that
// models occasionally emit inside string values.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

func isValidJSON(s string) bool {
	return json.Valid([]byte(s))
}
