package report

import (
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	deepHeadingRe = regexp.MustCompile(`^#{3,6}\s+(.*)$`)
	ruleRe        = regexp.MustCompile(`^-{3,}\s*$`)
)

// cleanSectionBody prepares an LLM-written body for embedding under its
// heading: a leading duplicate of the section title is dropped, remaining
// deep headings become bold lines, and leading horizontal rules go away.
func cleanSectionBody(body, title string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")

	// Drop leading rules and a repeated title heading.
	for len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first == "" || ruleRe.MatchString(first) {
			lines = lines[1:]
			continue
		}
		if m := headingRe.FindStringSubmatch(first); m != nil &&
			strings.EqualFold(strings.TrimSpace(m[2]), strings.TrimSpace(title)) {
			lines = lines[1:]
			continue
		}
		break
	}

	for i, line := range lines {
		if m := deepHeadingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			lines[i] = "**" + strings.TrimSpace(m[1]) + "**"
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// postProcessReport finalizes the assembled report: adjacent equal headings
// collapse to one, headings of level three and deeper become bold lines, and
// runs of more than two blank lines shrink.
func postProcessReport(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	lastHeading := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blanks++
			if blanks > 2 {
				continue
			}
			out = append(out, line)
			continue
		}
		blanks = 0

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			title := strings.TrimSpace(m[2])
			if title == lastHeading {
				continue
			}
			lastHeading = title
			if len(m[1]) >= 3 {
				out = append(out, "**"+title+"**")
				continue
			}
		} else {
			lastHeading = ""
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}
