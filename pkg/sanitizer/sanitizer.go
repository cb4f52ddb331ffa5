package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reNotCode         = regexp.MustCompile(`[^A-Z0-9]+`)
	reNotKey          = regexp.MustCompile(`[^a-z0-9]+`)
	reTrimUnderscores = regexp.MustCompile(`_+`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// collapseSpaces turns every whitespace run, newlines included, into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapseLines keeps paragraph breaks but trims each line and caps blank
// runs at one empty line.
func collapseLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func collapseUnderscores(s string) string {
	s = reTrimUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Text is for single-line fields such as titles, names and buildings.
func Text(input string) string {
	return Pipeline{stripControl, collapseSpaces}.Apply(input)
}

// Multiline is for free text such as descriptions and notes.
func Multiline(input string) string {
	return Pipeline{stripControl, collapseLines}.Apply(input)
}

// LabCode upper-cases and drops everything outside A-Z and 0-9.
func LabCode(input string) string {
	return Pipeline{
		strings.TrimSpace,
		strings.ToUpper,
		func(s string) string { return reNotCode.ReplaceAllString(s, "") },
	}.Apply(input)
}

// Key produces a lower_snake identifier, e.g. "Air Conditioning" -> "air_conditioning".
func Key(input string) string {
	return Pipeline{
		strings.TrimSpace,
		strings.ToLower,
		func(s string) string { return reNotKey.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}.Apply(input)
}

func Email(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Slice applies strategy to each value and drops empties and duplicates,
// keeping first-seen order.
func Slice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{}, len(values))
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

func Clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
