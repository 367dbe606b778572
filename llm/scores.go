package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseScore reads a numeric grade from a model reply. It prefers a line of
// the form "<label>: N" and otherwise takes the first number in the text.
// The value is clamped to [lo, hi]; ok is false when no number was found.
func ParseScore(text, label string, lo, hi float64) (float64, bool) {
	prefix := strings.ToLower(label) + ":"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "*-# "))
		if label != "" && strings.HasPrefix(strings.ToLower(line), prefix) {
			if v, ok := firstNumber(line[len(prefix):]); ok {
				return clamp(v, lo, hi), true
			}
		}
	}
	if v, ok := firstNumber(text); ok {
		return clamp(v, lo, hi), true
	}
	return 0, false
}

// ParseLabeled returns the text after "<label>:" on the first matching
// line, or "" when absent.
func ParseLabeled(text, label string) string {
	prefix := strings.ToLower(label) + ":"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "*-# "))
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// ParseScoreList parses a comma separated list of exactly n numbers.
func ParseScoreList(text string, n int) ([]float64, bool) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// IsAffirmative reports whether a yes/no reply starts with yes.
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(t, "yes")
}

func firstNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
