package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		name, text string
		want       float64
		ok         bool
	}{
		{"labeled", "Score: 7.5\nJustification: fine", 7.5, true},
		{"bold label", "**Score:** 9", 9, true},
		{"bare number", "I would give it 6 out of 10", 6, true},
		{"clamped", "Score: 14", 10, true},
		{"negative clamped", "Score: -3", 1, true},
		{"missing", "no idea", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseScore(tc.text, "Score", 1, 10)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseLabeled(t *testing.T) {
	assert.Equal(t, "short and clear", ParseLabeled("Score: 8\nJustification: short and clear", "justification"))
	assert.Equal(t, "", ParseLabeled("Score: 8", "justification"))
}

func TestParseScoreList(t *testing.T) {
	got, ok := ParseScoreList(" 8, 3.5 ,10", 3)
	assert.True(t, ok)
	assert.Equal(t, []float64{8, 3.5, 10}, got)

	_, ok = ParseScoreList("8, 3", 3)
	assert.False(t, ok)
	_, ok = ParseScoreList("8, x, 1", 3)
	assert.False(t, ok)
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, IsAffirmative("Yes, it is relevant."))
	assert.False(t, IsAffirmative("No."))
}
