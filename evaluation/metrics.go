// Package evaluation scores model responses with text metrics and an
// LLM judge, evaluates RAG interactions and exports the results.
package evaluation

import (
	"math"
	"sort"
	"strings"
)

// Length categories by word count.
const (
	LengthVeryShort = "very_short"
	LengthShort     = "short"
	LengthMedium    = "medium"
	LengthLong      = "long"
	LengthVeryLong  = "very_long"
)

// BasicMetrics are computed without a model.
type BasicMetrics struct {
	WordCount           int     `json:"word_count"`
	SentenceCount       int     `json:"sentence_count"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	CharacterCount      int     `json:"character_count"`
	LengthCategory      string  `json:"length_category"`
}

// ComputeBasic counts words, sentences split on '.', and characters.
func ComputeBasic(response string) BasicMetrics {
	words := len(strings.Fields(response))
	sentences := 0
	for _, s := range strings.Split(response, ".") {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	return BasicMetrics{
		WordCount:           words,
		SentenceCount:       sentences,
		AvgWordsPerSentence: float64(words) / float64(max(sentences, 1)),
		CharacterCount:      len([]rune(response)),
		LengthCategory:      LengthCategory(words),
	}
}

func LengthCategory(words int) string {
	switch {
	case words < 20:
		return LengthVeryShort
	case words < 50:
		return LengthShort
	case words < 150:
		return LengthMedium
	case words < 300:
		return LengthLong
	}
	return LengthVeryLong
}

// Score bands on the 10 point scale.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
)

// Bands lists the score bands from best to worst.
var Bands = []string{BandExcellent, BandGood, BandFair, BandPoor}

func Band(score float64) string {
	switch {
	case score >= 9:
		return BandExcellent
	case score >= 7:
		return BandGood
	case score >= 5:
		return BandFair
	}
	return BandPoor
}

// Distribution counts scores per band. Every band is present.
func Distribution(scores []float64) map[string]int {
	out := make(map[string]int, len(Bands))
	for _, b := range Bands {
		out[b] = 0
	}
	for _, s := range scores {
		out[Band(s)]++
	}
	return out
}

// Stats are aggregate statistics over a set of scores. Std is the
// population standard deviation.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func Describe(values []float64) Stats {
	st := Stats{Count: len(values)}
	if len(values) == 0 {
		return st
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st.Mean = sum / float64(len(sorted))
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	if n := len(sorted); n%2 == 1 {
		st.Median = sorted[n/2]
	} else {
		st.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	var sq float64
	for _, v := range sorted {
		sq += (v - st.Mean) * (v - st.Mean)
	}
	st.Std = math.Sqrt(sq / float64(len(sorted)))
	return st
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
