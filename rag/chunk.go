package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunking strategies accepted by Split.
const (
	StrategyWords      = "words"
	StrategySentences  = "sentences"
	StrategyParagraphs = "paragraphs"
	StrategyChars      = "chars"
	StrategyApprox     = "approx"
)

// ChunkOptions selects a strategy and its window. Size and Overlap are in
// the strategy's unit: words, sentences or characters. Zero values take
// the strategy defaults.
type ChunkOptions struct {
	Strategy string `json:"strategy" yaml:"strategy"`
	Size     int    `json:"size" yaml:"size"`
	Overlap  int    `json:"overlap" yaml:"overlap"`
}

// DefaultChunkOptions splits by words, 200 per chunk with 50 overlapping.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Strategy: StrategyWords, Size: 200, Overlap: 50}
}

// Split chunks text with the configured strategy.
func Split(text string, opts ChunkOptions) ([]string, error) {
	switch opts.Strategy {
	case "", StrategyWords:
		return ChunkWords(text, opts.Size, opts.Overlap), nil
	case StrategySentences:
		return ChunkSentences(text, opts.Size, opts.Overlap), nil
	case StrategyParagraphs:
		return ChunkParagraphs(text), nil
	case StrategyChars:
		return ChunkChars(text, opts.Size, opts.Overlap), nil
	case StrategyApprox:
		return Chunk(text, opts.Size), nil
	}
	return nil, fmt.Errorf("unknown chunking strategy %q", opts.Strategy)
}

// window returns the start offsets of a sliding window over n units. It
// stops after the first window reaching the end.
func window(n, size, overlap int) []int {
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}
	var starts []int
	for i := 0; i < n; i += step {
		starts = append(starts, i)
		if i+size >= n {
			break
		}
	}
	return starts
}

// ChunkWords groups whitespace-separated words into windows of size words.
func ChunkWords(text string, size, overlap int) []string {
	if size <= 0 {
		size, overlap = 200, 50
	}
	words := strings.Fields(text)
	var chunks []string
	for _, i := range window(len(words), size, overlap) {
		chunks = append(chunks, strings.Join(words[i:min(i+size, len(words))], " "))
	}
	return chunks
}

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Sentences splits on runs of terminal punctuation and drops empty pieces.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChunkSentences groups up to perChunk sentences per chunk. Each chunk is
// rejoined with ". " and ends with a period.
func ChunkSentences(text string, perChunk, overlap int) []string {
	if perChunk <= 0 {
		perChunk, overlap = 5, 1
	}
	sents := Sentences(text)
	var chunks []string
	for _, i := range window(len(sents), perChunk, overlap) {
		chunks = append(chunks, strings.Join(sents[i:min(i+perChunk, len(sents))], ". ")+".")
	}
	return chunks
}

// ChunkParagraphs splits on blank lines.
func ChunkParagraphs(text string) []string {
	var chunks []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

// ChunkChars slides a window of size runes.
func ChunkChars(text string, size, overlap int) []string {
	if size <= 0 {
		size, overlap = 500, 100
	}
	runes := []rune(text)
	var chunks []string
	for _, i := range window(len(runes), size, overlap) {
		chunks = append(chunks, string(runes[i:min(i+size, len(runes))]))
	}
	return chunks
}

// Chunk packs paragraphs into chunks of roughly approxChunkSize
// characters, hard-splitting paragraphs that are longer on their own.
// Splits fall on rune boundaries.
func Chunk(text string, approxChunkSize int) []string {
	if approxChunkSize <= 0 {
		approxChunkSize = 1200
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, p := range strings.Split(text, "\n\n") {
		n := utf8.RuneCountInString(p)
		if curLen+n > approxChunkSize {
			flush()
		}
		if n > approxChunkSize {
			runes := []rune(p)
			for i := 0; i < len(runes); i += approxChunkSize {
				chunks = append(chunks, string(runes[i:min(i+approxChunkSize, len(runes))]))
			}
			continue
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return chunks
}

// ChunkStats describes a chunking result in words and characters.
type ChunkStats struct {
	Count       int     `json:"count"`
	SourceWords int     `json:"source_words"`
	AvgWords    float64 `json:"avg_words"`
	AvgChars    float64 `json:"avg_chars"`
	MinChars    int     `json:"min_chars"`
	MaxChars    int     `json:"max_chars"`
}

func Stats(source string, chunks []string) ChunkStats {
	st := ChunkStats{Count: len(chunks), SourceWords: len(strings.Fields(source))}
	if len(chunks) == 0 {
		return st
	}
	var words, chars int
	st.MinChars = -1
	for _, c := range chunks {
		n := len([]rune(c))
		words += len(strings.Fields(c))
		chars += n
		if st.MinChars < 0 || n < st.MinChars {
			st.MinChars = n
		}
		if n > st.MaxChars {
			st.MaxChars = n
		}
	}
	st.AvgWords = float64(words) / float64(len(chunks))
	st.AvgChars = float64(chars) / float64(len(chunks))
	return st
}
