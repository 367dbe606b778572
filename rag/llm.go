package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KamdynS/agentlab/llm"
	"github.com/rs/zerolog/log"
)

// Reranker scores candidates 0-10 with one LLM call.
type Reranker struct {
	Client llm.Client
}

func (r *Reranker) prompt(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the query: %q\n\n", query)
	b.WriteString("Rate how relevant each document is for answering the query, from 0 to 10 where 10 is extremely relevant.\n\nDocuments:\n")
	for i, res := range results {
		content := []rune(res.Document.Content)
		if len(content) > 200 {
			content = content[:200]
		}
		fmt.Fprintf(&b, "\n%d. %s...\n", i+1, string(content))
	}
	b.WriteString("\nReply ONLY with comma separated numbers, one per document (e.g. 8,5,9,2,7):")
	return b.String()
}

// Rerank orders results by LLM score and keeps topK. If the call fails or
// the reply does not hold one score per result, the first topK results
// are returned unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, results []Result, topK int) []Result {
	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	if len(results) == 0 {
		return results
	}
	req := llm.UserPrompt("", r.prompt(query, results))
	req.Temperature = llm.Float64(0.1)
	req.MaxTokens = llm.Int(50)

	resp, err := r.Client.Chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("rerank failed, keeping retrieval order")
		return results[:topK]
	}
	scores, ok := llm.ParseScoreList(resp.Content, len(results))
	if !ok {
		log.Warn().Str("reply", resp.Content).Msg("rerank reply unparseable, keeping retrieval order")
		return results[:topK]
	}

	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		s := scores[i]
		out[i].Rerank = &s
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Rerank > *out[j].Rerank })
	return out[:topK]
}

// ExpandQuery asks for up to three related queries. The original query is
// always first; on error it is the only one.
func ExpandQuery(ctx context.Context, client llm.Client, query string) []string {
	prompt := fmt.Sprintf(`Given this query: %q

Generate 3 related queries that could help find complementary information.
They should be semantic variations or related aspects.

Reply ONLY with the 3 queries, one per line:`, query)
	req := llm.UserPrompt("", prompt)
	req.Temperature = llm.Float64(0.7)
	req.MaxTokens = llm.Int(150)

	resp, err := client.Chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("query expansion failed")
		return []string{query}
	}
	out := []string{query}
	for _, line := range strings.Split(resp.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
			if len(out) == 4 {
				break
			}
		}
	}
	return out
}
