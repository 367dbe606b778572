package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KamdynS/agentlab/evaluation"
	"github.com/KamdynS/agentlab/rag"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type ragFlags struct {
	docs     string
	strategy string
	size     int
	overlap  int
}

func (f *ragFlags) register(cmd *cobra.Command) {
	def := rag.DefaultChunkOptions()
	cmd.Flags().StringVar(&f.docs, "docs", "", "Directory of .txt/.md files to index (default: built-in sample corpus)")
	cmd.Flags().StringVar(&f.strategy, "chunking", def.Strategy, "Chunking: words, sentences, paragraphs, chars or approx")
	cmd.Flags().IntVar(&f.size, "chunk-size", def.Size, "Chunk size in the strategy's unit")
	cmd.Flags().IntVar(&f.overlap, "chunk-overlap", def.Overlap, "Chunk overlap in the strategy's unit")
}

func (f *ragFlags) chunkOptions() rag.ChunkOptions {
	return rag.ChunkOptions{Strategy: f.strategy, Size: f.size, Overlap: f.overlap}
}

// pipeline wires the configured model, embedder, vector store and
// conversation history, indexing docs (or the sample corpus) when the
// store is empty or docs are given explicitly.
func (a *app) pipeline(ctx context.Context, f ragFlags) (*rag.Pipeline, func(), error) {
	client, oc, err := a.clients()
	if err != nil {
		return nil, nil, err
	}
	emb := a.embedder(oc)
	dims := a.cfg.Vector.Dimensions
	if h, ok := emb.(*rag.HashEmbedder); ok {
		dims = h.Dim
	}
	vs, closeStore, err := a.vectorStore(ctx, dims)
	if err != nil {
		return nil, nil, err
	}
	history, closeHistory := a.conversations()
	closeAll := func() {
		closeHistory()
		closeStore()
	}

	n, err := vs.Count(ctx)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if f.docs != "" || n == 0 {
		docs := evaluation.SampleCorpus()
		if f.docs != "" {
			if docs, err = readCorpus(f.docs); err != nil {
				closeAll()
				return nil, nil, err
			}
		}
		chunks, err := rag.IndexDocuments(ctx, vs, emb, docs, f.chunkOptions())
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		log.Info().Int("documents", len(docs)).Int("chunks", chunks).Msg("indexed corpus")
	}
	return rag.NewPipeline(vs, emb, client, history), closeAll, nil
}

func (a *app) ragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Index documents and answer questions over them",
	}
	cmd.AddCommand(a.ragIndexCmd(), a.ragAskCmd(), a.ragChunkCmd())
	return cmd
}

func (a *app) ragIndexCmd() *cobra.Command {
	var f ragFlags
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Chunk, embed and store the documents of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.docs = args[0]
			p, closeAll, err := a.pipeline(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer closeAll()
			n, err := p.Store.Count(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]any{"directory": f.docs, "chunks_stored": n, "backend": a.cfg.Vector.Backend}
			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, "Indexed "+f.docs)
				field(w, "Chunks stored", n)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) ragAskCmd() *cobra.Command {
	var (
		f       ragFlags
		session string
		opts    = rag.DefaultPipelineOptions()
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with hybrid retrieval and generation",
		Example: `  agentlab --offline rag ask "What is RAG?"
  agentlab rag ask --docs ./notes --rerank "Summarise the design"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeAll, err := a.pipeline(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer closeAll()
			p.Options = opts

			ans, err := p.Ask(cmd.Context(), session, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), ans, func(w io.Writer) {
				heading(w, "Answer")
				fmt.Fprintln(w, ans.Text)
				if len(ans.Queries) > 1 {
					field(w, "Queries", strings.Join(ans.Queries, " | "))
				}
				rows := make([][]string, 0, len(ans.Sources))
				for _, s := range ans.Sources {
					rows = append(rows, []string{s.Document.ID, fmt.Sprintf("%.3f", s.Relevance()), truncate(s.Document.Content, 60)})
				}
				renderTable(w, []string{"Source", "Score", "Excerpt"}, rows)
				field(w, "Timings", fmt.Sprintf("retrieval %s, generation %s", ans.Timings.Retrieval, ans.Timings.Generation))
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "Conversation id; earlier turns feed the prompt")
	cmd.Flags().IntVar(&opts.SearchK, "search-k", opts.SearchK, "Candidates retrieved per query")
	cmd.Flags().IntVar(&opts.FinalK, "top-k", opts.FinalK, "Sources passed to generation")
	cmd.Flags().BoolVar(&opts.Expand, "expand", opts.Expand, "Expand the question into alternative queries")
	cmd.Flags().BoolVar(&opts.Rerank, "rerank", opts.Rerank, "Rerank candidates with the model")
	return cmd
}

func (a *app) ragChunkCmd() *cobra.Command {
	var f ragFlags
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Show how a file splits into chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text := string(b)
			chunks, err := rag.Split(text, f.chunkOptions())
			if err != nil {
				return err
			}
			stats := rag.Stats(text, chunks)
			out := map[string]any{"stats": stats, "chunks": chunks}
			return a.report(cmd.OutOrStdout(), out, func(w io.Writer) {
				heading(w, fmt.Sprintf("%s: %d chunks (%s)", args[0], stats.Count, f.strategy))
				field(w, "Average words", fmt.Sprintf("%.1f", stats.AvgWords))
				field(w, "Chars", fmt.Sprintf("min %d, max %d, avg %.1f", stats.MinChars, stats.MaxChars, stats.AvgChars))
				for i, c := range chunks {
					fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("[%d]", i+1)), truncate(c, 100))
				}
			})
		},
	}
	f.register(cmd)
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
