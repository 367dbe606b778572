package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one dataset entry. Response is set for offline response
// evaluation; GroundTruth and ExpectedContext describe RAG cases.
type Item struct {
	Query           string `json:"query" yaml:"query"`
	Response        string `json:"response,omitempty" yaml:"response,omitempty"`
	Context         string `json:"context,omitempty" yaml:"context,omitempty"`
	GroundTruth     string `json:"ground_truth,omitempty" yaml:"ground_truth,omitempty"`
	ExpectedContext string `json:"expected_context,omitempty" yaml:"expected_context,omitempty"`
}

// Dataset is the on-disk form: either a bare list of items or an object
// with a name and items.
type Dataset struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Items []Item `json:"items" yaml:"items"`
}

// LoadDataset reads a .json, .yaml or .yml file.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	ds, err := ParseDataset(f, format)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ds, nil
}

// ParseDataset decodes format "json" or "yaml"/"yml".
func ParseDataset(r io.Reader, format string) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	switch format {
	case "json":
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(raw, &ds.Items)
		} else {
			err = json.Unmarshal(raw, &ds)
		}
	case "yaml", "yml":
		var node yaml.Node
		if err = yaml.Unmarshal(raw, &node); err == nil && len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err = node.Content[0].Decode(&ds.Items)
		} else if err == nil {
			err = yaml.Unmarshal(raw, &ds)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
	if err != nil {
		return nil, err
	}
	for i, it := range ds.Items {
		if strings.TrimSpace(it.Query) == "" {
			return nil, fmt.Errorf("item %d: query is required", i)
		}
	}
	return &ds, nil
}

// SampleResponses is a small built-in dataset of answered questions.
func SampleResponses() []Item {
	return []Item{
		{
			Query:    "What is artificial intelligence?",
			Response: "Artificial intelligence (AI) is a branch of computer science focused on building systems that perform tasks that normally require human intelligence, such as pattern recognition, learning and decision making.",
			Context:  "Artificial intelligence is a branch of computing that seeks to build machines able to perform tasks that require human intelligence.",
		},
		{
			Query:    "How does machine learning work?",
			Response: "Machine learning works through algorithms that learn patterns from data without being explicitly programmed for each specific task.",
			Context:  "Machine learning is a subset of artificial intelligence that lets machines learn and improve automatically from experience.",
		},
		{
			Query:    "What are the advantages of RAG?",
			Response: "RAG combines information retrieval with text generation, enabling more accurate and up to date answers grounded in specific knowledge.",
			Context:  "RAG (Retrieval-Augmented Generation) combines searching for relevant information with text generation to produce more accurate answers.",
		},
	}
}

// SampleRAGCases pairs questions with reference answers for RAG runs.
func SampleRAGCases() []Item {
	return []Item{
		{Query: "What is artificial intelligence?", ExpectedContext: "definition of AI", GroundTruth: "Artificial intelligence is a branch of computing that seeks to build machines able to perform tasks that require human intelligence."},
		{Query: "How does RAG work?", ExpectedContext: "how RAG works", GroundTruth: "RAG combines searching for relevant information with text generation to produce more accurate answers."},
		{Query: "What is LangChain?", ExpectedContext: "description of LangChain", GroundTruth: "LangChain is a framework that eases building applications with language models."},
	}
}

// SampleCorpus is the knowledge base the RAG samples are asked against.
func SampleCorpus() map[string]string {
	return map[string]string{
		"ai":         "Artificial intelligence is a branch of computing that seeks to build machines able to perform tasks that require human intelligence.",
		"llm":        "Large language models (LLMs) are AI systems trained on huge amounts of text to generate and understand natural language.",
		"rag":        "RAG (Retrieval-Augmented Generation) combines searching for relevant information with text generation to produce more accurate answers.",
		"langchain":  "LangChain is a framework that eases building applications with language models, providing tools for chains and agents.",
		"prompting":  "Prompt engineering is the practice of designing effective instructions to get the best results from AI models.",
		"embeddings": "Embeddings are vector representations of text that capture semantic meaning in a multidimensional space.",
		"semantic":   "Semantic search uses embeddings to find content related by meaning, not only by keywords.",
		"evaluation": "AI evaluation systems measure metrics such as relevance, faithfulness and context precision.",
	}
}
