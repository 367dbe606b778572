package llm

import (
	"fmt"
	"sort"
)

// Provider identifies a model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGitHub    Provider = "github"
	ProviderAnthropic Provider = "anthropic"
	ProviderRouter    Provider = "router"
	ProviderFake      Provider = "fake"
)

// Kind distinguishes chat models from embedding models.
type Kind string

const (
	KindChat      Kind = "chat"
	KindEmbedding Kind = "embedding"
)

// Model is a catalog entry. Costs are USD per 1M tokens.
type Model struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Kind        Kind       `json:"kind"`
	Providers   []Provider `json:"providers"`
	ContextSize int        `json:"context_size"`
	Dimensions  int        `json:"dimensions,omitempty"`
	InputCost   float64    `json:"input_cost"`
	OutputCost  float64    `json:"output_cost"`
	JSONMode    bool       `json:"json_mode"`
}

const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"

	ModelEmbedding3Small = "text-embedding-3-small"
	ModelEmbedding3Large = "text-embedding-3-large"

	ModelClaudeSonnet4  = "claude-sonnet-4-20250514"
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
)

// DefaultChatModel and DefaultEmbeddingModel are what GitHub Models serves
// at the default endpoint.
const (
	DefaultChatModel      = ModelGPT4o
	DefaultEmbeddingModel = ModelEmbedding3Small
)

var openAICompatible = []Provider{ProviderOpenAI, ProviderGitHub}

// Catalog lists the models this module knows how to price and validate.
var Catalog = map[string]Model{
	ModelGPT4o: {
		Name: ModelGPT4o, DisplayName: "GPT-4o", Kind: KindChat, Providers: openAICompatible,
		ContextSize: 128000, InputCost: 2.5, OutputCost: 10, JSONMode: true,
	},
	ModelGPT4oMini: {
		Name: ModelGPT4oMini, DisplayName: "GPT-4o mini", Kind: KindChat, Providers: openAICompatible,
		ContextSize: 128000, InputCost: 0.15, OutputCost: 0.6, JSONMode: true,
	},
	ModelEmbedding3Small: {
		Name: ModelEmbedding3Small, DisplayName: "Embedding 3 small", Kind: KindEmbedding, Providers: openAICompatible,
		ContextSize: 8191, Dimensions: 1536, InputCost: 0.02,
	},
	ModelEmbedding3Large: {
		Name: ModelEmbedding3Large, DisplayName: "Embedding 3 large", Kind: KindEmbedding, Providers: openAICompatible,
		ContextSize: 8191, Dimensions: 3072, InputCost: 0.13,
	},
	ModelClaudeSonnet4: {
		Name: ModelClaudeSonnet4, DisplayName: "Claude Sonnet 4", Kind: KindChat, Providers: []Provider{ProviderAnthropic},
		ContextSize: 200000, InputCost: 3, OutputCost: 15,
	},
	ModelClaude35Sonnet: {
		Name: ModelClaude35Sonnet, DisplayName: "Claude 3.5 Sonnet", Kind: KindChat, Providers: []Provider{ProviderAnthropic},
		ContextSize: 200000, InputCost: 3, OutputCost: 15,
	},
	ModelClaude35Haiku: {
		Name: ModelClaude35Haiku, DisplayName: "Claude 3.5 Haiku", Kind: KindChat, Providers: []Provider{ProviderAnthropic},
		ContextSize: 200000, InputCost: 0.8, OutputCost: 4,
	},
}

// GetModel returns catalog metadata for name.
func GetModel(name string) (Model, error) {
	m, ok := Catalog[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return m, nil
}

// ValidateModel checks that name is in the catalog and served by provider.
// An empty provider skips the provider check.
func ValidateModel(name string, provider Provider) error {
	m, err := GetModel(name)
	if err != nil {
		return err
	}
	if provider != "" && !m.ServedBy(provider) {
		return fmt.Errorf("model %s is not served by %s", name, provider)
	}
	return nil
}

// ModelsFor returns the models a provider serves, sorted by name.
func ModelsFor(provider Provider, kind Kind) []Model {
	var out []Model
	for _, m := range Catalog {
		if m.ServedBy(provider) && (kind == "" || m.Kind == kind) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m Model) ServedBy(p Provider) bool {
	for _, q := range m.Providers {
		if q == p {
			return true
		}
	}
	return false
}

func (m Model) String() string {
	return fmt.Sprintf("%s (%s)", m.DisplayName, m.Name)
}

// EstimateCost prices a call in USD.
func (m Model) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.InputCost + float64(outputTokens)/1e6*m.OutputCost
}
