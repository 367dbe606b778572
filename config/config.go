// Package config loads agentlab settings from an optional YAML file, a .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/evaluation/store"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the GitHub Models inference endpoint.
const DefaultBaseURL = "https://models.inference.ai.azure.com"

// ErrMissingToken is returned when the selected provider has no API key.
var ErrMissingToken = errors.New("missing API token: set GITHUB_TOKEN (or ANTHROPIC_API_KEY for the anthropic provider), or run with --offline")

type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Server   ServerConfig   `mapstructure:"server"`
	Database store.Config   `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	AnthropicKey      string        `mapstructure:"anthropic_api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	JudgeModel        string        `mapstructure:"judge_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	// Offline swaps every model call for the scripted fake client.
	Offline bool `mapstructure:"offline"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// VectorConfig selects the vector store backing RAG: "memory" or "pgvector".
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	DSN        string `mapstructure:"dsn"`
	Table      string `mapstructure:"table"`
	Dimensions int    `mapstructure:"dimensions"`
}

type WorkflowConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	Parallelism   int `mapstructure:"parallelism"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// TracingConfig selects the span exporter: "none" or "stdout".
type TracingConfig struct {
	Exporter string `mapstructure:"exporter"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; a missing config file falls back to defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("agentlab")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "GITHUB_TOKEN")
	_ = v.BindEnv("llm.base_url", "GITHUB_BASE_URL")
	_ = v.BindEnv("llm.provider", "LLM_PROVIDER")
	_ = v.BindEnv("llm.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.judge_model", "LLM_JUDGE_MODEL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("vector.dsn", "PGVECTOR_DSN")
	_ = v.BindEnv("database.connection", "DATABASE_URL")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", DefaultBaseURL)
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.judge_model", "")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.offline", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "agentlab.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("vector.backend", "memory")
	v.SetDefault("vector.table", "documents")
	v.SetDefault("vector.dimensions", 1536)

	v.SetDefault("workflow.max_iterations", 100)
	v.SetDefault("workflow.parallelism", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("tracing.exporter", "none")
}

// Validate checks ranges and that the selected provider has credentials
// unless running offline.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "github":
		if !c.LLM.Offline && c.LLM.APIKey == "" {
			return ErrMissingToken
		}
	case "anthropic":
		if !c.LLM.Offline && c.LLM.AnthropicKey == "" {
			return ErrMissingToken
		}
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm temperature: %v", c.LLM.Temperature)
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid llm requests_per_second: %v", c.LLM.RequestsPerSecond)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("invalid workflow max_iterations: %d", c.Workflow.MaxIterations)
	}
	if c.Workflow.Parallelism < 1 {
		return fmt.Errorf("invalid workflow parallelism: %d", c.Workflow.Parallelism)
	}
	switch c.Vector.Backend {
	case "memory":
	case "pgvector":
		if c.Vector.DSN == "" {
			return errors.New("vector backend pgvector requires vector.dsn")
		}
	default:
		return fmt.Errorf("unsupported vector backend: %s", c.Vector.Backend)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.Tracing.Exporter)
	}
	return nil
}
