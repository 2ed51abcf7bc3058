// Package config provides configuration management for the discovery services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/algojuke/discovery/pkg/enrichment"
)

// Config holds all configuration for the discovery services. It is built once
// at startup and the relevant sections are handed to each component.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Temporal   TemporalConfig   `yaml:"temporal"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Catalogue  CatalogueConfig  `yaml:"catalogue"`
	Search     SearchConfig     `yaml:"search"`
	Tools      ToolsConfig      `yaml:"tools"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Agent      AgentConfig      `yaml:"agent"`
	HealthAddr string           `yaml:"healthAddr"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MigrationsPath string `yaml:"migrationsPath"`
	VectorDim      int    `yaml:"vectorDim"`
	SparseVocab    int    `yaml:"sparseVocab"`
	MaxConns       int    `yaml:"maxConns"`
}

type TemporalConfig struct {
	Address      string `yaml:"address"`
	Namespace    string `yaml:"namespace"`
	TaskQueue    string `yaml:"taskQueue"`
	WorkflowName string `yaml:"workflowName"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // openai | local
	BaseURL  string `yaml:"baseURL"`
	APIKey   string `yaml:"-"`
	Model    string `yaml:"model"`
}

type ExpansionConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
}

type CatalogueConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"-"`
}

// SearchConfig tunes the hybrid retrieval engine.
type SearchConfig struct {
	RRFConstant   int `yaml:"rrfConstant"`
	OverFetch     int `yaml:"overFetch"`
	MaxSubQueries int `yaml:"maxSubQueries"`
	MaxCandidates int `yaml:"maxCandidates"`
}

type ToolsConfig struct {
	RetryDelay time.Duration `yaml:"retryDelay"`
}

// AgentConfig configures the chat model behind the streamed endpoint and the
// user that library annotations are scoped to.
type AgentConfig struct {
	BaseURL    string `yaml:"baseURL"`
	APIKey     string `yaml:"-"`
	Model      string `yaml:"model"`
	MaxTurns   int    `yaml:"maxTurns"`
	UserID     string `yaml:"userID"`
	ListenAddr string `yaml:"listenAddr"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// Load reads configuration from environment variables with sensible defaults.
// When DISCOVERY_CONFIG_FILE is set, the YAML file is applied on top and
// environment variables that are explicitly set still win.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("DISCOVERY_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			MigrationsPath: "./migrations",
			VectorDim:      1536,
			SparseVocab:    30000,
			MaxConns:       10,
		},
		Temporal: TemporalConfig{
			Address:      "localhost:7233",
			Namespace:    "default",
			TaskQueue:    "track-enrichment",
			WorkflowName: enrichment.WorkflowName,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
		},
		Expansion: ExpansionConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Search: SearchConfig{
			RRFConstant:   60,
			OverFetch:     50,
			MaxSubQueries: 3,
			MaxCandidates: 1000,
		},
		Tools:      ToolsConfig{RetryDelay: time.Second},
		Tracing: TracingConfig{ServiceName: "discovery-agent"},
		Agent: AgentConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o",
			MaxTurns:   8,
			ListenAddr: ":8080",
		},
		HealthAddr: ":8081",
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MigrationsPath = getEnv("DISCOVERY_MIGRATIONS_PATH", c.Database.MigrationsPath)
	c.Database.VectorDim = getEnvInt("EMBEDDING_DIM", c.Database.VectorDim)
	c.Database.SparseVocab = getEnvInt("SPARSE_VOCAB_SIZE", c.Database.SparseVocab)
	c.Database.MaxConns = getEnvInt("DATABASE_MAX_CONNS", c.Database.MaxConns)

	c.Temporal.Address = getEnv("TEMPORAL_ADDRESS", c.Temporal.Address)
	c.Temporal.Namespace = getEnv("TEMPORAL_NAMESPACE", c.Temporal.Namespace)
	c.Temporal.TaskQueue = getEnv("TEMPORAL_TASK_QUEUE", c.Temporal.TaskQueue)

	c.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.APIKey = getEnv("OPENAI_API_KEY", c.Embedding.APIKey)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)

	c.Expansion.BaseURL = getEnv("EXPANSION_BASE_URL", c.Expansion.BaseURL)
	c.Expansion.APIKey = getEnv("EXPANSION_API_KEY", getEnv("OPENAI_API_KEY", c.Expansion.APIKey))
	c.Expansion.Model = getEnv("EXPANSION_MODEL", c.Expansion.Model)

	c.Catalogue.BaseURL = getEnv("CATALOGUE_BASE_URL", c.Catalogue.BaseURL)
	c.Catalogue.APIKey = getEnv("CATALOGUE_API_KEY", c.Catalogue.APIKey)

	c.Search.RRFConstant = getEnvInt("SEARCH_RRF_CONSTANT", c.Search.RRFConstant)
	c.Search.OverFetch = getEnvInt("SEARCH_OVERFETCH", c.Search.OverFetch)
	c.Search.MaxSubQueries = getEnvInt("SEARCH_MAX_SUBQUERIES", c.Search.MaxSubQueries)
	c.Search.MaxCandidates = getEnvInt("SEARCH_MAX_CANDIDATES", c.Search.MaxCandidates)

	c.Tools.RetryDelay = getEnvDuration("TOOL_RETRY_DELAY", c.Tools.RetryDelay)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Tracing.ServiceName)

	c.Agent.BaseURL = getEnv("AGENT_BASE_URL", c.Agent.BaseURL)
	c.Agent.APIKey = getEnv("AGENT_API_KEY", getEnv("OPENAI_API_KEY", c.Agent.APIKey))
	c.Agent.Model = getEnv("AGENT_MODEL", c.Agent.Model)
	c.Agent.MaxTurns = getEnvInt("AGENT_MAX_TURNS", c.Agent.MaxTurns)
	c.Agent.UserID = getEnv("DISCOVERY_USER_ID", c.Agent.UserID)
	c.Agent.ListenAddr = getEnv("AGENT_LISTEN_ADDR", c.Agent.ListenAddr)

	c.HealthAddr = getEnv("HEALTH_ADDR", c.HealthAddr)
}

// Validate rejects settings that would break the retrieval or scheduling contracts.
func (c *Config) Validate() error {
	if c.Database.VectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.Database.VectorDim)
	}
	if c.Database.SparseVocab <= 0 {
		return fmt.Errorf("sparse vocabulary size must be positive, got %d", c.Database.SparseVocab)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("rrf constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.OverFetch < 0 {
		return fmt.Errorf("over-fetch slack must not be negative, got %d", c.Search.OverFetch)
	}
	if c.Search.MaxSubQueries < 1 || c.Search.MaxSubQueries > 3 {
		return fmt.Errorf("max sub-queries must be between 1 and 3, got %d", c.Search.MaxSubQueries)
	}
	if c.Search.MaxCandidates < 1 {
		return fmt.Errorf("max candidates must be positive, got %d", c.Search.MaxCandidates)
	}
	if c.Tools.RetryDelay < 0 {
		return fmt.Errorf("tool retry delay must not be negative")
	}
	if c.Agent.MaxTurns < 1 {
		return fmt.Errorf("agent max turns must be at least 1, got %d", c.Agent.MaxTurns)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
