// Package config provides configuration loading and structs for the aibridge server.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/aibridge/internal/apierr"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvHost    = "DATABRICKS_HOST"
	EnvToken   = "DATABRICKS_TOKEN"
	EnvSpaceID = "GENIE_SPACE_ID"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Genie        GenieConfig        `yaml:"genie"`
	VectorSearch VectorSearchConfig `yaml:"vector_search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WorkspaceConfig locates the remote workspace.
type WorkspaceConfig struct {
	Host    string        `yaml:"host"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// GenieConfig holds conversation space and result budget settings.
type GenieConfig struct {
	SpaceID        string        `yaml:"space_id"`
	MaxTokens      int           `yaml:"max_tokens"`
	MaxIterations  int           `yaml:"max_iterations"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	TokenizerModel string        `yaml:"tokenizer_model"`
	ResultAsJSON   bool          `yaml:"result_as_json"`
}

// VectorSearchConfig holds the index the search tool queries. An empty
// IndexName disables the tool.
type VectorSearchConfig struct {
	IndexName           string   `yaml:"index_name"`
	TextColumn          string   `yaml:"text_column"`
	Columns             []string `yaml:"columns"`
	DocURI              string   `yaml:"doc_uri"`
	PrimaryKey          string   `yaml:"primary_key"`
	IncludeScore        bool     `yaml:"include_score"`
	QueryType           string   `yaml:"query_type"`
	EmbeddingDimensions int      `yaml:"embedding_dimensions"`
	EmbeddingCacheSize  int      `yaml:"embedding_cache_size"`
}

// Enabled reports whether a vector index is configured.
func (v VectorSearchConfig) Enabled() bool { return v.IndexName != "" }

// Load reads and parses the config file at path, applies defaults and then
// environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apierr.Wrap(apierr.Config, "failed to parse config", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	return &cfg, nil
}

// ApplyEnv overrides workspace and space settings from the environment.
// getenv is os.Getenv outside tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvHost); v != "" {
		cfg.Workspace.Host = v
	}
	if v := getenv(EnvToken); v != "" {
		cfg.Workspace.Token = v
	}
	if v := getenv(EnvSpaceID); v != "" {
		cfg.Genie.SpaceID = v
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Workspace.Host == "" {
		return apierr.New(apierr.Config, "workspace.host is required")
	}
	if c.Genie.SpaceID == "" {
		return apierr.New(apierr.Config, "genie.space_id is required")
	}
	if c.Genie.MaxTokens <= 0 {
		return apierr.Newf(apierr.Config, "genie.max_tokens must be positive, got %d", c.Genie.MaxTokens)
	}
	if c.Genie.MaxIterations <= 0 {
		return apierr.Newf(apierr.Config, "genie.max_iterations must be positive, got %d", c.Genie.MaxIterations)
	}
	if c.Genie.PollInterval < 0 {
		return apierr.Newf(apierr.Config, "genie.poll_interval must not be negative, got %s", c.Genie.PollInterval)
	}
	return nil
}

// Save writes the config to path. Used by "aibridge init".
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
