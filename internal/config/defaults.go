package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Workspace.Timeout == 0 {
		cfg.Workspace.Timeout = 30 * time.Second
	}
	if cfg.Genie.MaxTokens == 0 {
		cfg.Genie.MaxTokens = 20000
	}
	if cfg.Genie.MaxIterations == 0 {
		cfg.Genie.MaxIterations = 50
	}
	if cfg.Genie.PollInterval == 0 {
		cfg.Genie.PollInterval = 5 * time.Second
	}
	if cfg.Genie.TokenizerModel == "" {
		cfg.Genie.TokenizerModel = "gpt-4o"
	}
	if cfg.VectorSearch.EmbeddingDimensions == 0 {
		cfg.VectorSearch.EmbeddingDimensions = 384
	}
	if cfg.VectorSearch.EmbeddingCacheSize == 0 {
		cfg.VectorSearch.EmbeddingCacheSize = 10000
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
