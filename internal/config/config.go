package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the mnemos server
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Auth      AuthConfig      `json:"auth"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Agent     AgentConfig     `json:"agent"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// AuthConfig holds token signing and secret derivation settings.
// SecretKey also keys the API-key encryption at rest.
type AuthConfig struct {
	SecretKey    string `json:"secret_key"`
	TokenTTLMins int    `json:"token_ttl_minutes"`
}

// LLMConfig holds the server-default LLM used by the memory engine when a
// request carries no per-user settings
type LLMConfig struct {
	URL         string  `json:"url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// EmbeddingConfig holds embedding API configuration
type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// AgentConfig holds tool-loop settings
type AgentConfig struct {
	MaxTurns    int     `json:"max_turns"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			PostgresURL: "",
		},
		Auth: AuthConfig{
			SecretKey:    "",
			TokenTTLMins: 24 * 60,
		},
		LLM: LLMConfig{
			URL:         "http://localhost:8000/v1",
			APIKey:      "",
			Model:       "deepseek-chat",
			MaxTokens:   2000,
			Temperature: 0.2,
		},
		Embedding: EmbeddingConfig{
			URL:        "http://localhost:11434/v1",
			APIKey:     "",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Agent: AgentConfig{
			MaxTurns:    5,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from the config file and environment variables
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("MNEMOS_SERVER_HOST", &cfg.Server.Host)
	envInt("MNEMOS_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("MNEMOS_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("MNEMOS_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("MNEMOS_SECRET_KEY", &cfg.Auth.SecretKey)
	envInt("MNEMOS_TOKEN_TTL_MINUTES", &cfg.Auth.TokenTTLMins)

	envString("MNEMOS_LLM_URL", &cfg.LLM.URL)
	envString("MNEMOS_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("MNEMOS_LLM_MODEL", &cfg.LLM.Model)
	envInt("MNEMOS_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("MNEMOS_LLM_TEMPERATURE", &cfg.LLM.Temperature)

	envString("MNEMOS_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("MNEMOS_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("MNEMOS_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("MNEMOS_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envInt("MNEMOS_AGENT_MAX_TURNS", &cfg.Agent.MaxTurns)
	envFloat("MNEMOS_AGENT_TEMPERATURE", &cfg.Agent.Temperature)
	envInt("MNEMOS_AGENT_MAX_TOKENS", &cfg.Agent.MaxTokens)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.Database.PostgresURL == "" {
		errs = append(errs, "PostgreSQL URL is required")
	} else if !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.Auth.SecretKey == "" {
		errs = append(errs, "secret key is required")
	}
	if c.Auth.TokenTTLMins < 1 {
		errs = append(errs, "token TTL must be at least one minute")
	}

	if c.LLM.URL != "" && !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}

	if c.Embedding.URL == "" {
		errs = append(errs, "embedding URL is required")
	} else if !isValidURL(c.Embedding.URL) {
		errs = append(errs, "embedding URL must be a valid URL")
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, "embedding dimensions must be positive")
	}

	if c.Agent.MaxTurns < 1 {
		errs = append(errs, "agent max_turns must be at least 1")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, "agent temperature must be between 0 and 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("MNEMOS_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	return filepath.Join(homeDir, ".config", "mnemos", "config.json")
}
