package config

import (
	"os"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database.PostgresURL = "postgres://localhost:5432/mnemos"
	cfg.Auth.SecretKey = "test-secret"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRequiresPostgresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.PostgresURL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "PostgreSQL URL is required") {
		t.Errorf("Validate = %v", err)
	}
}

func TestValidateRequiresSecretKey(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SecretKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "secret key is required") {
		t.Errorf("Validate = %v", err)
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Agent.MaxTurns = 0
	cfg.Embedding.Dimensions = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server port", "max_turns", "dimensions"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	os.Setenv("MNEMOS_SERVER_PORT", "9000")
	os.Setenv("MNEMOS_CORS_ORIGINS", "https://a.example, https://b.example")
	os.Setenv("MNEMOS_AGENT_TEMPERATURE", "0.5")
	defer func() {
		os.Unsetenv("MNEMOS_SERVER_PORT")
		os.Unsetenv("MNEMOS_CORS_ORIGINS")
		os.Unsetenv("MNEMOS_AGENT_TEMPERATURE")
	}()

	envInt("MNEMOS_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("MNEMOS_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	envFloat("MNEMOS_AGENT_TEMPERATURE", &cfg.Agent.Temperature)

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("origins = %+v", cfg.Server.CORSOrigins)
	}
	if cfg.Agent.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.Agent.Temperature)
	}
}

func TestEnvIgnoresInvalidValues(t *testing.T) {
	cfg := DefaultConfig()

	os.Setenv("MNEMOS_SERVER_PORT", "not-a-number")
	defer os.Unsetenv("MNEMOS_SERVER_PORT")

	envInt("MNEMOS_SERVER_PORT", &cfg.Server.Port)
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
}
