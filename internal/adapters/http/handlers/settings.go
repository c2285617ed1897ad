package handlers

import (
	"context"
	"fmt"

	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// settingsResolver turns a user's default model config into decrypted
// LLM settings. Users without a config fall back to nil settings, which
// the memory service maps to the server default store.
type settingsResolver struct {
	configs ports.ModelConfigRepository
	box     *secrets.Box
}

func (sr *settingsResolver) resolve(ctx context.Context, userID string) (*models.LLMSettings, error) {
	cfg, err := sr.configs.GetDefault(ctx, userID)
	if err != nil {
		if err == domain.ErrNoModelConfig {
			return nil, nil
		}
		return nil, err
	}

	apiKey, err := sr.box.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if provider, ok := models.Providers[cfg.Provider]; ok {
			baseURL = provider.BaseURL
		}
	}

	return &models.LLMSettings{
		Provider:  cfg.Provider,
		ModelName: cfg.ModelName,
		APIKey:    apiKey,
		BaseURL:   baseURL,
	}, nil
}
