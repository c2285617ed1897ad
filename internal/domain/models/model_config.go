package models

import (
	"time"
)

// ModelConfig stores one LLM provider configuration for a user. The API
// key is encrypted at rest; exactly one config per user is the default.
type ModelConfig struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Provider        string    `json:"provider"`
	ModelName       string    `json:"model_name"`
	APIKeyEncrypted string    `json:"-"`
	BaseURL         string    `json:"base_url"`
	IsDefault       bool      `json:"is_default"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewModelConfig(id, userID, provider, modelName, apiKeyEncrypted, baseURL string, isDefault bool) *ModelConfig {
	now := time.Now().UTC()
	return &ModelConfig{
		ID:              id,
		UserID:          userID,
		Provider:        provider,
		ModelName:       modelName,
		APIKeyEncrypted: apiKeyEncrypted,
		BaseURL:         baseURL,
		IsDefault:       isDefault,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Provider describes a supported OpenAI-compatible endpoint.
type Provider struct {
	Name    string   `json:"name"`
	BaseURL string   `json:"base_url"`
	Models  []string `json:"models"`
}

// Providers is the catalog of known providers. An empty Models list means
// any model name is accepted.
var Providers = map[string]Provider{
	"deepseek": {
		Name:    "DeepSeek",
		BaseURL: "https://api.deepseek.com/v1",
		Models:  []string{"deepseek-chat", "deepseek-coder"},
	},
	"qwen": {
		Name:    "通义千问 (Qwen)",
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Models:  []string{"qwen-turbo", "qwen-plus", "qwen-max"},
	},
	"kimi": {
		Name:    "Kimi (Moonshot)",
		BaseURL: "https://api.moonshot.cn/v1",
		Models:  []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
	},
	"openai": {
		Name:    "OpenAI (或兼容端点)",
		BaseURL: "https://api.openai.com/v1",
		Models:  []string{},
	},
}

// SupportsModel reports whether the provider accepts the given model name.
func (p Provider) SupportsModel(model string) bool {
	if len(p.Models) == 0 {
		return true
	}
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}
