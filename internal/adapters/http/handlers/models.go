package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/ports"
)

// ConnectionTester probes a model configuration with a minimal request.
type ConnectionTester func(ctx context.Context, settings *models.LLMSettings) error

// DefaultConnectionTester sends one short completion to the configured
// endpoint.
func DefaultConnectionTester(ctx context.Context, settings *models.LLMSettings) error {
	client := llm.NewClient(settings.BaseURL, settings.APIKey, settings.ModelName, 16, 0)
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := client.Chat(ctx, []llm.ChatMessage{{Role: "user", Content: "ping"}})
	return err
}

// ModelConfigHandler manages per-user LLM provider configurations.
type ModelConfigHandler struct {
	configs  ports.ModelConfigRepository
	memories ports.MemoryService
	box      *secrets.Box
	ids      ports.IDGenerator
	tester   ConnectionTester
}

func NewModelConfigHandler(configs ports.ModelConfigRepository, memories ports.MemoryService, box *secrets.Box, ids ports.IDGenerator, tester ConnectionTester) *ModelConfigHandler {
	if tester == nil {
		tester = DefaultConnectionTester
	}
	return &ModelConfigHandler{
		configs:  configs,
		memories: memories,
		box:      box,
		ids:      ids,
		tester:   tester,
	}
}

func (h *ModelConfigHandler) Providers(w http.ResponseWriter, r *http.Request) {
	dto.Success(w, map[string]any{"providers": models.Providers}, "")
}

func (h *ModelConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		dto.Error(w, "获取模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, map[string]any{"configs": configs}, "")
}

func (h *ModelConfigHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.GetDefault(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if err == domain.ErrNoModelConfig {
			dto.Error(w, "未设置默认模型配置", "NOT_FOUND", http.StatusNotFound)
			return
		}
		dto.Error(w, "获取默认模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, cfg, "")
}

type createModelConfigRequest struct {
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	IsDefault bool   `json:"is_default"`
}

func (h *ModelConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[createModelConfigRequest](r, w)
	if !ok {
		return
	}

	provider, ok := h.validateProvider(w, req.Provider, req.ModelName, req.APIKey)
	if !ok {
		return
	}

	encrypted, err := h.box.Encrypt(req.APIKey)
	if err != nil {
		dto.Error(w, "创建模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = provider.BaseURL
	}

	userID := middleware.GetUserID(r.Context())
	if req.IsDefault {
		if err := h.configs.ClearDefault(r.Context(), userID); err != nil {
			dto.Error(w, "创建模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
	}

	cfg := models.NewModelConfig(h.ids.GenerateModelConfigID(), userID, req.Provider, req.ModelName, encrypted, baseURL, req.IsDefault)
	if err := h.configs.Create(r.Context(), cfg); err != nil {
		if err == domain.ErrModelConfigExists {
			dto.Error(w, "相同的模型配置已存在", "DUPLICATE_ERROR", http.StatusConflict)
			return
		}
		dto.Error(w, "创建模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	if cfg.IsDefault {
		go h.memories.WarmUp(&models.LLMSettings{
			Provider:  cfg.Provider,
			ModelName: cfg.ModelName,
			APIKey:    req.APIKey,
			BaseURL:   baseURL,
		})
	}

	dto.Success(w, map[string]any{"id": cfg.ID}, "模型配置创建成功")
}

type updateModelConfigRequest struct {
	ModelName *string `json:"model_name"`
	APIKey    *string `json:"api_key"`
	BaseURL   *string `json:"base_url"`
}

func (h *ModelConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.owned(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[updateModelConfigRequest](r, w)
	if !ok {
		return
	}

	if req.ModelName != nil {
		provider, found := models.Providers[cfg.Provider]
		if found && !provider.SupportsModel(*req.ModelName) {
			dto.Error(w, "该提供商不支持此模型", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		cfg.ModelName = *req.ModelName
	}
	if req.APIKey != nil && *req.APIKey != "" {
		encrypted, err := h.box.Encrypt(*req.APIKey)
		if err != nil {
			dto.Error(w, "更新模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		cfg.APIKeyEncrypted = encrypted
	}
	if req.BaseURL != nil {
		cfg.BaseURL = *req.BaseURL
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := h.configs.Update(r.Context(), cfg); err != nil {
		dto.Error(w, "更新模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, cfg, "模型配置更新成功")
}

func (h *ModelConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.configs.Delete(r.Context(), cfg.ID); err != nil {
		dto.Error(w, "删除模型配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, nil, "模型配置删除成功")
}

func (h *ModelConfigHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.configs.ClearDefault(r.Context(), cfg.UserID); err != nil {
		dto.Error(w, "设置默认配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	cfg.IsDefault = true
	cfg.UpdatedAt = time.Now().UTC()
	if err := h.configs.Update(r.Context(), cfg); err != nil {
		dto.Error(w, "设置默认配置失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, cfg, "默认配置设置成功")
}

// Test decrypts the stored key and probes the provider endpoint.
func (h *ModelConfigHandler) Test(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.owned(w, r)
	if !ok {
		return
	}

	apiKey, err := h.box.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		dto.Error(w, "API Key 解密失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if provider, found := models.Providers[cfg.Provider]; found {
			baseURL = provider.BaseURL
		}
	}

	settings := &models.LLMSettings{
		Provider:  cfg.Provider,
		ModelName: cfg.ModelName,
		APIKey:    apiKey,
		BaseURL:   baseURL,
	}
	if err := h.tester(r.Context(), settings); err != nil {
		dto.Success(w, map[string]any{"ok": false, "error": err.Error()}, "连接测试失败")
		return
	}
	dto.Success(w, map[string]any{"ok": true}, "连接测试成功")
}

func (h *ModelConfigHandler) validateProvider(w http.ResponseWriter, providerName, modelName, apiKey string) (models.Provider, bool) {
	provider, found := models.Providers[providerName]
	if !found {
		dto.Error(w, "不支持的模型提供商", "VALIDATION_ERROR", http.StatusBadRequest)
		return models.Provider{}, false
	}
	if modelName == "" {
		dto.Error(w, "模型名称不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return models.Provider{}, false
	}
	if !provider.SupportsModel(modelName) {
		dto.Error(w, "该提供商不支持此模型", "VALIDATION_ERROR", http.StatusBadRequest)
		return models.Provider{}, false
	}
	if apiKey == "" {
		dto.Error(w, "API Key 不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return models.Provider{}, false
	}
	return provider, true
}

func (h *ModelConfigHandler) owned(w http.ResponseWriter, r *http.Request) (*models.ModelConfig, bool) {
	id, ok := urlParam(r, w, "configID")
	if !ok {
		return nil, false
	}

	cfg, err := h.configs.GetByID(r.Context(), id)
	if err != nil || cfg.UserID != middleware.GetUserID(r.Context()) {
		dto.Error(w, "模型配置不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		return nil, false
	}
	return cfg, true
}
