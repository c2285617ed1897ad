package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// MemoryHandler exposes the memory store for direct inspection and
// manual curation. Normal memory writes happen through the agent; these
// endpoints exist for the memory management UI.
type MemoryHandler struct {
	memories      ports.MemoryService
	conversations ports.ConversationRepository
	settings      *settingsResolver
}

func NewMemoryHandler(memories ports.MemoryService, conversations ports.ConversationRepository, configs ports.ModelConfigRepository, box *secrets.Box) *MemoryHandler {
	return &MemoryHandler{
		memories:      memories,
		conversations: conversations,
		settings:      &settingsResolver{configs: configs, box: box},
	}
}

type memoryView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type paginationView struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// List returns the user's global memories plus, when a conversation_id
// query parameter is present, that conversation's local ones. Store
// failures degrade to an empty listing so the UI stays usable.
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit := parseIntQuery(r, "limit", 100)
	conversationID := r.URL.Query().Get("conversation_id")

	settings, err := h.settings.resolve(r.Context(), userID)
	if err != nil {
		dto.Error(w, "获取记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	result, err := h.memories.GetMemories(r.Context(), userID, conversationID, limit, settings)
	if err != nil {
		log.Printf("[memories] list failed: user=%s, error=%v", userID, err)
		result = &models.MemorySearchResult{}
	}

	memories := make([]memoryView, 0, len(result.Results))
	for _, m := range result.Results {
		memories = append(memories, toMemoryView(m))
	}
	relations := result.Relations
	if relations == nil {
		relations = []models.Relation{}
	}

	dto.Success(w, map[string]any{
		"memories":  memories,
		"relations": relations,
		"pagination": paginationView{
			Page:       1,
			Limit:      limit,
			Total:      len(memories),
			TotalPages: 1,
		},
	}, "")
}

type createMemoryRequest struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	ConversationID string   `json:"conversation_id"`
}

// Create ingests a manually written memory. The content still passes
// through fact extraction, so the stored form may differ from the input.
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[createMemoryRequest](r, w)
	if !ok {
		return
	}
	if req.Title == "" || req.Content == "" {
		dto.Error(w, "标题和内容不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	settings, err := h.settings.resolve(r.Context(), userID)
	if err != nil {
		dto.Error(w, "创建记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	scope := models.MemoryScopeGlobal
	if req.ConversationID != "" {
		scope = models.MemoryScopeLocal
	}
	metadata := map[string]any{"title": req.Title, "source": "manual"}
	if req.Category != "" {
		metadata["category"] = req.Category
	}
	if len(req.Tags) > 0 {
		metadata["tags"] = req.Tags
	}

	result, err := h.memories.AddMemory(r.Context(), req.Content, userID, req.ConversationID, scope, metadata, settings)
	if err != nil {
		dto.Error(w, "创建记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, result, "记忆创建成功")
}

type updateMemoryRequest struct {
	Content string `json:"content"`
}

func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	memoryID, ok := urlParam(r, w, "memoryID")
	if !ok {
		return
	}
	req, ok := decodeJSON[updateMemoryRequest](r, w)
	if !ok {
		return
	}
	if req.Content == "" {
		dto.Error(w, "内容不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	settings, err := h.settings.resolve(r.Context(), userID)
	if err != nil {
		dto.Error(w, "更新记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	if err := h.memories.UpdateMemory(r.Context(), memoryID, req.Content, settings); err != nil {
		dto.Error(w, "记忆不存在", "NOT_FOUND", http.StatusNotFound)
		return
	}
	dto.Success(w, nil, "记忆更新成功")
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	memoryID, ok := urlParam(r, w, "memoryID")
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	settings, err := h.settings.resolve(r.Context(), userID)
	if err != nil {
		dto.Error(w, "删除记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	if err := h.memories.DeleteMemory(r.Context(), memoryID, settings); err != nil {
		dto.Error(w, "记忆不存在", "NOT_FOUND", http.StatusNotFound)
		return
	}
	dto.Success(w, nil, "记忆删除成功")
}

type searchMemoriesRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit"`
}

// Search runs a scoped semantic search over the conversation's local
// namespace.
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[searchMemoriesRequest](r, w)
	if !ok {
		return
	}
	if req.Query == "" || req.ConversationID == "" {
		dto.Error(w, "查询内容和对话ID不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	conv, err := h.conversations.GetByID(r.Context(), req.ConversationID)
	if err != nil || conv.UserID != userID {
		dto.Error(w, "对话不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		return
	}

	settings, err := h.settings.resolve(r.Context(), userID)
	if err != nil {
		dto.Error(w, "搜索记忆失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	result, err := h.memories.SearchMemories(r.Context(), req.Query, userID, req.ConversationID, models.MemoryScopeLocal, limit, settings)
	if err != nil {
		log.Printf("[memories] search failed: user=%s, error=%v", userID, err)
		result = &models.MemorySearchResult{}
	}

	memories := make([]memoryView, 0, len(result.Results))
	for _, m := range result.Results {
		memories = append(memories, toMemoryView(m))
	}
	dto.Success(w, map[string]any{"memories": memories}, "")
}

func toMemoryView(m *models.Memory) memoryView {
	v := memoryView{
		ID:        m.ID,
		Content:   m.Content,
		Category:  "自动生成",
		Tags:      []string{},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if title, ok := m.Metadata["title"].(string); ok && title != "" {
		v.Title = title
	} else {
		v.Title = truncateRunes(m.Content, 50)
	}
	if category, ok := m.Metadata["category"].(string); ok && category != "" {
		v.Category = category
	}
	if tags, ok := m.Metadata["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				v.Tags = append(v.Tags, s)
			}
		}
	}
	return v
}
