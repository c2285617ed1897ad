package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// ConversationHandler serves conversation CRUD. Deleting a conversation
// cascades into its messages and its local memory namespace.
type ConversationHandler struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	memories      ports.MemoryService
	ids           ports.IDGenerator
	tx            ports.TransactionManager
}

func NewConversationHandler(conversations ports.ConversationRepository, messages ports.MessageRepository, memories ports.MemoryService, ids ports.IDGenerator, tx ports.TransactionManager) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		memories:      memories,
		ids:           ids,
		tx:            tx,
	}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	conversations, err := h.conversations.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		dto.Error(w, "获取对话列表失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	total, err := h.conversations.CountByUser(r.Context(), userID)
	if err != nil {
		dto.Error(w, "获取对话列表失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	dto.Success(w, map[string]any{
		"conversations": conversations,
		"total":         total,
	}, "")
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[createConversationRequest](r, w)
	if !ok {
		return
	}

	conv := models.NewConversation(h.ids.GenerateConversationID(), middleware.GetUserID(r.Context()), strings.TrimSpace(req.Title))
	if err := h.conversations.Create(r.Context(), conv); err != nil {
		dto.Error(w, "创建对话失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, conv, "对话创建成功")
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}
	dto.Success(w, conv, "")
}

type updateConversationRequest struct {
	Title string `json:"title"`
}

func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}

	req, ok := decodeJSON[updateConversationRequest](r, w)
	if !ok {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		dto.Error(w, "对话标题不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	conv.Rename(title)
	if err := h.conversations.Update(r.Context(), conv); err != nil {
		dto.Error(w, "更新对话失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, conv, "对话更新成功")
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.deleteOne(r.Context(), conv); err != nil {
		dto.Error(w, "删除对话失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, nil, "对话删除成功")
}

type batchDeleteRequest struct {
	ConversationIDs []string `json:"conversation_ids"`
}

// BatchDelete removes several conversations at once. Foreign or missing
// ids are skipped; the response reports how many were actually removed.
func (h *ConversationHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[batchDeleteRequest](r, w)
	if !ok {
		return
	}
	if len(req.ConversationIDs) == 0 {
		dto.Error(w, "缺少必需字段：conversation_ids", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	deleted := 0
	for _, id := range req.ConversationIDs {
		conv, err := h.conversations.GetByID(r.Context(), id)
		if err != nil || conv.UserID != userID {
			continue
		}
		if err := h.deleteOne(r.Context(), conv); err != nil {
			log.Printf("[conversations] batch delete failed: id=%s, error=%v", id, err)
			continue
		}
		deleted++
	}

	dto.Success(w, map[string]any{"deleted": deleted}, "批量删除完成")
}

func (h *ConversationHandler) deleteOne(ctx context.Context, conv *models.Conversation) error {
	err := h.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := h.messages.DeleteByConversation(txCtx, conv.ID); err != nil {
			return err
		}
		return h.conversations.Delete(txCtx, conv.ID)
	})
	if err != nil {
		return err
	}
	// Local memories are scoped to the conversation and must not outlive
	// it. Errors here are logged, not surfaced; the conversation is gone.
	if err := h.memories.DeleteConversationMemories(ctx, conv.UserID, conv.ID, nil); err != nil {
		log.Printf("[conversations] local memory cleanup failed: id=%s, error=%v", conv.ID, err)
	}
	return nil
}

// owned loads the conversation from the URL and verifies ownership. A
// foreign conversation reads as missing.
func (h *ConversationHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Conversation, bool) {
	id, ok := urlParam(r, w, "conversationID")
	if !ok {
		return nil, false
	}

	conv, err := h.conversations.GetByID(r.Context(), id)
	if err != nil || conv.UserID != middleware.GetUserID(r.Context()) {
		dto.Error(w, "对话不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		return nil, false
	}
	return conv, true
}
