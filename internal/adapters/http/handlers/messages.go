package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/application/chat"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// MessageHandler serves message listing, the send endpoints and message
// editing.
type MessageHandler struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	pipeline      *chat.Pipeline
	tx            ports.TransactionManager
}

func NewMessageHandler(conversations ports.ConversationRepository, messages ports.MessageRepository, pipeline *chat.Pipeline, tx ports.TransactionManager) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		messages:      messages,
		pipeline:      pipeline,
		tx:            tx,
	}
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}

	limit := parseIntQuery(r, "limit", 100)
	offset := parseIntQuery(r, "offset", 0)

	messages, err := h.messages.ListByConversation(r.Context(), conv.ID, limit, offset)
	if err != nil {
		dto.Error(w, "获取消息失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, map[string]any{"messages": messages}, "")
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Send runs one synchronous exchange and returns both messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := urlParam(r, w, "conversationID")
	if !ok {
		return
	}
	req, ok := decodeJSON[sendMessageRequest](r, w)
	if !ok {
		return
	}

	result, err := h.pipeline.Send(r.Context(), middleware.GetUserID(r.Context()), conversationID, req.Content)
	if err != nil {
		switch err {
		case domain.ErrEmptyContent:
			dto.Error(w, "消息内容不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		case domain.ErrConversationNotFound:
			dto.Error(w, "对话不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		default:
			dto.Error(w, "消息发送失败", "AGENT_ERROR", http.StatusInternalServerError)
		}
		return
	}
	dto.Success(w, result, "消息发送成功")
}

// Stream runs one exchange and emits SSE frames. Each frame carries the
// event name plus a JSON payload that repeats it in a type field.
func (h *MessageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := urlParam(r, w, "conversationID")
	if !ok {
		return
	}
	req, ok := decodeJSON[sendMessageRequest](r, w)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		dto.Error(w, "当前连接不支持流式传输", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events := h.pipeline.Stream(r.Context(), middleware.GetUserID(r.Context()), conversationID, req.Content)
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	}
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

// Update edits a user message in place. Assistant and tool messages are
// read-only.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}
	messageID, ok := urlParam(r, w, "messageID")
	if !ok {
		return
	}
	req, ok := decodeJSON[updateMessageRequest](r, w)
	if !ok {
		return
	}

	msg, err := h.messages.GetByID(r.Context(), messageID)
	if err != nil || msg.ConversationID != conv.ID {
		dto.Error(w, "消息不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		return
	}

	if err := msg.Edit(req.Content); err != nil {
		switch err {
		case domain.ErrMessageNotEditable:
			dto.Error(w, "只能编辑用户消息", "FORBIDDEN", http.StatusForbidden)
		case domain.ErrEmptyContent:
			dto.Error(w, "消息内容不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		default:
			dto.Error(w, "更新消息失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		}
		return
	}

	if err := h.messages.Update(r.Context(), msg); err != nil {
		dto.Error(w, "更新消息失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, msg, "消息更新成功")
}

// Delete removes a message and keeps the conversation's message count in
// step, atomically.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.owned(w, r)
	if !ok {
		return
	}
	messageID, ok := urlParam(r, w, "messageID")
	if !ok {
		return
	}

	msg, err := h.messages.GetByID(r.Context(), messageID)
	if err != nil || msg.ConversationID != conv.ID {
		dto.Error(w, "消息不存在或无权限", "NOT_FOUND", http.StatusNotFound)
		return
	}

	err = h.tx.WithTransaction(r.Context(), func(txCtx context.Context) error {
		if err := h.messages.Delete(txCtx, msg.ID); err != nil {
			return err
		}
		conv.DropMessage()
		return h.conversations.Update(txCtx, conv)
	})
	if err != nil {
		dto.Error(w, "删除消息失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, nil, "消息删除成功")
}

func (h *MessageHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Conversation, bool) {
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
