// Package chat implements the message pipeline: persist the user turn,
// run the memory agent to completion, then replay the final text as a
// pseudo-stream. Real token streaming would interleave tool events with
// user-facing text, so the agent runs first and the reply is chunked
// afterwards.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mnemos/mnemos/internal/adapters/metrics"
	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/agent"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/ports"
)

const (
	historyLimit    = 20
	tokenChunkRunes = 10
)

// NoModelConfigReply is returned as the assistant text when the user has
// not configured a provider yet.
const NoModelConfigReply = "请先配置模型 API Key。"

// Event is one SSE frame of the streaming endpoint.
type Event struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

const (
	EventUserMessage = "user_message"
	EventToken       = "token"
	EventDone        = "done"
	EventError       = "error"
)

// ClientFactory builds an LLM client for the resolved settings.
type ClientFactory func(settings *models.LLMSettings) agent.LLMClient

type Pipeline struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	configs       ports.ModelConfigRepository
	memories      ports.MemoryService
	box           *secrets.Box
	ids           ports.IDGenerator
	clients       ClientFactory
	maxTurns      int
}

func NewPipeline(
	conversations ports.ConversationRepository,
	messages ports.MessageRepository,
	configs ports.ModelConfigRepository,
	memories ports.MemoryService,
	box *secrets.Box,
	ids ports.IDGenerator,
	clients ClientFactory,
	maxTurns int,
) *Pipeline {
	return &Pipeline{
		conversations: conversations,
		messages:      messages,
		configs:       configs,
		memories:      memories,
		box:           box,
		ids:           ids,
		clients:       clients,
		maxTurns:      maxTurns,
	}
}

// SendResult is the synchronous (non-streaming) response payload.
type SendResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
}

// Send runs one full exchange and returns both persisted messages.
func (p *Pipeline) Send(ctx context.Context, userID, conversationID, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	conv, err := p.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg, err := p.saveMessage(ctx, conversationID, models.MessageRoleUser, content)
	if err != nil {
		return nil, err
	}

	finalText, err := p.runAgent(ctx, userID, conv, userMsg)
	if err != nil {
		return nil, err
	}

	assistantMsg, err := p.saveMessage(ctx, conversationID, models.MessageRoleAssistant, finalText)
	if err != nil {
		return nil, err
	}

	if err := p.recordExchange(ctx, conv, content); err != nil {
		log.Printf("[chat] conversation update failed: id=%s, error=%v", conv.ID, err)
	}

	return &SendResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// Stream runs one exchange and emits SSE events on the returned channel.
// The channel is closed when the exchange finishes or fails. A client
// disconnect does not cancel the agent; results are persisted regardless.
func (p *Pipeline) Stream(ctx context.Context, userID, conversationID, content string) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		content := strings.TrimSpace(content)
		if content == "" {
			events <- Event{Type: EventError, Message: "消息内容不能为空", ErrorCode: "VALIDATION_ERROR"}
			return
		}

		conv, err := p.ownedConversation(ctx, userID, conversationID)
		if err != nil {
			events <- errorEvent(err)
			return
		}

		userMsg, err := p.saveMessage(ctx, conversationID, models.MessageRoleUser, content)
		if err != nil {
			events <- errorEvent(err)
			return
		}
		events <- Event{Type: EventUserMessage, MessageID: userMsg.ID, Content: userMsg.Content}

		finalText, err := p.runAgent(ctx, userID, conv, userMsg)
		if err != nil {
			events <- errorEvent(err)
			return
		}

		for _, chunk := range chunkRunes(finalText, tokenChunkRunes) {
			events <- Event{Type: EventToken, Content: chunk}
		}

		assistantMsg, err := p.saveMessage(ctx, conversationID, models.MessageRoleAssistant, finalText)
		if err != nil {
			events <- errorEvent(err)
			return
		}

		if err := p.recordExchange(ctx, conv, content); err != nil {
			log.Printf("[chat] conversation update failed: id=%s, error=%v", conv.ID, err)
		}

		events <- Event{Type: EventDone, MessageID: assistantMsg.ID}
	}()

	return events
}

func (p *Pipeline) ownedConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := p.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (p *Pipeline) saveMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) (*models.Message, error) {
	msg := models.NewMessage(p.ids.GenerateMessageID(), conversationID, role, content)
	if err := p.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.Inc()
	return msg, nil
}

// runAgent resolves the user's model settings and drives the tool loop.
// A missing model config is not an error here; the reply tells the user
// to configure a key.
func (p *Pipeline) runAgent(ctx context.Context, userID string, conv *models.Conversation, userMsg *models.Message) (string, error) {
	settings, err := p.resolveSettings(ctx, userID)
	if err != nil {
		if err == domain.ErrNoModelConfig {
			return NoModelConfigReply, nil
		}
		return "", err
	}

	history, err := p.loadHistory(ctx, conv.ID, userMsg.ID)
	if err != nil {
		return "", err
	}

	client := p.clients(settings)
	executor := agent.NewExecutor(p.memories, client, userID, conv.ID, settings)
	orchestrator := agent.NewOrchestrator(client, p.maxTurns)
	return orchestrator.Run(ctx, executor, history, userMsg.Content), nil
}

func (p *Pipeline) resolveSettings(ctx context.Context, userID string) (*models.LLMSettings, error) {
	cfg, err := p.configs.GetDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	apiKey, err := p.box.Decrypt(cfg.APIKeyEncrypted)
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

func (p *Pipeline) loadHistory(ctx context.Context, conversationID, excludeID string) ([]llm.ChatMessage, error) {
	recent, err := p.messages.ListRecent(ctx, conversationID, historyLimit, excludeID)
	if err != nil {
		return nil, err
	}

	history := make([]llm.ChatMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return history, nil
}

func (p *Pipeline) recordExchange(ctx context.Context, conv *models.Conversation, userMessage string) error {
	conv.RecordExchange()
	if conv.NeedsTitle() {
		conv.DeriveTitle(userMessage)
	}
	return p.conversations.Update(ctx, conv)
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func errorEvent(err error) Event {
	switch err {
	case domain.ErrConversationNotFound, domain.ErrMessageNotFound:
		return Event{Type: EventError, Message: err.Error(), ErrorCode: "NOT_FOUND"}
	case domain.ErrNoModelConfig:
		return Event{Type: EventError, Message: err.Error(), ErrorCode: "NO_MODEL_CONFIG"}
	case domain.ErrEmptyContent:
		return Event{Type: EventError, Message: err.Error(), ErrorCode: "VALIDATION_ERROR"}
	default:
		return Event{Type: EventError, Message: "智能体处理失败", ErrorCode: "AGENT_ERROR"}
	}
}
