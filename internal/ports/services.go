package ports

import (
	"context"

	"github.com/mnemos/mnemos/internal/domain/models"
)

// EmbeddingResult contains an embedding vector and its metadata
type EmbeddingResult struct {
	Embedding  []float32
	Model      string
	Dimensions int
}

// EmbeddingService generates vector embeddings for text
type EmbeddingService interface {
	Embed(ctx context.Context, text string) (*EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([]*EmbeddingResult, error)
	GetDimensions() int
}

// StoreMessage is one chat-shaped input handed to the memory store for
// fact extraction.
type StoreMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryStore abstracts the vector+graph memory engine behind a minimal
// capability set keyed by namespace. Implementations never retry; errors
// surface to the memory manager.
type MemoryStore interface {
	Add(ctx context.Context, messages []StoreMessage, namespace string, metadata map[string]any) (*models.MemoryAddResult, error)
	Search(ctx context.Context, query, namespace string, limit int) (*models.MemorySearchResult, error)
	GetAll(ctx context.Context, namespace string, limit int) (*models.MemorySearchResult, error)
	Update(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, namespace string) error
}

// MemoryService is the dual-scope routing layer over the memory store.
// Scope is "local" or "global"; local memories live in a per-conversation
// namespace, global ones in the user's namespace.
type MemoryService interface {
	AddMemory(ctx context.Context, content, userID, conversationID, scope string, metadata map[string]any, settings *models.LLMSettings) (*models.MemoryAddResult, error)
	SearchMemories(ctx context.Context, query, userID, conversationID, scope string, limit int, settings *models.LLMSettings) (*models.MemorySearchResult, error)
	GetMemories(ctx context.Context, userID, conversationID string, limit int, settings *models.LLMSettings) (*models.MemorySearchResult, error)
	UpdateMemory(ctx context.Context, memoryID, content string, settings *models.LLMSettings) error
	DeleteMemory(ctx context.Context, memoryID string, settings *models.LLMSettings) error
	// DeleteConversationMemories drops the whole local namespace of a
	// conversation, called when the conversation itself is deleted.
	DeleteConversationMemories(ctx context.Context, userID, conversationID string, settings *models.LLMSettings) error
	// WarmUp forces adapter construction so the first real request pays no
	// cold-start cost.
	WarmUp(settings *models.LLMSettings)
}
