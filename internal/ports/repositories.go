package ports

import (
	"context"

	"github.com/mnemos/mnemos/internal/domain/models"
)

// UserRepository defines operations for user account persistence
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Update(ctx context.Context, user *models.User) error
}

// ConversationRepository defines operations for conversation persistence
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, conv *models.Conversation) error
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines operations for message persistence
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	// ListRecent returns up to limit messages ordered oldest to newest,
	// excluding the message with the given ID.
	ListRecent(ctx context.Context, conversationID string, limit int, excludeID string) ([]*models.Message, error)
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// ModelConfigRepository defines operations for per-user LLM provider configs
type ModelConfigRepository interface {
	Create(ctx context.Context, cfg *models.ModelConfig) error
	GetByID(ctx context.Context, id string) (*models.ModelConfig, error)
	GetDefault(ctx context.Context, userID string) (*models.ModelConfig, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ModelConfig, error)
	Update(ctx context.Context, cfg *models.ModelConfig) error
	// ClearDefault unsets is_default on every config of the user. Callers
	// set the new default afterwards inside the same transaction.
	ClearDefault(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is the vector half of the memory store
type MemoryRepository interface {
	Create(ctx context.Context, mem *models.Memory, embedding []float32) error
	GetByID(ctx context.Context, id string) (*models.Memory, error)
	ListByNamespace(ctx context.Context, namespace string, limit int) ([]*models.Memory, error)
	// SearchByEmbedding returns memories in the namespace ordered by cosine
	// similarity to the query embedding, with Score populated.
	SearchByEmbedding(ctx context.Context, namespace string, embedding []float32, limit int) ([]*models.Memory, error)
	Update(ctx context.Context, id, content string, embedding []float32) error
	Delete(ctx context.Context, id string) error
	DeleteByNamespace(ctx context.Context, namespace string) error
}

// RelationRepository is the graph half of the memory store
type RelationRepository interface {
	// Upsert inserts the edge or, when (namespace, source, relationship)
	// already exists, replaces its destination and provenance.
	Upsert(ctx context.Context, namespace string, rel models.Relation, memoryID string) error
	ListByNamespace(ctx context.Context, namespace string, limit int) ([]models.Relation, error)
	// ListByEntities returns edges touching any of the given entities as
	// source or destination.
	ListByEntities(ctx context.Context, namespace string, entities []string, limit int) ([]models.Relation, error)
	DeleteByMemoryID(ctx context.Context, memoryID string) error
	DeleteByNamespace(ctx context.Context, namespace string) error
}

// TransactionManager provides database transaction support
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator generates unique prefixed identifiers
type IDGenerator interface {
	GenerateUserID() string
	GenerateConversationID() string
	GenerateMessageID() string
	GenerateMemoryID() string
	GenerateModelConfigID() string
}
