package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
)

type MessageRepository struct {
	BaseRepository
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO messages (id, conversation_id, role, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.conn(ctx).Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, role, content, created_at, updated_at
		FROM messages
		WHERE id = $1`

	return r.scanMessage(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, role, content, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanMessages(rows)
}

// ListRecent returns the most recent messages ordered oldest to newest,
// excluding the message with excludeID. Used to build agent history after
// the current user message has already been persisted.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID string, limit int, excludeID string) ([]*models.Message, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, role, content, created_at, updated_at
		FROM (
			SELECT id, conversation_id, role, content, created_at, updated_at
			FROM messages
			WHERE conversation_id = $1 AND id != $3
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, conversationID, limit, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanMessages(rows)
}

func (r *MessageRepository) Update(ctx context.Context, msg *models.Message) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE messages
		SET content = $2, updated_at = $3
		WHERE id = $1`

	_, err := r.conn(ctx).Exec(ctx, query, msg.ID, msg.Content, msg.UpdatedAt)
	return err
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	return err
}

func (r *MessageRepository) scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Role,
		&m.Content,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) scanMessages(rows pgx.Rows) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)

	for rows.Next() {
		var m models.Message
		err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Role,
			&m.Content,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}
