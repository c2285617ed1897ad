package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
)

type ConversationRepository struct {
	BaseRepository
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO conversations (
			id, user_id, title, message_count, last_message_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.conn(ctx).Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.MessageCount,
		nullTime(conv.LastMessageAt),
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, title, message_count, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	return r.scanConversation(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, title, message_count, last_message_at, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanConversations(rows)
}

func (r *ConversationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *ConversationRepository) Update(ctx context.Context, conv *models.Conversation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversations
		SET title = $2,
			message_count = $3,
			last_message_at = $4,
			updated_at = $5
		WHERE id = $1`

	_, err := r.conn(ctx).Exec(ctx, query,
		conv.ID,
		conv.Title,
		conv.MessageCount,
		nullTime(conv.LastMessageAt),
		conv.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func (r *ConversationRepository) scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	var lastMessageAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.MessageCount,
		&lastMessageAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}

	c.LastMessageAt = getTimePtr(lastMessageAt)
	return &c, nil
}

func (r *ConversationRepository) scanConversations(rows pgx.Rows) ([]*models.Conversation, error) {
	conversations := make([]*models.Conversation, 0)

	for rows.Next() {
		var c models.Conversation
		var lastMessageAt sql.NullTime

		err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Title,
			&c.MessageCount,
			&lastMessageAt,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		c.LastMessageAt = getTimePtr(lastMessageAt)
		conversations = append(conversations, &c)
	}

	return conversations, rows.Err()
}
