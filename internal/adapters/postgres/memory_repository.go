package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
)

type MemoryRepository struct {
	BaseRepository
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, mem *models.Memory, embedding []float32) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	metadata, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO memories (id, namespace, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.conn(ctx).Exec(ctx, query,
		mem.ID,
		mem.Namespace,
		mem.Content,
		pgvector.NewVector(embedding),
		metadata,
		mem.CreatedAt,
		mem.UpdatedAt,
	)
	return err
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, namespace, content, metadata, created_at, updated_at
		FROM memories
		WHERE id = $1`

	return r.scanMemory(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *MemoryRepository) ListByNamespace(ctx context.Context, namespace string, limit int) ([]*models.Memory, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, namespace, content, metadata, created_at, updated_at
		FROM memories
		WHERE namespace = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanMemories(rows, false)
}

// SearchByEmbedding returns the nearest memories by cosine distance.
// Score is the cosine similarity in [0, 1] for normalized embeddings.
func (r *MemoryRepository) SearchByEmbedding(ctx context.Context, namespace string, embedding []float32, limit int) ([]*models.Memory, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, namespace, content, metadata, created_at, updated_at,
			   1 - (embedding <=> $1) AS similarity
		FROM memories
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, query, pgvector.NewVector(embedding), namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanMemories(rows, true)
}

func (r *MemoryRepository) Update(ctx context.Context, id, content string, embedding []float32) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE memories
		SET content = $2, embedding = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query, id, content, pgvector.NewVector(embedding))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

func (r *MemoryRepository) DeleteByNamespace(ctx context.Context, namespace string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM memories WHERE namespace = $1`, namespace)
	return err
}

func (r *MemoryRepository) scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	var metadata []byte

	err := row.Scan(
		&m.ID,
		&m.Namespace,
		&m.Content,
		&metadata,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrMemoryNotFound
		}
		return nil, err
	}

	m.Metadata, err = unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemoryRepository) scanMemories(rows pgx.Rows, withScore bool) ([]*models.Memory, error) {
	memories := make([]*models.Memory, 0)

	for rows.Next() {
		var m models.Memory
		var metadata []byte

		dest := []any{&m.ID, &m.Namespace, &m.Content, &metadata, &m.CreatedAt, &m.UpdatedAt}
		if withScore {
			dest = append(dest, &m.Score)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		var err error
		m.Metadata, err = unmarshalMetadata(metadata)
		if err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}

	return memories, rows.Err()
}
