package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemos/mnemos/internal/domain/models"
)

type RelationRepository struct {
	BaseRepository
}

func NewRelationRepository(pool *pgxpool.Pool) *RelationRepository {
	return &RelationRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

// Upsert writes a graph edge keyed on (namespace, source, relationship).
// A later statement about the same attribute replaces the destination,
// which is how corrections and resets propagate into the graph.
func (r *RelationRepository) Upsert(ctx context.Context, namespace string, rel models.Relation, memoryID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO memory_relations (namespace, source, relationship, destination, memory_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, source, relationship)
		DO UPDATE SET destination = EXCLUDED.destination,
					  memory_id = EXCLUDED.memory_id,
					  updated_at = now()`

	_, err := r.conn(ctx).Exec(ctx, query,
		namespace,
		rel.Source,
		rel.Relationship,
		rel.Destination,
		nullString(memoryID),
	)
	return err
}

func (r *RelationRepository) ListByNamespace(ctx context.Context, namespace string, limit int) ([]models.Relation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT source, relationship, destination
		FROM memory_relations
		WHERE namespace = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRelations(rows)
}

// ListByEntities returns edges touching any of the given entities as
// source or destination.
func (r *RelationRepository) ListByEntities(ctx context.Context, namespace string, entities []string, limit int) ([]models.Relation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT source, relationship, destination
		FROM memory_relations
		WHERE namespace = $1 AND (source = ANY($2) OR destination = ANY($2))
		ORDER BY updated_at DESC
		LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, query, namespace, entities, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRelations(rows)
}

func (r *RelationRepository) DeleteByMemoryID(ctx context.Context, memoryID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM memory_relations WHERE memory_id = $1`, memoryID)
	return err
}

func (r *RelationRepository) DeleteByNamespace(ctx context.Context, namespace string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM memory_relations WHERE namespace = $1`, namespace)
	return err
}

func (r *RelationRepository) scanRelations(rows pgx.Rows) ([]models.Relation, error) {
	relations := make([]models.Relation, 0)

	for rows.Next() {
		var rel models.Relation
		if err := rows.Scan(&rel.Source, &rel.Relationship, &rel.Destination); err != nil {
			return nil, err
		}
		relations = append(relations, rel)
	}

	return relations, rows.Err()
}
