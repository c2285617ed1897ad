package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
)

type ModelConfigRepository struct {
	BaseRepository
}

func NewModelConfigRepository(pool *pgxpool.Pool) *ModelConfigRepository {
	return &ModelConfigRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ModelConfigRepository) Create(ctx context.Context, cfg *models.ModelConfig) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO user_model_configs (
			id, user_id, provider, model_name, api_key, base_url, is_default, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.conn(ctx).Exec(ctx, query,
		cfg.ID,
		cfg.UserID,
		cfg.Provider,
		cfg.ModelName,
		cfg.APIKeyEncrypted,
		cfg.BaseURL,
		cfg.IsDefault,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrModelConfigExists
	}
	return err
}

func (r *ModelConfigRepository) GetByID(ctx context.Context, id string) (*models.ModelConfig, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, provider, model_name, api_key, base_url, is_default, created_at, updated_at
		FROM user_model_configs
		WHERE id = $1`

	return r.scanModelConfig(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *ModelConfigRepository) GetDefault(ctx context.Context, userID string) (*models.ModelConfig, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, provider, model_name, api_key, base_url, is_default, created_at, updated_at
		FROM user_model_configs
		WHERE user_id = $1 AND is_default = TRUE
		LIMIT 1`

	cfg, err := r.scanModelConfig(r.conn(ctx).QueryRow(ctx, query, userID))
	if err == domain.ErrModelConfigNotFound {
		return nil, domain.ErrNoModelConfig
	}
	return cfg, err
}

func (r *ModelConfigRepository) ListByUser(ctx context.Context, userID string) ([]*models.ModelConfig, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, provider, model_name, api_key, base_url, is_default, created_at, updated_at
		FROM user_model_configs
		WHERE user_id = $1
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]*models.ModelConfig, 0)
	for rows.Next() {
		cfg, err := r.scanModelConfigRow(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (r *ModelConfigRepository) Update(ctx context.Context, cfg *models.ModelConfig) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE user_model_configs
		SET provider = $2,
			model_name = $3,
			api_key = $4,
			base_url = $5,
			is_default = $6,
			updated_at = $7
		WHERE id = $1`

	_, err := r.conn(ctx).Exec(ctx, query,
		cfg.ID,
		cfg.Provider,
		cfg.ModelName,
		cfg.APIKeyEncrypted,
		cfg.BaseURL,
		cfg.IsDefault,
		cfg.UpdatedAt,
	)
	return err
}

// ClearDefault unsets the default flag on every config owned by the user.
// Callers flip the flag on the new default inside the same transaction.
func (r *ModelConfigRepository) ClearDefault(ctx context.Context, userID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE user_model_configs
		SET is_default = FALSE, updated_at = now()
		WHERE user_id = $1 AND is_default = TRUE`

	_, err := r.conn(ctx).Exec(ctx, query, userID)
	return err
}

func (r *ModelConfigRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_model_configs WHERE id = $1`, id)
	return err
}

func (r *ModelConfigRepository) scanModelConfig(row pgx.Row) (*models.ModelConfig, error) {
	var c models.ModelConfig
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Provider,
		&c.ModelName,
		&c.APIKeyEncrypted,
		&c.BaseURL,
		&c.IsDefault,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrModelConfigNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ModelConfigRepository) scanModelConfigRow(rows pgx.Rows) (*models.ModelConfig, error) {
	var c models.ModelConfig
	err := rows.Scan(
		&c.ID,
		&c.UserID,
		&c.Provider,
		&c.ModelName,
		&c.APIKeyEncrypted,
		&c.BaseURL,
		&c.IsDefault,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
