package postgres

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
)

func TestModelConfigRepository_GetDefault(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ModelConfigRepository{BaseRepository: BaseRepository{pool: nil}}
	now := time.Now()

	rows := pgxmock.NewRows([]string{"id", "user_id", "provider", "model_name", "api_key", "base_url", "is_default", "created_at", "updated_at"}).
		AddRow("mc_1", "usr_1", "deepseek", "deepseek-chat", "encrypted", "https://api.deepseek.com/v1", true, now, now)
	mock.ExpectQuery("is_default = TRUE").
		WithArgs("usr_1").
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	cfg, err := repo.GetDefault(ctx, "usr_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "deepseek" || !cfg.IsDefault {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestModelConfigRepository_GetDefault_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ModelConfigRepository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectQuery("is_default = TRUE").
		WithArgs("usr_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "provider", "model_name", "api_key", "base_url", "is_default", "created_at", "updated_at"}))

	ctx := setupMockContext(mock)
	if _, err := repo.GetDefault(ctx, "usr_1"); err != domain.ErrNoModelConfig {
		t.Errorf("error = %v, want ErrNoModelConfig", err)
	}
}

func TestModelConfigRepository_ClearDefault(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ModelConfigRepository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectExec("UPDATE user_model_configs").
		WithArgs("usr_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	if err := repo.ClearDefault(ctx, "usr_1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestModelConfigRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ModelConfigRepository{BaseRepository: BaseRepository{pool: nil}}
	cfg := models.NewModelConfig("mc_1", "usr_1", "kimi", "moonshot-v1-8k", "encrypted", "", false)

	mock.ExpectExec("INSERT INTO user_model_configs").
		WithArgs(cfg.ID, cfg.UserID, cfg.Provider, cfg.ModelName, cfg.APIKeyEncrypted, cfg.BaseURL, cfg.IsDefault, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Create(ctx, cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
