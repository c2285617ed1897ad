package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v3"
)

// setupMockContext creates a context with the mock as a transaction so
// BaseRepository.conn() returns the mock instead of a real pool.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}

func getTestDatabaseURL() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupTestDB connects to the integration test database and wipes test
// rows before and after the test.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := getTestDatabaseURL()
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanupTestData(t, pool)
	t.Cleanup(func() {
		cleanupTestData(t, pool)
		pool.Close()
	})

	return pool
}

func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	queries := []string{
		`DELETE FROM memory_relations WHERE namespace LIKE 'test-%'`,
		`DELETE FROM memories WHERE namespace LIKE 'test-%'`,
		`DELETE FROM messages WHERE conversation_id LIKE 'cv_test%'`,
		`DELETE FROM user_model_configs WHERE user_id LIKE 'usr_test%'`,
		`DELETE FROM conversations WHERE id LIKE 'cv_test%' OR user_id LIKE 'usr_test%'`,
		`DELETE FROM users WHERE id LIKE 'usr_test%'`,
	}
	for _, q := range queries {
		if _, err := pool.Exec(context.Background(), q); err != nil {
			t.Logf("cleanup query failed: %v", err)
		}
	}
}
