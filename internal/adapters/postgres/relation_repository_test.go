package postgres

import (
	"testing"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/mnemos/mnemos/internal/domain/models"
)

func TestRelationRepository_UpsertReplacesDestination(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &RelationRepository{BaseRepository: BaseRepository{pool: nil}}
	rel := models.Relation{Source: "用户", Relationship: "居住地", Destination: "上海"}

	mock.ExpectExec("ON CONFLICT").
		WithArgs("usr_1", rel.Source, rel.Relationship, rel.Destination, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Upsert(ctx, "usr_1", rel, "mem_2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRelationRepository_ListByEntities(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &RelationRepository{BaseRepository: BaseRepository{pool: nil}}

	rows := pgxmock.NewRows([]string{"source", "relationship", "destination"}).
		AddRow("用户", "居住地", "北京").
		AddRow("用户", "职业", "工程师")
	mock.ExpectQuery("FROM memory_relations").
		WithArgs("usr_1", []string{"用户", "北京"}, 15).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	relations, err := repo.ListByEntities(ctx, "usr_1", []string{"用户", "北京"}, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(relations) != 2 {
		t.Fatalf("len = %d, want 2", len(relations))
	}
	if got := relations[0].Render(); got != "用户 --[居住地]--> 北京" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRelationRepository_DeleteByMemoryID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &RelationRepository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectExec("DELETE FROM memory_relations").
		WithArgs("mem_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	ctx := setupMockContext(mock)
	if err := repo.DeleteByMemoryID(ctx, "mem_1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
