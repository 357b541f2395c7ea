package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

func newChunkStoreWithMock(t *testing.T) (*ChunkStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkStore{db: db, dims: 3}, mock, func() { _ = db.Close() }
}

func chunkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "variant", "country", "content", "metadata"}).
		AddRow(int64(7), "outdoor", "", "9.12 Players must not obstruct.", []byte(`{"rule":"9.12","page":24}`)).
		AddRow(int64(3), "outdoor", "", "9.13 Players must not tackle unfairly.", []byte(`{"rule":"9.13"}`))
}

func TestVectorSearchScopedAndOrderedByDistance(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectQuery("ORDER BY embedding <=>").
		WithArgs("outdoor", "", "[0.1,0.2,0.3]", 10).
		WillReturnRows(chunkRows())

	chunks, err := store.VectorSearch(context.Background(), domain.Scope{Variant: "outdoor"}, []float32{0.1, 0.2, 0.3}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != 7 || chunks[0].Metadata.Rule != "9.12" || chunks[0].Metadata.Page != 24 {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordSearchNormalizesQuery(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectQuery("websearch_to_tsquery").
		WithArgs("outdoor", "GER", "what is rule 9.12", 5).
		WillReturnRows(chunkRows())

	_, err := store.KeywordSearch(context.Background(), domain.Scope{Variant: "outdoor", Country: "GER"}, "What is rule 9.12?", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordSearchEmptyAfterNormalization(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	chunks, err := store.KeywordSearch(context.Background(), domain.Scope{Variant: "outdoor"}, "?!...", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no query issued, got %v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceScopeDeletesAndInsertsInOneTransaction(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("indoor", "GER").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM rule_chunks").
		WithArgs("indoor", "GER").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectPrepare("INSERT INTO rule_chunks")
	mock.ExpectExec("INSERT INTO rule_chunks").
		WithArgs("indoor", "GER", "1.1 The pitch is 44 metres long.", "[0.5]", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	scope := domain.Scope{Variant: "indoor", Country: "GER"}
	err := store.ReplaceScope(context.Background(), scope, []domain.Chunk{
		{
			Scope:     scope,
			Text:      "1.1 The pitch is 44 metres long.",
			Metadata:  domain.ChunkMetadata{Rule: "1.1"},
			Embedding: []float32{0.5},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceScopeRollsBackOnInsertFailure(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("indoor", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM rule_chunks").
		WithArgs("indoor", "").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPrepare("INSERT INTO rule_chunks")
	mock.ExpectExec("INSERT INTO rule_chunks").
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	scope := domain.Scope{Variant: "indoor"}
	err := store.ReplaceScope(context.Background(), scope, []domain.Chunk{
		{Scope: scope, Text: "x", Embedding: []float32{0.5}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceScopeLocksScopeBeforeDeleting(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("outdoor", "ARG").
		WillReturnError(errors.New("canceling statement due to user request"))
	mock.ExpectRollback()

	scope := domain.Scope{Variant: "outdoor", Country: "ARG"}
	err := store.ReplaceScope(context.Background(), scope, []domain.Chunk{
		{Scope: scope, Text: "x", Embedding: []float32{0.5}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountByScope(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("outdoor", "ARG").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.CountByScope(context.Background(), domain.Scope{Variant: "outdoor", Country: "ARG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestListJurisdictions(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT DISTINCT country").
		WillReturnRows(sqlmock.NewRows([]string{"country"}).AddRow("ARG").AddRow("GER"))

	codes, err := store.ListJurisdictions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 2 || codes[0] != "ARG" || codes[1] != "GER" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestFormatVector(t *testing.T) {
	got := formatVector([]float32{0.25, -1, 3})
	if got != "[0.25,-1,3]" {
		t.Fatalf("formatVector = %q", got)
	}
	if got := formatVector(nil); got != "[]" {
		t.Fatalf("formatVector(nil) = %q", got)
	}
}
