package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/askdoc/internal/repo"
)

func OpenTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "askdoc_test.db")
	db, err := repo.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db, func() {
		_ = db.Close()
	}
}
