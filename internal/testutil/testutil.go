package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/flitsinc/go-bridge/internal/exchangelog"
)

func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := exchangelog.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
