package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestExtractUp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markers", "CREATE TABLE a (x INT);", "CREATE TABLE a (x INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (x INT);", "\nCREATE TABLE a (x INT);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x INT);\n"},
	}
	for _, tc := range tests {
		if got := ExtractUp(tc.in); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestApplySQLiteMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"m/001_a.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE a (x INTEGER);\n-- +migrate Down\nDROP TABLE a;")},
		"m/002_b.sql": {Data: []byte("INSERT INTO a (x) VALUES (1);")},
		"m/README":    {Data: []byte("ignored")},
	}
	for i := 0; i < 2; i++ {
		if err := ApplySQLiteMigrations(ctx, sqlDB, fsys, "m"); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	var rows, applied int
	if err := sqlDB.QueryRow("SELECT COUNT(1) FROM a").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := sqlDB.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if rows != 1 || applied != 2 {
		t.Fatalf("rows=%d applied=%d, want 1 and 2", rows, applied)
	}
}
