package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"lifesim/internal/apperr"
	"lifesim/internal/db"
	"lifesim/internal/store/migrations"
)

type SQLite struct {
	// SQLite allows one writer; mu keeps Update's read and write together.
	mu    sync.Mutex
	sqlDB *sql.DB
}

// OpenSQLite opens the database at path and applies the embedded schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	sqlDB, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := db.ApplySQLiteMigrations(ctx, sqlDB, migrations.FS, "sqlite"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

func (s *SQLite) Create(ctx context.Context, id string, snapshot []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO games (id, snapshot, version, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id, string(snapshot), now, now)
	if isConstraintError(err) {
		return apperr.ErrGameExists
	}
	return err
}

func (s *SQLite) Load(ctx context.Context, id string) ([]byte, error) {
	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT snapshot FROM games WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *SQLite) Update(ctx context.Context, id string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT snapshot FROM games WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrGameNotFound
	}
	if err != nil {
		return err
	}
	next, err := fn([]byte(body))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET snapshot = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		string(next), time.Now().UTC().UnixMilli(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) List(ctx context.Context) ([]Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, updated_at FROM games ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var updated int64
		if err := rows.Scan(&r.ID, &updated); err != nil {
			return nil, err
		}
		r.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrGameNotFound
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
