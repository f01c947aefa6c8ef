// Package store persists game snapshots. Every backend serializes Update per
// game so a read-modify-write never interleaves with another writer.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lifesim/internal/apperr"
)

// UpdateFunc receives the stored snapshot and returns its replacement. An
// error aborts the update and leaves the stored snapshot untouched.
type UpdateFunc func(snapshot []byte) ([]byte, error)

type Record struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	Create(ctx context.Context, id string, snapshot []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Update(ctx context.Context, id string, fn UpdateFunc) error
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

type Options struct {
	Kind        string
	DataDir     string
	SQLitePath  string
	DatabaseURL string
	Logger      *slog.Logger
}

// Open builds the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	switch kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindFile:
		return NewFile(opts.DataDir)
	case KindSQLite:
		path := opts.SQLitePath
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(opts.DataDir, "lifesim.db")
		}
		return OpenSQLite(ctx, path)
	case KindPostgres:
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		return OpenPostgres(ctx, opts.DatabaseURL, logger)
	}
	return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
}

// checkID rejects ids that are not UUIDs; file names and SQL keys derive
// from them.
func checkID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("%w: %q", apperr.ErrGameNotFound, id)
	}
	return nil
}
