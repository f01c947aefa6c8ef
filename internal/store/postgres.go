package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifesim/internal/apperr"
	"lifesim/internal/db"
	"lifesim/internal/store/migrations"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyPostgresMigrations(ctx, pool, migrations.FS, "postgres"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Postgres{pool: pool, log: logger}, nil
}

func (p *Postgres) Create(ctx context.Context, id string, snapshot []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO lifesim.games (id, snapshot)
		VALUES ($1, $2)
	`, id, snapshot)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.ErrGameExists
	}
	return err
}

func (p *Postgres) Load(ctx context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM lifesim.games WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrGameNotFound
	}
	return body, err
}

// Update locks the row with FOR UPDATE for the whole read-modify-write.
func (p *Postgres) Update(ctx context.Context, id string, fn UpdateFunc) error {
	if err := checkID(id); err != nil {
		return err
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var body []byte
	err = tx.QueryRow(ctx, `
		SELECT snapshot
		FROM lifesim.games
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrGameNotFound
	}
	if err != nil {
		return err
	}
	next, err := fn(body)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE lifesim.games
		SET snapshot = $1, version = version + 1, updated_at = now()
		WHERE id = $2
	`, next, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) List(ctx context.Context) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT id::text, updated_at FROM lifesim.games ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.UpdatedAt)
		r.UpdatedAt = r.UpdatedAt.UTC()
		return r, err
	})
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	cmd, err := p.pool.Exec(ctx, `DELETE FROM lifesim.games WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrGameNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	p.log.Debug("postgres store closed")
	return nil
}
