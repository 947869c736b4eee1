package authstate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the goose migrations for the auth_states table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// PostgresStore keeps one row per session in auth_states.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a connected pool. The schema must already be migrated.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	selectStateSQL = `SELECT registered, creds, meta, updated_at FROM auth_states WHERE session_id = $1`
	upsertStateSQL = `INSERT INTO auth_states (session_id, registered, creds, meta, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE
SET registered = EXCLUDED.registered, creds = EXCLUDED.creds, meta = EXCLUDED.meta, updated_at = EXCLUDED.updated_at`
	deleteStateSQL = `DELETE FROM auth_states WHERE session_id = $1`
	listStatesSQL  = `SELECT session_id FROM auth_states ORDER BY session_id`
)

func (p *PostgresStore) Load(ctx context.Context, id string) (*State, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	var s State
	err := p.pool.QueryRow(ctx, selectStateSQL, id).Scan(&s.Registered, &s.Creds, &s.Meta, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select auth state %q: %w", id, err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, id string, s *State) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if s == nil {
		return ErrNilState
	}

	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	meta := s.Meta
	if meta == nil {
		meta = map[string]string{}
	}

	if _, err := p.pool.Exec(ctx, upsertStateSQL, id, s.Registered, s.Creds, meta, updatedAt); err != nil {
		return fmt.Errorf("upsert auth state %q: %w", id, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, deleteStateSQL, id); err != nil {
		return fmt.Errorf("delete auth state %q: %w", id, err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, listStatesSQL)
	if err != nil {
		return nil, fmt.Errorf("list auth states: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list auth states: %w", err)
	}
	return ids, nil
}
