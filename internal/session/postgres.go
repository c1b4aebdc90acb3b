package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createSessionsTable = `create table if not exists sso_sessions (
	id text primary key,
	email text not null,
	created_at timestamptz not null,
	expires_at timestamptz not null
)`

// PostgresStore keeps sessions in the sso_sessions table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres opens a pgx-backed database handle with pool defaults.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the sessions table when it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create sso_sessions: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	var s Session
	err := p.db.QueryRowContext(ctx,
		`select id, email, created_at, expires_at from sso_sessions where id = $1 and expires_at > $2`,
		id, p.now().UTC(),
	).Scan(&s.ID, &s.Email, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("select session: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s Session) error {
	_, err := p.db.ExecContext(ctx, `
		insert into sso_sessions(id, email, created_at, expires_at)
		values ($1, $2, $3, $4)
		on conflict (id) do update set email = excluded.email, expires_at = excluded.expires_at`,
		s.ID, s.Email, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `delete from sso_sessions where id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `delete from sso_sessions where expires_at <= $1`, p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
