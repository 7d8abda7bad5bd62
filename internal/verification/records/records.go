// Package records stores revealed credentials in a local SQLite file.
package records

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Record is one revealed credential.
type Record struct {
	ID          int64
	IssuerID    string
	HolderEmail string
	Claims      map[string]any
	Token       string
	Role        string
	VerifiedAt  time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save records r. Verifying the same token again refreshes the timestamp.
func (s *Store) Save(ctx context.Context, r *Record) error {
	claims, err := json.Marshal(r.Claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	query := `
		INSERT INTO holder_records (issuer_id, holder_email, claims, token, role, verified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			role = excluded.role,
			verified_at = excluded.verified_at
		RETURNING id
	`
	row := s.db.QueryRowContext(ctx, query,
		r.IssuerID, r.HolderEmail, string(claims), r.Token, r.Role,
		r.VerifiedAt.UnixNano())
	if err := row.Scan(&r.ID); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// List returns records newest first. An empty holder lists everything.
func (s *Store) List(ctx context.Context, holder string) ([]*Record, error) {
	query := `
		SELECT id, issuer_id, holder_email, claims, token, role, verified_at
		FROM holder_records
		WHERE ? = '' OR holder_email = ?
		ORDER BY verified_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, holder, holder)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			r          Record
			claims     string
			verifiedAt int64
		)
		if err := rows.Scan(&r.ID, &r.IssuerID, &r.HolderEmail, &claims, &r.Token, &r.Role, &verifiedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(claims), &r.Claims); err != nil {
			return nil, fmt.Errorf("decode claims: %w", err)
		}
		r.VerifiedAt = time.Unix(0, verifiedAt).UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}
