package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"credify/internal/credential/models"
	"credify/internal/platform/postgres"
	id "credify/pkg/domain"
	"credify/pkg/platform/sentinel"
	txcontext "credify/pkg/platform/tx"
)

// PostgresStore persists the credential ledger.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO credentials (id, issuer_id, holder_email, token, issued_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.IssuerID), c.HolderEmail, c.Token, c.IssuedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, issuerID id.IssuerID, credentialID id.CredentialID) (*models.Credential, error) {
	query := `
		SELECT id, issuer_id, holder_email, token, issued_at
		FROM credentials
		WHERE id = $1 AND issuer_id = $2
	`
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(credentialID), uuid.UUID(issuerID))
	c, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuerID id.IssuerID, emails []string) ([]*models.Credential, error) {
	query := `
		SELECT id, issuer_id, holder_email, token, issued_at
		FROM credentials
		WHERE issuer_id = $1 AND (cardinality($2::text[]) = 0 OR holder_email = ANY($2::text[]))
		ORDER BY issued_at
	`
	if emails == nil {
		emails = []string{}
	}
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(issuerID), pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		c        models.Credential
		credID   uuid.UUID
		issuerID uuid.UUID
	)
	if err := row.Scan(&credID, &issuerID, &c.HolderEmail, &c.Token, &c.IssuedAt); err != nil {
		return nil, err
	}
	c.ID = id.CredentialID(credID)
	c.IssuerID = id.IssuerID(issuerID)
	return &c, nil
}
