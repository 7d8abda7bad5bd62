package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"credify/internal/issuer/models"
	"credify/internal/platform/postgres"
	id "credify/pkg/domain"
	"credify/pkg/platform/sentinel"
	txcontext "credify/pkg/platform/tx"
)

// PostgresStore persists issuers and issuer_keys. Writes join the
// transaction carried in ctx when called inside RunInTx.
type PostgresStore struct {
	db *sql.DB
	*txcontext.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, SQLRunner: txcontext.NewSQLRunner(db, 0)}
}

func (s *PostgresStore) CreateIssuer(ctx context.Context, issuer *models.Issuer) error {
	query := `INSERT INTO issuers (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(issuer.ID), issuer.Name, issuer.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	query := `SELECT id, name, created_at FROM issuers WHERE id = $1`
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(issuerID))
	issuer, err := scanIssuer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuer: %w", err)
	}
	return issuer, nil
}

func (s *PostgresStore) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	query := `SELECT id, name, created_at FROM issuers ORDER BY lower(name)`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []*models.Issuer
	for rows.Next() {
		issuer, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		out = append(out, issuer)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveKeypair(ctx context.Context, kp *models.Keypair) error {
	query := `
		INSERT INTO issuer_keys (issuer_id, public_key_pem, private_key_ciphertext, private_key_iv, algorithm, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(kp.IssuerID),
		kp.PublicKeyPEM,
		kp.PrivateKeyCiphertext,
		kp.PrivateKeyIV,
		kp.Algorithm,
		string(kp.Status),
		kp.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert issuer key: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindKeypair(ctx context.Context, issuerID id.IssuerID) (*models.Keypair, error) {
	query := `
		SELECT issuer_id, public_key_pem, private_key_ciphertext, private_key_iv, algorithm, status, created_at
		FROM issuer_keys
		WHERE issuer_id = $1 AND status = 'active'
	`
	var (
		kp       models.Keypair
		issuerPK uuid.UUID
		status   string
	)
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(issuerID)).Scan(
		&issuerPK,
		&kp.PublicKeyPEM,
		&kp.PrivateKeyCiphertext,
		&kp.PrivateKeyIV,
		&kp.Algorithm,
		&status,
		&kp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuer key: %w", err)
	}
	kp.IssuerID = id.IssuerID(issuerPK)
	kp.Status = models.KeyStatus(status)
	return &kp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssuer(row rowScanner) (*models.Issuer, error) {
	var (
		issuer models.Issuer
		pk     uuid.UUID
	)
	if err := row.Scan(&pk, &issuer.Name, &issuer.CreatedAt); err != nil {
		return nil, err
	}
	issuer.ID = id.IssuerID(pk)
	return &issuer, nil
}
