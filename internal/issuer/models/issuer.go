package models

import (
	"strings"
	"time"

	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
)

const maxNameLength = 128

// Issuer is an institution that signs credentials.
//
// Invariants:
//   - Name is non-empty, trimmed, at most 128 characters
//   - Exactly one active Keypair exists for every persisted Issuer
type Issuer struct {
	ID        id.IssuerID `json:"id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewIssuer validates name and assigns a fresh ID.
func NewIssuer(name string, now time.Time) (*Issuer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name must be 128 characters or less")
	}
	return &Issuer{
		ID:        id.NewIssuerID(),
		Name:      name,
		CreatedAt: now,
	}, nil
}

type KeyStatus string

const (
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRetired is reserved for rotation; nothing sets it yet.
	KeyStatusRetired KeyStatus = "retired"
)

// Keypair is the issuer's signing key. The private half exists only as
// ciphertext; PrivateKeyIV is the hex nonce used to seal it.
type Keypair struct {
	IssuerID             id.IssuerID
	PublicKeyPEM         string
	PrivateKeyCiphertext string
	PrivateKeyIV         string
	Algorithm            string
	Status               KeyStatus
	CreatedAt            time.Time
}

func (k *Keypair) IsActive() bool {
	return k.Status == KeyStatusActive
}
