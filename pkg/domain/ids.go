// Package domain holds typed identifiers shared across bounded contexts.
package domain

import (
	"github.com/google/uuid"

	dErrors "credify/pkg/domain-errors"
)

// IssuerID identifies an institution that signs credentials.
type IssuerID uuid.UUID

// CredentialID identifies one issued credential in the holder ledger.
type CredentialID uuid.UUID

func (id IssuerID) String() string     { return uuid.UUID(id).String() }
func (id IssuerID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id CredentialID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func NewIssuerID() IssuerID         { return IssuerID(uuid.New()) }
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

// ParseIssuerID parses a non-nil UUID.
func ParseIssuerID(s string) (IssuerID, error) {
	u, err := parseUUID(s, "issuer ID")
	return IssuerID(u), err
}

// ParseCredentialID parses a non-nil UUID.
func ParseCredentialID(s string) (CredentialID, error) {
	u, err := parseUUID(s, "credential ID")
	return CredentialID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
