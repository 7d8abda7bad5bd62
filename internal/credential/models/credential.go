package models

import (
	"time"

	"credify/internal/credential/token"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/email"
)

// Credential is a ledger entry for a token issued to a holder. The token is
// immutable once recorded.
type Credential struct {
	ID          id.CredentialID
	IssuerID    id.IssuerID
	HolderEmail string
	Token       string
	IssuedAt    time.Time
}

// Issued is the result of signing, before anything is recorded.
type Issued struct {
	IssuerID id.IssuerID
	Token    string
	IssuedAt time.Time
}

// ValidateClaims enforces the issuance preconditions: a non-empty map with
// no holder-supplied issuer, audience or issued-at keys.
func ValidateClaims(c token.Claims) error {
	if len(c) == 0 {
		return dErrors.New(dErrors.CodeValidation, "claims are required")
	}
	if k, ok := token.ReservedKey(c); ok {
		return dErrors.New(dErrors.CodeValidation, "claim \""+k+"\" is set by the issuer and cannot be supplied")
	}
	return nil
}

// HolderEmail extracts and normalizes the email claim enrollment keys on.
// The normalized value is written back so the signed token carries it.
func HolderEmail(c token.Claims) (string, error) {
	raw, ok := c.Email()
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "claims must include an email")
	}
	addr, err := email.Parse(raw)
	if err != nil {
		return "", err
	}
	c["email"] = addr
	return addr, nil
}

// DispatchResult reports a bulk QR email run.
type DispatchResult struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed"`
}
