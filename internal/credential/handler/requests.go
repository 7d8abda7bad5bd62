package handler

import (
	"time"

	dErrors "credify/pkg/domain-errors"
)

type IssueCredentialRequest struct {
	Claims map[string]any `json:"claims"`
}

func (r *IssueCredentialRequest) Validate() error {
	if len(r.Claims) == 0 {
		return dErrors.New(dErrors.CodeValidation, "claims are required")
	}
	return nil
}

type IssueCredentialResponse struct {
	CredentialID string    `json:"credential_id"`
	IssuerID     string    `json:"issuer_id"`
	Token        string    `json:"token"`
	IssuedAt     time.Time `json:"issued_at"`
}

// DispatchRequest targets every holder when Emails is empty.
type DispatchRequest struct {
	Emails []string `json:"emails"`
}

func (r *DispatchRequest) Validate() error {
	if len(r.Emails) > 500 {
		return dErrors.New(dErrors.CodeValidation, "at most 500 emails per dispatch")
	}
	return nil
}

type DispatchResponse struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed"`
}
