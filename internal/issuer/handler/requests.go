package handler

import (
	"strings"

	dErrors "credify/pkg/domain-errors"
)

type CreateIssuerRequest struct {
	Name string `json:"name"`
}

func (r *CreateIssuerRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type CreateIssuerResponse struct {
	IssuerID  string `json:"issuer_id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

type IssuerSummary struct {
	IssuerID string `json:"issuer_id"`
	Name     string `json:"name"`
}

type ListIssuersResponse struct {
	Issuers []IssuerSummary `json:"issuers"`
}

type PublicKeyResponse struct {
	IssuerID  string `json:"issuer_id"`
	PublicKey string `json:"public_key"`
}
