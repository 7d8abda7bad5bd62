package handler

import (
	"strings"

	dErrors "credify/pkg/domain-errors"
)

type SendRequest struct {
	Email string `json:"email"`
}

func (r *SendRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

type SendResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r *VerifyRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if strings.TrimSpace(r.Email) == "" || r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "email and code are required")
	}
	return nil
}

type VerifyResponse struct {
	Verified          bool   `json:"verified"`
	Message           string `json:"message"`
	Error             string `json:"error,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}
