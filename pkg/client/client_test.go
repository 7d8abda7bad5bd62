package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credify/internal/verification"
	"credify/pkg/platform/middleware/admin"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/issuers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"issuers": []map[string]string{{"issuer_id": "iss-1", "name": "Uni"}}})
	})
	r.Get("/issuers/{issuerID}/public-key", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "issuerID") != "iss-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "issuer not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"issuer_id": "iss-1", "public_key": "-----BEGIN PUBLIC KEY-----"})
	})
	r.Post("/otp/send", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sent": true})
	})
	r.Post("/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Code string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Code {
		case "111111":
			writeJSON(w, http.StatusOK, map[string]any{"verified": true})
		case "222222":
			writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "invalid_code", "remaining_attempts": 2})
		case "333333":
			writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "too_many_attempts"})
		case "444444":
			writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "expired"})
		case "4444":
			writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "validation_error", "message": "code must be 6 digits"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service_unavailable", "error_description": "down"})
		}
	})
	r.Post("/admin/issuers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(admin.HeaderAdminToken) != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"issuer_id": "iss-2", "name": "New", "public_key": "pem"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestPublicKey(t *testing.T) {
	c, err := New(newServer(t).URL)
	require.NoError(t, err)
	ctx := context.Background()

	pem, err := c.PublicKey(ctx, "iss-1")
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN PUBLIC KEY-----", pem)

	_, err = c.PublicKey(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "issuer not found", apiErr.Message)
	assert.False(t, apiErr.Retryable())
}

func TestListIssuers(t *testing.T) {
	c, err := New(newServer(t).URL)
	require.NoError(t, err)

	issuers, err := c.ListIssuers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Issuer{{IssuerID: "iss-1", Name: "Uni"}}, issuers)
}

func TestVerifyMapsOutcomes(t *testing.T) {
	c, err := New(newServer(t).URL)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "ada@x.edu"))
	require.NoError(t, c.Verify(ctx, "ada@x.edu", "111111"))

	err = c.Verify(ctx, "ada@x.edu", "222222")
	var rejected *verification.OTPRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 2, rejected.Remaining)

	assert.True(t, errors.Is(c.Verify(ctx, "ada@x.edu", "333333"), verification.ErrOTPExhausted))
	assert.True(t, errors.Is(c.Verify(ctx, "ada@x.edu", "444444"), verification.ErrOTPExpired))
	assert.True(t, errors.Is(c.Verify(ctx, "ada@x.edu", "4444"), verification.ErrMalformedCode))

	err = c.Verify(ctx, "ada@x.edu", "999999")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable())
}

func TestAdminCalls(t *testing.T) {
	url := newServer(t).URL

	anon, err := New(url)
	require.NoError(t, err)
	_, err = anon.CreateIssuer(context.Background(), "New")
	assert.ErrorContains(t, err, "admin token not configured")

	wrong, err := New(url, WithAdminToken("nope"))
	require.NoError(t, err)
	_, err = wrong.CreateIssuer(context.Background(), "New")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	c, err := New(url, WithAdminToken("secret"))
	require.NoError(t, err)
	created, err := c.CreateIssuer(context.Background(), "New")
	require.NoError(t, err)
	assert.Equal(t, "iss-2", created.IssuerID)
}
