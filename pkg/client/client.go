// Package client talks to the credify HTTP API. It implements the key source
// and OTP gateway ports of the verification flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credify/internal/verification"
	"credify/pkg/platform/middleware/admin"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("credify: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("credify: %d %s", e.Status, e.Code)
}

// Retryable reports whether the server marked the failure as transient.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable || e.Status == http.StatusGatewayTimeout
}

type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAdminToken enables the operator endpoints.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type Issuer struct {
	IssuerID string `json:"issuer_id"`
	Name     string `json:"name"`
}

// ListIssuers returns the issuers a verifier can choose from.
func (c *Client) ListIssuers(ctx context.Context) ([]Issuer, error) {
	var out struct {
		Issuers []Issuer `json:"issuers"`
	}
	if err := c.do(ctx, http.MethodGet, "/issuers", nil, false, &out); err != nil {
		return nil, err
	}
	return out.Issuers, nil
}

// PublicKey fetches the issuer's SPKI PEM.
func (c *Client) PublicKey(ctx context.Context, issuerID string) (string, error) {
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/issuers/"+url.PathEscape(issuerID)+"/public-key", nil, false, &out); err != nil {
		return "", err
	}
	if out.PublicKey == "" {
		return "", errors.New("credify: empty public key in response")
	}
	return out.PublicKey, nil
}

// Send asks the server to mail a one-time code.
func (c *Client) Send(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/otp/send", map[string]string{"email": email}, false, nil)
}

type verifyResponse struct {
	Verified          bool   `json:"verified"`
	Message           string `json:"message"`
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remaining_attempts"`
}

// Verify checks a code and maps rejections onto the verification flow's errors.
func (c *Client) Verify(ctx context.Context, email, code string) error {
	body, status, err := c.roundTrip(ctx, http.MethodPost, "/otp/verify", map[string]string{"email": email, "code": code}, false)
	if err != nil {
		return err
	}
	var resp verifyResponse
	if status == http.StatusOK || status == http.StatusBadRequest {
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("credify: decode verify response: %w", err)
		}
	}
	if status == http.StatusOK && resp.Verified {
		return nil
	}
	if status == http.StatusBadRequest {
		switch resp.Error {
		case "invalid_code":
			remaining := 0
			if resp.RemainingAttempts != nil {
				remaining = *resp.RemainingAttempts
			}
			return &verification.OTPRejectedError{Remaining: remaining}
		case "too_many_attempts":
			return verification.ErrOTPExhausted
		case "expired":
			return verification.ErrOTPExpired
		case "validation_error":
			return verification.ErrMalformedCode
		}
	}
	return apiError(status, body)
}

type CreatedIssuer struct {
	IssuerID  string `json:"issuer_id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

// CreateIssuer registers an issuer. Requires the admin token.
func (c *Client) CreateIssuer(ctx context.Context, name string) (*CreatedIssuer, error) {
	var out CreatedIssuer
	if err := c.do(ctx, http.MethodPost, "/admin/issuers", map[string]string{"name": name}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type IssuedCredential struct {
	CredentialID string    `json:"credential_id"`
	IssuerID     string    `json:"issuer_id"`
	Token        string    `json:"token"`
	IssuedAt     time.Time `json:"issued_at"`
}

// IssueCredential enrolls a holder. Requires the admin token.
func (c *Client) IssueCredential(ctx context.Context, issuerID string, claims map[string]any) (*IssuedCredential, error) {
	var out IssuedCredential
	path := "/admin/issuers/" + url.PathEscape(issuerID) + "/credentials"
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"claims": claims}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CredentialQR downloads the PNG for a recorded credential. Requires the admin token.
func (c *Client) CredentialQR(ctx context.Context, issuerID, credentialID string) ([]byte, error) {
	path := "/admin/issuers/" + url.PathEscape(issuerID) + "/credentials/" + url.PathEscape(credentialID) + "/qr"
	body, status, err := c.roundTrip(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, asAdmin bool, out any) error {
	body, status, err := c.roundTrip(ctx, method, path, in, asAdmin)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return apiError(status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("credify: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any, asAdmin bool) ([]byte, int, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asAdmin {
		if c.adminToken == "" {
			return nil, 0, errors.New("credify: admin token not configured")
		}
		req.Header.Set(admin.HeaderAdminToken, c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("credify: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("credify: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func apiError(status int, body []byte) error {
	var er struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
	}
	_ = json.Unmarshal(body, &er)
	msg := er.Description
	if msg == "" {
		msg = er.Message
	}
	return &APIError{Status: status, Code: er.Error, Message: msg}
}
