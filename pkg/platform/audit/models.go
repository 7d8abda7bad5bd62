package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events for routing and retention.
type EventCategory string

const (
	// CategoryCompliance covers issuer and credential lifecycle.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers OTP failures, lockouts and tamper detection.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine OTP dispatch and QR delivery.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is an issuer ID, a credential ID or a masked email. Raw emails
	// never go into audit records.
	Subject   string `json:"subject"`
	IssuerID  string `json:"issuer_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventIssuerCreated      AuditEvent = "issuer_created"
	EventCredentialIssued   AuditEvent = "credential_issued"
	EventCredentialRejected AuditEvent = "credential_rejected"
	EventQRDispatched       AuditEvent = "credential_qr_dispatched"
	EventOTPIssued          AuditEvent = "otp_issued"
	EventOTPVerified        AuditEvent = "otp_verified"
	EventOTPFailed          AuditEvent = "otp_failed"
	EventOTPLockout         AuditEvent = "otp_lockout"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIssuerCreated:      CategoryCompliance,
	EventCredentialIssued:   CategoryCompliance,
	EventCredentialRejected: CategorySecurity,
	EventQRDispatched:       CategoryOperations,
	EventOTPIssued:          CategoryOperations,
	EventOTPVerified:        CategoryOperations,
	EventOTPFailed:          CategorySecurity,
	EventOTPLockout:         CategorySecurity,
}

// Category returns the routing category; unknown actions are operational.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Emitter receives audit events. Emit failures are logged by callers and
// never fail the audited operation.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
