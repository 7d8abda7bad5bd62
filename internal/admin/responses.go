package admin

import "time"

// AuditEventResponse is one audit record as shown to operators.
type AuditEventResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Subject   string    `json:"subject"`
	IssuerID  string    `json:"issuer_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Device    string    `json:"device,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEventsResponse wraps the list of events for HTTP response.
type AuditEventsResponse struct {
	Events  []*AuditEventResponse `json:"events"`
	Total   int                   `json:"total"`
	Dropped int64                 `json:"dropped"`
}
