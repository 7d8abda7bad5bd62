package store

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"credify/internal/otp/models"
)

type record struct {
	digest    string
	attempts  int
	expiresAt time.Time
}

// InMemory keeps one pending code per email. Expiry is checked on access.
type InMemory struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

type MemoryOption func(*InMemory)

// WithClock replaces time.Now; tests use it to step past the TTL.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) { s.now = now }
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		records: make(map[string]*record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put replaces any pending code for email.
func (s *InMemory) Put(_ context.Context, email, digest string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, r := range s.records {
		if !now.Before(r.expiresAt) {
			delete(s.records, k)
		}
	}
	s.records[email] = &record{digest: digest, expiresAt: now.Add(ttl)}
	return nil
}

// Check resolves one verification attempt under the store lock.
func (s *InMemory) Check(_ context.Context, email, digest string, maxAttempts int) (models.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[email]
	if !ok || !s.now().Before(r.expiresAt) {
		delete(s.records, email)
		return models.CheckResult{Outcome: models.OutcomeExpired}, nil
	}
	if r.attempts >= maxAttempts {
		delete(s.records, email)
		return models.CheckResult{Outcome: models.OutcomeLocked, Attempts: r.attempts}, nil
	}
	if subtle.ConstantTimeCompare([]byte(r.digest), []byte(digest)) != 1 {
		r.attempts++
		return models.CheckResult{Outcome: models.OutcomeMismatch, Attempts: r.attempts}, nil
	}
	delete(s.records, email)
	return models.CheckResult{Outcome: models.OutcomeMatch, Attempts: r.attempts}, nil
}
