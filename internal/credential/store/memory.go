package store

import (
	"context"
	"slices"
	"sync"

	"credify/internal/credential/models"
	id "credify/pkg/domain"
	"credify/pkg/platform/sentinel"
)

type holderKey struct {
	issuer id.IssuerID
	email  string
}

// InMemory is the credential ledger used when no database is configured.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[id.CredentialID]*models.Credential
	byHolder map[holderKey]id.CredentialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.CredentialID]*models.Credential),
		byHolder: make(map[holderKey]id.CredentialID),
	}
}

// Create records c; one credential per holder email per issuer.
func (s *InMemory) Create(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := holderKey{issuer: c.IssuerID, email: c.HolderEmail}
	if _, ok := s.byHolder[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *c
	s.byID[c.ID] = &cp
	s.byHolder[key] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, issuerID id.IssuerID, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[credentialID]
	if !ok || c.IssuerID != issuerID {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListByIssuer returns an issuer's credentials ordered by issue time. When
// emails is non-empty only those holders are returned.
func (s *InMemory) ListByIssuer(_ context.Context, issuerID id.IssuerID, emails []string) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Credential
	for _, c := range s.byID {
		if c.IssuerID != issuerID {
			continue
		}
		if len(emails) > 0 && !slices.Contains(emails, c.HolderEmail) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Credential) int {
		return a.IssuedAt.Compare(b.IssuedAt)
	})
	return out, nil
}
