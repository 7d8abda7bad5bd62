package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"credify/internal/issuer/models"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/platform/sentinel"
)

type txActiveKey struct{}

// InMemory keeps issuers and keypairs in two maps behind one lock. RunInTx
// snapshots both maps and restores them if fn fails, so a failed keypair
// write leaves no issuer behind.
type InMemory struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	issuers map[id.IssuerID]*models.Issuer
	keys    map[id.IssuerID]*models.Keypair
}

func NewInMemory() *InMemory {
	return &InMemory{
		issuers: make(map[id.IssuerID]*models.Issuer),
		keys:    make(map[id.IssuerID]*models.Keypair),
	}
}

func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(txActiveKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	issuers := maps.Clone(s.issuers)
	keys := maps.Clone(s.keys)
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txActiveKey{}, true)); err != nil {
		s.mu.Lock()
		s.issuers = issuers
		s.keys = keys
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemory) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issuers[issuer.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.issuers {
		if strings.EqualFold(existing.Name, issuer.Name) {
			return sentinel.ErrConflict
		}
	}
	cp := *issuer
	s.issuers[issuer.ID] = &cp
	return nil
}

func (s *InMemory) FindIssuer(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer, ok := s.issuers[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *issuer
	return &cp, nil
}

// ListIssuers returns issuers ordered by name.
func (s *InMemory) ListIssuers(_ context.Context) ([]*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Issuer, 0, len(s.issuers))
	for _, issuer := range s.issuers {
		cp := *issuer
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Issuer) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// SaveKeypair inserts the keypair. A second keypair for the same issuer is
// a conflict: keys are written exactly once.
func (s *InMemory) SaveKeypair(_ context.Context, kp *models.Keypair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issuers[kp.IssuerID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.keys[kp.IssuerID]; ok {
		return sentinel.ErrConflict
	}
	cp := *kp
	s.keys[kp.IssuerID] = &cp
	return nil
}

func (s *InMemory) FindKeypair(_ context.Context, issuerID id.IssuerID) (*models.Keypair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kp, ok := s.keys[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *kp
	return &cp, nil
}
