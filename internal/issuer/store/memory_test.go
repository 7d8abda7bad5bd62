package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credify/internal/issuer/models"
	id "credify/pkg/domain"
	"credify/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newIssuer(name string) *models.Issuer {
	issuer, err := models.NewIssuer(name, time.Now())
	s.Require().NoError(err)
	return issuer
}

func newKeypair(issuerID id.IssuerID) *models.Keypair {
	return &models.Keypair{
		IssuerID:             issuerID,
		PublicKeyPEM:         "-----BEGIN PUBLIC KEY-----",
		PrivateKeyCiphertext: "00",
		PrivateKeyIV:         "00",
		Algorithm:            "aes-256-gcm",
		Status:               models.KeyStatusActive,
		CreatedAt:            time.Now(),
	}
}

func (s *InMemoryStoreSuite) TestIssuerLookups() {
	s.Run("creates and finds issuer", func() {
		issuer := s.newIssuer("North College")
		s.Require().NoError(s.store.CreateIssuer(s.ctx, issuer))

		found, err := s.store.FindIssuer(s.ctx, issuer.ID)
		s.Require().NoError(err)
		s.Equal("North College", found.Name)
	})

	s.Run("unknown issuer is not found", func() {
		_, err := s.store.FindIssuer(s.ctx, id.NewIssuerID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("name is unique ignoring case", func() {
		s.Require().NoError(s.store.CreateIssuer(s.ctx, s.newIssuer("South College")))
		err := s.store.CreateIssuer(s.ctx, s.newIssuer("SOUTH college"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("list is sorted by name", func() {
		s.Require().NoError(s.store.CreateIssuer(s.ctx, s.newIssuer("alpha Institute")))
		list, err := s.store.ListIssuers(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal("alpha Institute", list[0].Name)
		s.Equal("South College", list[2].Name)
	})
}

func (s *InMemoryStoreSuite) TestKeypairWrittenOnce() {
	issuer := s.newIssuer("Keyed College")
	s.Require().NoError(s.store.CreateIssuer(s.ctx, issuer))
	s.Require().NoError(s.store.SaveKeypair(s.ctx, newKeypair(issuer.ID)))

	s.Run("second keypair conflicts", func() {
		s.ErrorIs(s.store.SaveKeypair(s.ctx, newKeypair(issuer.ID)), sentinel.ErrConflict)
	})

	s.Run("keypair needs an issuer", func() {
		s.ErrorIs(s.store.SaveKeypair(s.ctx, newKeypair(id.NewIssuerID())), sentinel.ErrNotFound)
	})

	s.Run("missing keypair is not found", func() {
		_, err := s.store.FindKeypair(s.ctx, id.NewIssuerID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBack() {
	issuer := s.newIssuer("Rollback College")
	boom := errors.New("key write failed")

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.CreateIssuer(ctx, issuer))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindIssuer(s.ctx, issuer.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "issuer must not survive a failed transaction")
}
