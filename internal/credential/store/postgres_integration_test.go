//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credify/internal/credential/models"
	"credify/internal/credential/store"
	issuermodels "credify/internal/issuer/models"
	issuerstore "credify/internal/issuer/store"
	id "credify/pkg/domain"
	"credify/pkg/platform/sentinel"
	"credify/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	issuers  *issuerstore.PostgresStore
	store    *store.PostgresStore
	issuer   *issuermodels.Issuer
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.issuers = issuerstore.NewPostgres(s.postgres.DB)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "credentials", "issuer_keys", "issuers"))

	var err error
	s.issuer, err = issuermodels.NewIssuer("Ledger College", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.issuers.CreateIssuer(ctx, s.issuer))
}

func (s *PostgresLedgerSuite) credential(holder string, issuedAt time.Time) *models.Credential {
	return &models.Credential{
		ID:          id.NewCredentialID(),
		IssuerID:    s.issuer.ID,
		HolderEmail: holder,
		Token:       "h.p." + holder,
		IssuedAt:    issuedAt.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresLedgerSuite) TestCreateAndFind() {
	ctx := context.Background()
	c := s.credential("ada@x.edu", time.Now())
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, s.issuer.ID, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Token, found.Token)
	s.True(c.IssuedAt.Equal(found.IssuedAt))

	_, err = s.store.FindByID(ctx, id.NewIssuerID(), c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLedgerSuite) TestDuplicateHolderConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.credential("ada@x.edu", time.Now())))
	s.ErrorIs(s.store.Create(ctx, s.credential("ada@x.edu", time.Now())), sentinel.ErrConflict)
}

func (s *PostgresLedgerSuite) TestListByIssuerWithEmailFilter() {
	ctx := context.Background()
	base := time.Now()
	s.Require().NoError(s.store.Create(ctx, s.credential("ada@x.edu", base)))
	s.Require().NoError(s.store.Create(ctx, s.credential("bob@x.edu", base.Add(time.Second))))

	all, err := s.store.ListByIssuer(ctx, s.issuer.ID, nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	some, err := s.store.ListByIssuer(ctx, s.issuer.ID, []string{"bob@x.edu"})
	s.Require().NoError(err)
	s.Require().Len(some, 1)
	s.Equal("bob@x.edu", some[0].HolderEmail)
}
