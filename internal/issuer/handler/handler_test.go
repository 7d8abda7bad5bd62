package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credify/internal/issuer/handler/mocks"
	"credify/internal/issuer/models"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/requestcontext"
	"credify/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.router.Route("/admin", h.RegisterAdmin)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) TestCreate() {
	s.Run("returns issuer and public key", func() {
		issuer := &models.Issuer{ID: id.NewIssuerID(), Name: "North College", CreatedAt: time.Now()}
		s.service.EXPECT().CreateIssuer(gomock.Any(), "North College").Return(issuer, "PEM", nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/issuers", map[string]string{"name": " North College "}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[CreateIssuerResponse](s.T(), rr)
		s.Equal(issuer.ID.String(), resp.IssuerID)
		s.Equal("PEM", resp.PublicKey)
	})

	s.Run("missing name never reaches service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/issuers", map[string]string{"name": ""}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("duplicate name maps to 400", func() {
		s.service.EXPECT().CreateIssuer(gomock.Any(), "Dup").
			Return(nil, "", dErrors.New(dErrors.CodeConflict, "issuer name must be unique"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/issuers", map[string]string{"name": "Dup"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "conflict")
	})
}

func (s *HandlerSuite) TestGetPublicKey() {
	issuerID := id.NewIssuerID()

	s.Run("returns pem", func() {
		s.service.EXPECT().GetPublicKey(gomock.Any(), issuerID).Return("PEM", nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/issuers/"+issuerID.String()+"/public-key"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[PublicKeyResponse](s.T(), rr)
		s.Equal("PEM", resp.PublicKey)
	})

	s.Run("missing keypair is 404", func() {
		s.service.EXPECT().GetPublicKey(gomock.Any(), issuerID).
			Return("", dErrors.New(dErrors.CodeNotFound, "issuer has no keypair"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/issuers/"+issuerID.String()+"/public-key"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id is 400", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/issuers/not-a-uuid/public-key"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().ListIssuers(gomock.Any()).Return([]*models.Issuer{
		{ID: id.NewIssuerID(), Name: "Alpha"},
		{ID: id.NewIssuerID(), Name: "Beta"},
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/issuers"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[ListIssuersResponse](s.T(), rr)
	s.Require().Len(resp.Issuers, 2)
	s.Equal("Alpha", resp.Issuers[0].Name)
}

func (s *HandlerSuite) TestCreatePassesRequestContext() {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.service.EXPECT().CreateIssuer(gomock.Any(), "South College").
		DoAndReturn(func(ctx context.Context, name string) (*models.Issuer, string, error) {
			s.Equal("req-42", requestcontext.RequestID(ctx))
			s.Equal(at, requestcontext.Now(ctx))
			return &models.Issuer{ID: id.NewIssuerID(), Name: name, CreatedAt: at}, "PEM", nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/issuers", map[string]string{"name": "South College"})
	req = testutil.WithRequestTime(testutil.WithRequestID(req, "req-42"), at)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}
