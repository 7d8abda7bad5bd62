package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credify/internal/credential/handler/mocks"
	"credify/internal/credential/models"
	"credify/internal/credential/token"
	id "credify/pkg/domain"
	dErrors "credify/pkg/domain-errors"
	"credify/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	service  *mocks.MockService
	router   chi.Router
	issuerID id.IssuerID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	s.router.Route("/admin", h.RegisterAdmin)
	s.issuerID = id.NewIssuerID()
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) credentialsPath() string {
	return "/admin/issuers/" + s.issuerID.String() + "/credentials"
}

func (s *HandlerSuite) TestIssue() {
	body := map[string]any{"claims": map[string]any{"name": "Ada", "email": "ada@x.edu"}}

	s.Run("returns credential id and token", func() {
		cred := &models.Credential{
			ID:          id.NewCredentialID(),
			IssuerID:    s.issuerID,
			HolderEmail: "ada@x.edu",
			Token:       "h.p.s",
			IssuedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}
		s.service.EXPECT().
			Enroll(gomock.Any(), s.issuerID, token.Claims{"name": "Ada", "email": "ada@x.edu"}).
			Return(cred, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.credentialsPath(), body))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[IssueCredentialResponse](s.T(), rr)
		s.Equal(cred.ID.String(), resp.CredentialID)
		s.Equal("h.p.s", resp.Token)
	})

	s.Run("duplicate holder is 400", func() {
		s.service.EXPECT().Enroll(gomock.Any(), s.issuerID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "holder already has a credential from this issuer"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.credentialsPath(), body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "conflict")
	})

	s.Run("unknown issuer is 404", func() {
		s.service.EXPECT().Enroll(gomock.Any(), s.issuerID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "issuer has no keypair"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.credentialsPath(), body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("signing failure is 500 without detail", func() {
		s.service.EXPECT().Enroll(gomock.Any(), s.issuerID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "signing key unavailable"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.credentialsPath(), body))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "signing key")
	})

	s.Run("missing claims never reach service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.credentialsPath(), map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed issuer ID", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/issuers/nope/credentials", body))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestQR() {
	credentialID := id.NewCredentialID()
	path := s.credentialsPath() + "/" + credentialID.String() + "/qr"

	s.Run("serves png", func() {
		png := []byte("\x89PNG\r\n\x1a\nfake")
		s.service.EXPECT().QRCode(gomock.Any(), s.issuerID, credentialID).Return(png, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		testutil.AssertStatusOK(s.T(), rr)
		s.Equal("image/png", rr.Header().Get("Content-Type"))
		s.Equal(png, rr.Body.Bytes())
	})

	s.Run("unknown credential is 404", func() {
		s.service.EXPECT().QRCode(gomock.Any(), s.issuerID, credentialID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "credential not found"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestDispatch() {
	path := s.credentialsPath() + "/dispatch"

	s.Run("reports sent and failed", func() {
		s.service.EXPECT().DispatchQR(gomock.Any(), s.issuerID, []string{"ada@x.edu", "bob@x.edu"}).
			Return(&models.DispatchResult{Sent: 1, Failed: []string{"bob@x.edu"}}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			map[string]any{"emails": []string{"ada@x.edu", "bob@x.edu"}}))

		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
		resp := testutil.UnmarshalResponse[DispatchResponse](s.T(), rr)
		s.Equal(1, resp.Sent)
		s.Equal([]string{"bob@x.edu"}, resp.Failed)
	})

	s.Run("mail disabled is 503", func() {
		s.service.EXPECT().DispatchQR(gomock.Any(), s.issuerID, gomock.Nil()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "email delivery is not configured"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})
}

func (s *HandlerSuite) TestSend() {
	credentialID := id.NewCredentialID()
	s.service.EXPECT().SendQR(gomock.Any(), s.issuerID, credentialID).Return(nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.credentialsPath()+"/"+credentialID.String()+"/send"))
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
}
