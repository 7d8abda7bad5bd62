package admin

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	audit "credify/pkg/platform/audit"
	auditmemory "credify/pkg/platform/audit/store/memory"
	"credify/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	buffer *auditmemory.RingBuffer
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.buffer = auditmemory.NewRingBuffer(2)
	ctx := context.Background()
	for _, action := range []audit.AuditEvent{audit.EventIssuerCreated, audit.EventOTPIssued, audit.EventOTPLockout} {
		s.Require().NoError(s.buffer.Emit(ctx, audit.Event{Action: string(action), Subject: "a***@x.edu"}))
	}
	s.router = chi.NewRouter()
	New(s.buffer, slog.Default()).RegisterAdmin(s.router)
}

func (s *HandlerSuite) TestListEvents() {
	s.Run("newest first with dropped count", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/audit/events"))
		s.Equal(http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[AuditEventsResponse](s.T(), rr)
		s.Require().Len(resp.Events, 2)
		s.Equal(string(audit.EventOTPLockout), resp.Events[0].Action)
		s.Equal(string(audit.CategorySecurity), resp.Events[0].Category)
		s.Equal(int64(1), resp.Dropped)
	})

	s.Run("filters by category", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/audit/events?category=operations"))
		resp := testutil.UnmarshalResponse[AuditEventsResponse](s.T(), rr)
		s.Require().Len(resp.Events, 1)
		s.Equal(string(audit.EventOTPIssued), resp.Events[0].Action)
	})

	s.Run("limit applies after filtering", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/audit/events?limit=1"))
		resp := testutil.UnmarshalResponse[AuditEventsResponse](s.T(), rr)
		s.Equal(1, resp.Total)
	})

	s.Run("rejects a bad limit", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/audit/events?limit=0"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}
