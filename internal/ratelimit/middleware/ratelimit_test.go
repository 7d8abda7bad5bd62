package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credify/internal/ratelimit/models"
	"credify/internal/ratelimit/store/bucket"
	"credify/pkg/platform/circuit"
	"credify/pkg/platform/middleware/metadata"
	"credify/pkg/testutil"
)

type downStore struct{ calls int }

func (d *downStore) Allow(context.Context, string, models.Limit) (*models.Result, error) {
	d.calls++
	return nil, errors.New("redis: connection refused")
}

var twoPerMinute = models.Limit{Requests: 2, Window: time.Minute}

func newRouter(m *Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)
	echo := func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
	r.With(m.PerIP("ping", twoPerMinute)).Get("/ping", echo)
	r.With(m.PerEmail("otp_send", twoPerMinute)).Post("/otp/send", echo)
	return r
}

func send(t *testing.T, router http.Handler, addr string) (int, string) {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/otp/send", map[string]string{"email": addr}))
	return rr.Code, rr.Body.String()
}

func TestPerIP(t *testing.T) {
	router := newRouter(New(bucket.New(), slog.Default()))

	for i := 0; i < 2; i++ {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))
	testutil.AssertRateLimited(t, rr)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestPerEmailNormalizesAndRestoresBody(t *testing.T) {
	router := newRouter(New(bucket.New(), slog.Default()))

	code, body := send(t, router, "Ada@X.edu")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Ada@X.edu")

	code, _ = send(t, router, " ada@x.edu ")
	assert.Equal(t, http.StatusOK, code)

	code, _ = send(t, router, "ada@x.edu")
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = send(t, router, "bob@x.edu")
	assert.Equal(t, http.StatusOK, code)
}

func TestFailsOpenWithoutFallback(t *testing.T) {
	router := newRouter(New(&downStore{}, slog.Default()))
	for i := 0; i < 5; i++ {
		code, _ := send(t, router, "ada@x.edu")
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestFallbackAfterBreakerOpens(t *testing.T) {
	primary := &downStore{}
	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	router := newRouter(New(primary, slog.Default(), WithFallback(bucket.New(), breaker)))

	for i := 0; i < 2; i++ {
		code, _ := send(t, router, "ada@x.edu")
		assert.Equal(t, http.StatusOK, code)
	}
	code, _ := send(t, router, "ada@x.edu")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 3, primary.calls)
}

func TestDisabled(t *testing.T) {
	router := newRouter(New(&downStore{}, slog.Default(), WithDisabled(true)))
	for i := 0; i < 5; i++ {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestPerEmailPassesLargeBodyIntact(t *testing.T) {
	router := newRouter(New(bucket.New(), slog.Default()))
	payload := map[string]string{"email": "ada@x.edu", "note": strings.Repeat("n", 2*maxPeekBytes)}
	want, err := json.Marshal(payload)
	require.NoError(t, err)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/otp/send", payload))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, len(want), rr.Body.Len())
	assert.JSONEq(t, string(want), rr.Body.String())
}
