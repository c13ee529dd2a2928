package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	httphandler "github.com/signalix/smsverify/internal/http"
	"github.com/signalix/smsverify/internal/http/handlers"
	"github.com/signalix/smsverify/internal/locale"
	"github.com/signalix/smsverify/internal/logging"
	"github.com/signalix/smsverify/internal/middleware"
)

type okVerifier struct{}

func (okVerifier) RequestVerification(context.Context, string, string) error { return nil }

func (okVerifier) ConfirmVerification(context.Context, string, string, string) error { return nil }

func newLimitedRouter(t *testing.T, trustProxy bool) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	limiter := middleware.NewRateLimiter(ctx, 10*time.Minute, 1)
	h := handlers.NewVerificationHandler(okVerifier{}, locale.NewCatalog(), limiter, nil, logging.Discard())
	return httphandler.NewRouter(h, handlers.NewHealthHandler(nil), trustProxy)
}

// postFrom sends one request per remote address and collects the status codes.
func postFrom(router http.Handler, remoteAddrs []string, forwarded []string) []int {
	codes := make([]int, 0, len(remoteAddrs))
	for i, addr := range remoteAddrs {
		req := httptest.NewRequest(http.MethodPost, "/v1/verifications", strings.NewReader(`{"phone_number":"+14155552671"}`))
		req.Header.Set(locale.HeaderLanguageID, "en")
		req.RemoteAddr = addr
		if forwarded != nil {
			req.Header.Set("X-Forwarded-For", forwarded[i])
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}

func TestRateLimitSharedAcrossSourcePorts(t *testing.T) {
	router := newLimitedRouter(t, false)
	codes := postFrom(router, []string{"203.0.113.7:40001", "203.0.113.7:40002", "203.0.113.7:40003"}, nil)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	router := newLimitedRouter(t, false)
	addrs := []string{"203.0.113.7:40001", "203.0.113.7:40002", "203.0.113.7:40003"}
	codes := postFrom(router, addrs, []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"})
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	router := newLimitedRouter(t, true)
	addrs := []string{"10.0.0.2:40001", "10.0.0.2:40002", "10.0.0.2:40003"}
	codes := postFrom(router, addrs, []string{"198.51.100.1", "198.51.100.2", "198.51.100.1"})
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestHealthRoute(t *testing.T) {
	router := newLimitedRouter(t, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
