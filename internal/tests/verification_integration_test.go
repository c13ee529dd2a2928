package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalix/smsverify/internal/config"
	"github.com/signalix/smsverify/internal/db"
	httphandler "github.com/signalix/smsverify/internal/http"
	"github.com/signalix/smsverify/internal/http/handlers"
	"github.com/signalix/smsverify/internal/locale"
	"github.com/signalix/smsverify/internal/logging"
	"github.com/signalix/smsverify/internal/middleware"
	"github.com/signalix/smsverify/internal/provider"
	"github.com/signalix/smsverify/internal/repo"
	"github.com/signalix/smsverify/internal/verification"
)

const (
	testPhone     = "+14155552671"
	testServiceID = "VA0000000000000000000000000000000"
	testCode      = "123456"
)

// testServer holds the server, DB and Twilio stub for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Twilio *TwilioStub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	stub := NewTwilioStub(testServiceID, testCode)
	t.Cleanup(stub.Close)

	t.Setenv("DELIVERY_PROVIDER", config.ProviderTwilio)
	t.Setenv("TWILIO_ACCOUNT_SID", "AC-test")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_SERVICES_ID", testServiceID)
	t.Setenv("TWILIO_BASE_URL", stub.Server.URL)

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxOpenConns: 10, Logger: logging.Discard()})
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(database), "migrations must run successfully")

	store := repo.NewAttemptRepo(database, cfg.AttemptWindow)
	twilio := provider.NewTwilioVerify(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.ServiceID, cfg.Twilio.BaseURL)
	catalog := locale.NewCatalog()
	svc := verification.NewService(store, twilio, catalog, verification.WithLogger(logging.Discard()))

	verificationHandler := handlers.NewVerificationHandler(svc, catalog, middleware.NoLimit{}, middleware.NoLimit{}, logging.Discard())
	router := httphandler.NewRouter(verificationHandler, handlers.NewHealthHandler(database), false)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Twilio: stub}
}

func (s *testServer) BaseURL() string { return s.Server.URL }

func (s *testServer) Truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateAttempts(context.Background(), s.DB), "truncate verification_attempts")
}

// post sends a JSON body with the given x-language-id and returns status and body.
func (s *testServer) post(t *testing.T, path, lang string, body any) (int, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.BaseURL()+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if lang != "" {
		req.Header.Set(locale.HeaderLanguageID, lang)
	}
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, readBody(resp)
}

func (s *testServer) attemptStatus(t *testing.T, phone string) (string, bool) {
	t.Helper()
	var status string
	err := s.DB.QueryRow("SELECT status FROM verification_attempts WHERE phone_number = $1", phone).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false
	}
	require.NoError(t, err)
	return status, true
}

// errorResponse matches error JSON body
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, body string) errorResponse {
	t.Helper()
	var res errorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &res), "body: %s", body)
	return res
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestVerificationIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	catalog := locale.NewCatalog()
	request := map[string]string{"phone_number": testPhone}

	t.Run("A_HealthCheck", func(t *testing.T) {
		resp, err := ts.Server.Client().Get(ts.BaseURL() + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /health must return 200")
		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body["ok"])
	})

	t.Run("B_RequestTwiceIsAlreadyPending", func(t *testing.T) {
		ts.Truncate(t)
		status, body := ts.post(t, "/v1/verifications", "en", request)
		require.Equal(t, http.StatusNoContent, status, "first request must succeed; body: %s", body)

		status, body = ts.post(t, "/v1/verifications", "de", request)
		assert.Equal(t, http.StatusConflict, status)
		res := decodeError(t, body)
		assert.Equal(t, locale.KeyVerificationAlreadyExists, res.Error)
		assert.Equal(t, catalog.Message("de", locale.KeyVerificationAlreadyExists), res.Message)

		attempt, ok := ts.attemptStatus(t, testPhone)
		assert.True(t, ok)
		assert.Equal(t, "pending", attempt)
	})

	t.Run("C_InvalidLanguageTouchesNothing", func(t *testing.T) {
		ts.Truncate(t)
		sends := ts.Twilio.Sends()
		status, body := ts.post(t, "/v1/verifications", "ja", request)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, locale.KeyInvalidLanguageCode, decodeError(t, body).Error)

		_, ok := ts.attemptStatus(t, testPhone)
		assert.False(t, ok, "no attempt may be recorded for a rejected locale")
		assert.Equal(t, sends, ts.Twilio.Sends())
	})

	t.Run("D_ProviderFailureDoesNotBlock", func(t *testing.T) {
		ts.Truncate(t)
		ts.Twilio.SetSendStatus(http.StatusBadRequest)
		defer ts.Twilio.SetSendStatus(http.StatusCreated)

		status, body := ts.post(t, "/v1/verifications", "fr", request)
		assert.Equal(t, http.StatusInternalServerError, status)
		res := decodeError(t, body)
		assert.Equal(t, locale.KeySMSSendFailed, res.Error)
		assert.Equal(t, catalog.Message("fr", locale.KeySMSSendFailed), res.Message)

		attempt, ok := ts.attemptStatus(t, testPhone)
		assert.True(t, ok)
		assert.Equal(t, "send_failed", attempt)

		ts.Twilio.SetSendStatus(http.StatusCreated)
		status, body = ts.post(t, "/v1/verifications", "fr", request)
		assert.Equal(t, http.StatusNoContent, status, "retry after failed send must be admitted; body: %s", body)
	})

	t.Run("E_ExpiredAttemptIsSuperseded", func(t *testing.T) {
		ts.Truncate(t)
		status, _ := ts.post(t, "/v1/verifications", "en", request)
		require.Equal(t, http.StatusNoContent, status)

		_, err := ts.DB.Exec("UPDATE verification_attempts SET created_at = created_at - interval '11 minutes' WHERE phone_number = $1", testPhone)
		require.NoError(t, err)

		status, body := ts.post(t, "/v1/verifications", "en", request)
		assert.Equal(t, http.StatusNoContent, status, "expired attempt must not block; body: %s", body)
	})

	t.Run("F_ConfirmWithoutAttempt", func(t *testing.T) {
		ts.Truncate(t)
		status, body := ts.post(t, "/v1/verifications/confirm", "en", map[string]string{"phone_number": testPhone, "code": testCode})
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, locale.KeySMSSendFailed, decodeError(t, body).Error)
	})

	t.Run("G_InvalidPhoneNumber", func(t *testing.T) {
		status, body := ts.post(t, "/v1/verifications", "en", map[string]string{"phone_number": "not-a-number"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, locale.KeyInvalidPhoneNumber, decodeError(t, body).Error)
	})
}
