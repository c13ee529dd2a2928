package tests

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// TruncateAttempts clears verification_attempts for a clean test state.
func TruncateAttempts(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE verification_attempts"); err != nil {
		return fmt.Errorf("truncate verification_attempts: %w", err)
	}
	return nil
}

// TwilioStub imitates the two Twilio Verify endpoints the service calls.
// It accepts exactly one code for every number.
type TwilioStub struct {
	Server *httptest.Server

	mu         sync.Mutex
	code       string
	sendStatus int
	sends      int
	checks     int
}

// NewTwilioStub starts a stub Verify API for serviceID that accepts code.
func NewTwilioStub(serviceID, code string) *TwilioStub {
	s := &TwilioStub{code: code, sendStatus: http.StatusCreated}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/Services/"+serviceID+"/Verifications", s.handleSend)
	mux.HandleFunc("POST /v2/Services/"+serviceID+"/VerificationCheck", s.handleCheck)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetSendStatus changes the HTTP status returned by the send endpoint.
func (s *TwilioStub) SetSendStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendStatus = status
}

// Sends returns the number of send calls received.
func (s *TwilioStub) Sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

// Checks returns the number of check calls received.
func (s *TwilioStub) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// Close shuts the stub down.
func (s *TwilioStub) Close() { s.Server.Close() }

func (s *TwilioStub) handleSend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.sends++
	status := s.sendStatus
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusCreated {
		fmt.Fprintf(w, `{"status":"pending","to":%q}`, r.FormValue("To"))
		return
	}
	fmt.Fprint(w, `{"code":60200,"message":"Invalid parameter"}`)
}

func (s *TwilioStub) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.checks++
	code := s.code
	s.mu.Unlock()

	status := "pending"
	if r.FormValue("Code") == code {
		status = "approved"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":%q}`, status)
}
