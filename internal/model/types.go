package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus tracks the delivery state of a verification attempt
type AttemptStatus string

const (
	// AttemptPending means the challenge was handed to the provider (or is about to be)
	AttemptPending AttemptStatus = "pending"
	// AttemptSendFailed means the provider refused or never received the challenge
	AttemptSendFailed AttemptStatus = "send_failed"
)

// VerificationAttempt represents an in-flight phone verification.
// At most one row exists per phone number.
type VerificationAttempt struct {
	ID          uuid.UUID
	PhoneNumber string
	Status      AttemptStatus
	CreatedAt   time.Time
}

// LiveAt reports whether the attempt still blocks a new send at now.
func (a VerificationAttempt) LiveAt(now time.Time, window time.Duration) bool {
	return a.Status == AttemptPending && now.Sub(a.CreatedAt) < window
}
