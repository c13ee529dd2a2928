package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/signalix/smsverify/internal/model"
)

// MemoryAttemptRepo is an in-process AttemptRepo for tests and local runs.
type MemoryAttemptRepo struct {
	mu       sync.Mutex
	window   time.Duration
	attempts map[string]model.VerificationAttempt
}

// NewMemoryAttemptRepo creates an empty in-memory store with the given admission window.
func NewMemoryAttemptRepo(window time.Duration) *MemoryAttemptRepo {
	return &MemoryAttemptRepo{
		window:   window,
		attempts: make(map[string]model.VerificationAttempt),
	}
}

func (r *MemoryAttemptRepo) HasLiveAttempt(_ context.Context, phone string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[phone]
	return ok && a.LiveAt(now, r.window), nil
}

func (r *MemoryAttemptRepo) InsertAttempt(_ context.Context, id uuid.UUID, phone string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[phone]; ok && a.LiveAt(now, r.window) {
		return 0, nil
	}
	r.attempts[phone] = model.VerificationAttempt{
		ID:          id,
		PhoneNumber: phone,
		Status:      model.AttemptPending,
		CreatedAt:   now,
	}
	return 1, nil
}

func (r *MemoryAttemptRepo) DeleteAttempt(_ context.Context, phone string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[phone]; !ok {
		return 0, nil
	}
	delete(r.attempts, phone)
	return 1, nil
}

func (r *MemoryAttemptRepo) MarkSendFailed(_ context.Context, phone string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[phone]
	if !ok || a.ID != id || a.Status != model.AttemptPending {
		return ErrAttemptNotFound
	}
	a.Status = model.AttemptSendFailed
	r.attempts[phone] = a
	return nil
}

func (r *MemoryAttemptRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for phone, a := range r.attempts {
		if !a.LiveAt(now, r.window) {
			delete(r.attempts, phone)
			n++
		}
	}
	return n, nil
}

func (r *MemoryAttemptRepo) GetByPhone(_ context.Context, phone string) (model.VerificationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[phone]
	if !ok {
		return model.VerificationAttempt{}, ErrAttemptNotFound
	}
	return a, nil
}

// Len returns the number of stored attempt rows.
func (r *MemoryAttemptRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}
