package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/signalix/smsverify/internal/model"
)

// ErrAttemptNotFound is returned when no attempt row exists for a phone number.
var ErrAttemptNotFound = errors.New("verification attempt not found")

// AttemptRepo is the durable record of in-flight verification attempts keyed by phone number.
// Each call is its own unit of consistency; no call spans a transaction with another.
type AttemptRepo interface {
	// HasLiveAttempt reports whether a pending attempt younger than the window exists at now.
	HasLiveAttempt(ctx context.Context, phone string, now time.Time) (bool, error)
	// InsertAttempt records attempt id created at now unless a live one already exists.
	// Returns 1 when the row was written and 0 when a live attempt blocked it.
	InsertAttempt(ctx context.Context, id uuid.UUID, phone string, now time.Time) (rowsAffected int64, err error)
	// DeleteAttempt removes the attempt for phone and returns the number of rows removed.
	DeleteAttempt(ctx context.Context, phone string) (rowsAffected int64, err error)
	// MarkSendFailed flags pending attempt id so it no longer blocks admission.
	// A row that has since been superseded by a newer attempt is left alone.
	MarkSendFailed(ctx context.Context, phone string, id uuid.UUID) error
	// DeleteExpired removes rows that can no longer block admission at now.
	DeleteExpired(ctx context.Context, now time.Time) (rowsAffected int64, err error)
	// GetByPhone returns the attempt row for phone regardless of liveness.
	GetByPhone(ctx context.Context, phone string) (model.VerificationAttempt, error)
}

type attemptRepo struct {
	db     *sql.DB
	window time.Duration
}

// NewAttemptRepo creates a Postgres-backed AttemptRepo with the given admission window.
func NewAttemptRepo(db *sql.DB, window time.Duration) AttemptRepo {
	return &attemptRepo{db: db, window: window}
}

// HasLiveAttempt evaluates the window inside the query so the age check is atomic with the read.
func (r *attemptRepo) HasLiveAttempt(ctx context.Context, phone string, now time.Time) (bool, error) {
	var live bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM verification_attempts
			WHERE phone_number = $1
			  AND status = $2
			  AND created_at > $3
		)
	`, phone, string(model.AttemptPending), now.Add(-r.window)).Scan(&live)
	if err != nil {
		return false, fmt.Errorf("check live attempt: %w", err)
	}
	return live, nil
}

// InsertAttempt is a conditional upsert: the unique constraint on phone_number keeps one row per
// number, and an existing row is only superseded when it is no longer live.
func (r *attemptRepo) InsertAttempt(ctx context.Context, id uuid.UUID, phone string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_attempts (id, phone_number, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number) DO UPDATE
		SET id = EXCLUDED.id, status = EXCLUDED.status, created_at = EXCLUDED.created_at
		WHERE verification_attempts.status <> $3
		   OR verification_attempts.created_at <= $5
	`, id, phone, string(model.AttemptPending), now, now.Add(-r.window))
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert attempt rows affected: %w", err)
	}
	return n, nil
}

// DeleteAttempt removes the attempt row for phone.
func (r *attemptRepo) DeleteAttempt(ctx context.Context, phone string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM verification_attempts WHERE phone_number = $1
	`, phone)
	if err != nil {
		return 0, fmt.Errorf("delete attempt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attempt rows affected: %w", err)
	}
	return n, nil
}

// MarkSendFailed sets status = send_failed on attempt id while it is still pending.
func (r *attemptRepo) MarkSendFailed(ctx context.Context, phone string, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE verification_attempts SET status = $3
		WHERE phone_number = $1 AND id = $2 AND status = $4
	`, phone, id, string(model.AttemptSendFailed), string(model.AttemptPending))
	if err != nil {
		return fmt.Errorf("mark send failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// DeleteExpired removes send_failed rows and rows older than the window.
func (r *attemptRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM verification_attempts
		WHERE status <> $1 OR created_at <= $2
	`, string(model.AttemptPending), now.Add(-r.window))
	if err != nil {
		return 0, fmt.Errorf("delete expired attempts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return n, nil
}

// GetByPhone returns the attempt row for phone.
func (r *attemptRepo) GetByPhone(ctx context.Context, phone string) (model.VerificationAttempt, error) {
	var attempt model.VerificationAttempt
	var idStr, status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, status, created_at
		FROM verification_attempts
		WHERE phone_number = $1
	`, phone).Scan(&idStr, &attempt.PhoneNumber, &status, &attempt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VerificationAttempt{}, ErrAttemptNotFound
		}
		return model.VerificationAttempt{}, fmt.Errorf("query attempt: %w", err)
	}
	attempt.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.VerificationAttempt{}, fmt.Errorf("parse attempt ID: %w", err)
	}
	attempt.Status = model.AttemptStatus(status)
	return attempt, nil
}
