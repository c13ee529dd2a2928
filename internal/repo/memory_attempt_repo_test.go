package repo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalix/smsverify/internal/model"
)

const testPhone = "+15551234567"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryInsertBlocksWithinWindow(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)

	live, err := r.HasLiveAttempt(ctx, testPhone, t0)
	require.NoError(t, err)
	assert.False(t, live)

	n, err := r.InsertAttempt(ctx, uuid.New(), testPhone, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	live, _ = r.HasLiveAttempt(ctx, testPhone, t0.Add(9*time.Minute))
	assert.True(t, live)

	n, err = r.InsertAttempt(ctx, uuid.New(), testPhone, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "live attempt must block a second insert")
}

func TestMemoryWindowBoundary(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)
	_, _ = r.InsertAttempt(ctx, uuid.New(), testPhone, t0)

	live, _ := r.HasLiveAttempt(ctx, testPhone, t0.Add(10*time.Minute))
	assert.False(t, live, "an attempt exactly one window old is expired")

	n, err := r.InsertAttempt(ctx, uuid.New(), testPhone, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	a, err := r.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Minute), a.CreatedAt)
	assert.Equal(t, 1, r.Len())
}

func TestMemorySendFailedDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)
	id := uuid.New()
	_, _ = r.InsertAttempt(ctx, id, testPhone, t0)

	assert.ErrorIs(t, r.MarkSendFailed(ctx, testPhone, uuid.New()), ErrAttemptNotFound)
	require.NoError(t, r.MarkSendFailed(ctx, testPhone, id))
	assert.ErrorIs(t, r.MarkSendFailed(ctx, testPhone, id), ErrAttemptNotFound)

	live, _ := r.HasLiveAttempt(ctx, testPhone, t0.Add(time.Second))
	assert.False(t, live)

	a, err := r.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSendFailed, a.Status)

	n, _ := r.InsertAttempt(ctx, uuid.New(), testPhone, t0.Add(time.Second))
	assert.EqualValues(t, 1, n)
}

func TestMemoryDeleteAttempt(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)

	n, err := r.DeleteAttempt(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _ = r.InsertAttempt(ctx, uuid.New(), testPhone, t0)
	n, err = r.DeleteAttempt(ctx, testPhone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.GetByPhone(ctx, testPhone)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestMemoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)
	_, _ = r.InsertAttempt(ctx, uuid.New(), "+15550000001", t0)
	_, _ = r.InsertAttempt(ctx, uuid.New(), "+15550000002", t0.Add(8*time.Minute))
	failed := uuid.New()
	_, _ = r.InsertAttempt(ctx, failed, "+15550000003", t0.Add(8*time.Minute))
	require.NoError(t, r.MarkSendFailed(ctx, "+15550000003", failed))

	n, err := r.DeleteExpired(ctx, t0.Add(12*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 1, r.Len())

	_, err = r.GetByPhone(ctx, "+15550000002")
	assert.NoError(t, err)
}

func TestMemoryConcurrentInsertAdmitsOne(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := r.InsertAttempt(ctx, uuid.New(), testPhone, t0)
			if err == nil {
				admitted.Add(n)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, admitted.Load())
}

func TestMemoryMarkSendFailedSkipsSupersededAttempt(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryAttemptRepo(10 * time.Minute)

	stale := uuid.New()
	_, _ = r.InsertAttempt(ctx, stale, testPhone, t0)
	fresh := uuid.New()
	n, err := r.InsertAttempt(ctx, fresh, testPhone, t0.Add(11*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	assert.ErrorIs(t, r.MarkSendFailed(ctx, testPhone, stale), ErrAttemptNotFound)

	a, err := r.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, fresh, a.ID)
	assert.Equal(t, model.AttemptPending, a.Status)
	live, _ := r.HasLiveAttempt(ctx, testPhone, t0.Add(12*time.Minute))
	assert.True(t, live, "a late failure of the old send must not unblock the new attempt")
}
