package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/filevault/filevault/internal/queue"
)

func newTestQueue(t *testing.T, maxAttempts int) *queue.Queue {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q, err := queue.New(db, queue.Config{
		Workers:      1,
		MaxAttempts:  maxAttempts,
		PollInterval: 10 * time.Millisecond,
		Backoff:      10 * time.Millisecond,
		Lease:        time.Minute,
	})
	require.NoError(t, err)
	return q
}

func pending(q *queue.Queue) int64 {
	n, err := q.Pending(context.Background())
	if err != nil {
		return -1
	}
	return n
}

func TestAckRemovesJob(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()

	var delivered atomic.Int64
	q.Start(func(ctx context.Context, job queue.Job) error {
		delivered.Add(1)
		assert.Equal(t, "owner-1", job.OwnerID)
		assert.Equal(t, "file-1", job.FileID)
		return nil
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(ctx, "owner-1", "file-1"))

	require.Eventually(t, func() bool {
		return delivered.Load() == 1 && pending(q) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransientFailureIsRetried(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()

	var delivered atomic.Int64
	q.Start(func(ctx context.Context, job queue.Job) error {
		if delivered.Add(1) < 3 {
			return fmt.Errorf("flaky")
		}
		return nil
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(ctx, "owner-1", "file-1"))

	require.Eventually(t, func() bool {
		return delivered.Load() == 3 && pending(q) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetryBudgetExhausted(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()

	var delivered atomic.Int64
	q.Start(func(ctx context.Context, job queue.Job) error {
		delivered.Add(1)
		return errors.New("always broken")
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(ctx, "owner-1", "file-1"))

	// abandoned after the budget, not retried forever
	require.Eventually(t, func() bool {
		return pending(q) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 3, delivered.Load())
}

func TestPermanentFailureNotRetried(t *testing.T) {
	q := newTestQueue(t, 5)
	ctx := context.Background()

	var delivered atomic.Int64
	q.Start(func(ctx context.Context, job queue.Job) error {
		delivered.Add(1)
		return fmt.Errorf("%w: missing fileId", queue.ErrPermanent)
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(ctx, "owner-1", ""))

	require.Eventually(t, func() bool {
		return pending(q) == 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, delivered.Load())
}

func TestJobsSurviveWithoutWorkers(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "owner-1", "file-1"))
	require.NoError(t, q.Enqueue(ctx, "owner-1", "file-2"))

	assert.EqualValues(t, 2, pending(q))
}
