package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// ErrPermanent marks a job failure that must not be retried: a malformed
// payload or a file that no longer resolves for the claimed owner. Handlers
// wrap it; anything else is treated as transient and retried.
var ErrPermanent = errors.New("permanent job failure")

// Job is one unit of thumbnail work as delivered to a handler.
type Job struct {
	ID       int64
	OwnerID  string
	FileID   string
	Attempts int
}

// Handler processes one job. Returning nil acknowledges the job; wrapping
// ErrPermanent drops it; any other error reschedules it until the retry
// budget runs out.
type Handler func(ctx context.Context, job Job) error

// Config tunes the queue's delivery behavior.
type Config struct {
	Workers      int
	MaxAttempts  int
	PollInterval time.Duration
	Backoff      time.Duration
	Lease        time.Duration
}

// DefaultConfig returns the delivery settings used in production.
func DefaultConfig() Config {
	return Config{
		Workers:      3,
		MaxAttempts:  5,
		PollInterval: time.Second,
		Backoff:      5 * time.Second,
		Lease:        time.Minute,
	}
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
}

// Queue is a durable at-least-once work queue backed by a SQLite table.
// Jobs survive restarts; a claimed job whose worker dies reappears after
// its lease expires, so duplicate delivery is possible and handlers must
// be idempotent.
type Queue struct {
	db     *sql.DB
	config Config
	logger *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New prepares the queue table on db.
func New(db *sql.DB, config Config) (*Queue, error) {
	config.normalize()

	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL DEFAULT '',
		file_id TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		visible_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_visible_at ON jobs(visible_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create jobs table: %w", err)
	}

	return &Queue{
		db:     db,
		config: config,
		logger: log.New(os.Stdout, "[Queue] ", log.LstdFlags),
	}, nil
}

// Enqueue makes a job visible for immediate delivery.
func (q *Queue) Enqueue(ctx context.Context, ownerID, fileID string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs (owner_id, file_id, visible_at) VALUES (?, ?, ?)`,
		ownerID, fileID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Pending reports the number of jobs not yet acknowledged.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

// Start launches the worker pool. Each worker polls for visible jobs and
// runs handler on them until Stop is called.
func (q *Queue) Start(handler Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, handler)
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) work(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job, ok, err := q.claim(ctx)
				if err != nil {
					if ctx.Err() == nil {
						q.logger.Printf("claim failed: %v", err)
					}
					break
				}
				if !ok {
					break
				}
				q.run(ctx, handler, job)
			}
		}
	}
}

// claim leases the oldest visible job. The lease pushes visible_at into the
// future so the job reappears on its own if this worker never settles it.
func (q *Queue) claim(ctx context.Context) (Job, bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var job Job
	err = tx.QueryRowContext(ctx,
		`SELECT id, owner_id, file_id, attempts FROM jobs
		 WHERE visible_at <= ? ORDER BY id LIMIT 1`, now,
	).Scan(&job.ID, &job.OwnerID, &job.FileID, &job.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}

	job.Attempts++
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET attempts = ?, visible_at = ? WHERE id = ?`,
		job.Attempts, now.Add(q.config.Lease), job.ID)
	if err != nil {
		return Job{}, false, err
	}

	return job, true, tx.Commit()
}

func (q *Queue) run(ctx context.Context, handler Handler, job Job) {
	err := handler(ctx, job)
	if err == nil {
		q.ack(job)
		return
	}

	if errors.Is(err, ErrPermanent) {
		q.logger.Printf("job %d dropped: %v", job.ID, err)
		q.ack(job)
		return
	}

	if job.Attempts >= q.config.MaxAttempts {
		q.logger.Printf("job %d abandoned after %d attempts: %v", job.ID, job.Attempts, err)
		q.ack(job)
		return
	}

	q.logger.Printf("job %d failed (attempt %d), retrying: %v", job.ID, job.Attempts, err)
	if _, rerr := q.db.Exec(
		`UPDATE jobs SET visible_at = ? WHERE id = ?`,
		time.Now().UTC().Add(q.config.Backoff), job.ID); rerr != nil {
		q.logger.Printf("failed to reschedule job %d: %v", job.ID, rerr)
	}
}

// ack removes a settled job. Settlement runs outside the worker context; a
// lost ack only means one extra idempotent redelivery.
func (q *Queue) ack(job Job) {
	if _, err := q.db.Exec(`DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
		q.logger.Printf("failed to ack job %d: %v", job.ID, err)
	}
}
