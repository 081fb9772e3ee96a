package persistence

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultQueueCapacity = 256
	writeAttempts        = 3
	retryBaseDelay       = 300 * time.Millisecond
)

type writeJob struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue serializes database writes on one background goroutine so hot
// paths never block on sqlite.
type WriterQueue struct {
	logger *slog.Logger
	queue  chan writeJob
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeJob, capacity),
	}
}

// Enqueue never blocks the caller. When the queue is full the job is handed
// off to a goroutine that waits for room.
func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	job := writeJob{name: name, fn: fn}
	select {
	case w.queue <- job:
	default:
		go func() { w.queue <- job }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.queue:
				w.runWithRetry(ctx, job)
			}
		}
	}()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, job writeJob) {
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		err := job.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "job", job.name, "attempt", attempt, "error", err)
		if attempt == writeAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}
}
