// Package logger implements a non-blocking, batched task-outcome logger.
//
// Entries are written to an internal buffered channel and flushed in
// batches by a background goroutine, so recording a finished task never
// blocks the pipeline. If the channel fills up (> 10 000 entries), new
// entries are dropped and counted in DroppedLogs.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	channelBuffer = 10_000
	batchSize     = 100
	flushInterval = time.Second
)

// TaskLog is one terminal pipeline task outcome, per spec.md §4.G.
type TaskLog struct {
	ID        uuid.UUID
	RequestID string
	Platform  string
	Model     string
	State     string
	Outcome   string
	LatencyMs uint32
	CreatedAt time.Time
}

// Logger batches TaskLog entries and flushes them as structured log lines.
type Logger struct {
	ch        chan TaskLog
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	droppedLogs int64

	baseCtx context.Context
	log     *slog.Logger
}

// New starts the background flush goroutine. If slogger is nil, a default
// JSON handler on stdout is used.
func New(ctx context.Context, slogger *slog.Logger) (*Logger, error) {
	if ctx == nil {
		return nil, fmt.Errorf("logger: context must not be nil")
	}
	if slogger == nil {
		slogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	l := &Logger{
		ch:      make(chan TaskLog, channelBuffer),
		done:    make(chan struct{}),
		baseCtx: ctx,
		log:     slogger,
	}

	l.wg.Add(1)
	go l.run()

	return l, nil
}

// Log enqueues entry for the next flush. Never blocks: if the channel is
// full, the entry is dropped.
func (l *Logger) Log(entry TaskLog) {
	select {
	case l.ch <- entry:
	default:
		atomic.AddInt64(&l.droppedLogs, 1)
	}
}

// DroppedLogs returns the count of entries dropped due to a full channel.
func (l *Logger) DroppedLogs() int64 {
	return atomic.LoadInt64(&l.droppedLogs)
}

// Close drains the channel, flushes the remaining batch, and waits for the
// background goroutine to exit.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]TaskLog, 0, batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			l.log.InfoContext(ctx, "task",
				slog.String("id", e.ID.String()),
				slog.String("requestId", e.RequestID),
				slog.String("platform", e.Platform),
				slog.String("model", e.Model),
				slog.String("state", e.State),
				slog.String("outcome", e.Outcome),
				slog.Uint64("latency_ms", uint64(e.LatencyMs)),
				slog.Time("created_at", normalizeTime(e.CreatedAt)),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-l.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush(l.baseCtx)
			}

		case <-ticker.C:
			flush(l.baseCtx)

		case <-l.done:
			for {
				select {
				case entry := <-l.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush(l.baseCtx)
					}
				default:
					flush(l.baseCtx)
					return
				}
			}
		}
	}
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
