package storage

import (
	"context"
	"sync"
	"time"

	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/retry"
)

// WriteOp names the operation reported to WriterOptions.OnResult
type WriteOp string

const (
	OpSet    WriteOp = "set"
	OpDelete WriteOp = "delete"
)

// WriterOptions configures a SnapshotWriter
type WriterOptions struct {
	// MaxPending bounds the number of distinct keys waiting to be written.
	MaxPending int
	Retry      *retry.RetryConfig
	// RetryInterval is how often Run retries records whose write failed.
	RetryInterval time.Duration
	// OnResult is called after each write attempt sequence finishes.
	OnResult func(op WriteOp, err error)
}

type pendingWrite struct {
	rec    Record
	delete bool
}

// SnapshotWriter persists records in the background. Enqueue never blocks:
// only the latest record per key is kept, and older pending records for the
// same key are superseded. Writes go through the store with retry.
type SnapshotWriter struct {
	store Store
	opts  WriterOptions

	mu      sync.Mutex
	pending map[Key]pendingWrite
	wake    chan struct{}

	writeMu sync.Mutex // serializes drains
}

// NewSnapshotWriter creates a writer in front of store
func NewSnapshotWriter(store Store, opts WriterOptions) *SnapshotWriter {
	if opts.MaxPending <= 0 {
		opts.MaxPending = 1024
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultRetryConfig()
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	return &SnapshotWriter{
		store:   store,
		opts:    opts,
		pending: make(map[Key]pendingWrite),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue schedules rec to be written under key. It returns false when the
// record was dropped because too many keys are pending.
func (w *SnapshotWriter) Enqueue(key Key, rec Record) bool {
	w.mu.Lock()
	cur, exists := w.pending[key]
	if exists && !cur.delete && cur.rec.Revision >= rec.Revision {
		w.mu.Unlock()
		return true
	}
	if !exists && len(w.pending) >= w.opts.MaxPending {
		w.mu.Unlock()
		logging.WithField("key", key.String()).Warn("Snapshot queue full, dropping write")
		return false
	}
	w.pending[key] = pendingWrite{rec: rec}
	w.mu.Unlock()

	w.signal()
	return true
}

// EnqueueDelete schedules removal of key, superseding any pending write
func (w *SnapshotWriter) EnqueueDelete(key Key) {
	w.mu.Lock()
	w.pending[key] = pendingWrite{delete: true}
	w.mu.Unlock()

	w.signal()
}

func (w *SnapshotWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of keys waiting to be written
func (w *SnapshotWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
// Records whose write failed are retried every RetryInterval.
func (w *SnapshotWriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return w.Flush(flushCtx)
		case <-w.wake:
			_ = w.Flush(ctx)
		case <-ticker.C:
			if w.Pending() > 0 {
				_ = w.Flush(ctx)
			}
		}
	}
}

// Flush writes every pending record and returns the last error seen. Failed
// records stay pending unless a newer one for the same key arrived meanwhile.
func (w *SnapshotWriter) Flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[Key]pendingWrite)
	w.mu.Unlock()

	var lastErr error
	for key, pw := range batch {
		if err := w.write(ctx, key, pw); err != nil {
			w.requeue(key, pw)
			lastErr = err
		}
	}
	return lastErr
}

// FlushKey writes the pending record for key, after any drain in progress.
// It is a no-op when nothing is pending for key.
func (w *SnapshotWriter) FlushKey(ctx context.Context, key Key) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	pw, ok := w.pending[key]
	delete(w.pending, key)
	w.mu.Unlock()
	if !ok {
		return nil
	}

	if err := w.write(ctx, key, pw); err != nil {
		w.requeue(key, pw)
		return err
	}
	return nil
}

// requeue puts a failed write back unless it has been superseded
func (w *SnapshotWriter) requeue(key Key, failed pendingWrite) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur, exists := w.pending[key]
	switch {
	case !exists:
		w.pending[key] = failed
	case cur.delete || failed.delete:
		// anything enqueued after the batch was taken is newer
	case cur.rec.Revision < failed.rec.Revision:
		w.pending[key] = failed
	}
}
func (w *SnapshotWriter) write(ctx context.Context, key Key, pw pendingWrite) error {
	op := OpSet
	if pw.delete {
		op = OpDelete
	}

	result := retry.WithExponentialBackoff(ctx, w.opts.Retry, func(ctx context.Context, attempt int) error {
		if pw.delete {
			return w.store.Delete(ctx, key)
		}
		return w.store.Set(ctx, key, pw.rec)
	})

	if !result.Success {
		logging.WithError(result.LastError).WithFields(map[string]interface{}{
			"key":      key.String(),
			"op":       string(op),
			"revision": pw.rec.Revision,
			"attempts": result.Attempts,
		}).Error("Failed to persist snapshot")
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(op, result.LastError)
	}
	return result.LastError
}
