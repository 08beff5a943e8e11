package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
	"spectate/server/internal/telemetry"
)

// DefaultWriterCapacity bounds the number of pending writes.
const DefaultWriterCapacity = 256

const writerDroppedMetricKey = "store_writes_dropped_total"

type writeOp struct {
	name string
	run  func(ctx context.Context) error
}

type pendingDescriptor struct {
	gen        uint64
	descriptor session.Descriptor
}

// Writer applies store writes on its own goroutine so the tick loop never
// waits on disk. Writes are dropped, and counted, when the queue is full.
// Descriptors still in the queue are visible to TakeDescriptor.
type Writer struct {
	store   *Store
	ops     chan writeOp
	logger  telemetry.Logger
	metrics telemetry.Metrics
	closed  atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	gen     uint64
	pending map[string]pendingDescriptor
}

// NewWriter wraps store with a bounded write queue.
func NewWriter(store *Store, capacity int, logger telemetry.Logger, metrics telemetry.Metrics) *Writer {
	if capacity <= 0 {
		capacity = DefaultWriterCapacity
	}
	return &Writer{
		store:   store,
		ops:     make(chan writeOp, capacity),
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
		pending: make(map[string]pendingDescriptor),
	}
}

// Run applies queued writes until ctx is cancelled, then drains what is left
// under a short deadline.
func (w *Writer) Run(ctx context.Context) error {
	defer close(w.done)
	opCtx := context.WithoutCancel(ctx)
	for {
		select {
		case op := <-w.ops:
			w.apply(opCtx, op)
		case <-ctx.Done():
			w.closed.Store(true)
			drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				select {
				case op := <-w.ops:
					w.apply(drainCtx, op)
				default:
					return nil
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (w *Writer) Wait() {
	<-w.done
}

func (w *Writer) apply(ctx context.Context, op writeOp) {
	if err := op.run(ctx); err != nil && w.logger != nil {
		w.logger.Printf("store %s failed: %v", op.name, err)
	}
}

func (w *Writer) enqueue(name string, run func(ctx context.Context) error) bool {
	if w == nil || w.closed.Load() {
		return false
	}
	select {
	case w.ops <- writeOp{name: name, run: run}:
		return true
	default:
		if w.metrics != nil {
			w.metrics.Add(writerDroppedMetricKey, 1)
		}
		if w.logger != nil {
			w.logger.Printf("store queue full, dropping %s", name)
		}
		return false
	}
}

// SavePoint queues a point upsert.
func (w *Writer) SavePoint(p session.Point, createdBy string) bool {
	return w.enqueue("save point", func(ctx context.Context) error {
		return w.store.SavePoint(ctx, p, createdBy)
	})
}

// SaveDescriptor queues a resume descriptor.
func (w *Writer) SaveDescriptor(viewer string, d session.Descriptor) bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.pending[viewer] = pendingDescriptor{gen: gen, descriptor: d}
	w.mu.Unlock()

	queued := w.enqueue("save descriptor", func(ctx context.Context) error {
		if !w.pendingIs(viewer, gen) {
			return nil
		}
		err := w.store.SaveDescriptor(ctx, viewer, d)
		w.mu.Lock()
		if p, ok := w.pending[viewer]; ok && p.gen == gen {
			delete(w.pending, viewer)
		}
		w.mu.Unlock()
		return err
	})
	if !queued {
		w.mu.Lock()
		if p, ok := w.pending[viewer]; ok && p.gen == gen {
			delete(w.pending, viewer)
		}
		w.mu.Unlock()
	}
	return queued
}

func (w *Writer) pendingIs(viewer string, gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[viewer]
	return ok && p.gen == gen
}

// RecordUsage queues a usage event.
func (w *Writer) RecordUsage(viewer string, target session.Target, mode camera.ViewMode, at time.Time) bool {
	return w.enqueue("record usage", func(ctx context.Context) error {
		return w.store.RecordUsage(ctx, viewer, target, mode, at)
	})
}

// TakeDescriptor returns a queued descriptor if one is pending, otherwise
// reads through to the store. Either way the stored row is consumed.
func (w *Writer) TakeDescriptor(ctx context.Context, viewer string) (session.Descriptor, bool, error) {
	w.mu.Lock()
	p, ok := w.pending[viewer]
	if ok {
		delete(w.pending, viewer)
	}
	w.mu.Unlock()

	stored, found, err := w.store.TakeDescriptor(ctx, viewer)
	if ok {
		return p.descriptor, true, nil
	}
	return stored, found, err
}

// LoadPoints reads through to the store.
func (w *Writer) LoadPoints(ctx context.Context) ([]session.Point, error) {
	return w.store.LoadPoints(ctx)
}

// Usage reads through to the store.
func (w *Writer) Usage(ctx context.Context, viewer string) ([]Usage, error) {
	return w.store.Usage(ctx, viewer)
}
