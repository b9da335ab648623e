package exam

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/rotation"
	"github.com/mcdev12/osce/go/internal/store"
)

type writeOp struct {
	clear bool
	snap  rotation.ExamSnapshot
}

// snapshotWriter persists snapshots off the timing loop. Only the latest
// pending operation is kept; older ones are dropped, never queued.
type snapshotWriter struct {
	store   store.Store
	timeout time.Duration

	mu      sync.Mutex
	pending *writeOp
	wakeCh  chan struct{}
}

func newSnapshotWriter(st store.Store) *snapshotWriter {
	return &snapshotWriter{
		store:   st,
		timeout: 2 * time.Second,
		wakeCh:  make(chan struct{}, 1),
	}
}

func (w *snapshotWriter) SaveSnapshot(snap rotation.ExamSnapshot) {
	w.enqueue(writeOp{snap: snap})
}

func (w *snapshotWriter) ClearSnapshot() {
	w.enqueue(writeOp{clear: true})
}

func (w *snapshotWriter) enqueue(op writeOp) {
	w.mu.Lock()
	w.pending = &op
	w.mu.Unlock()

	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// run writes pending operations until ctx is done, then flushes once more.
func (w *snapshotWriter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return
		case <-w.wakeCh:
			w.flush(ctx)
		}
	}
}

func (w *snapshotWriter) flush(ctx context.Context) {
	w.mu.Lock()
	op := w.pending
	w.pending = nil
	w.mu.Unlock()
	if op == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	if op.clear {
		err = w.store.Delete(ctx, store.KeyActiveState)
	} else {
		err = w.store.Set(ctx, store.KeyActiveState, op.snap)
	}
	if err != nil {
		// Losing a snapshot only weakens crash recovery; the exam keeps going.
		log.Error().Err(err).Bool("clear", op.clear).Msg("Failed to persist exam snapshot")
	}
}
