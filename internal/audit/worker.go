package audit

import (
	"context"
	"time"
)

// Worker drains the Recorder's queue and persists entries in the background,
// keeping audit writes off the request path.
type Worker struct {
	recorder *Recorder
}

func NewWorker(recorder *Recorder) *Worker {
	return &Worker{recorder: recorder}
}

// Run consumes entries until ctx is cancelled, then drains what is already
// queued before returning. Persistence errors are logged inside the
// recorder and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	queue := w.recorder.queue
	if queue == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case entry := <-queue:
			w.recorder.persist(context.WithoutCancel(ctx), entry)
		}
	}
}

// drain persists queued entries with a bounded grace period on shutdown.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-w.recorder.queue:
			w.recorder.persist(ctx, entry)
		default:
			return
		}
	}
}
