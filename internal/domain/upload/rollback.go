package upload

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/postora/postora-server/internal/infrastructure/metrics"
)

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// rollback collects compensating actions for the side effects of one file.
type rollback struct {
	mu    sync.Mutex
	steps []undoStep
}

func (r *rollback) push(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	r.steps = append(r.steps, undoStep{name: name, fn: fn})
	r.mu.Unlock()
}

func (r *rollback) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// run executes the collected actions newest first and clears them. Failures are
// logged as CleanupFailed and never stop the remaining actions. It returns the
// number of failed actions.
func (r *rollback) run(ctx context.Context, log zerolog.Logger) int {
	r.mu.Lock()
	steps := r.steps
	r.steps = nil
	r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	failed := 0
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.fn(ctx); err != nil {
			failed++
			metrics.RecordRollbackStep(step.name, "failed")
			log.Warn().
				Err(err).
				Str("step", step.name).
				Str("kind", string(KindCleanupFailed)).
				Msg("rollback step failed")
			continue
		}
		metrics.RecordRollbackStep(step.name, "ok")
	}
	return failed
}
