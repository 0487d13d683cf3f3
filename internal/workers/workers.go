package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CounterReconciler raises the id counter to the durable store's high-water
// mark; see idgen.Allocator.Reconcile.
type CounterReconciler interface {
	Reconcile(ctx context.Context) (bool, error)
}

// RunReconciler reconciles once immediately and then on every tick until ctx
// is cancelled. Failures are logged and retried on the next tick.
func RunReconciler(ctx context.Context, r CounterReconciler, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	log = log.With().Str("worker", "counter_reconciler").Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("worker started")
	for {
		reconcileOnce(ctx, r, interval, log)

		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func reconcileOnce(ctx context.Context, r CounterReconciler, timeout time.Duration, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raised, err := r.Reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("counter reconciliation failed")
		return
	}
	log.Debug().Bool("raised", raised).Msg("counter reconciled")
}
