package telemetry

import (
	"context"
	"time"
)

// DefaultPruneInterval is how often RunRetention deletes expired samples.
const DefaultPruneInterval = time.Hour

// RunRetention prunes samples older than keep every interval until ctx is
// cancelled. A non-positive keep disables pruning and returns immediately.
// The first prune runs at startup.
func RunRetention(ctx context.Context, repo Repository, keep, interval time.Duration, logger Logger) {
	if keep <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}

	prune := func() {
		cutoff := time.Now().UTC().Add(-keep)
		n, err := repo.Prune(ctx, cutoff)
		if err != nil {
			logger.Error("pruning telemetry samples", "error", err)
			return
		}
		if n > 0 {
			logger.Info("pruned telemetry samples", "deleted", n, "before", cutoff)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
