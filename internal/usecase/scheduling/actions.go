package scheduling

import (
	"context"
	"log/slog"
	"time"
)

// SessionReaper drops sessions idle for longer than maxAge.
type SessionReaper interface {
	Reap(maxAge time.Duration) int
}

// AuditPruner deletes audit entries older than before.
type AuditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SessionReapAction returns the handler for ActionSessionReap.
func SessionReapAction(r SessionReaper, maxAge time.Duration, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n := r.Reap(maxAge); n > 0 {
			logger.Info("reaped idle sessions", "count", n, "max_age", maxAge)
		}
		return nil
	}
}

// AuditRetentionAction returns the handler for ActionAuditRetention.
func AuditRetentionAction(p AuditPruner, retention time.Duration, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := p.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned audit entries", "count", n, "retention", retention)
		}
		return nil
	}
}
