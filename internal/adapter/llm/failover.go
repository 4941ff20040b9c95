package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// FailoverResponder tries a primary responder, then each fallback in order.
// A cancelled or expired caller context stops the chain immediately.
type FailoverResponder struct {
	primary   domain.Responder
	fallbacks []domain.Responder
	logger    *slog.Logger
}

var _ domain.Responder = (*FailoverResponder)(nil)

// NewFailoverResponder creates a failover-capable responder.
func NewFailoverResponder(primary domain.Responder, fallbacks []domain.Responder, logger *slog.Logger) *FailoverResponder {
	return &FailoverResponder{primary: primary, fallbacks: fallbacks, logger: logger}
}

// Respond implements domain.Responder.
func (f *FailoverResponder) Respond(ctx context.Context, agent domain.Agent, rc domain.Context) (string, error) {
	out, err := f.primary.Respond(ctx, agent, rc)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	f.logger.Warn("primary responder failed, trying fallbacks",
		"primary", f.primary.Name(), "role", agent.Role, "error", err)

	errs := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}
	causes := []error{err}
	for _, fb := range f.fallbacks {
		out, err = fb.Respond(ctx, agent, rc)
		if err == nil {
			f.logger.Info("failover succeeded", "responder", fb.Name(), "role", agent.Role)
			return out, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		f.logger.Warn("fallback responder failed", "responder", fb.Name(), "error", err)
		errs = append(errs, fmt.Sprintf("%s: %v", fb.Name(), err))
		causes = append(causes, err)
	}

	return "", fmt.Errorf("all responders failed: [%s]: %w", strings.Join(errs, "; "), errors.Join(causes...))
}

// Name returns a composite name.
func (f *FailoverResponder) Name() string {
	return f.primary.Name() + "+failover"
}
