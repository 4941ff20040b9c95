package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/tracer"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

// Orchestrator invokes the responders for a routing result's selected agents.
type Orchestrator struct {
	reg      *multiagent.Registry
	mu       sync.RWMutex
	byAgent  map[string]domain.Responder // agent id -> responder
	fallback domain.Responder
	stagger  bool
	timeout  time.Duration // per role call; 0 = none
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator resolving agent ids through reg.
func NewOrchestrator(reg *multiagent.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		reg:     reg,
		byAgent: make(map[string]domain.Responder),
		logger:  logger,
	}
}

// Register binds a responder to an agent id.
func (o *Orchestrator) Register(agentID string, r domain.Responder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byAgent[agentID] = r
}

// SetFallback sets the responder used for agents with no registered responder.
func (o *Orchestrator) SetFallback(r domain.Responder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallback = r
}

// SetStagger makes sequential runs wait for each step's delay offset.
func (o *Orchestrator) SetStagger(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stagger = enabled
}

// SetTimeout bounds each responder call. Zero disables the bound.
func (o *Orchestrator) SetTimeout(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeout = d
}

func (o *Orchestrator) responderFor(agentID string) (domain.Responder, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if r, ok := o.byAgent[agentID]; ok {
		return r, true
	}
	if o.fallback != nil {
		return o.fallback, true
	}
	return nil, false
}

// Run produces one RoleOutput per selected agent, in selection order.
// Sequential results run one after another; other modes run concurrently.
// The first failure cancels the remaining calls and is returned.
func (o *Orchestrator) Run(ctx context.Context, res *domain.RoutingResult) ([]domain.RoleOutput, error) {
	agents := make([]domain.Agent, len(res.SelectedAgentIDs))
	responders := make([]domain.Responder, len(res.SelectedAgentIDs))
	for i, id := range res.SelectedAgentIDs {
		a, ok := o.reg.LookupByID(id)
		if !ok {
			return nil, domain.NewSubSystemError("registry", "Orchestrator.Run", domain.ErrNotFound, id)
		}
		r, ok := o.responderFor(id)
		if !ok {
			return nil, domain.NewSubSystemError("responder", "Orchestrator.Run", domain.ErrNotFound, id)
		}
		agents[i] = a
		responders[i] = r
	}

	if domain.SessionIDFromContext(ctx) == "" {
		ctx = domain.ContextWithSessionID(ctx, res.Context.SessionID)
	}
	if res.Mode == domain.ModeSequential {
		return o.runSequential(ctx, res, agents, responders)
	}

	outputs := make([]domain.RoleOutput, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	for i := range agents {
		g.Go(func() error {
			out, err := o.respond(gctx, responders[i], agents[i], res.Context)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, res *domain.RoutingResult, agents []domain.Agent, responders []domain.Responder) ([]domain.RoleOutput, error) {
	o.mu.RLock()
	stagger := o.stagger
	o.mu.RUnlock()

	delays := make(map[string]time.Duration, len(res.Routing.Sequence))
	for _, step := range res.Routing.Sequence {
		delays[step.AgentID] = step.Delay
	}

	start := time.Now()
	outputs := make([]domain.RoleOutput, 0, len(agents))
	for i, a := range agents {
		if stagger {
			if err := sleepUntil(ctx, start.Add(delays[a.ID])); err != nil {
				return nil, domain.WrapOp("Orchestrator.Run", err)
			}
		}
		out, err := o.respond(ctx, responders[i], a, res.Context)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (o *Orchestrator) respond(ctx context.Context, r domain.Responder, a domain.Agent, rc domain.Context) (domain.RoleOutput, error) {
	ctx, span := tracer.StartSpan(ctx, "responder.respond",
		trace.WithAttributes(
			tracer.StringAttr("agent.id", a.ID),
			tracer.StringAttr("responder.name", r.Name()),
		))
	defer span.End()

	o.mu.RLock()
	timeout := o.timeout
	o.mu.RUnlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	content, err := r.Respond(ctx, a, rc)
	if err != nil {
		tracer.RecordError(span, err)
		o.logger.Warn("responder failed",
			"session_id", domain.SessionIDFromContext(ctx),
			"agent_id", a.ID,
			"responder", r.Name(),
			"error", err,
		)
		return domain.RoleOutput{}, domain.WrapOp("Orchestrator.Run", err)
	}
	tracer.SetOK(span)
	return domain.RoleOutput{AgentID: a.ID, RoleName: a.Role, Content: content}, nil
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
