package multiagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/tracer"
)

const subsystem = "router"

// ReasoningDefaultSelection is the reasoning reported when intelligent mode
// falls back to the default agent.
const ReasoningDefaultSelection = "default selection"

// discardLogger returns a no-op logger for routers created without one.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RouterConfig tunes selection. Zero fields take DefaultRouterConfig values,
// except MinScore: zero is a real threshold (keep every positive score), and
// only a negative MinScore falls back to the default. Start from
// DefaultRouterConfig when overriding individual fields.
type RouterConfig struct {
	SequenceStep       time.Duration `yaml:"sequence_step"`
	MaxSelected        int           `yaml:"max_selected"`
	MinScore           float64       `yaml:"min_score"`
	FallbackAgent      string        `yaml:"fallback_agent"`
	FallbackConfidence float64       `yaml:"fallback_confidence"`
	Weights            Weights       `yaml:"weights"`
}

// DefaultRouterConfig returns the stock tuning: 2s sequence step, top two
// agents above 0.3, falling back to the teacher at 0.5.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SequenceStep:       2 * time.Second,
		MaxSelected:        2,
		MinScore:           0.3,
		FallbackAgent:      KeyTeacher,
		FallbackConfidence: 0.5,
		Weights:            DefaultWeights(),
	}
}

func (c RouterConfig) withDefaults() RouterConfig {
	d := DefaultRouterConfig()
	if c.SequenceStep <= 0 {
		c.SequenceStep = d.SequenceStep
	}
	if c.MaxSelected <= 0 {
		c.MaxSelected = d.MaxSelected
	}
	if c.MinScore < 0 {
		c.MinScore = d.MinScore
	}
	if c.FallbackAgent == "" {
		c.FallbackAgent = d.FallbackAgent
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = d.FallbackConfidence
	}
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	return c
}

// Request is one routing call.
type Request struct {
	Message   string
	Mode      domain.Mode
	AgentID   string // single mode: registry key or public id
	Profile   *domain.UserProfile
	SessionID string
}

// Router turns a message into a RoutingResult. It holds no mutable state and
// is safe for concurrent use.
type Router struct {
	reg      *Registry
	cfg      RouterConfig
	parser   *ScriptureParser
	scorer   *Scorer
	contexts *ContextBuilder
	logger   *slog.Logger
}

// NewRouter creates a router over reg. A nil contexts builder uses the
// default session-id generator and clock.
func NewRouter(reg *Registry, cfg RouterConfig, contexts *ContextBuilder) *Router {
	return NewRouterWithLogger(reg, cfg, contexts, discardLogger())
}

// NewRouterWithLogger creates a Router with debug logging.
func NewRouterWithLogger(reg *Registry, cfg RouterConfig, contexts *ContextBuilder, logger *slog.Logger) *Router {
	cfg = cfg.withDefaults()
	if contexts == nil {
		contexts = NewContextBuilder(nil, nil)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Router{
		reg:      reg,
		cfg:      cfg,
		parser:   NewScriptureParser(),
		scorer:   NewScorer(reg, cfg.Weights),
		contexts: contexts,
		logger:   logger,
	}
}

// Registry returns the router's agent registry.
func (r *Router) Registry() *Registry { return r.reg }

// Route selects agents for req.Message according to req.Mode. It either
// returns a complete result or fails; there are no partial results.
func (r *Router) Route(ctx context.Context, req Request) (*domain.RoutingResult, error) {
	_, span := tracer.StartSpan(ctx, "router.route",
		trace.WithAttributes(tracer.StringAttr("router.mode", string(req.Mode))))
	defer span.End()

	var (
		res *domain.RoutingResult
		err error
	)
	switch req.Mode {
	case domain.ModeSingle:
		res, err = r.routeSingle(req)
	case domain.ModeIntelligent:
		res, err = r.routeIntelligent(req)
	case domain.ModeSequential:
		res, err = r.routeSequential(req)
	default:
		err = domain.NewSubSystemError(subsystem, "Route", domain.ErrUnknownMode, string(req.Mode))
	}
	if err != nil {
		tracer.RecordError(span, err)
		r.logger.Debug("routing failed", "mode", req.Mode, "error", err)
		return nil, err
	}

	span.SetAttributes(
		tracer.StringAttr("router.primary", res.Routing.PrimaryAgentID),
		tracer.StringsAttr("router.selected", res.SelectedAgentIDs),
		tracer.FloatAttr("router.confidence", res.Routing.Confidence),
	)
	tracer.SetOK(span)
	r.logger.Debug("routed message",
		"mode", res.Mode,
		"primary", res.Routing.PrimaryAgentID,
		"selected", res.SelectedAgentIDs,
		"confidence", res.Routing.Confidence,
		"session_id", res.Context.SessionID,
	)
	return res, nil
}

func (r *Router) routeSingle(req Request) (*domain.RoutingResult, error) {
	agent, ok := r.reg.Resolve(req.AgentID)
	if !ok {
		return nil, domain.NewSubSystemError(subsystem, "Route", domain.ErrUnknownAgent, req.AgentID)
	}
	return &domain.RoutingResult{
		Mode:             domain.ModeSingle,
		SelectedAgentIDs: []string{agent.ID},
		Routing: domain.Routing{
			PrimaryAgentID: agent.ID,
			Confidence:     1.0,
			Reasoning:      "user specified " + agent.Name,
		},
		Context: r.buildContext(req, agent),
	}, nil
}

func (r *Router) routeIntelligent(req Request) (*domain.RoutingResult, error) {
	scores := r.scorer.Score(req.Message, req.Profile)
	ranked := r.scorer.Rank(scores)
	if len(ranked) > r.cfg.MaxSelected {
		ranked = ranked[:r.cfg.MaxSelected]
	}

	var (
		selected   []domain.Agent
		confidence float64
	)
	for _, sc := range ranked {
		if sc.Score <= r.cfg.MinScore {
			continue
		}
		if a, ok := r.reg.LookupByKey(sc.AgentKey); ok {
			selected = append(selected, a)
			if len(selected) == 1 {
				confidence = sc.Score
			}
		}
	}

	reasoning := ""
	if len(selected) == 0 {
		fallback, ok := r.reg.LookupByKey(r.cfg.FallbackAgent)
		if !ok {
			return nil, domain.NewSubSystemError(subsystem, "Route", domain.ErrEmptySelection,
				"fallback agent "+r.cfg.FallbackAgent+" not registered")
		}
		selected = []domain.Agent{fallback}
		confidence = r.cfg.FallbackConfidence
		reasoning = ReasoningDefaultSelection
	} else {
		reasoning = "content analysis selected " + selected[0].Name
	}

	ids := make([]string, len(selected))
	for i, a := range selected {
		ids[i] = a.ID
	}
	return &domain.RoutingResult{
		Mode:             domain.ModeIntelligent,
		SelectedAgentIDs: ids,
		Routing: domain.Routing{
			PrimaryAgentID: selected[0].ID,
			Confidence:     confidence,
			Reasoning:      reasoning,
			Scores:         scores,
		},
		Context: r.buildContext(req, selected[0]),
	}, nil
}

func (r *Router) routeSequential(req Request) (*domain.RoutingResult, error) {
	agents := r.reg.Agents()
	if len(agents) == 0 {
		return nil, domain.NewSubSystemError(subsystem, "Route", domain.ErrEmptySelection, "registry is empty")
	}
	ids := make([]string, len(agents))
	seq := make([]domain.SequenceStep, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
		seq[i] = domain.SequenceStep{
			AgentID:     a.ID,
			DisplayName: a.Name,
			Delay:       time.Duration(i) * r.cfg.SequenceStep,
		}
	}
	return &domain.RoutingResult{
		Mode:             domain.ModeSequential,
		SelectedAgentIDs: ids,
		Routing: domain.Routing{
			PrimaryAgentID: agents[0].ID,
			Confidence:     1.0,
			Reasoning:      fmt.Sprintf("full study mode: %d agents respond in turn", len(agents)),
			Sequence:       seq,
		},
		Context: r.buildContext(req, agents[0]),
	}, nil
}

func (r *Router) buildContext(req Request, primary domain.Agent) domain.Context {
	scripture := r.parser.Parse(req.Message)
	return r.contexts.Build(req.Message, scripture, req.Profile, primary, req.SessionID)
}

// Validate checks a result at a trust boundary: the selection must be
// non-empty and every id, including the primary, must resolve in the registry.
func (r *Router) Validate(res *domain.RoutingResult) error {
	if res == nil || len(res.SelectedAgentIDs) == 0 {
		return domain.NewSubSystemError(subsystem, "Validate", domain.ErrEmptySelection, "")
	}
	seen := make(map[string]bool, len(res.SelectedAgentIDs))
	for _, id := range res.SelectedAgentIDs {
		if _, ok := r.reg.LookupByID(id); !ok {
			return domain.NewSubSystemError(subsystem, "Validate", domain.ErrUnknownAgent, id)
		}
		if seen[id] {
			return domain.NewSubSystemError(subsystem, "Validate", domain.ErrInvalidInput, "duplicate agent "+id)
		}
		seen[id] = true
	}
	if !seen[res.Routing.PrimaryAgentID] {
		return domain.NewSubSystemError(subsystem, "Validate", domain.ErrInvalidInput,
			"primary agent "+res.Routing.PrimaryAgentID+" not selected")
	}
	return nil
}
