package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

// RouteInput is one request as received from the web client.
type RouteInput struct {
	SessionID      string
	Scripture      string
	Text           string
	UserQuestion   string
	Profile        *domain.UserProfile
	SpiritualState string
	SessionStage   string
	HistorySummary string
	Mode           string // wire mode; empty means intelligent
	Agent          string // single mode agent key or id
}

// RouteOutput is what the web client receives. Err is set when the decision
// is a halt produced by the FallbackManager.
type RouteOutput struct {
	Decision    domain.Decision
	RoleOutputs []domain.RoleOutput
	Warnings    []string
	Routing     *domain.RoutingResult
	Err         error
}

// ParseMode accepts the core mode names and the wire aliases smart and sequence.
func ParseMode(s string) (domain.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intelligent", "smart":
		return domain.ModeIntelligent, nil
	case "single":
		return domain.ModeSingle, nil
	case "sequential", "sequence":
		return domain.ModeSequential, nil
	default:
		return "", domain.NewSubSystemError("router", "ParseMode", domain.ErrUnknownMode, s)
	}
}

// RouterService runs one request end to end: session lookup, routing,
// validation, responder dispatch, session and audit bookkeeping.
type RouterService struct {
	router       *multiagent.Router
	orchestrator *Orchestrator
	sessions     *SessionMemory
	locks        *SessionLocker
	fallback     FallbackManager
	audit        domain.RoutingAuditStore // nil = no audit trail
	logger       *slog.Logger
}

// NewRouterService creates a service. sessions may be nil to disable session memory.
func NewRouterService(router *multiagent.Router, orchestrator *Orchestrator, sessions *SessionMemory, logger *slog.Logger) *RouterService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouterService{
		router:       router,
		orchestrator: orchestrator,
		sessions:     sessions,
		locks:        NewSessionLocker(),
		logger:       logger,
	}
}

// SetAudit enables the routing audit trail.
func (s *RouterService) SetAudit(store domain.RoutingAuditStore) { s.audit = store }

// Route handles one request. Routing and dispatch failures come back as a
// halt decision, not an error; an error is returned only when ctx is done.
func (s *RouterService) Route(ctx context.Context, in RouteInput) (*RouteOutput, error) {
	var session *SessionSnapshot
	if s.sessions != nil && in.SessionID != "" {
		unlock, err := s.locks.Lock(ctx, in.SessionID)
		if err != nil {
			return nil, domain.WrapOp("RouterService.Route", err)
		}
		defer unlock()

		if snap, err := s.sessions.Get(in.SessionID); err == nil {
			session = &snap
		}
	}

	message := composeMessage(in.Scripture, in.Text, in.UserQuestion)
	profile := mergeProfile(in.Profile, in.SpiritualState, session)

	contextWarnings := func(res *domain.RoutingResult) []string {
		if strings.TrimSpace(in.Scripture) != "" {
			return nil
		}
		if res != nil && res.Context.Scripture != nil {
			return nil
		}
		return []string{WarnMissingScripture}
	}

	mode, err := ParseMode(in.Mode)
	if err != nil {
		return s.halt(ctx, in.SessionID, err, contextWarnings(nil)), nil
	}

	res, err := s.router.Route(ctx, multiagent.Request{
		Message:   message,
		Mode:      mode,
		AgentID:   in.Agent,
		Profile:   profile,
		SessionID: in.SessionID,
	})
	if err == nil {
		err = s.router.Validate(res)
	}
	if err != nil {
		return s.halt(ctx, in.SessionID, err, contextWarnings(nil)), nil
	}

	res.Context.SessionStage = in.SessionStage
	res.Context.HistorySummary = in.HistorySummary
	if session != nil {
		if res.Context.HistorySummary == "" {
			res.Context.HistorySummary = session.Summary
		}
		res.Context.LastRole = session.LastRole()
	}

	outputs, err := s.orchestrator.Run(ctx, res)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, domain.WrapOp("RouterService.Route", err)
		}
		return s.halt(ctx, res.Context.SessionID, err, contextWarnings(res)), nil
	}

	decision := BuildDecision(s.router.Registry(), res)
	if s.sessions != nil {
		s.sessions.Record(res.Context.SessionID, outputs, decision.OverallRationale, profile.SpiritualState)
	}
	s.recordAudit(ctx, domain.RoutingAuditEntry{
		SessionID:    res.Context.SessionID,
		Mode:         string(decision.Mode),
		PrimaryAgent: res.Routing.PrimaryAgentID,
		Selected:     res.SelectedAgentIDs,
		Confidence:   res.Routing.Confidence,
		Outcome:      domain.AuditOutcomeRouted,
	})

	warnings := append(append([]string{}, decision.Warnings...), contextWarnings(res)...)
	return &RouteOutput{
		Decision:    decision,
		RoleOutputs: outputs,
		Warnings:    warnings,
		Routing:     res,
	}, nil
}

func (s *RouterService) halt(ctx context.Context, sessionID string, err error, contextWarnings []string) *RouteOutput {
	s.logger.Warn("routing halted", "session_id", sessionID, "code", domain.ErrorCodeOf(err), "error", err)
	s.recordAudit(ctx, domain.RoutingAuditEntry{
		SessionID: sessionID,
		Mode:      string(domain.DecisionHalt),
		Outcome:   domain.AuditOutcomeHalted,
		Detail:    err.Error(),
	})
	return s.fallback.Handle(err, contextWarnings)
}

// recordAudit never fails the request; write errors are logged.
func (s *RouterService) recordAudit(ctx context.Context, entry domain.RoutingAuditEntry) {
	if s.audit == nil {
		return
	}
	entry.CreatedAt = time.Now().UTC()
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("audit write failed", "session_id", entry.SessionID, "error", err)
	}
}

func composeMessage(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// mergeProfile copies the request profile and resolves the spiritual state:
// the top-level field wins, then the profile's own, then the session's last.
func mergeProfile(in *domain.UserProfile, spiritualState string, session *SessionSnapshot) *domain.UserProfile {
	var p domain.UserProfile
	if in != nil {
		p = *in
		p.Concerns = append([]string(nil), in.Concerns...)
	}
	switch {
	case spiritualState != "":
		p.SpiritualState = spiritualState
	case p.SpiritualState == "" && session != nil:
		p.SpiritualState = session.LastSpiritualState
	}
	return &p
}
