package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cheerhou/DevoLight/internal/adapter/audit"
	"github.com/cheerhou/DevoLight/internal/adapter/llm"
	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/config"
	"github.com/cheerhou/DevoLight/internal/usecase"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
	"github.com/cheerhou/DevoLight/internal/usecase/scheduling"
)

// app holds the wired components shared by serve and route.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	registry     *multiagent.Registry
	router       *multiagent.Router
	orchestrator *usecase.Orchestrator
	sessions     *usecase.SessionMemory
	service      *usecase.RouterService
	audit        *audit.SQLiteStore // nil when disabled
	responder    domain.Responder
}

func wireApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg := multiagent.DefaultRegistry()
	router := multiagent.NewRouterWithLogger(reg, routerConfig(cfg.Router), nil, logger)

	responder, err := newResponder(cfg.Responder, logger)
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	orch := usecase.NewOrchestrator(reg, logger)
	for _, a := range reg.Agents() {
		orch.Register(a.ID, responder)
	}
	orch.SetStagger(cfg.Responder.Stagger)
	orch.SetTimeout(cfg.Responder.Timeout)

	sessions := usecase.NewSessionMemory(cfg.Session.MaxCalls)
	svc := usecase.NewRouterService(router, orch, sessions, logger)

	a := &app{
		cfg:          cfg,
		logger:       logger,
		registry:     reg,
		router:       router,
		orchestrator: orch,
		sessions:     sessions,
		service:      svc,
		responder:    responder,
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
		a.audit = store
		svc.SetAudit(store)
	}
	return a, nil
}

func (a *app) Close() error {
	if a.audit != nil {
		return a.audit.Close()
	}
	return nil
}

// newResponder builds the reply backend. "auto" uses the Messages API when a
// key is configured and the stub otherwise.
func newResponder(cfg config.ResponderConfig, logger *slog.Logger) (domain.Responder, error) {
	kind := cfg.Type
	if kind == "" || kind == "auto" {
		kind = "stub"
		if cfg.Provider.APIKey != "" {
			kind = "anthropic"
		}
	}

	switch kind {
	case "stub":
		logger.Info("using stub responder")
		return llm.StubResponder{}, nil
	case "anthropic":
		if cfg.Provider.APIKey == "" {
			return nil, errors.New("anthropic responder requires an api key")
		}
	default:
		return nil, fmt.Errorf("unknown responder type %q", cfg.Type)
	}

	var r domain.Responder = llm.NewAnthropicResponder(cfg.Provider, llm.NewPromptBook(cfg.PromptsDir), logger)
	if cfg.CircuitBreaker.Enabled {
		r = llm.NewCircuitBreakerResponder(r, cfg.CircuitBreaker, logger)
	}
	if cfg.FailoverToStub {
		r = llm.NewFailoverResponder(r, []domain.Responder{llm.StubResponder{}}, logger)
	}
	logger.Info("using messages api responder",
		"responder", r.Name(),
		"model", cfg.Provider.Model,
		"circuit_breaker", cfg.CircuitBreaker.Enabled,
	)
	return r, nil
}

func routerConfig(c config.RouterConfig) multiagent.RouterConfig {
	return multiagent.RouterConfig{
		SequenceStep:       c.SequenceStep,
		MaxSelected:        c.MaxSelected,
		MinScore:           c.MinScore,
		FallbackAgent:      c.FallbackAgent,
		FallbackConfidence: c.FallbackConfidence,
		Weights: multiagent.Weights{
			KeywordHit:      c.Weights.KeywordHit,
			LifeApplication: c.Weights.LifeApplication,
			Companionship:   c.Weights.Companionship,
			TheologicalCue:  c.Weights.TheologicalCue,
			HistoricalCue:   c.Weights.HistoricalCue,
		},
	}
}

// newScheduler registers the maintenance actions and the configured tasks.
// audit_retention tasks are skipped when the audit trail is disabled.
func (a *app) newScheduler() (*scheduling.Scheduler, error) {
	s := scheduling.NewScheduler(a.logger)
	s.RegisterAction(scheduling.ActionSessionReap, scheduling.SessionReapAction(a.sessions, a.cfg.Session.TTL, a.logger))
	if a.audit != nil {
		s.RegisterAction(scheduling.ActionAuditRetention, scheduling.AuditRetentionAction(a.audit, a.cfg.Audit.Retention, a.logger))
	}

	for _, t := range a.cfg.Scheduler.Tasks {
		action := scheduling.ScheduledAction(t.Action)
		if action == scheduling.ActionAuditRetention && a.audit == nil {
			a.logger.Debug("skipping audit task, audit disabled", "task", t.Name)
			continue
		}
		if err := s.AddTask(scheduling.ScheduledTask{
			Name:     t.Name,
			Schedule: t.Schedule,
			Action:   action,
			OneShot:  t.OneShot,
		}); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, err)
		}
	}
	return s, nil
}
