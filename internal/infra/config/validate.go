package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRouter(cfg, ve)
	validateResponder(cfg, ve)
	validateServer(cfg, ve)
	validateSession(cfg, ve)
	validateAudit(cfg, ve)
	validateScheduler(cfg, ve)
	validateObservability(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateRouter(cfg *Config, ve *ValidationError) {
	r := cfg.Router
	if r.SequenceStep <= 0 {
		ve.Add("router.sequence_step must be > 0")
	}
	if r.MaxSelected <= 0 {
		ve.Add("router.max_selected must be > 0")
	}
	if r.MinScore < 0 {
		ve.Add("router.min_score must be >= 0")
	}
	if r.FallbackAgent == "" {
		ve.Add("router.fallback_agent is required")
	}
	if r.FallbackConfidence <= 0 || r.FallbackConfidence > 1 {
		ve.Add("router.fallback_confidence must be in (0, 1]")
	}
	w := r.Weights
	for name, v := range map[string]float64{
		"keyword_hit":      w.KeywordHit,
		"life_application": w.LifeApplication,
		"companionship":    w.Companionship,
		"theological_cue":  w.TheologicalCue,
		"historical_cue":   w.HistoricalCue,
	} {
		if v < 0 {
			ve.Add("router.weights.%s must be >= 0", name)
		}
	}
}

var validResponderTypes = map[string]bool{
	"":          true,
	"auto":      true,
	"anthropic": true,
	"stub":      true,
}

func validateResponder(cfg *Config, ve *ValidationError) {
	r := cfg.Responder
	if !validResponderTypes[r.Type] {
		ve.Add("responder.type %q is invalid (want auto, anthropic or stub)", r.Type)
	}
	if r.Timeout < 0 {
		ve.Add("responder.timeout must be >= 0")
	}
	if r.Type == "anthropic" && r.Provider.APIKey == "" {
		ve.Add("responder.provider.api_key is required for type anthropic (or set DEVO_CLAUDE_API_KEY)")
	}
	if r.Type == "stub" {
		return
	}
	p := r.Provider
	if p.BaseURL == "" {
		ve.Add("responder.provider.base_url is required")
	}
	if p.Model == "" {
		ve.Add("responder.provider.model is required")
	}
	if p.MaxTokens <= 0 {
		ve.Add("responder.provider.max_tokens must be > 0")
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		ve.Add("responder.provider.temperature must be in [0, 1]")
	}
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	if s.Addr == "" {
		ve.Add("server.addr is required")
	} else if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", s.Addr)
	}
	if s.MaxBodyBytes <= 0 {
		ve.Add("server.max_body_bytes must be > 0")
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			ve.Add("server.rate_limit.requests_per_second must be > 0")
		}
		if s.RateLimit.Burst <= 0 {
			ve.Add("server.rate_limit.burst must be > 0")
		}
	}
}

func validateSession(cfg *Config, ve *ValidationError) {
	if cfg.Session.MaxCalls <= 0 {
		ve.Add("session.max_calls must be > 0")
	}
	if cfg.Session.TTL <= 0 {
		ve.Add("session.ttl must be > 0")
	}
}

func validateAudit(cfg *Config, ve *ValidationError) {
	if !cfg.Audit.Enabled {
		return
	}
	if cfg.Audit.Path == "" {
		ve.Add("audit.path is required when audit is enabled")
	}
	if cfg.Audit.Retention <= 0 {
		ve.Add("audit.retention must be > 0")
	}
}

var validTaskActions = map[string]bool{
	"session_reap":    true,
	"audit_retention": true,
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	seen := make(map[string]bool, len(cfg.Scheduler.Tasks))
	for i, t := range cfg.Scheduler.Tasks {
		if t.Name == "" {
			ve.Add("scheduler.tasks[%d].name is required", i)
		} else if seen[t.Name] {
			ve.Add("scheduler.tasks[%d].name %q is duplicated", i, t.Name)
		}
		seen[t.Name] = true
		if t.Schedule == "" {
			ve.Add("scheduler.tasks[%d].schedule is required", i)
		}
		if t.Action == "" {
			ve.Add("scheduler.tasks[%d].action is required", i)
		} else if !validTaskActions[t.Action] {
			ve.Add("scheduler.tasks[%d].action %q is unknown", i, t.Action)
		}
	}
}

func validateObservability(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want noop or stdout)", cfg.Tracer.Exporter)
	}
	if r := cfg.Tracer.SampleRatio; r < 0 || r > 1 {
		ve.Add("tracer.sample_ratio %v must be between 0 and 1", r)
	}
}
