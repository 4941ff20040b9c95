package usecase

import (
	"strings"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

// Wire texts used in decisions.
const (
	HandoffFinal         = "final output"
	DefaultFallbackPlan  = "if a role cannot answer, ask again in single mode with the teacher"
	HaltRationale        = "routing failed, fallback engaged"
	HaltFallbackPlan     = "check the input or retry later"
	WarnMissingScripture = "missing scripture field"
	WarnDefaultSelection = "no agent cleared the relevance threshold; default agent selected"
)

// BuildDecision maps a routing result onto the wire decision the web client reads.
func BuildDecision(reg *multiagent.Registry, res *domain.RoutingResult) domain.Decision {
	agents := make([]domain.Agent, 0, len(res.SelectedAgentIDs))
	for _, id := range res.SelectedAgentIDs {
		if a, ok := reg.LookupByID(id); ok {
			agents = append(agents, a)
		}
	}

	roles := make([]domain.SelectedRole, len(agents))
	for i, a := range agents {
		handoff := HandoffFinal
		if i+1 < len(agents) {
			handoff = "hand off to " + agents[i+1].Name
		}
		score, reason := roleScore(res, a)
		roles[i] = domain.SelectedRole{
			Name:        a.Role,
			Score:       clampUnit(score),
			Reason:      reason,
			HandoffNote: handoff,
		}
	}

	warnings := []string{}
	if res.Mode == domain.ModeIntelligent && res.Routing.Reasoning == multiagent.ReasoningDefaultSelection {
		warnings = append(warnings, WarnDefaultSelection)
	}

	return domain.Decision{
		Mode:             domain.DecisionModeFor(res.Mode),
		SelectedRoles:    roles,
		OverallRationale: res.Routing.Reasoning,
		FallbackPlan:     DefaultFallbackPlan,
		Warnings:         warnings,
	}
}

// roleScore picks the wire score and reason for one selected agent. The
// primary agent carries the routing confidence; other intelligent-mode agents
// carry their raw score.
func roleScore(res *domain.RoutingResult, a domain.Agent) (float64, string) {
	if res.Mode != domain.ModeIntelligent {
		return res.Routing.Confidence, res.Routing.Reasoning
	}
	score := res.Routing.Confidence
	reason := res.Routing.Reasoning
	if sc, ok := res.Routing.Scores[a.Key]; ok {
		if a.ID != res.Routing.PrimaryAgentID {
			score = sc.Score
		}
		if len(sc.Reasons) > 0 && res.Routing.Reasoning != multiagent.ReasoningDefaultSelection {
			reason = strings.Join(sc.Reasons, "; ")
		}
	}
	return score, reason
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FallbackManager turns a routing or dispatch failure into a halt decision.
type FallbackManager struct{}

// Handle builds the halt output for err. contextWarnings are appended after
// the error text.
func (FallbackManager) Handle(err error, contextWarnings []string) *RouteOutput {
	warnings := append([]string{err.Error()}, contextWarnings...)
	return &RouteOutput{
		Decision: domain.Decision{
			Mode:             domain.DecisionHalt,
			SelectedRoles:    []domain.SelectedRole{},
			OverallRationale: HaltRationale,
			FallbackPlan:     HaltFallbackPlan,
			Warnings:         warnings,
		},
		RoleOutputs: []domain.RoleOutput{},
		Warnings:    warnings,
		Err:         err,
	}
}
