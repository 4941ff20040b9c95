package multiagent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// Weights are the additive contributions of each scoring rule.
type Weights struct {
	KeywordHit      float64 `yaml:"keyword_hit"`
	LifeApplication float64 `yaml:"life_application"`
	Companionship   float64 `yaml:"companionship"`
	TheologicalCue  float64 `yaml:"theological_cue"`
	HistoricalCue   float64 `yaml:"historical_cue"`
}

// DefaultWeights returns the weights clients depend on for ranking parity.
func DefaultWeights() Weights {
	return Weights{
		KeywordHit:      0.3,
		LifeApplication: 0.4,
		Companionship:   0.5,
		TheologicalCue:  0.3,
		HistoricalCue:   0.4,
	}
}

// Scoring rule reasons.
const (
	ReasonLifeApplication = "suited to life-application guidance"
	ReasonCompanionship   = "suited to spiritual companionship"
	ReasonTheological     = "theological explanation question"
	ReasonHistorical      = "historical background question"
)

var (
	explanatoryCues = []string{"为什么", "什么意思", "why", "what does it mean"}
	historicalCues  = []string{"当时", "历史", "at that time", "history"}
	distressStates  = []string{"感到疲惫", "遇到困难", "需要安慰"}
)

// ScoreDelta is one rule's contribution to one agent.
type ScoreDelta struct {
	AgentKey string
	Delta    float64
	Reason   string
}

// ScoringRule is a named pure function over a message and optional profile.
type ScoringRule struct {
	Name  string
	Apply func(message string, profile *domain.UserProfile) []ScoreDelta
}

// Scorer computes per-agent relevance scores by summing its rules in order.
type Scorer struct {
	reg   *Registry
	rules []ScoringRule
}

// NewScorer builds the standard rule set for reg with the given weights.
func NewScorer(reg *Registry, w Weights) *Scorer {
	return NewScorerWithRules(reg, DefaultScoringRules(reg, w)...)
}

// NewScorerWithRules builds a scorer from an explicit rule list.
func NewScorerWithRules(reg *Registry, rules ...ScoringRule) *Scorer {
	return &Scorer{reg: reg, rules: rules}
}

// DefaultScoringRules returns keyword, profile and message-pattern rules in
// the order their reasons are reported.
func DefaultScoringRules(reg *Registry, w Weights) []ScoringRule {
	agents := reg.Agents()
	return []ScoringRule{
		{
			Name: "keyword",
			Apply: func(message string, _ *domain.UserProfile) []ScoreDelta {
				lower := strings.ToLower(message)
				var out []ScoreDelta
				for _, a := range agents {
					hits := 0
					for _, kw := range a.Keywords {
						if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
							hits++
						}
					}
					if hits > 0 {
						out = append(out, ScoreDelta{
							AgentKey: a.Key,
							Delta:    w.KeywordHit * float64(hits),
							Reason:   fmt.Sprintf("keyword match: %d", hits),
						})
					}
				}
				return out
			},
		},
		{
			Name: "life-application",
			Apply: func(_ string, p *domain.UserProfile) []ScoreDelta {
				if p == nil || (p.Profession == "" && len(p.Concerns) == 0) {
					return nil
				}
				return []ScoreDelta{{AgentKey: KeyMentor, Delta: w.LifeApplication, Reason: ReasonLifeApplication}}
			},
		},
		{
			Name: "companionship",
			Apply: func(_ string, p *domain.UserProfile) []ScoreDelta {
				if p == nil || !containsString(distressStates, p.SpiritualState) {
					return nil
				}
				return []ScoreDelta{{AgentKey: KeyCompanion, Delta: w.Companionship, Reason: ReasonCompanionship}}
			},
		},
		{
			Name: "theological-cue",
			Apply: func(message string, _ *domain.UserProfile) []ScoreDelta {
				if !containsAny(message, explanatoryCues) {
					return nil
				}
				return []ScoreDelta{{AgentKey: KeyTeacher, Delta: w.TheologicalCue, Reason: ReasonTheological}}
			},
		},
		{
			Name: "historical-cue",
			Apply: func(message string, _ *domain.UserProfile) []ScoreDelta {
				if !containsAny(message, historicalCues) {
					return nil
				}
				return []ScoreDelta{{AgentKey: KeyHistorian, Delta: w.HistoricalCue, Reason: ReasonHistorical}}
			},
		},
	}
}

// Score returns one AgentScore per registered agent. Deltas for keys that are
// not in the registry are ignored.
func (s *Scorer) Score(message string, profile *domain.UserProfile) map[string]domain.AgentScore {
	totals := make(map[string]float64, s.reg.Len())
	reasons := make(map[string][]string, s.reg.Len())
	for _, key := range s.reg.Keys() {
		reasons[key] = []string{}
	}
	for _, rule := range s.rules {
		for _, d := range rule.Apply(message, profile) {
			if _, ok := reasons[d.AgentKey]; !ok {
				continue
			}
			totals[d.AgentKey] += d.Delta
			reasons[d.AgentKey] = append(reasons[d.AgentKey], d.Reason)
		}
	}

	out := make(map[string]domain.AgentScore, len(reasons))
	for key, rs := range reasons {
		out[key] = domain.AgentScore{AgentKey: key, Score: totals[key], Reasons: rs}
	}
	return out
}

// Rank orders scores descending, breaking ties by registry declaration order.
func (s *Scorer) Rank(scores map[string]domain.AgentScore) []domain.AgentScore {
	ranked := make([]domain.AgentScore, 0, len(scores))
	for _, key := range s.reg.Keys() {
		if sc, ok := scores[key]; ok {
			ranked = append(ranked, sc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func containsAny(message string, cues []string) bool {
	lower := strings.ToLower(message)
	for _, c := range cues {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
