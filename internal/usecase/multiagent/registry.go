package multiagent

import (
	"fmt"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// Registry keys of the default personas.
const (
	KeyTeacher   = "antioch"
	KeyHistorian = "luke"
	KeyMentor    = "martha"
	KeyCompanion = "barnabas"
)

// Registry is an immutable catalog of agents keyed by short key.
// Declaration order is preserved and used for tie-breaking and sequencing.
// It holds no locks: nothing mutates it after NewRegistry returns.
type Registry struct {
	order  []string
	agents map[string]domain.Agent
}

// NewRegistry builds a registry from agents in declaration order.
// Returns ErrInvalidInput for an empty key or id, ErrDuplicate for a repeated key or id.
func NewRegistry(agents ...domain.Agent) (*Registry, error) {
	r := &Registry{
		order:  make([]string, 0, len(agents)),
		agents: make(map[string]domain.Agent, len(agents)),
	}
	ids := make(map[string]bool, len(agents))
	for _, a := range agents {
		if a.Key == "" || a.ID == "" {
			return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrInvalidInput,
				fmt.Sprintf("agent %q has empty key or id", a.Name))
		}
		if _, exists := r.agents[a.Key]; exists {
			return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrDuplicate, "key "+a.Key)
		}
		if ids[a.ID] {
			return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrDuplicate, "id "+a.ID)
		}
		ids[a.ID] = true
		r.agents[a.Key] = cloneAgent(a)
		r.order = append(r.order, a.Key)
	}
	return r, nil
}

// MustNewRegistry is NewRegistry that panics on error. Intended for static catalogs.
func MustNewRegistry(agents ...domain.Agent) *Registry {
	r, err := NewRegistry(agents...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the four built-in personas in their canonical order:
// teacher, historian, mentor, companion.
func DefaultRegistry() *Registry {
	return MustNewRegistry(DefaultAgents()...)
}

// DefaultAgents returns fresh copies of the built-in persona definitions.
func DefaultAgents() []domain.Agent {
	return []domain.Agent{
		{
			Key:         KeyTeacher,
			ID:          "antioch-biblical-teacher",
			Name:        "安提阿老师",
			Icon:        "🕊️",
			Role:        "AntiochTeacher",
			Specialties: []string{"神学", "解经", "教义", "真理", "救恩", "圣经整体", "新约", "旧约"},
			Keywords:    []string{"神学", "真理", "教义", "救恩", "解释", "含义", "为什么", "神", "基督", "圣灵"},
		},
		{
			Key:         KeyHistorian,
			ID:          "biblical-historian-luke",
			Name:        "路加笔者",
			Icon:        "📜",
			Role:        "LukeScribe",
			Specialties: []string{"历史", "文化", "背景", "地理", "考古", "时代"},
			Keywords:    []string{"历史", "背景", "文化", "当时", "时代", "地点", "风俗", "习惯", "原始读者"},
		},
		{
			Key:         KeyMentor,
			ID:          "spiritual-life-mentor",
			Name:        "马大姊妹",
			Icon:        "🌱",
			Role:        "MarthaMentor",
			Specialties: []string{"应用", "生活", "实践", "职场", "家庭", "人际关系"},
			Keywords:    []string{"应用", "生活", "工作", "家庭", "实际", "如何", "怎样", "职场", "关系", "实践"},
		},
		{
			Key:         KeyCompanion,
			ID:          "barnabas-spiritual-companion",
			Name:        "巴拿巴友伴",
			Icon:        "🤲",
			Role:        "BarnabasCompanion",
			Specialties: []string{"祷告", "反思", "陪伴", "默想", "心灵", "情感"},
			Keywords:    []string{"祷告", "反思", "心情", "困难", "陪伴", "感受", "痛苦", "喜乐", "平安", "安慰"},
		},
	}
}

// LookupByKey returns the agent registered under key.
func (r *Registry) LookupByKey(key string) (domain.Agent, bool) {
	a, ok := r.agents[key]
	if !ok {
		return domain.Agent{}, false
	}
	return cloneAgent(a), true
}

// LookupByID returns the agent whose public id is id.
func (r *Registry) LookupByID(id string) (domain.Agent, bool) {
	for _, key := range r.order {
		if a := r.agents[key]; a.ID == id {
			return cloneAgent(a), true
		}
	}
	return domain.Agent{}, false
}

// Resolve accepts either a registry key or a public id.
func (r *Registry) Resolve(ref string) (domain.Agent, bool) {
	if a, ok := r.LookupByKey(ref); ok {
		return a, true
	}
	return r.LookupByID(ref)
}

// Keys returns registry keys in declaration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Agents returns all agents in declaration order.
func (r *Registry) Agents() []domain.Agent {
	out := make([]domain.Agent, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, cloneAgent(r.agents[key]))
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.order) }

// cloneAgent copies the slice fields so callers cannot mutate registry state.
func cloneAgent(a domain.Agent) domain.Agent {
	a.Specialties = append([]string(nil), a.Specialties...)
	a.Keywords = append([]string(nil), a.Keywords...)
	return a
}
