package domain

// DecisionMode is the mode label used on the wire by the web client.
type DecisionMode string

const (
	DecisionSingle   DecisionMode = "single"
	DecisionSequence DecisionMode = "sequence"
	DecisionSmart    DecisionMode = "smart"
	DecisionHalt     DecisionMode = "halt"
)

// DecisionModeFor maps a routing Mode to its wire label.
func DecisionModeFor(m Mode) DecisionMode {
	switch m {
	case ModeSingle:
		return DecisionSingle
	case ModeSequential:
		return DecisionSequence
	case ModeIntelligent:
		return DecisionSmart
	default:
		return DecisionHalt
	}
}

// SelectedRole is one agent in a wire decision.
type SelectedRole struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
	HandoffNote string  `json:"handoff_note"`
}

// Decision is the routing outcome as the web client consumes it.
// A halt decision never carries roles; every other mode carries at least one.
type Decision struct {
	Mode             DecisionMode   `json:"mode"`
	SelectedRoles    []SelectedRole `json:"selected_roles"`
	OverallRationale string         `json:"overall_rationale"`
	FallbackPlan     string         `json:"fallback_plan"`
	Warnings         []string       `json:"warnings"`
}

// RoleOutput is the text one responder produced for one selected agent.
type RoleOutput struct {
	AgentID  string `json:"agent_id"`
	RoleName string `json:"role_name"`
	Content  string `json:"content"`
}
