package domain

import (
	"encoding/json"
	"time"
)

// Mode selects how the router picks agents for a message.
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeIntelligent Mode = "intelligent"
	ModeSequential  Mode = "sequential"
)

// ScriptureReference is a book/chapter/verse reference found in free text.
type ScriptureReference struct {
	Book     string  `json:"book"`
	Chapter  string  `json:"chapter"`
	Verse    *string `json:"verse"`
	RawMatch string  `json:"rawMatch"`
}

// AgentScore is the relevance of one agent to one message.
type AgentScore struct {
	AgentKey string   `json:"agentKey"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
}

// SequenceStep pairs an agent with its suggested presentation delay.
type SequenceStep struct {
	AgentID     string        `json:"agentId"`
	DisplayName string        `json:"displayName"`
	Delay       time.Duration `json:"-"`
}

// MarshalJSON renders Delay as whole milliseconds.
func (s SequenceStep) MarshalJSON() ([]byte, error) {
	type wire struct {
		AgentID     string `json:"agentId"`
		DisplayName string `json:"displayName"`
		DelayMs     int64  `json:"delayMs"`
	}
	return json.Marshal(wire{AgentID: s.AgentID, DisplayName: s.DisplayName, DelayMs: s.Delay.Milliseconds()})
}

// Routing describes why the selection was made.
// Confidence is unnormalized and must not be read as a probability.
type Routing struct {
	PrimaryAgentID string                `json:"primaryAgentId"`
	Confidence     float64               `json:"confidence"`
	Reasoning      string                `json:"reasoning"`
	Scores         map[string]AgentScore `json:"scores,omitempty"`
	Sequence       []SequenceStep        `json:"sequence,omitempty"`
}

// Context is the payload handed to downstream responders.
type Context struct {
	OriginalMessage string              `json:"originalMessage"`
	Scripture       *ScriptureReference `json:"scripture"`
	UserProfile     UserProfile         `json:"userProfile"`
	PrimaryAgent    AgentSummary        `json:"primaryAgent"`
	Timestamp       string              `json:"timestamp"`
	SessionID       string              `json:"sessionId"`

	// Set by the service layer from the request and session memory.
	SessionStage   string `json:"sessionStage,omitempty"`
	HistorySummary string `json:"historySummary,omitempty"`
	LastRole       string `json:"lastRole,omitempty"`
}

// RoutingResult is the complete outcome of one routing call.
type RoutingResult struct {
	Mode             Mode     `json:"mode"`
	SelectedAgentIDs []string `json:"selectedAgentIds"`
	Routing          Routing  `json:"routing"`
	Context          Context  `json:"context"`
}
