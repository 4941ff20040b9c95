package domain

// Agent describes a persona that can be selected to answer a devotional message.
// Agents are immutable once placed in a registry.
type Agent struct {
	Key         string   `json:"key"          yaml:"key"`  // short registry key, e.g. "antioch"
	ID          string   `json:"id"           yaml:"id"`   // public id, e.g. "antioch-biblical-teacher"
	Name        string   `json:"name"         yaml:"name"` // display name
	Icon        string   `json:"icon"         yaml:"icon"`
	Role        string   `json:"role"         yaml:"role"` // wire role name, e.g. "AntiochTeacher"
	Specialties []string `json:"specialties"  yaml:"specialties"`
	Keywords    []string `json:"keywords"     yaml:"keywords"`
}

// Summary returns the compact form of the agent carried in a routing Context.
func (a Agent) Summary() AgentSummary {
	return AgentSummary{ID: a.ID, Name: a.Name, Icon: a.Icon}
}

// AgentSummary is the subset of Agent handed to downstream responders.
type AgentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// UserProfile carries optional information about the person asking.
// Every field is optional; unknown wire fields are ignored.
type UserProfile struct {
	Profession     string   `json:"profession,omitempty"`
	Concerns       []string `json:"concerns,omitempty"`
	SpiritualState string   `json:"spiritualState,omitempty"`
	AgeGroup       string   `json:"ageGroup,omitempty"`
}

// IsZero reports whether no profile field is set.
func (p UserProfile) IsZero() bool {
	return p.Profession == "" && len(p.Concerns) == 0 && p.SpiritualState == "" && p.AgeGroup == ""
}
