package httpapi

import (
	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/usecase"
)

// routeRequest is the /route body as sent by the web client.
type routeRequest struct {
	Scripture      string       `json:"scripture"`
	Text           string       `json:"text"`
	UserQuestion   string       `json:"user_question"`
	UserProfile    *wireProfile `json:"user_profile"`
	SpiritualState string       `json:"spiritual_state"`
	SessionStage   string       `json:"session_stage"`
	HistorySummary string       `json:"history_summary"`
	Mode           string       `json:"mode"`
	Agent          string       `json:"agent"`
}

type wireProfile struct {
	AgeGroup       string   `json:"age_group"`
	Profession     string   `json:"profession"`
	Concerns       []string `json:"concerns"`
	SpiritualState string   `json:"spiritual_state"`
}

func (r routeRequest) input(sessionID string) usecase.RouteInput {
	in := usecase.RouteInput{
		SessionID:      sessionID,
		Scripture:      r.Scripture,
		Text:           r.Text,
		UserQuestion:   r.UserQuestion,
		SpiritualState: r.SpiritualState,
		SessionStage:   r.SessionStage,
		HistorySummary: r.HistorySummary,
		Mode:           r.Mode,
		Agent:          r.Agent,
	}
	if r.UserProfile != nil {
		in.Profile = &domain.UserProfile{
			AgeGroup:       r.UserProfile.AgeGroup,
			Profession:     r.UserProfile.Profession,
			Concerns:       r.UserProfile.Concerns,
			SpiritualState: r.UserProfile.SpiritualState,
		}
	}
	return in
}

type roleOutput struct {
	RoleName string `json:"role_name"`
	Content  string `json:"content"`
}

type routeResponse struct {
	Decision    domain.Decision       `json:"decision"`
	RoleOutputs []roleOutput          `json:"role_outputs"`
	Warnings    []string              `json:"warnings"`
	Routing     *domain.RoutingResult `json:"routing,omitempty"`
}

func newRouteResponse(out *usecase.RouteOutput, exposeRouting bool) routeResponse {
	resp := routeResponse{
		Decision:    out.Decision,
		RoleOutputs: make([]roleOutput, 0, len(out.RoleOutputs)),
		Warnings:    out.Warnings,
	}
	if resp.Decision.SelectedRoles == nil {
		resp.Decision.SelectedRoles = []domain.SelectedRole{}
	}
	if resp.Decision.Warnings == nil {
		resp.Decision.Warnings = []string{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	for _, o := range out.RoleOutputs {
		resp.RoleOutputs = append(resp.RoleOutputs, roleOutput{RoleName: o.RoleName, Content: o.Content})
	}
	if exposeRouting {
		resp.Routing = out.Routing
	}
	return resp
}

type errorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

// routeSchema rejects payloads the router could only misread. Unknown
// fields are allowed so older and newer clients keep working.
const routeSchema = `{
  "type": "object",
  "properties": {
    "scripture":       {"type": "string", "maxLength": 2000},
    "text":            {"type": "string", "maxLength": 20000},
    "user_question":   {"type": "string", "maxLength": 4000},
    "spiritual_state": {"type": "string", "maxLength": 200},
    "session_stage":   {"type": "string", "maxLength": 200},
    "history_summary": {"type": "string", "maxLength": 8000},
    "mode":            {"type": "string", "maxLength": 32},
    "agent":           {"type": "string", "maxLength": 100},
    "user_profile": {
      "type": ["object", "null"],
      "properties": {
        "age_group":       {"type": "string"},
        "profession":      {"type": "string"},
        "concerns":        {"type": "array", "items": {"type": "string"}, "maxItems": 20},
        "spiritual_state": {"type": "string"}
      }
    }
  }
}`
