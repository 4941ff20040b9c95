package llm

import (
	"context"
	"fmt"

	"github.com/cheerhou/DevoLight/internal/domain"
)

const unknownScripture = "unknown scripture"

// StubResponder produces deterministic placeholder replies. It is used when
// no API key is configured and as the last failover step.
type StubResponder struct{}

var _ domain.Responder = StubResponder{}

// Respond implements domain.Responder.
func (StubResponder) Respond(ctx context.Context, agent domain.Agent, rc domain.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	scripture := unknownScripture
	if rc.Scripture != nil && rc.Scripture.RawMatch != "" {
		scripture = rc.Scripture.RawMatch
	}
	return fmt.Sprintf("%s responds to %s…", agent.Name, scripture), nil
}

// Name implements domain.Responder.
func (StubResponder) Name() string { return "stub" }
