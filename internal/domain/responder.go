package domain

import "context"

// Responder produces an agent's reply for an assembled routing Context.
// Implementations live outside the routing core (LLM providers, stubs).
type Responder interface {
	Respond(ctx context.Context, agent Agent, rc Context) (string, error)
	Name() string
}

// ResponderFunc adapts a plain function to the Responder interface.
type ResponderFunc func(ctx context.Context, agent Agent, rc Context) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, agent Agent, rc Context) (string, error) {
	return f(ctx, agent, rc)
}

// Name implements Responder.
func (f ResponderFunc) Name() string { return "func" }
