package multiagent

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// TimestampLayout is the ISO-8601 layout used for Context timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// IDGenerator produces session ids for callers that did not supply one.
type IDGenerator interface {
	NewSessionID(t time.Time) string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func(t time.Time) string

// NewSessionID implements IDGenerator.
func (f IDGeneratorFunc) NewSessionID(t time.Time) string { return f(t) }

// ULIDGenerator builds ids of the form session_<unix ms>_<9 lowercase chars>,
// taking the suffix from the random half of a ULID. The ids are for
// correlation only and are not secrets.
type ULIDGenerator struct{}

// NewSessionID implements IDGenerator.
func (ULIDGenerator) NewSessionID(t time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
	return fmt.Sprintf("session_%d_%s", t.UnixMilli(), strings.ToLower(id[len(id)-9:]))
}

// ContextBuilder assembles the Context handed to responders.
type ContextBuilder struct {
	ids IDGenerator
	now func() time.Time
}

// NewContextBuilder creates a builder. Nil arguments fall back to
// ULIDGenerator and time.Now.
func NewContextBuilder(ids IDGenerator, now func() time.Time) *ContextBuilder {
	if ids == nil {
		ids = ULIDGenerator{}
	}
	if now == nil {
		now = time.Now
	}
	return &ContextBuilder{ids: ids, now: now}
}

// Build captures the timestamp at call time and generates a session id only
// when sessionID is empty. A nil profile becomes the empty profile.
func (b *ContextBuilder) Build(message string, scripture *domain.ScriptureReference, profile *domain.UserProfile, primary domain.Agent, sessionID string) domain.Context {
	now := b.now().UTC()
	if sessionID == "" {
		sessionID = b.ids.NewSessionID(now)
	}
	var p domain.UserProfile
	if profile != nil {
		p = *profile
		p.Concerns = append([]string(nil), profile.Concerns...)
	}
	return domain.Context{
		OriginalMessage: message,
		Scripture:       scripture,
		UserProfile:     p,
		PrimaryAgent:    primary.Summary(),
		Timestamp:       now.Format(TimestampLayout),
		SessionID:       sessionID,
	}
}
