package domain

import (
	"context"
	"time"
)

// Audit outcomes.
const (
	AuditOutcomeRouted = "routed"
	AuditOutcomeHalted = "halted"
)

// RoutingAuditEntry records one routing decision made by the service.
type RoutingAuditEntry struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Mode         string    `json:"mode"`
	PrimaryAgent string    `json:"primary_agent,omitempty"`
	Selected     []string  `json:"selected"`
	Confidence   float64   `json:"confidence"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoutingAuditStore persists routing audit entries.
type RoutingAuditStore interface {
	Record(ctx context.Context, entry RoutingAuditEntry) error
	List(ctx context.Context, sessionID string, limit int) ([]RoutingAuditEntry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
