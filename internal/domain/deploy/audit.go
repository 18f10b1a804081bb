package deploy

import "time"

// AuditEvent is one admin or governance action with its before/after
// values.
type AuditEvent struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actor_id"`
	ActorRole string         `json:"actor_role,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
