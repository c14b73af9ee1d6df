package domain

import "time"

// Actor identifies who triggered a mutation, for audit attribution.
type Actor struct {
	ID   int64
	Role string
}

// AuditEntry is the structured description of one mutation. Before/After
// hold optional JSON snapshots of the touched entity.
type AuditEntry struct {
	ID int64

	ActorID   int64
	ActorRole string

	Message    string
	EntityKind string
	EntityID   string

	Before []byte
	After  []byte

	CreatedAt *time.Time
}
