package models

import "time"

// OutboxRecord is an event written in the same unit of work as the state
// change that caused it, waiting to be published.
type OutboxRecord struct {
	ID           string
	EventKind    string
	IdentityID   string
	Payload      []byte
	OccurredAt   time.Time
	Attempts     int
	LastError    *string
	DispatchedAt *time.Time
}
