package activity

import (
	"context"
	"time"
)

// Well-known event types.
const (
	TaskCreated         = "task.created"
	TaskDeleted         = "task.deleted"
	SuggestionAccepted  = "suggestion.accepted"
	SuggestionRejected  = "suggestion.rejected"
	SuggestionMuted     = "suggestion.muted"
	SuggestionEscalated = "suggestion.escalated"
	UserRegistered      = "user.registered"
	DigestSent          = "digest.sent"
)

// Event is one node in the hash-chained, append-only activity log.
type Event struct {
	ID        string         `json:"id"` // UUID v7 (time-ordered)
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	OwnerID   string         `json:"owner_id"` // user the event belongs to
	Content   map[string]any `json:"content"`
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// Store is the contract for activity persistence.
type Store interface {
	Append(ctx context.Context, eventType, ownerID string, content map[string]any) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByOwner(ctx context.Context, ownerID string, limit int) ([]Event, error)
	ByType(ctx context.Context, eventType string, limit int) ([]Event, error)
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}
