package escalation

import (
	"context"
	"errors"
	"time"
)

// Resolution actions for a prompt.
const (
	ActionMuted = "muted" // take the task out of rotation
	ActionKept  = "kept"  // leave it in rotation, counter intact
)

// ErrNotFound is returned when a prompt id does not exist.
var ErrNotFound = errors.New("escalation prompt not found")

// Prompt asks the user what to do with a task they keep rejecting.
// At most one prompt per task is open at a time.
type Prompt struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	OwnerID        string     `json:"owner_id"`
	RejectionCount int        `json:"rejection_count"` // count at the time the prompt opened
	Status         string     `json:"status"`          // open, resolved
	Action         string     `json:"action"`          // "", muted, kept
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Store is the contract for prompt persistence.
type Store interface {
	// Open creates a prompt for the task unless one is already open; the
	// bool reports whether a new prompt was created.
	Open(ctx context.Context, taskID, ownerID string, rejectionCount int) (*Prompt, bool, error)

	// Resolve answers a prompt. Resolving an already-resolved prompt is a
	// no-op that returns it unchanged.
	Resolve(ctx context.Context, id, action string) (*Prompt, error)

	// ResolveOpenForTask answers the task's open prompt if there is one.
	ResolveOpenForTask(ctx context.Context, taskID, action string) error

	Get(ctx context.Context, id string) (*Prompt, error)
	OpenForOwner(ctx context.Context, ownerID string) ([]Prompt, error)
	Recent(ctx context.Context, ownerID string, limit int) ([]Prompt, error)
	OpenCount(ctx context.Context, ownerID string) (int, error)
	EnsureTable(ctx context.Context) error
}
