package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Energy is the coarse self-reported user state a task is matched against.
type Energy string

const (
	EnergyLow    Energy = "low"
	EnergyMedium Energy = "medium"
	EnergyHigh   Energy = "high"
)

// ParseEnergy validates a caller-supplied energy value.
func ParseEnergy(s string) (Energy, error) {
	switch Energy(s) {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return Energy(s), nil
	}
	return "", fmt.Errorf("invalid energy level %q", s)
}

// Priority is used for display and sorting, not by suggestion matching.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// TimeOfDay is an informational scheduling hint.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	AnyTime   TimeOfDay = "any"
)

// ErrNotFound is returned when a task id does not exist in the store.
var ErrNotFound = errors.New("task not found")

// Task is a unit of work owned by a single user.
type Task struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Energy         Energy     `json:"energy"`
	Priority       Priority   `json:"priority"`
	DurationMin    int        `json:"duration_min"`
	TimeOfDay      TimeOfDay  `json:"time_of_day"`
	ParentID       string     `json:"parent_id"`       // for subtasks
	RejectionCount int        `json:"rejection_count"` // monotone, never reset
	LastRejectedAt *time.Time `json:"last_rejected_at,omitempty"`
	IsMuted        bool       `json:"is_muted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Pending reports whether the task is still suggestible: not completed and
// not muted. Completed and muted are terminal.
func (t *Task) Pending() bool {
	return t.CompletedAt == nil && !t.IsMuted
}

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, updates map[string]any) (*Task, error)
	Delete(ctx context.Context, id string) error

	// ByOwner returns every task visible to one user, subtasks included.
	ByOwner(ctx context.Context, ownerID string) ([]Task, error)
	ByParent(ctx context.Context, parentID string) ([]Task, error)

	// Complete marks a task done. Idempotent: an already-set completed_at
	// is never moved.
	Complete(ctx context.Context, id string) (*Task, error)

	// Reject bumps rejection_count by one and stamps last_rejected_at in a
	// single atomic update.
	Reject(ctx context.Context, id string) (*Task, error)

	// Mute makes a task permanently unsuggestible until the user edits it.
	Mute(ctx context.Context, id string) (*Task, error)

	Count(ctx context.Context) (int, error)
	PendingCount(ctx context.Context, ownerID string) (int, error)
	EnsureTable(ctx context.Context) error
}
