// Package suggest picks the next task to offer a user based on their
// self-reported energy level, and tracks what they do with the offer:
// accept it, reject it, or mute the task for good.
package suggest

import (
	"context"
	"fmt"

	"mindmate/pkg/activity"
	"mindmate/pkg/escalation"
	"mindmate/pkg/task"
)

// MaxRejections is how many times a task can be rejected before the user is
// prompted to mute or rework it. The prompt fires on the rejection that
// brings the count to this value and on every rejection after it.
const MaxRejections = 3

// Outcome reports the result of a rejection.
type Outcome struct {
	RejectionCount int  `json:"rejection_count"`
	Escalate       bool `json:"escalate"`
}

// Engine is the suggestion service. All task mutation goes through the
// injected task store; the engine holds no task state of its own.
type Engine struct {
	tasks   task.Store
	prompts escalation.Store
	log     activity.Store
}

// New creates an Engine.
func New(tasks task.Store, prompts escalation.Store, log activity.Store) *Engine {
	return &Engine{tasks: tasks, prompts: prompts, log: log}
}

// Eligible reports whether a task can be suggested for the given energy:
// pending (not completed, not muted) and an exact energy match. Subtasks
// qualify on the same terms as top-level tasks.
func Eligible(t *task.Task, energy task.Energy) bool {
	return t.Pending() && t.Energy == energy
}

// SelectCandidate returns the single best suggestion from the given
// collection, or nil when nothing is eligible. Pure: no store access, no
// mutation of the input.
//
// Among eligible tasks the pick is deterministic: fewest rejections first,
// then earliest created, then smallest id. UUIDv7 ids are time-ordered, so
// the final tie-break is total and stable.
func SelectCandidate(tasks []task.Task, energy task.Energy) (*task.Task, error) {
	if _, err := task.ParseEnergy(string(energy)); err != nil {
		return nil, err
	}

	var best *task.Task
	for i := range tasks {
		t := &tasks[i]
		if !Eligible(t, energy) {
			continue
		}
		if best == nil || ranksBefore(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func ranksBefore(a, b *task.Task) bool {
	if a.RejectionCount != b.RejectionCount {
		return a.RejectionCount < b.RejectionCount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Suggest loads the user's tasks and returns the best candidate for the
// given energy, or nil when the user is all clear.
func (e *Engine) Suggest(ctx context.Context, ownerID string, energy task.Energy) (*task.Task, error) {
	tasks, err := e.tasks.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return SelectCandidate(tasks, energy)
}

// Accept marks a suggested task as completed. Accepting a task that is
// already completed is a no-op: the original completion time stands and no
// duplicate activity is recorded.
func (e *Engine) Accept(ctx context.Context, id string) (*task.Task, error) {
	t, err := e.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt != nil {
		return t, nil
	}

	t, err = e.tasks.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	e.log.Append(ctx, activity.SuggestionAccepted, t.OwnerID, map[string]any{
		"task_id": t.ID,
		"title":   t.Title,
	})
	return t, nil
}

// Reject records that the user turned the task down. The rejection counter
// is incremented atomically in the store; Escalate is computed from the
// post-increment count, so the threshold crossing is reported exactly where
// it happens and on every rejection after it.
//
// Rejecting a terminal task (completed or muted) changes nothing: the stored
// count is reported as-is and no increment happens.
func (e *Engine) Reject(ctx context.Context, id string) (Outcome, error) {
	t, err := e.tasks.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if !t.Pending() {
		return Outcome{RejectionCount: t.RejectionCount, Escalate: t.RejectionCount >= MaxRejections}, nil
	}

	t, err = e.tasks.Reject(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{RejectionCount: t.RejectionCount, Escalate: t.RejectionCount >= MaxRejections}
	e.log.Append(ctx, activity.SuggestionRejected, t.OwnerID, map[string]any{
		"task_id":         t.ID,
		"rejection_count": t.RejectionCount,
	})

	if out.Escalate {
		_, opened, err := e.prompts.Open(ctx, t.ID, t.OwnerID, t.RejectionCount)
		if err != nil {
			return out, fmt.Errorf("open escalation for task %s: %w", t.ID, err)
		}
		if opened {
			e.log.Append(ctx, activity.SuggestionEscalated, t.OwnerID, map[string]any{
				"task_id":         t.ID,
				"rejection_count": t.RejectionCount,
			})
		}
	}
	return out, nil
}

// Mute takes a task out of suggestion rotation permanently. Sticky: nothing
// in the engine un-mutes; only an explicit task edit can. Muting a muted or
// completed task is a no-op.
func (e *Engine) Mute(ctx context.Context, id string) (*task.Task, error) {
	t, err := e.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Pending() {
		return t, nil
	}

	t, err = e.tasks.Mute(ctx, id)
	if err != nil {
		return nil, err
	}

	// Muting answers any outstanding escalation prompt for the task.
	if err := e.prompts.ResolveOpenForTask(ctx, t.ID, escalation.ActionMuted); err != nil {
		return nil, fmt.Errorf("resolve escalation for task %s: %w", t.ID, err)
	}
	e.log.Append(ctx, activity.SuggestionMuted, t.OwnerID, map[string]any{
		"task_id": t.ID,
	})
	return t, nil
}

// ResolvePrompt answers an escalation prompt. Action "muted" mutes the
// underlying task; "kept" leaves it in rotation with its counter intact.
func (e *Engine) ResolvePrompt(ctx context.Context, promptID, action string) (*escalation.Prompt, error) {
	if action != escalation.ActionMuted && action != escalation.ActionKept {
		return nil, fmt.Errorf("invalid escalation action %q", action)
	}

	p, err := e.prompts.Resolve(ctx, promptID, action)
	if err != nil {
		return nil, err
	}
	if action == escalation.ActionMuted {
		if _, err := e.Mute(ctx, p.TaskID); err != nil {
			return nil, err
		}
	}
	return p, nil
}
