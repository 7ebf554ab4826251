package suggest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mindmate/pkg/activity"
	"mindmate/pkg/escalation"
	"mindmate/pkg/task"
)

// --- Mock task store ---

type mockTaskStore struct {
	tasks map[string]*task.Task
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[string]*task.Task)}
}

func (s *mockTaskStore) get(id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, task.ErrNotFound)
	}
	return t, nil
}

func (s *mockTaskStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	t.ID = "task-" + t.Title
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	cp := *t
	s.tasks[t.ID] = &cp
	return &cp, nil
}

func (s *mockTaskStore) Get(_ context.Context, id string) (*task.Task, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}

func (s *mockTaskStore) Update(_ context.Context, id string, updates map[string]any) (*task.Task, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if v, ok := updates["is_muted"]; ok {
		t.IsMuted = v.(bool)
	}
	if v, ok := updates["title"]; ok {
		t.Title = v.(string)
	}
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (s *mockTaskStore) Delete(_ context.Context, id string) error {
	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.tasks, id)
	return nil
}

func (s *mockTaskStore) ByOwner(_ context.Context, ownerID string) ([]task.Task, error) {
	var result []task.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *mockTaskStore) ByParent(_ context.Context, parentID string) ([]task.Task, error) {
	var result []task.Task
	for _, t := range s.tasks {
		if t.ParentID == parentID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *mockTaskStore) Complete(_ context.Context, id string) (*task.Task, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt == nil {
		now := time.Now()
		t.CompletedAt = &now
	}
	cp := *t
	return &cp, nil
}

func (s *mockTaskStore) Reject(_ context.Context, id string) (*task.Task, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	t.RejectionCount++
	now := time.Now()
	t.LastRejectedAt = &now
	cp := *t
	return &cp, nil
}

func (s *mockTaskStore) Mute(_ context.Context, id string) (*task.Task, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	t.IsMuted = true
	cp := *t
	return &cp, nil
}

func (s *mockTaskStore) Count(_ context.Context) (int, error) { return len(s.tasks), nil }
func (s *mockTaskStore) PendingCount(_ context.Context, ownerID string) (int, error) {
	n := 0
	for _, t := range s.tasks {
		if t.OwnerID == ownerID && t.Pending() {
			n++
		}
	}
	return n, nil
}
func (s *mockTaskStore) EnsureTable(_ context.Context) error { return nil }

// --- Mock escalation store ---

type mockPromptStore struct {
	prompts map[string]*escalation.Prompt
	opened  int
	seq     int
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: make(map[string]*escalation.Prompt)}
}

func (s *mockPromptStore) Open(_ context.Context, taskID, ownerID string, rejectionCount int) (*escalation.Prompt, bool, error) {
	for _, p := range s.prompts {
		if p.TaskID == taskID && p.Status == "open" {
			return p, false, nil
		}
	}
	s.seq++
	s.opened++
	p := &escalation.Prompt{
		ID:             fmt.Sprintf("prompt-%d", s.seq),
		TaskID:         taskID,
		OwnerID:        ownerID,
		RejectionCount: rejectionCount,
		Status:         "open",
		CreatedAt:      time.Now(),
	}
	s.prompts[p.ID] = p
	return p, true, nil
}

func (s *mockPromptStore) Resolve(_ context.Context, id, action string) (*escalation.Prompt, error) {
	p, ok := s.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, escalation.ErrNotFound)
	}
	if p.Status == "open" {
		p.Status = "resolved"
		p.Action = action
		now := time.Now()
		p.ResolvedAt = &now
	}
	return p, nil
}

func (s *mockPromptStore) ResolveOpenForTask(_ context.Context, taskID, action string) error {
	for _, p := range s.prompts {
		if p.TaskID == taskID && p.Status == "open" {
			p.Status = "resolved"
			p.Action = action
			now := time.Now()
			p.ResolvedAt = &now
		}
	}
	return nil
}

func (s *mockPromptStore) Get(_ context.Context, id string) (*escalation.Prompt, error) {
	p, ok := s.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, escalation.ErrNotFound)
	}
	return p, nil
}

func (s *mockPromptStore) OpenForOwner(_ context.Context, ownerID string) ([]escalation.Prompt, error) {
	var result []escalation.Prompt
	for _, p := range s.prompts {
		if p.OwnerID == ownerID && p.Status == "open" {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *mockPromptStore) Recent(_ context.Context, ownerID string, limit int) ([]escalation.Prompt, error) {
	return nil, nil
}
func (s *mockPromptStore) OpenCount(_ context.Context, ownerID string) (int, error) {
	n := 0
	for _, p := range s.prompts {
		if p.OwnerID == ownerID && p.Status == "open" {
			n++
		}
	}
	return n, nil
}
func (s *mockPromptStore) EnsureTable(_ context.Context) error { return nil }

// --- Mock activity store ---

type mockActivity struct {
	types []string
}

func (s *mockActivity) Append(_ context.Context, eventType, ownerID string, content map[string]any) (*activity.Event, error) {
	s.types = append(s.types, eventType)
	return &activity.Event{ID: "evt-1", Type: eventType, OwnerID: ownerID, Content: content}, nil
}
func (s *mockActivity) Get(_ context.Context, id string) (*activity.Event, error) { return nil, nil }
func (s *mockActivity) Recent(_ context.Context, limit int) ([]activity.Event, error) {
	return nil, nil
}
func (s *mockActivity) ByOwner(_ context.Context, ownerID string, limit int) ([]activity.Event, error) {
	return nil, nil
}
func (s *mockActivity) ByType(_ context.Context, eventType string, limit int) ([]activity.Event, error) {
	return nil, nil
}
func (s *mockActivity) Since(_ context.Context, afterID string, limit int) ([]activity.Event, error) {
	return nil, nil
}
func (s *mockActivity) Count(_ context.Context) (int, error) { return 0, nil }
func (s *mockActivity) VerifyChain(_ context.Context) error  { return nil }
func (s *mockActivity) EnsureTable(_ context.Context) error  { return nil }

func (s *mockActivity) countType(eventType string) int {
	n := 0
	for _, t := range s.types {
		if t == eventType {
			n++
		}
	}
	return n
}

// --- Helpers ---

func newTestEngine(ts *mockTaskStore) (*Engine, *mockPromptStore, *mockActivity) {
	ps := newMockPromptStore()
	log := &mockActivity{}
	return New(ts, ps, log), ps, log
}

func addTask(ts *mockTaskStore, id string, energy task.Energy, rejections int, createdAt time.Time) *task.Task {
	t := &task.Task{
		ID:             id,
		OwnerID:        "alice",
		Title:          id,
		Energy:         energy,
		RejectionCount: rejections,
		CreatedAt:      createdAt,
	}
	ts.tasks[id] = t
	return t
}

// --- Selection ---

func TestSelectCandidateNeverReturnsTerminal(t *testing.T) {
	now := time.Now()
	done := task.Task{ID: "a", Energy: task.EnergyLow, CompletedAt: &now}
	muted := task.Task{ID: "b", Energy: task.EnergyLow, IsMuted: true}
	tasks := []task.Task{done, muted}

	for _, energy := range []task.Energy{task.EnergyLow, task.EnergyMedium, task.EnergyHigh} {
		got, err := SelectCandidate(tasks, energy)
		if err != nil {
			t.Fatalf("SelectCandidate(%s): %v", energy, err)
		}
		if got != nil {
			t.Errorf("SelectCandidate(%s) returned terminal task %s", energy, got.ID)
		}
	}
}

func TestSelectCandidateMatchesEnergyOnly(t *testing.T) {
	// Spec'd scenario: A medium/0 rejections, B medium/2, C high/0.
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		{ID: "A", Energy: task.EnergyMedium, RejectionCount: 0, CreatedAt: base},
		{ID: "B", Energy: task.EnergyMedium, RejectionCount: 2, CreatedAt: base.Add(time.Minute)},
		{ID: "C", Energy: task.EnergyHigh, RejectionCount: 0, CreatedAt: base.Add(2 * time.Minute)},
	}

	got, err := SelectCandidate(tasks, task.EnergyMedium)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a candidate")
	}
	if got.ID == "C" {
		t.Fatal("high-energy task returned for medium request")
	}
	if got.ID != "A" {
		t.Errorf("fewest-rejections rule: want A, got %s", got.ID)
	}

	got, err = SelectCandidate(tasks, task.EnergyHigh)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "C" {
		t.Errorf("high energy: want C, got %+v", got)
	}

	got, err = SelectCandidate(tasks, task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("low energy: want none, got %s", got.ID)
	}
}

func TestSelectCandidateTieBreak(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	// Same rejection count: earliest created wins.
	tasks := []task.Task{
		{ID: "younger", Energy: task.EnergyLow, CreatedAt: base.Add(time.Hour)},
		{ID: "older", Energy: task.EnergyLow, CreatedAt: base},
	}
	got, err := SelectCandidate(tasks, task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "older" {
		t.Errorf("created_at tie-break: want older, got %s", got.ID)
	}

	// Same rejection count and creation time: smallest id wins, regardless
	// of slice order.
	tasks = []task.Task{
		{ID: "b", Energy: task.EnergyLow, CreatedAt: base},
		{ID: "a", Energy: task.EnergyLow, CreatedAt: base},
	}
	got, _ = SelectCandidate(tasks, task.EnergyLow)
	if got.ID != "a" {
		t.Errorf("id tie-break: want a, got %s", got.ID)
	}
	tasks[0], tasks[1] = tasks[1], tasks[0]
	got, _ = SelectCandidate(tasks, task.EnergyLow)
	if got.ID != "a" {
		t.Errorf("id tie-break after reorder: want a, got %s", got.ID)
	}
}

func TestSelectCandidateSubtasksEligible(t *testing.T) {
	base := time.Now()
	tasks := []task.Task{
		{ID: "child", Energy: task.EnergyLow, ParentID: "parent", CreatedAt: base},
	}
	got, err := SelectCandidate(tasks, task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "child" {
		t.Errorf("subtask should be eligible on its own, got %+v", got)
	}
}

func TestSelectCandidateInvalidEnergy(t *testing.T) {
	if _, err := SelectCandidate(nil, "sleepy"); err == nil {
		t.Fatal("expected validation error for bad energy")
	}
	if _, err := SelectCandidate(nil, ""); err == nil {
		t.Fatal("expected validation error for empty energy")
	}
}

func TestSelectCandidateDoesNotMutateInput(t *testing.T) {
	tasks := []task.Task{{ID: "x", Energy: task.EnergyLow, CreatedAt: time.Now()}}
	got, err := SelectCandidate(tasks, task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	got.Title = "changed"
	if tasks[0].Title != "" {
		t.Error("SelectCandidate returned a pointer into the input slice")
	}
}

// --- Rejection and escalation ---

func TestRejectIncrementsAndEscalatesAtThreshold(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, 0, time.Now())
	e, ps, _ := newTestEngine(ts)
	ctx := context.Background()

	// Rejections 1 and 2 stay below the threshold.
	for want := 1; want < MaxRejections; want++ {
		out, err := e.Reject(ctx, "t1")
		if err != nil {
			t.Fatalf("reject %d: %v", want, err)
		}
		if out.RejectionCount != want {
			t.Errorf("reject %d: count = %d", want, out.RejectionCount)
		}
		if out.Escalate {
			t.Errorf("reject %d: escalated below threshold", want)
		}
	}
	if ts.tasks["t1"].LastRejectedAt == nil {
		t.Error("last_rejected_at not set")
	}

	// The call that brings the count to MaxRejections escalates.
	out, err := e.Reject(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.RejectionCount != MaxRejections || !out.Escalate {
		t.Errorf("threshold call: got %+v", out)
	}
	if ps.opened != 1 {
		t.Errorf("expected exactly one prompt, got %d", ps.opened)
	}

	// Every rejection past the threshold also reports escalate, but the
	// open prompt is not duplicated.
	out, err = e.Reject(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.RejectionCount != MaxRejections+1 || !out.Escalate {
		t.Errorf("post-threshold call: got %+v", out)
	}
	if ps.opened != 1 {
		t.Errorf("duplicate prompt opened: %d", ps.opened)
	}
}

func TestRejectFromExistingCount(t *testing.T) {
	// Task already rejected twice: the very next rejection crosses the
	// threshold of 3.
	ts := newMockTaskStore()
	addTask(ts, "B", task.EnergyMedium, 2, time.Now())
	e, _, _ := newTestEngine(ts)

	out, err := e.Reject(context.Background(), "B")
	if err != nil {
		t.Fatal(err)
	}
	if out.RejectionCount != 3 {
		t.Errorf("count: want 3, got %d", out.RejectionCount)
	}
	if !out.Escalate {
		t.Error("count 3 must escalate with threshold 3")
	}
}

func TestRejectTerminalIsNoOp(t *testing.T) {
	ts := newMockTaskStore()
	done := addTask(ts, "done", task.EnergyLow, 1, time.Now())
	now := time.Now()
	done.CompletedAt = &now
	muted := addTask(ts, "muted", task.EnergyLow, MaxRejections+2, time.Now())
	muted.IsMuted = true

	e, ps, log := newTestEngine(ts)
	ctx := context.Background()

	out, err := e.Reject(ctx, "done")
	if err != nil {
		t.Fatal(err)
	}
	if out.RejectionCount != 1 || out.Escalate {
		t.Errorf("completed task: got %+v", out)
	}
	if ts.tasks["done"].RejectionCount != 1 {
		t.Error("completed task counter moved")
	}

	out, err = e.Reject(ctx, "muted")
	if err != nil {
		t.Fatal(err)
	}
	if out.RejectionCount != MaxRejections+2 || !out.Escalate {
		t.Errorf("muted task: got %+v", out)
	}
	if ts.tasks["muted"].RejectionCount != MaxRejections+2 {
		t.Error("muted task counter moved")
	}

	if ps.opened != 0 {
		t.Error("no-op rejections must not open prompts")
	}
	if log.countType(activity.SuggestionRejected) != 0 {
		t.Error("no-op rejections must not record activity")
	}
}

func TestRejectUnknownTask(t *testing.T) {
	e, _, _ := newTestEngine(newMockTaskStore())
	if _, err := e.Reject(context.Background(), "ghost"); err == nil {
		t.Fatal("expected not-found error")
	}
}

// --- Accept ---

func TestAcceptIdempotent(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, 0, time.Now())
	e, _, log := newTestEngine(ts)
	ctx := context.Background()

	first, err := e.Accept(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if first.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	second, err := e.Accept(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if second.CompletedAt == nil || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("second accept moved completed_at: %v -> %v", first.CompletedAt, second.CompletedAt)
	}
	if n := log.countType(activity.SuggestionAccepted); n != 1 {
		t.Errorf("accept activity recorded %d times, want 1", n)
	}
}

func TestAcceptedTaskNeverSuggestedAgain(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, 0, time.Now())
	e, _, _ := newTestEngine(ts)
	ctx := context.Background()

	if _, err := e.Accept(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	got, err := e.Suggest(ctx, "alice", task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("accepted task suggested again: %s", got.ID)
	}
}

// --- Mute ---

func TestMuteIsStickyAcrossEnergies(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyMedium, 0, time.Now())
	e, _, _ := newTestEngine(ts)
	ctx := context.Background()

	if _, err := e.Mute(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	for _, energy := range []task.Energy{task.EnergyLow, task.EnergyMedium, task.EnergyHigh} {
		got, err := e.Suggest(ctx, "alice", energy)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("muted task suggested at %s", energy)
		}
	}

	// Muting again is a no-op, not an error.
	if _, err := e.Mute(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
}

func TestMuteResolvesOpenPrompt(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, MaxRejections-1, time.Now())
	e, ps, _ := newTestEngine(ts)
	ctx := context.Background()

	out, err := e.Reject(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Escalate || ps.opened != 1 {
		t.Fatalf("expected escalation, got %+v opened=%d", out, ps.opened)
	}

	if _, err := e.Mute(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	open, _ := ps.OpenForOwner(ctx, "alice")
	if len(open) != 0 {
		t.Errorf("mute left %d prompts open", len(open))
	}
}

// --- Round trip ---

func TestRejectThenSuggestAgain(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ts := newMockTaskStore()
	addTask(ts, "a", task.EnergyLow, 0, base)
	addTask(ts, "b", task.EnergyLow, 0, base.Add(time.Minute))
	e, _, _ := newTestEngine(ts)
	ctx := context.Background()

	first, err := e.Suggest(ctx, "alice", task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "a" {
		t.Fatalf("want a first, got %s", first.ID)
	}

	if _, err := e.Reject(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	// a now has more rejections than b, so b ranks first.
	second, err := e.Suggest(ctx, "alice", task.EnergyLow)
	if err != nil {
		t.Fatal(err)
	}
	if second == nil {
		t.Fatal("expected a candidate after rejection")
	}
	if second.ID != "b" {
		t.Errorf("want b after rejecting a, got %s", second.ID)
	}
	if !second.Pending() {
		t.Error("suggested task is terminal")
	}
}

// --- Prompt resolution ---

func TestResolvePromptMutes(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, MaxRejections-1, time.Now())
	e, ps, _ := newTestEngine(ts)
	ctx := context.Background()

	if _, err := e.Reject(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	open, _ := ps.OpenForOwner(ctx, "alice")
	if len(open) != 1 {
		t.Fatalf("expected one open prompt, got %d", len(open))
	}

	p, err := e.ResolvePrompt(ctx, open[0].ID, escalation.ActionMuted)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "resolved" || p.Action != escalation.ActionMuted {
		t.Errorf("prompt not resolved: %+v", p)
	}
	if !ts.tasks["t1"].IsMuted {
		t.Error("resolving with muted did not mute the task")
	}
}

func TestResolvePromptKept(t *testing.T) {
	ts := newMockTaskStore()
	addTask(ts, "t1", task.EnergyLow, MaxRejections-1, time.Now())
	e, ps, _ := newTestEngine(ts)
	ctx := context.Background()

	if _, err := e.Reject(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	open, _ := ps.OpenForOwner(ctx, "alice")

	if _, err := e.ResolvePrompt(ctx, open[0].ID, escalation.ActionKept); err != nil {
		t.Fatal(err)
	}
	if ts.tasks["t1"].IsMuted {
		t.Error("kept must leave the task in rotation")
	}
	if ts.tasks["t1"].RejectionCount != MaxRejections {
		t.Error("kept must not touch the counter")
	}
}

func TestResolvePromptInvalidAction(t *testing.T) {
	e, _, _ := newTestEngine(newMockTaskStore())
	if _, err := e.ResolvePrompt(context.Background(), "p1", "delete"); err == nil {
		t.Fatal("expected invalid action error")
	}
}
