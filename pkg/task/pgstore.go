package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const taskColumns = `id, owner_id, title, description, category, energy, priority, duration_min,
	time_of_day, parent_id, rejection_count, last_rejected_at, is_muted, created_at, updated_at, completed_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			owner_id         TEXT NOT NULL,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL DEFAULT '',
			energy           TEXT NOT NULL DEFAULT 'medium',
			priority         TEXT NOT NULL DEFAULT 'medium',
			duration_min     INTEGER NOT NULL DEFAULT 25,
			time_of_day      TEXT NOT NULL DEFAULT 'any',
			parent_id        TEXT NOT NULL DEFAULT '',
			rejection_count  INTEGER NOT NULL DEFAULT 0,
			last_rejected_at TIMESTAMPTZ,
			is_muted         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ DEFAULT NOW(),
			updated_at       TIMESTAMPTZ DEFAULT NOW(),
			completed_at     TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner_pending ON tasks(owner_id, energy) WHERE completed_at IS NULL AND NOT is_muted`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id) WHERE parent_id != ''`)
	return err
}

// Create inserts a new task.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Energy == "" {
		t.Energy = EnergyMedium
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.TimeOfDay == "" {
		t.TimeOfDay = AnyTime
	}
	if t.DurationMin <= 0 {
		t.DurationMin = 25
	}
	t.RejectionCount = 0

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, category, energy, priority, duration_min, time_of_day, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Category, string(t.Energy), string(t.Priority), t.DurationMin, string(t.TimeOfDay), t.ParentID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// Update modifies task fields. Supported keys: title, description, category,
// energy, priority, duration_min, time_of_day, is_muted. An explicit edit is
// the only way a muted task comes back, so is_muted=false is allowed here.
func (s *PgStore) Update(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	setClauses := "updated_at = $1"
	args := []any{now}
	argIdx := 2

	for k, v := range updates {
		switch k {
		case "title", "description", "category", "energy", "priority", "duration_min", "time_of_day", "is_muted":
			setClauses += fmt.Sprintf(", %s = $%d", k, argIdx)
			args = append(args, v)
			argIdx++
		}
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return t, nil
}

// Delete removes a task.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// Complete marks a task as completed. COALESCE keeps the original timestamp
// when the task was already done, so a repeat call never moves it.
func (s *PgStore) Complete(ctx context.Context, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t, err := scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET completed_at = COALESCE(completed_at, $1), updated_at = $1
		WHERE id = $2
		RETURNING `+taskColumns, now, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("complete task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("complete task %s: %w", id, err)
	}
	return t, nil
}

// Reject increments the rejection counter in place. The increment happens in
// SQL so two concurrent rejections both land instead of one overwriting the
// other with a stale read.
func (s *PgStore) Reject(ctx context.Context, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t, err := scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET rejection_count = rejection_count + 1, last_rejected_at = $1, updated_at = $1
		WHERE id = $2
		RETURNING `+taskColumns, now, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reject task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("reject task %s: %w", id, err)
	}
	return t, nil
}

// Mute marks a task as muted. Idempotent.
func (s *PgStore) Mute(ctx context.Context, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t, err := scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET is_muted = TRUE, updated_at = $1
		WHERE id = $2
		RETURNING `+taskColumns, now, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("mute task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("mute task %s: %w", id, err)
	}
	return t, nil
}

// ByOwner returns all of one user's tasks, oldest first. UUIDv7 ids make the
// id tie-break follow insertion order.
func (s *PgStore) ByOwner(ctx context.Context, ownerID string) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("tasks by owner: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// ByParent returns all subtasks of a parent task.
func (s *PgStore) ByParent(ctx context.Context, parentID string) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE parent_id = $1 ORDER BY created_at ASC, id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("tasks by parent: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// PendingCount returns how many of a user's tasks are still suggestible.
func (s *PgStore) PendingCount(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND completed_at IS NULL AND NOT is_muted`, ownerID).Scan(&n)
	return n, err
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Category, &t.Energy, &t.Priority,
		&t.DurationMin, &t.TimeOfDay, &t.ParentID, &t.RejectionCount, &t.LastRejectedAt, &t.IsMuted,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
