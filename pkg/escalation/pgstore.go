package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed prompt store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const promptColumns = `id, task_id, owner_id, rejection_count, status, action, created_at, resolved_at`

// EnsureTable creates the escalation_prompts table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS escalation_prompts (
			id              TEXT PRIMARY KEY,
			task_id         TEXT NOT NULL,
			owner_id        TEXT NOT NULL,
			rejection_count INTEGER NOT NULL,
			status          TEXT NOT NULL DEFAULT 'open',
			action          TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			resolved_at     TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	// One open prompt per task, enforced in the database.
	_, err = s.pool.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_prompt_open_task ON escalation_prompts(task_id) WHERE status = 'open'`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_prompt_owner_status ON escalation_prompts(owner_id, status, created_at)`)
	return err
}

// Open inserts a prompt for the task. If one is already open the insert is
// skipped and the existing prompt is returned with created=false.
func (s *PgStore) Open(ctx context.Context, taskID, ownerID string, rejectionCount int) (*Prompt, bool, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO escalation_prompts (id, task_id, owner_id, rejection_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) WHERE status = 'open' DO NOTHING`,
		id, taskID, ownerID, rejectionCount, now)
	if err != nil {
		return nil, false, fmt.Errorf("open prompt for task %s: %w", taskID, err)
	}

	if tag.RowsAffected() == 0 {
		p, err := s.openForTask(ctx, taskID)
		if err != nil {
			return nil, false, fmt.Errorf("open prompt for task %s: %w", taskID, err)
		}
		return p, false, nil
	}

	return &Prompt{
		ID:             id,
		TaskID:         taskID,
		OwnerID:        ownerID,
		RejectionCount: rejectionCount,
		Status:         "open",
		CreatedAt:      now,
	}, true, nil
}

// Resolve answers an open prompt. Already-resolved prompts come back
// unchanged.
func (s *PgStore) Resolve(ctx context.Context, id, action string) (*Prompt, error) {
	now := time.Now().Truncate(time.Microsecond)
	p, err := scanPrompt(s.pool.QueryRow(ctx, `
		UPDATE escalation_prompts SET status = 'resolved', action = $1, resolved_at = $2
		WHERE id = $3 AND status = 'open'
		RETURNING `+promptColumns, action, now, id))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve prompt %s: %w", id, err)
	}
	// Not open: either already resolved (return as-is) or unknown.
	return s.Get(ctx, id)
}

// ResolveOpenForTask answers the task's open prompt if one exists.
func (s *PgStore) ResolveOpenForTask(ctx context.Context, taskID, action string) error {
	now := time.Now().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		UPDATE escalation_prompts SET status = 'resolved', action = $1, resolved_at = $2
		WHERE task_id = $3 AND status = 'open'`, action, now, taskID)
	if err != nil {
		return fmt.Errorf("resolve prompt for task %s: %w", taskID, err)
	}
	return nil
}

// Get retrieves a prompt by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Prompt, error) {
	p, err := scanPrompt(s.pool.QueryRow(ctx, `
		SELECT `+promptColumns+` FROM escalation_prompts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get prompt %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get prompt %s: %w", id, err)
	}
	return p, nil
}

func (s *PgStore) openForTask(ctx context.Context, taskID string) (*Prompt, error) {
	return scanPrompt(s.pool.QueryRow(ctx, `
		SELECT `+promptColumns+` FROM escalation_prompts WHERE task_id = $1 AND status = 'open'`, taskID))
}

// OpenForOwner returns the user's open prompts, oldest first.
func (s *PgStore) OpenForOwner(ctx context.Context, ownerID string) ([]Prompt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+promptColumns+` FROM escalation_prompts
		WHERE owner_id = $1 AND status = 'open' ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer rows.Close()
	return scanPromptRows(rows)
}

// Recent returns the user's latest prompts regardless of status.
func (s *PgStore) Recent(ctx context.Context, ownerID string, limit int) ([]Prompt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+promptColumns+` FROM escalation_prompts
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent prompts: %w", err)
	}
	defer rows.Close()
	return scanPromptRows(rows)
}

// OpenCount returns how many prompts await the user.
func (s *PgStore) OpenCount(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM escalation_prompts WHERE owner_id = $1 AND status = 'open'`, ownerID).Scan(&n)
	return n, err
}

func scanPrompt(row pgx.Row) (*Prompt, error) {
	var p Prompt
	err := row.Scan(&p.ID, &p.TaskID, &p.OwnerID, &p.RejectionCount, &p.Status, &p.Action, &p.CreatedAt, &p.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPromptRows(rows pgx.Rows) ([]Prompt, error) {
	var prompts []Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return prompts, nil
}
