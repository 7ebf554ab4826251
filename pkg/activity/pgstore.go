package activity

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed activity store with hash-chained integrity.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const eventColumns = `id, type, timestamp, owner_id, content, hash, prev_hash`

// EnsureTable creates the activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			owner_id  TEXT NOT NULL DEFAULT '',
			content   JSONB NOT NULL DEFAULT '{}',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_type ON activity(type)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_owner ON activity(owner_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_timestamp_id ON activity(timestamp, id)`)
	return err
}

// Append creates and stores a new event, extending the hash chain.
func (s *PgStore) Append(ctx context.Context, eventType, ownerID string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	now := time.Now().Truncate(time.Microsecond)
	id := uuid.Must(uuid.NewV7()).String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevHash string
	err = tx.QueryRow(ctx, `SELECT hash FROM activity ORDER BY timestamp DESC, id DESC LIMIT 1 FOR UPDATE`).Scan(&prevHash)
	if err != nil {
		prevHash = ""
	}

	hash := computeHash(prevHash, id, eventType, ownerID, now, contentJSON)

	e := &Event{
		ID:        id,
		Type:      eventType,
		Timestamp: now,
		OwnerID:   ownerID,
		Content:   content,
		Hash:      hash,
		PrevHash:  prevHash,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO activity (id, type, timestamp, owner_id, content, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
		e.ID, e.Type, e.Timestamp, e.OwnerID, string(contentJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}

	return e, nil
}

// Get retrieves a single event by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Event, error) {
	e, err := s.scanOne(ctx, `SELECT `+eventColumns+` FROM activity WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return e, nil
}

// Recent returns the most recent events in reverse chronological order.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM activity ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// ByOwner returns one user's events, newest first.
func (s *PgStore) ByOwner(ctx context.Context, ownerID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM activity WHERE owner_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, ownerID, limit)
}

// ByType returns events filtered by exact type.
func (s *PgStore) ByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM activity WHERE type = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, eventType, limit)
}

// Since returns events created after the given ID, for polling/SSE.
func (s *PgStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM activity
		WHERE (timestamp, id) > (SELECT timestamp, id FROM activity WHERE id = $1)
		ORDER BY timestamp ASC, id ASC LIMIT $2`, afterID, limit)
}

// Count returns the total number of events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the entire chain chronologically and verifies hash integrity.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM activity ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()

	prevHash := ""
	i := 0
	for rows.Next() {
		var e Event
		var contentJSON []byte
		err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.OwnerID, &contentJSON, &e.Hash, &e.PrevHash)
		if err != nil {
			return fmt.Errorf("verify chain scan row %d: %w", i, err)
		}

		if e.PrevHash != prevHash {
			return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
		}
		expected := computeHash(prevHash, e.ID, e.Type, e.OwnerID, e.Timestamp, contentJSON)
		if e.Hash != expected {
			// JSONB round-trips may reorder keys; retry against a
			// canonical re-marshal before declaring corruption.
			var content map[string]any
			if err := json.Unmarshal(contentJSON, &content); err == nil {
				remarshal, _ := json.Marshal(content)
				if e.Hash == computeHash(prevHash, e.ID, e.Type, e.OwnerID, e.Timestamp, remarshal) {
					prevHash = e.Hash
					i++
					continue
				}
			}
			return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, expected)
		}
		prevHash = e.Hash
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify chain rows: %w", err)
	}
	return nil
}

func (s *PgStore) scanOne(ctx context.Context, query string, args ...any) (*Event, error) {
	var e Event
	var contentJSON []byte
	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&e.ID, &e.Type, &e.Timestamp, &e.OwnerID, &contentJSON, &e.Hash, &e.PrevHash)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &e, nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.OwnerID, &contentJSON, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			e.Content = map[string]any{"_raw": string(contentJSON)}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

func computeHash(prevHash, id, eventType, ownerID string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, ownerID, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
