package activity

import (
	"encoding/json"
	"testing"
	"time"
)

func TestComputeHash(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	content, _ := json.Marshal(map[string]any{"task_id": "t1"})

	h1 := computeHash("", "id1", "suggestion.rejected", "alice", now, content)
	h2 := computeHash("", "id1", "suggestion.rejected", "alice", now, content)
	if h1 != h2 {
		t.Fatalf("same inputs should produce same hash: %s != %s", h1, h2)
	}

	h3 := computeHash("", "id2", "suggestion.rejected", "alice", now, content)
	if h1 == h3 {
		t.Fatalf("different ID should produce different hash")
	}

	h4 := computeHash("prevhash", "id1", "suggestion.rejected", "alice", now, content)
	if h1 == h4 {
		t.Fatalf("different prevHash should produce different hash")
	}

	h5 := computeHash("", "id1", "suggestion.rejected", "bob", now, content)
	if h1 == h5 {
		t.Fatalf("different owner should produce different hash")
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// JSON marshal of map sorts keys deterministically
	content1, _ := json.Marshal(map[string]any{"task_id": "t1", "rejection_count": 3})
	content2, _ := json.Marshal(map[string]any{"rejection_count": 3, "task_id": "t1"})

	h1 := computeHash("", "id", "type", "owner", now, content1)
	h2 := computeHash("", "id", "type", "owner", now, content2)
	if h1 != h2 {
		t.Fatalf("json.Marshal sorts keys, so hashes should match: %s != %s", h1, h2)
	}
}
