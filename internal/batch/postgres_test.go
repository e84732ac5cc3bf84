package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// Ids arrive verbatim from the URL, so the store must map anything that
// cannot address the UUID id column to ErrNotFound before touching the pool.
// A nil pool proves the guard runs first: reaching the database would panic.
func TestPostgresStoreMalformedIDIsNotFound(t *testing.T) {
	store := NewPostgresStore(nil)
	ctx := context.Background()

	badIDs := []string{"nonexistent", "", "not-a-uuid", "12345", "../../etc"}
	for _, id := range badIDs {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
		if err := store.MarkRunning(ctx, id, 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("MarkRunning(%q) error = %v, want ErrNotFound", id, err)
		}
		if err := store.MarkSucceeded(ctx, id, 1, "https://cdn.example.com/x.png"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("MarkSucceeded(%q) error = %v, want ErrNotFound", id, err)
		}
		if err := store.MarkFailed(ctx, id, 1, "boom"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("MarkFailed(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestValidBatchID(t *testing.T) {
	if !validBatchID(uuid.NewString()) {
		t.Fatal("generated uuid rejected")
	}
	if validBatchID("nonexistent") {
		t.Fatal("non-uuid id accepted")
	}
}
