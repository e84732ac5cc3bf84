package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(time.Hour)
}

func mustCreate(t *testing.T, store *MemoryStore, sceneTexts []string) *Batch {
	t.Helper()
	b, err := store.Create(context.Background(), "https://example.com/amina.jpg", "Amina", sceneTexts)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return b
}

func TestMemoryStoreCreate(t *testing.T) {
	store := newTestStore()
	b := mustCreate(t, store, []string{"one", "two", "three"})

	if b.ID == "" {
		t.Fatal("expected a batch id")
	}
	if len(b.Scenes) != 3 {
		t.Fatalf("scene count = %d, want 3", len(b.Scenes))
	}
	for i, task := range b.Scenes {
		if task.SceneNumber != i+1 {
			t.Fatalf("scene %d has number %d", i, task.SceneNumber)
		}
		if task.State != TaskPending {
			t.Fatalf("scene %d state = %q, want pending", i+1, task.State)
		}
	}
	if b.Status() != StatusPending {
		t.Fatalf("fresh batch status = %q, want pending", b.Status())
	}
}

func TestMemoryStoreCreateRejectsEmptyScenes(t *testing.T) {
	store := newTestStore()
	if _, err := store.Create(context.Background(), "https://example.com/a.jpg", "Amina", nil); !errors.Is(err, ErrNoScenes) {
		t.Fatalf("Create(nil scenes) error = %v, want ErrNoScenes", err)
	}
}

func TestMemoryStoreGetUnknownID(t *testing.T) {
	store := newTestStore()
	if _, err := store.Get(context.Background(), "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(nonexistent) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSnapshotDoesNotAliasState(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	b := mustCreate(t, store, []string{"one"})

	snapshot, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	snapshot.Scenes[0].State = TaskFailed
	snapshot.Scenes[0].ErrorReason = "mutated copy"

	fresh, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if fresh.Scenes[0].State != TaskPending {
		t.Fatal("mutating a snapshot leaked into store state")
	}
}

func TestMemoryStoreFirstTerminalWriteWins(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	b := mustCreate(t, store, []string{"one"})

	if err := store.MarkRunning(ctx, b.ID, 1); err != nil {
		t.Fatalf("MarkRunning returned error: %v", err)
	}
	if err := store.MarkSucceeded(ctx, b.ID, 1, "https://cdn.example.com/1.png"); err != nil {
		t.Fatalf("MarkSucceeded returned error: %v", err)
	}

	// Late duplicate completions must not overwrite the recorded result.
	if err := store.MarkFailed(ctx, b.ID, 1, "late failure"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	if err := store.MarkSucceeded(ctx, b.ID, 1, "https://cdn.example.com/other.png"); err != nil {
		t.Fatalf("MarkSucceeded returned error: %v", err)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	task := got.Scenes[0]
	if task.State != TaskSucceeded {
		t.Fatalf("state = %q, want succeeded", task.State)
	}
	if task.ImageURL != "https://cdn.example.com/1.png" {
		t.Fatalf("image url = %q, want first recorded url", task.ImageURL)
	}
	if task.ErrorReason != "" {
		t.Fatalf("error reason = %q, want empty", task.ErrorReason)
	}
}

func TestMemoryStoreFailedThenSucceededIsNoOp(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	b := mustCreate(t, store, []string{"one"})

	if err := store.MarkFailed(ctx, b.ID, 1, "provider timeout"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	if err := store.MarkSucceeded(ctx, b.ID, 1, "https://cdn.example.com/1.png"); err != nil {
		t.Fatalf("MarkSucceeded returned error: %v", err)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Scenes[0].State != TaskFailed {
		t.Fatalf("state = %q, want failed", got.Scenes[0].State)
	}
	if got.Scenes[0].ErrorReason != "provider timeout" {
		t.Fatalf("error reason = %q, want original reason", got.Scenes[0].ErrorReason)
	}
}

func TestMemoryStoreMarkUnknownScene(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	b := mustCreate(t, store, []string{"one"})

	if err := store.MarkSucceeded(ctx, b.ID, 99, "https://x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkSucceeded(scene 99) error = %v, want ErrNotFound", err)
	}
	if err := store.MarkFailed(ctx, "missing-batch", 1, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkFailed(missing batch) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreConcurrentCompletions(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	const scenes = 32
	texts := make([]string, scenes)
	for i := range texts {
		texts[i] = "scene"
	}
	b := mustCreate(t, store, texts)

	var wg sync.WaitGroup
	for i := 1; i <= scenes; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.MarkRunning(ctx, b.ID, n)
			if n%4 == 0 {
				_ = store.MarkFailed(ctx, b.ID, n, "simulated failure")
			} else {
				_ = store.MarkSucceeded(ctx, b.ID, n, "https://cdn.example.com/img.png")
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(got.Scenes) != scenes {
		t.Fatalf("scene count = %d, want %d", len(got.Scenes), scenes)
	}
	for i, task := range got.Scenes {
		if task.SceneNumber != i+1 {
			t.Fatalf("scenes out of order at index %d: number %d", i, task.SceneNumber)
		}
		if !task.State.Terminal() {
			t.Fatalf("scene %d state = %q, want terminal", task.SceneNumber, task.State)
		}
	}
	if got.Status() != StatusComplete {
		t.Fatalf("batch status = %q, want complete", got.Status())
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	b := mustCreate(t, store, []string{"one"})

	time.Sleep(50 * time.Millisecond)

	if _, err := store.Get(context.Background(), b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired batch Get error = %v, want ErrNotFound", err)
	}
}
