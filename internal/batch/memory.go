package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = 10 * time.Minute

// MemoryStore keeps batches in process memory with TTL-based retention, so
// finished batches that nobody polls anymore eventually expire on their own.
// Every write refreshes the entry's TTL, keeping active batches alive.
type MemoryStore struct {
	jobs *cache.Cache
}

type jobEntry struct {
	mu    sync.Mutex
	batch Batch
}

// NewMemoryStore creates a store whose entries expire ttl after their last
// write. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{jobs: cache.New(ttl, memoryCleanupInterval)}
}

func (m *MemoryStore) Create(ctx context.Context, characterImageURL, characterName string, sceneTexts []string) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sceneTexts) == 0 {
		return nil, ErrNoScenes
	}

	scenes := make([]SceneTask, len(sceneTexts))
	for i, text := range sceneTexts {
		scenes[i] = SceneTask{
			SceneNumber: i + 1,
			SceneText:   text,
			State:       TaskPending,
		}
	}

	entry := &jobEntry{batch: Batch{
		ID:                uuid.NewString(),
		CharacterImageURL: characterImageURL,
		CharacterName:     characterName,
		Scenes:            scenes,
		CreatedAt:         time.Now().UTC(),
	}}
	m.jobs.Set(entry.batch.ID, entry, cache.DefaultExpiration)

	snapshot := cloneBatch(&entry.batch)
	return &snapshot, nil
}

func (m *MemoryStore) MarkRunning(ctx context.Context, batchID string, sceneNumber int) error {
	return m.update(ctx, batchID, sceneNumber, func(task *SceneTask) {
		if task.State == TaskPending {
			task.State = TaskRunning
		}
	})
}

func (m *MemoryStore) MarkSucceeded(ctx context.Context, batchID string, sceneNumber int, imageURL string) error {
	return m.update(ctx, batchID, sceneNumber, func(task *SceneTask) {
		if task.State.Terminal() {
			return
		}
		task.State = TaskSucceeded
		task.ImageURL = imageURL
		task.ErrorReason = ""
	})
}

func (m *MemoryStore) MarkFailed(ctx context.Context, batchID string, sceneNumber int, reason string) error {
	return m.update(ctx, batchID, sceneNumber, func(task *SceneTask) {
		if task.State.Terminal() {
			return
		}
		task.State = TaskFailed
		task.ImageURL = ""
		task.ErrorReason = reason
	})
}

func (m *MemoryStore) Get(ctx context.Context, batchID string) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := m.entry(batchID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	snapshot := cloneBatch(&entry.batch)
	return &snapshot, nil
}

func (m *MemoryStore) update(ctx context.Context, batchID string, sceneNumber int, apply func(*SceneTask)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := m.entry(batchID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if sceneNumber < 1 || sceneNumber > len(entry.batch.Scenes) {
		return ErrNotFound
	}
	apply(&entry.batch.Scenes[sceneNumber-1])
	// Refresh the TTL so a batch with in-flight work never expires mid-run.
	m.jobs.Set(batchID, entry, cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) entry(batchID string) (*jobEntry, error) {
	v, ok := m.jobs.Get(batchID)
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := v.(*jobEntry)
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

func cloneBatch(b *Batch) Batch {
	out := *b
	out.Scenes = append([]SceneTask(nil), b.Scenes...)
	return out
}

var _ Store = (*MemoryStore)(nil)
