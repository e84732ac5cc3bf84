package batch

import "context"

// Store is the sole owner of batch and task state. Implementations must
// serialize writes per batch so concurrent task completions never corrupt the
// task list, and must treat a second terminal write to the same task as a
// no-op: the first terminal write wins.
type Store interface {
	// Create allocates a new batch with every scene task pending.
	// It fails with ErrNoScenes when sceneTexts is empty.
	Create(ctx context.Context, characterImageURL, characterName string, sceneTexts []string) (*Batch, error)

	// MarkRunning moves a pending task to running. Already-dispatched or
	// terminal tasks are left untouched.
	MarkRunning(ctx context.Context, batchID string, sceneNumber int) error

	// MarkSucceeded records the hosted image URL for a task. No-op if the
	// task already reached a terminal state.
	MarkSucceeded(ctx context.Context, batchID string, sceneNumber int, imageURL string) error

	// MarkFailed records the failure reason for a task. No-op if the task
	// already reached a terminal state.
	MarkFailed(ctx context.Context, batchID string, sceneNumber int, reason string) error

	// Get returns a snapshot of the batch with tasks ordered by scene
	// number, or ErrNotFound. The snapshot does not alias store state.
	Get(ctx context.Context, batchID string) (*Batch, error)
}
