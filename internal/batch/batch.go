// Package batch owns the scene-generation batch lifecycle: the job store,
// the per-scene task state machine, and the orchestrator that fans work out
// to the image provider.
package batch

import (
	"errors"
	"time"
)

// TaskState enumerates the per-scene task lifecycle states.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether no further transition can leave the state.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// Status enumerates the derived batch-level states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// SceneTask tracks one scene's generation attempt. SceneNumber is 1-based and
// stable; output ordering is always by SceneNumber, never completion order.
type SceneTask struct {
	SceneNumber int
	SceneText   string
	State       TaskState
	ImageURL    string
	ErrorReason string
}

// Batch is one story's worth of per-scene image generation work.
type Batch struct {
	ID                string
	CharacterImageURL string
	CharacterName     string
	Scenes            []SceneTask
	CreatedAt         time.Time
}

// Status derives the batch state from its tasks: pending while any task is
// still pending or running, failed when every task failed, complete otherwise.
// A batch with both successes and failures counts as complete; callers inspect
// the per-scene failure flags to decide on retries or placeholders.
func (b *Batch) Status() Status {
	failed := 0
	for _, task := range b.Scenes {
		if !task.State.Terminal() {
			return StatusPending
		}
		if task.State == TaskFailed {
			failed++
		}
	}
	if len(b.Scenes) > 0 && failed == len(b.Scenes) {
		return StatusFailed
	}
	return StatusComplete
}

var (
	// ErrNotFound signals an unknown or expired batch id.
	ErrNotFound = errors.New("batch not found")
	// ErrNoScenes signals a story that produced zero scenes.
	ErrNoScenes = errors.New("no scenes to generate")
	// ErrMissingCharacterName signals an empty character name.
	ErrMissingCharacterName = errors.New("character name is required")
	// ErrInvalidReferenceURL signals a malformed character image URL.
	ErrInvalidReferenceURL = errors.New("character image url must be a valid http(s) url")
)
