package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists batches in PostgreSQL so polling survives process
// restarts. First-terminal-write-wins is enforced by guarded UPDATEs rather
// than application-level locking; the database serializes per-row writes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a batch store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scene_batches (
    id UUID PRIMARY KEY,
    character_image_url TEXT NOT NULL,
    character_name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS scene_tasks (
    batch_id UUID NOT NULL REFERENCES scene_batches(id) ON DELETE CASCADE,
    scene_number INT NOT NULL,
    scene_text TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'pending',
    image_url TEXT NOT NULL DEFAULT '',
    error_reason TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (batch_id, scene_number)
);
`

// EnsureSchema creates the batch tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure batch schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, characterImageURL, characterName string, sceneTexts []string) (*Batch, error) {
	if len(sceneTexts) == 0 {
		return nil, ErrNoScenes
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create batch: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	row := tx.QueryRow(ctx, `
INSERT INTO scene_batches (id, character_image_url, character_name)
VALUES ($1, $2, $3)
RETURNING created_at;
`, id, characterImageURL, characterName)

	batch := &Batch{
		ID:                id,
		CharacterImageURL: characterImageURL,
		CharacterName:     characterName,
		Scenes:            make([]SceneTask, len(sceneTexts)),
	}
	if err := row.Scan(&batch.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	for i, text := range sceneTexts {
		if _, err := tx.Exec(ctx, `
INSERT INTO scene_tasks (batch_id, scene_number, scene_text)
VALUES ($1, $2, $3);
`, id, i+1, text); err != nil {
			return nil, fmt.Errorf("insert scene task %d: %w", i+1, err)
		}
		batch.Scenes[i] = SceneTask{SceneNumber: i + 1, SceneText: text, State: TaskPending}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create batch: %w", err)
	}
	return batch, nil
}

func (s *PostgresStore) MarkRunning(ctx context.Context, batchID string, sceneNumber int) error {
	return s.guardedUpdate(ctx, batchID, sceneNumber, `
UPDATE scene_tasks
SET state = 'running', updated_at = NOW()
WHERE batch_id = $1 AND scene_number = $2 AND state = 'pending';
`)
}

func (s *PostgresStore) MarkSucceeded(ctx context.Context, batchID string, sceneNumber int, imageURL string) error {
	return s.guardedUpdate(ctx, batchID, sceneNumber, `
UPDATE scene_tasks
SET state = 'succeeded', image_url = $3, error_reason = '', updated_at = NOW()
WHERE batch_id = $1 AND scene_number = $2 AND state NOT IN ('succeeded', 'failed');
`, imageURL)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, batchID string, sceneNumber int, reason string) error {
	return s.guardedUpdate(ctx, batchID, sceneNumber, `
UPDATE scene_tasks
SET state = 'failed', image_url = '', error_reason = $3, updated_at = NOW()
WHERE batch_id = $1 AND scene_number = $2 AND state NOT IN ('succeeded', 'failed');
`, reason)
}

// guardedUpdate runs a state transition whose WHERE clause encodes the legal
// source states. Zero rows affected means either the guard held (task already
// terminal, a no-op by contract) or the task does not exist; the follow-up
// existence check tells the two apart.
func (s *PostgresStore) guardedUpdate(ctx context.Context, batchID string, sceneNumber int, query string, extra ...any) error {
	if !validBatchID(batchID) {
		return ErrNotFound
	}
	args := append([]any{batchID, sceneNumber}, extra...)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scene task: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	row := s.pool.QueryRow(ctx, `
SELECT TRUE FROM scene_tasks WHERE batch_id = $1 AND scene_number = $2;
`, batchID, sceneNumber)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("check scene task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, batchID string) (*Batch, error) {
	if !validBatchID(batchID) {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
SELECT id, character_image_url, character_name, created_at
FROM scene_batches
WHERE id = $1;
`, batchID)

	var batch Batch
	if err := row.Scan(&batch.ID, &batch.CharacterImageURL, &batch.CharacterName, &batch.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select batch: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT scene_number, scene_text, state, image_url, error_reason
FROM scene_tasks
WHERE batch_id = $1
ORDER BY scene_number;
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("select scene tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task SceneTask
		var state string
		if err := rows.Scan(&task.SceneNumber, &task.SceneText, &state, &task.ImageURL, &task.ErrorReason); err != nil {
			return nil, fmt.Errorf("scan scene task: %w", err)
		}
		task.State = TaskState(state)
		batch.Scenes = append(batch.Scenes, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scene tasks: %w", err)
	}

	return &batch, nil
}

// validBatchID reports whether the id can address a row in the UUID-typed id
// column. Ids arrive verbatim from the URL, so a malformed one means "no such
// batch" rather than a query error.
func validBatchID(batchID string) bool {
	_, err := uuid.Parse(batchID)
	return err == nil
}

var _ Store = (*PostgresStore)(nil)
