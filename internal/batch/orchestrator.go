package batch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"storyscenes/internal/infra"
	"storyscenes/internal/story"
)

// SceneRequest carries everything one image generation attempt needs.
type SceneRequest struct {
	BatchID           string
	SceneNumber       int
	SceneCount        int
	SceneText         string
	CharacterName     string
	CharacterImageURL string
	Locale            string
}

// SceneInvoker performs exactly one generation attempt for one scene and
// returns the hosted image URL. Errors are recorded as the task's failure
// reason; they never abort the batch.
type SceneInvoker interface {
	GenerateScene(ctx context.Context, req SceneRequest) (string, error)
}

// StartRequest is the input to StartBatch.
type StartRequest struct {
	StoryText         string
	CharacterImageURL string
	CharacterName     string
	Locale            string
}

// Options tunes orchestrator dispatch. Zero values fall back to defaults.
type Options struct {
	// Concurrency bounds in-flight scene generations per batch.
	Concurrency int
	// TaskTimeout bounds a single provider call so one slow scene cannot
	// stall the pool indefinitely.
	TaskTimeout time.Duration
	// RatePerMinute throttles provider calls across all batches.
	// Zero disables throttling.
	RatePerMinute int
}

const (
	defaultConcurrency = 3
	defaultTaskTimeout = 90 * time.Second
)

// Orchestrator creates batches and fans scene tasks out to the invoker with
// bounded concurrency. Dispatch is fire-and-forget relative to the request
// that triggered it: StartBatch returns as soon as the batch exists, and task
// results land in the store for the polling read path to pick up.
type Orchestrator struct {
	store   Store
	invoker SceneInvoker
	logger  infra.Logger

	concurrency int
	taskTimeout time.Duration
	limiter     *rate.Limiter

	// baseCtx governs background dispatch instead of the HTTP request
	// context, so a hung-up client does not cancel in-flight scenes.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewOrchestrator wires an orchestrator. baseCtx should span the process
// lifetime; cancelling it (shutdown) fails remaining scene tasks.
func NewOrchestrator(baseCtx context.Context, store Store, invoker SceneInvoker, logger infra.Logger, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60.0), opts.RatePerMinute)
	}
	return &Orchestrator{
		store:       store,
		invoker:     invoker,
		logger:      logger,
		concurrency: opts.Concurrency,
		taskTimeout: opts.TaskTimeout,
		limiter:     limiter,
		baseCtx:     baseCtx,
	}
}

// StartBatch validates the request, creates the batch with every scene
// pending, kicks off background dispatch, and returns immediately. Validation
// failures surface synchronously and no batch is created for them.
func (o *Orchestrator) StartBatch(ctx context.Context, req StartRequest) (*Batch, error) {
	if strings.TrimSpace(req.CharacterName) == "" {
		return nil, ErrMissingCharacterName
	}
	if err := ValidateReferenceURL(req.CharacterImageURL); err != nil {
		return nil, err
	}
	scenes := story.SplitScenes(req.StoryText)
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	batch, err := o.store.Create(ctx, req.CharacterImageURL, req.CharacterName, scenes)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("batch_id", batch.ID).
		Str("character", batch.CharacterName).
		Int("scene_count", len(batch.Scenes)).
		Msg("batch created")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.dispatch(batch, req.Locale)
	}()

	return batch, nil
}

// Status returns a read-only snapshot of the batch.
func (o *Orchestrator) Status(ctx context.Context, batchID string) (*Batch, error) {
	return o.store.Get(ctx, batchID)
}

func (o *Orchestrator) dispatch(batch *Batch, locale string) {
	var eg errgroup.Group
	eg.SetLimit(o.concurrency)

	for _, task := range batch.Scenes {
		task := task
		eg.Go(func() error {
			o.runTask(batch, task, locale)
			return nil
		})
	}
	_ = eg.Wait()

	if snapshot, err := o.store.Get(o.baseCtx, batch.ID); err == nil {
		succeeded, failed := 0, 0
		for _, t := range snapshot.Scenes {
			switch t.State {
			case TaskSucceeded:
				succeeded++
			case TaskFailed:
				failed++
			}
		}
		o.logger.Info().
			Str("batch_id", batch.ID).
			Str("status", string(snapshot.Status())).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Msg("batch settled")
	}
}

// runTask drives one scene through the pending -> running -> terminal state
// machine. Every failure path ends in MarkFailed; nothing propagates.
func (o *Orchestrator) runTask(batch *Batch, task SceneTask, locale string) {
	if o.limiter != nil {
		if err := o.limiter.Wait(o.baseCtx); err != nil {
			o.markFailed(batch.ID, task.SceneNumber, "dispatch aborted: "+err.Error())
			return
		}
	}

	if err := o.store.MarkRunning(o.baseCtx, batch.ID, task.SceneNumber); err != nil {
		o.logger.Error().Err(err).
			Str("batch_id", batch.ID).
			Int("scene", task.SceneNumber).
			Msg("mark running failed")
	}

	ctx, cancel := context.WithTimeout(o.baseCtx, o.taskTimeout)
	defer cancel()

	start := time.Now()
	imageURL, err := o.invoker.GenerateScene(ctx, SceneRequest{
		BatchID:           batch.ID,
		SceneNumber:       task.SceneNumber,
		SceneCount:        len(batch.Scenes),
		SceneText:         task.SceneText,
		CharacterName:     batch.CharacterName,
		CharacterImageURL: batch.CharacterImageURL,
		Locale:            locale,
	})
	if err != nil {
		o.logger.Warn().Err(err).
			Str("batch_id", batch.ID).
			Int("scene", task.SceneNumber).
			Dur("elapsed", time.Since(start)).
			Msg("scene generation failed")
		o.markFailed(batch.ID, task.SceneNumber, err.Error())
		return
	}

	if err := o.store.MarkSucceeded(o.baseCtx, batch.ID, task.SceneNumber, imageURL); err != nil {
		o.logger.Error().Err(err).
			Str("batch_id", batch.ID).
			Int("scene", task.SceneNumber).
			Msg("mark succeeded failed")
		return
	}
	o.logger.Info().
		Str("batch_id", batch.ID).
		Int("scene", task.SceneNumber).
		Dur("elapsed", time.Since(start)).
		Msg("scene generated")
}

func (o *Orchestrator) markFailed(batchID string, sceneNumber int, reason string) {
	if err := o.store.MarkFailed(o.baseCtx, batchID, sceneNumber, reason); err != nil {
		o.logger.Error().Err(err).
			Str("batch_id", batchID).
			Int("scene", sceneNumber).
			Msg("record task failure failed")
	}
}

// ValidateReferenceURL checks that the character image URL is a well-formed
// absolute http(s) URL.
func ValidateReferenceURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return ErrInvalidReferenceURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidReferenceURL
	}
	return nil
}
