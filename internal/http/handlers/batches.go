package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyscenes/internal/batch"
	"storyscenes/internal/middleware"
)

type startBatchRequest struct {
	StoryText         string `json:"story_text"`
	CharacterImageURL string `json:"character_image_url"`
	CharacterName     string `json:"character_name"`
}

type startBatchResponse struct {
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	SceneCount int    `json:"scene_count"`
}

type sceneStatusResponse struct {
	SceneNumber int     `json:"scene_number"`
	SceneText   string  `json:"scene_text"`
	State       string  `json:"state"`
	ImageURL    *string `json:"image_url"`
	Failed      bool    `json:"failed"`
	Error       string  `json:"error,omitempty"`
}

type batchStatusResponse struct {
	BatchID string                `json:"batch_id"`
	Status  string                `json:"status"`
	Scenes  []sceneStatusResponse `json:"scenes"`
}

// StartBatch accepts a story and kicks off scene generation. It responds as
// soon as the batch is recorded; clients poll BatchStatus for progress.
func (a *App) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	b, err := a.Orchestrator.StartBatch(r.Context(), batch.StartRequest{
		StoryText:         req.StoryText,
		CharacterImageURL: req.CharacterImageURL,
		CharacterName:     req.CharacterName,
		Locale:            middleware.LocaleFromContext(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrNoScenes):
			a.error(w, http.StatusBadRequest, "no_scenes", "story text contains no scenes")
		case errors.Is(err, batch.ErrMissingCharacterName):
			a.error(w, http.StatusBadRequest, "missing_character_name", "character_name is required")
		case errors.Is(err, batch.ErrInvalidReferenceURL):
			a.error(w, http.StatusBadRequest, "invalid_reference_url", "character_image_url must be an absolute http or https URL")
		default:
			a.Logger.Error().Err(err).Msg("start batch failed")
			a.error(w, http.StatusInternalServerError, "internal", "could not start batch")
		}
		return
	}

	a.json(w, http.StatusAccepted, startBatchResponse{
		BatchID:    b.ID,
		Status:     string(b.Status()),
		SceneCount: len(b.Scenes),
	})
}

// BatchStatus reports the batch state and every scene's progress.
func (a *App) BatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")

	b, err := a.Orchestrator.Status(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "batch not found")
			return
		}
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("batch status failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load batch")
		return
	}

	scenes := make([]sceneStatusResponse, 0, len(b.Scenes))
	for _, task := range b.Scenes {
		scene := sceneStatusResponse{
			SceneNumber: task.SceneNumber,
			SceneText:   task.SceneText,
			State:       string(task.State),
			Failed:      task.State == batch.TaskFailed,
			Error:       task.ErrorReason,
		}
		if task.ImageURL != "" {
			url := task.ImageURL
			scene.ImageURL = &url
		}
		scenes = append(scenes, scene)
	}

	a.json(w, http.StatusOK, batchStatusResponse{
		BatchID: b.ID,
		Status:  string(b.Status()),
		Scenes:  scenes,
	})
}
