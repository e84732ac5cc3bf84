package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"storyscenes/internal/batch"
	"storyscenes/internal/middleware"
)

type generateSceneRequest struct {
	SceneText         string `json:"scene_text"`
	CharacterImageURL string `json:"character_image_url"`
	CharacterName     string `json:"character_name"`
	SceneNumber       int    `json:"scene_number"`
}

type generateSceneResponse struct {
	SceneNumber int    `json:"scene_number"`
	ImageURL    string `json:"image_url"`
}

// GenerateScene regenerates a single scene synchronously, outside any batch.
// Authors use it to retry one failed or unsatisfying illustration without
// rerunning the whole story.
func (a *App) GenerateScene(w http.ResponseWriter, r *http.Request) {
	var req generateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.SceneText) == "" {
		a.error(w, http.StatusBadRequest, "missing_scene_text", "scene_text is required")
		return
	}
	if strings.TrimSpace(req.CharacterName) == "" {
		a.error(w, http.StatusBadRequest, "missing_character_name", "character_name is required")
		return
	}
	if err := batch.ValidateReferenceURL(req.CharacterImageURL); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_reference_url", "character_image_url must be an absolute http or https URL")
		return
	}
	sceneNumber := req.SceneNumber
	if sceneNumber <= 0 {
		sceneNumber = 1
	}

	// SceneCount stays zero: a standalone retry has no surrounding batch, so
	// the prompt must not ask for cross-scene continuity.
	url, err := a.Invoker.GenerateScene(r.Context(), batch.SceneRequest{
		BatchID:           "adhoc-" + uuid.NewString(),
		SceneNumber:       sceneNumber,
		SceneText:         req.SceneText,
		CharacterName:     req.CharacterName,
		CharacterImageURL: req.CharacterImageURL,
		Locale:            middleware.LocaleFromContext(r.Context()),
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("single scene generation failed")
		a.error(w, http.StatusBadGateway, "generation_failed", "scene image generation failed")
		return
	}

	a.json(w, http.StatusOK, generateSceneResponse{SceneNumber: sceneNumber, ImageURL: url})
}
