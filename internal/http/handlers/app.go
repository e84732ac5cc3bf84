package handlers

import (
	"encoding/json"
	"net/http"

	"storyscenes/internal/batch"
	"storyscenes/internal/infra"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	Orchestrator *batch.Orchestrator
	Invoker      batch.SceneInvoker
}

func (a *App) json(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.Logger.Error().Err(err).Msg("encode response failed")
	}
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
