package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"storyscenes/internal/batch"
)

type recordingInvoker struct {
	stubSceneInvoker
	last batch.SceneRequest
}

func (r *recordingInvoker) GenerateScene(ctx context.Context, req batch.SceneRequest) (string, error) {
	r.last = req
	return r.stubSceneInvoker.GenerateScene(ctx, req)
}

func newSceneRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/scenes", app.GenerateScene)
	return r
}

func TestGenerateSceneHandler(t *testing.T) {
	invoker := &recordingInvoker{}
	app, _ := newTestApp(t, invoker)
	app.Invoker = invoker
	h := newSceneRouter(app)

	rec := postJSON(t, h, "/v1/scenes", map[string]any{
		"scene_text":          "Amina waves hello.",
		"character_image_url": "https://example.com/amina.jpg",
		"character_name":      "Amina",
		"scene_number":        2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp generateSceneResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ImageURL == "" {
		t.Fatal("missing image_url")
	}
	if resp.SceneNumber != 2 {
		t.Fatalf("scene_number = %d, want 2", resp.SceneNumber)
	}
	if invoker.last.SceneCount != 0 {
		t.Fatalf("standalone retry forwarded scene count %d, want 0", invoker.last.SceneCount)
	}
	if invoker.last.SceneText != "Amina waves hello." {
		t.Fatalf("scene text = %q", invoker.last.SceneText)
	}
	if invoker.last.BatchID == "" {
		t.Fatal("ad-hoc request must carry a batch id for storage keying")
	}
}

func TestGenerateSceneHandlerValidation(t *testing.T) {
	app, _ := newTestApp(t, &stubSceneInvoker{})
	app.Invoker = &stubSceneInvoker{}
	h := newSceneRouter(app)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{
			name: "missing scene text",
			payload: map[string]string{
				"character_image_url": "https://example.com/a.jpg",
				"character_name":      "Amina",
			},
		},
		{
			name: "missing character name",
			payload: map[string]string{
				"scene_text":          "A scene.",
				"character_image_url": "https://example.com/a.jpg",
			},
		},
		{
			name: "bad reference url",
			payload: map[string]string{
				"scene_text":          "A scene.",
				"character_image_url": "ftp://example.com/a.jpg",
				"character_name":      "Amina",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/v1/scenes", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGenerateSceneHandlerProviderFailure(t *testing.T) {
	app, _ := newTestApp(t, &stubSceneInvoker{})
	app.Invoker = &stubSceneInvoker{failScenes: map[int]error{1: errors.New("provider down")}}
	h := newSceneRouter(app)

	rec := postJSON(t, h, "/v1/scenes", map[string]string{
		"scene_text":          "A scene.",
		"character_image_url": "https://example.com/a.jpg",
		"character_name":      "Amina",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
