package scenegen

import (
	"context"
	"fmt"

	"storyscenes/internal/batch"
	"storyscenes/internal/infra"
)

// AssetStore persists generated images and maps storage keys to public URLs.
type AssetStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// Invoker performs one full scene generation: prompt assembly, provider call,
// asset persistence. It satisfies batch.SceneInvoker.
type Invoker struct {
	gen    Generator
	store  AssetStore
	logger infra.Logger
}

func NewInvoker(gen Generator, store AssetStore, logger infra.Logger) *Invoker {
	return &Invoker{gen: gen, store: store, logger: logger}
}

// GenerateScene produces and persists one scene image, returning its hosted
// URL. Failures are returned to the caller and recorded on the scene task;
// they never affect sibling scenes.
func (inv *Invoker) GenerateScene(ctx context.Context, req batch.SceneRequest) (string, error) {
	prompt := BuildScenePrompt(PromptInput{
		SceneText:     req.SceneText,
		CharacterName: req.CharacterName,
		SceneNumber:   req.SceneNumber,
		SceneCount:    req.SceneCount,
		Locale:        req.Locale,
	})

	img, err := inv.gen.Generate(ctx, GenerateRequest{
		Prompt:            prompt,
		ReferenceImageURL: req.CharacterImageURL,
		RequestID:         fmt.Sprintf("%s-%d", req.BatchID, req.SceneNumber),
	})
	if err != nil {
		return "", fmt.Errorf("generate scene image: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("generate scene image: empty result")
	}

	key := fmt.Sprintf("scenes/%s/scene-%02d%s", req.BatchID, req.SceneNumber, extensionForMIME(img.Format))
	storedKey, err := inv.store.Write(ctx, key, img.Data)
	if err != nil {
		return "", fmt.Errorf("store scene image: %w", err)
	}

	url := inv.store.URL(storedKey)
	inv.logger.Debug().
		Str("batch_id", req.BatchID).
		Int("scene_number", req.SceneNumber).
		Str("storage_key", storedKey).
		Msg("scene image stored")
	return url, nil
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

var _ batch.SceneInvoker = (*Invoker)(nil)
