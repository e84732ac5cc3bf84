package scenegen

import (
	"context"

	"storyscenes/internal/providers/genai"
)

// Generator produces one illustration for a prepared prompt and reference
// image. It abstracts the image provider so the invoker can be tested with a
// stub.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Image, error)
}

// GenerateRequest is the provider-neutral input for one scene image.
type GenerateRequest struct {
	Prompt            string
	ReferenceImageURL string
	RequestID         string
}

// Image is the provider-neutral output.
type Image struct {
	Data   []byte
	Format string
}

// GeminiGenerator adapts the Gemini client to the Generator interface.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:            req.Prompt,
		ReferenceImageURL: req.ReferenceImageURL,
		RequestID:         req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Image{Data: asset.Data, Format: asset.Format}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
