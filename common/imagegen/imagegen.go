// Package imagegen generates images from text prompts with the OpenAI Images API.
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"podmarket/common/app"

	openai "github.com/sashabaranov/go-openai"
)

var Sizes = []string{
	openai.CreateImageSize1024x1024,
	openai.CreateImageSize1024x1792,
	openai.CreateImageSize1792x1024,
}

type Image struct {
	Data          []byte
	ContentType   string
	RevisedPrompt string
}

// GenerateFunc is swapped in tests through the app cache under {"ImageGen", "Generate"}.
type GenerateFunc func(ctx context.Context, prompt string, size string) (*Image, error)

func Generate(ctx context.Context, prompt string, size string) (*Image, error) {
	generate, _ := app.GetCacheValue[GenerateFunc](ctx, []any{"ImageGen", "Generate"}, generateOpenAI)
	return generate(ctx, prompt, size)
}

func generateOpenAI(ctx context.Context, prompt string, size string) (*Image, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("invalid or incomplete OpenAI environment variables")
	}
	config := openai.DefaultConfig(key)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)

	response, err := client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          app.EnvString("OPENAI_IMAGE_MODEL", openai.CreateImageModelDallE3),
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("error generating image:\n>>> %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("image API returned no image")
	}
	data, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image from image API:\n>>> %w", err)
	}
	return &Image{Data: data, ContentType: "image/png", RevisedPrompt: response.Data[0].RevisedPrompt}, nil
}
