package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"podmarket/common/app"
	"podmarket/common/helpers"
)

func TestGenerate(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&received)
		fmt.Fprintf(w, `{"created":1,"data":[{"b64_json":%q,"revised_prompt":"a cat, revised"}]}`, base64.StdEncoding.EncodeToString([]byte("PNG")))
	}))
	defer server.Close()
	defer helpers.TempEnvVars(map[string]string{"OPENAI_API_KEY": "sk-test", "OPENAI_BASE_URL": server.URL, "OPENAI_IMAGE_MODEL": ""})()

	image, err := Generate(context.Background(), "a cat", "1024x1024")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(image.Data) != "PNG" || image.RevisedPrompt != "a cat, revised" || image.ContentType != "image/png" {
		t.Errorf("unexpected image %+v", image)
	}
	if received["model"] != "dall-e-3" || received["response_format"] != "b64_json" || received["size"] != "1024x1024" {
		t.Errorf("unexpected request %v", received)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	defer helpers.TempEnvVars(map[string]string{"OPENAI_API_KEY": ""})()
	if _, err := Generate(context.Background(), "a cat", "1024x1024"); err == nil {
		t.Error("Generate() without key succeeded")
	}
}

func TestGenerateUsesCachedFake(t *testing.T) {
	ctx := app.ContextWithCache(context.Background())
	defer app.SetCacheValue(ctx, []any{"ImageGen", "Generate"}, GenerateFunc(func(_ context.Context, prompt, size string) (*Image, error) {
		return &Image{Data: []byte(prompt + "@" + size)}, nil
	}))()
	image, err := Generate(ctx, "dog", "1792x1024")
	if err != nil || string(image.Data) != "dog@1792x1024" {
		t.Errorf("Generate() = %v, %v", image, err)
	}
}
