package designs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/imagegen"
)

type memoryStore struct {
	designs map[string]*Design
	mockups []*Mockup
}

func (s *memoryStore) InsertDesign(ctx context.Context, design *Design) error {
	s.designs[design.ID] = design
	return nil
}

func (s *memoryStore) Design(ctx context.Context, id string) (*Design, error) {
	design, found := s.designs[id]
	if !found {
		return nil, ErrDesignNotFound
	}
	return design, nil
}

func (s *memoryStore) InsertMockup(ctx context.Context, mockup *Mockup) error {
	s.mockups = append(s.mockups, mockup)
	return nil
}

type uploaded struct {
	bucket, path, contentType string
}

func testContext(store *memoryStore, prompts *[]string, uploads *[]uploaded) context.Context {
	ctx := app.ContextWithCache(context.Background())
	app.SetCacheValue(ctx, []any{"Designs", "Store"}, Store(store))
	app.SetCacheValue(ctx, []any{"ImageGen", "Generate"}, imagegen.GenerateFunc(func(_ context.Context, prompt, size string) (*imagegen.Image, error) {
		*prompts = append(*prompts, size+"|"+prompt)
		return &imagegen.Image{Data: []byte("PNG"), ContentType: "image/png"}, nil
	}))
	app.SetCacheValue(ctx, []any{"Designs", "Upload"}, UploadFunc(func(_ context.Context, bucket, path string, _ []byte, contentType string) (string, error) {
		*uploads = append(*uploads, uploaded{bucket, path, contentType})
		return "https://storage.test/" + bucket + "/" + path, nil
	}))
	return ctx
}

func TestGenerateDesign(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		Title        string
		Mock         string
		Request      GenerateRequest
		WantSize     string
		WantProvider string
		WantUploads  int
	}{
		{
			Title:        "default size",
			Request:      GenerateRequest{Prompt: "a cat in space", Style: "retro"},
			WantSize:     "1024x1024",
			WantProvider: "openai",
			WantUploads:  1,
		},
		{
			Title:        "portrait size",
			Request:      GenerateRequest{Prompt: "a tall tree", Size: "1024x1792"},
			WantSize:     "1024x1792",
			WantProvider: "openai",
			WantUploads:  1,
		},
		{
			Title:        "mock provider",
			Mock:         "true",
			Request:      GenerateRequest{Prompt: "a cat in space"},
			WantProvider: "mock",
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			defer helpers.TempEnvVars(map[string]string{"MOCK_PROVIDER": tt.Mock})()
			store := &memoryStore{designs: map[string]*Design{}}
			prompts, uploads := []string{}, []uploaded{}
			ctx := testContext(store, &prompts, &uploads)

			design, err := GenerateDesign(ctx, "b1", tt.Request, now)
			if err != nil {
				t.Fatalf("GenerateDesign() error = %v", err)
			}
			if design.Provider != tt.WantProvider || store.designs[design.ID] == nil || design.Prompt != tt.Request.Prompt {
				t.Errorf("unexpected design %+v", design)
			}
			if len(uploads) != tt.WantUploads {
				t.Fatalf("uploads = %d, want %d", len(uploads), tt.WantUploads)
			}
			if tt.WantUploads == 0 {
				if len(prompts) != 0 || !strings.HasPrefix(design.ImageURL, "https://placehold.co/") {
					t.Errorf("mock design called the image API or has url %q", design.ImageURL)
				}
				return
			}
			up := uploads[0]
			if up.bucket != DesignsBucket || !strings.HasPrefix(up.path, "b1/") || !strings.HasSuffix(up.path, ".png") || design.ImagePath != up.path {
				t.Errorf("unexpected upload %+v", up)
			}
			if !strings.HasPrefix(prompts[0], tt.WantSize+"|"+tt.Request.Prompt) {
				t.Errorf("prompt = %q", prompts[0])
			}
			if tt.Request.Style != "" && !strings.Contains(prompts[0], "Style: "+tt.Request.Style) {
				t.Errorf("style missing from prompt %q", prompts[0])
			}
		})
	}
}

func TestGenerateRequestValidation(t *testing.T) {
	tests := []struct {
		Title   string
		Body    string
		WantErr bool
	}{
		{"valid", `{"prompt":"a cat"}`, false},
		{"too short", `{"prompt":"ab"}`, true},
		{"bad size", `{"prompt":"a cat","size":"512x512"}`, true},
		{"unknown field", `{"prompt":"a cat","n":4}`, true},
		{"too long", `{"prompt":"` + strings.Repeat("x", 1001) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			var req GenerateRequest
			err := helpers.DecodeAndValidate(tt.Body, &req)
			if (err != nil) != tt.WantErr {
				t.Errorf("DecodeAndValidate() error = %v, want error %v", err, tt.WantErr)
			}
		})
	}
}

func TestCreateMockup(t *testing.T) {
	defer helpers.TempEnvVars(map[string]string{"MOCK_PROVIDER": ""})()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{designs: map[string]*Design{
		"d1": {ID: "d1", BusinessID: "b1", Prompt: "a cat in space", Style: "retro"},
		"d2": {ID: "d2", BusinessID: "b2", Prompt: "a dog"},
	}}
	prompts, uploads := []string{}, []uploaded{}
	ctx := testContext(store, &prompts, &uploads)

	mockup, err := CreateMockup(ctx, "b1", MockupRequest{DesignID: "d1", ProductType: "mug"}, now)
	if err != nil {
		t.Fatalf("CreateMockup() error = %v", err)
	}
	if mockup.DesignID != "d1" || mockup.ProductType != "mug" || len(store.mockups) != 1 {
		t.Errorf("unexpected mockup %+v", mockup)
	}
	if len(uploads) != 1 || uploads[0].bucket != MockupsBucket {
		t.Errorf("uploads = %+v", uploads)
	}
	if !strings.Contains(prompts[0], "ceramic mug") || !strings.Contains(prompts[0], "a cat in space") || !strings.Contains(prompts[0], "retro") {
		t.Errorf("prompt = %q", prompts[0])
	}

	if _, err := CreateMockup(ctx, "b1", MockupRequest{DesignID: "d2", ProductType: "mug"}, now); !errors.Is(err, ErrNotOwner) {
		t.Errorf("other business: error = %v, want ErrNotOwner", err)
	}
	if _, err := CreateMockup(ctx, "b1", MockupRequest{DesignID: "missing", ProductType: "mug"}, now); !errors.Is(err, ErrDesignNotFound) {
		t.Errorf("unknown design: error = %v, want ErrDesignNotFound", err)
	}
	if _, err := CreateMockup(ctx, "b1", MockupRequest{DesignID: "d1", ProductType: "sock"}, now); err == nil {
		t.Error("unknown product type accepted")
	}
}
