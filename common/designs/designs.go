// Package designs creates AI-generated designs and product mockups for businesses.
package designs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"podmarket/common/app"
	"podmarket/common/imagegen"
	"podmarket/common/supa"

	"github.com/google/uuid"
)

const (
	DesignsBucket = "designs"
	MockupsBucket = "mockups"
	DefaultSize   = "1024x1024"
)

var (
	ErrDesignNotFound = errors.New("design not found")
	ErrNotOwner       = errors.New("design belongs to another business")
)

type Design struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Prompt     string    `json:"prompt"`
	Style      string    `json:"style,omitempty"`
	ImagePath  string    `json:"image_path"`
	ImageURL   string    `json:"image_url"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"created_at"`
}

type Mockup struct {
	ID          string    `json:"id"`
	DesignID    string    `json:"design_id"`
	BusinessID  string    `json:"business_id"`
	ProductType string    `json:"product_type"`
	ImagePath   string    `json:"image_path"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=1000"`
	Style  string `json:"style" validate:"max=200"`
	Size   string `json:"size" validate:"omitempty,oneof=1024x1024 1024x1792 1792x1024"`
}

type MockupRequest struct {
	DesignID    string `json:"design_id" validate:"required"`
	ProductType string `json:"product_type" validate:"required,oneof=tshirt hoodie mug poster tote"`
}

var productScenes = map[string]string{
	"tshirt": "a plain cotton t-shirt laid flat",
	"hoodie": "a hoodie on a hanger",
	"mug":    "a white ceramic mug on a table",
	"poster": "a framed poster hanging on a wall",
	"tote":   "a canvas tote bag",
}

type Store interface {
	InsertDesign(ctx context.Context, design *Design) error
	Design(ctx context.Context, id string) (*Design, error)
	InsertMockup(ctx context.Context, mockup *Mockup) error
}

// StoreFromContext returns the Supabase store, or a replacement placed in the app cache under {"Designs", "Store"}.
func StoreFromContext(ctx context.Context) Store {
	store, _ := app.GetCacheValue[Store](ctx, []any{"Designs", "Store"}, supabaseStore{})
	return store
}

type supabaseStore struct{}

func (supabaseStore) InsertDesign(ctx context.Context, design *Design) error {
	return supa.Insert(ctx, "designs", design, nil)
}

func (supabaseStore) Design(ctx context.Context, id string) (*Design, error) {
	var design Design
	err := supa.SelectOne(ctx, "designs", "*", map[string]string{"id": id}, &design)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrDesignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &design, nil
}

func (supabaseStore) InsertMockup(ctx context.Context, mockup *Mockup) error {
	return supa.Insert(ctx, "mockups", mockup, nil)
}

// UploadFunc stores an image and returns its public URL; tests swap it under {"Designs", "Upload"}.
type UploadFunc func(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)

func upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	fn, _ := app.GetCacheValue[UploadFunc](ctx, []any{"Designs", "Upload"}, supa.Upload)
	return fn(ctx, bucket, path, data, contentType)
}

func placeholderURL(size, text string) string {
	return fmt.Sprintf("https://placehold.co/%s/png?text=%s", size, text)
}

// renderImage generates and stores one image, returning its storage path and public URL.
func renderImage(ctx context.Context, bucket, businessID, prompt, size string) (string, string, error) {
	image, err := imagegen.Generate(ctx, prompt, size)
	if err != nil {
		return "", "", err
	}
	path := fmt.Sprintf("%s/%s.png", businessID, uuid.NewString())
	url, err := upload(ctx, bucket, path, image.Data, image.ContentType)
	if err != nil {
		return "", "", err
	}
	return path, url, nil
}

func GenerateDesign(ctx context.Context, businessID string, req GenerateRequest, now time.Time) (*Design, error) {
	size := req.Size
	if size == "" {
		size = DefaultSize
	}
	prompt := strings.TrimSpace(req.Prompt)
	if req.Style != "" {
		prompt = fmt.Sprintf("%s. Style: %s", prompt, strings.TrimSpace(req.Style))
	}
	prompt += ". Artwork only, isolated on a plain background, suitable for printing."

	design := &Design{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Prompt:     strings.TrimSpace(req.Prompt),
		Style:      req.Style,
		CreatedAt:  now,
	}
	if app.MockProvider() {
		design.Provider = "mock"
		design.ImageURL = placeholderURL(size, "design")
	} else {
		path, url, err := renderImage(ctx, DesignsBucket, businessID, prompt, size)
		if err != nil {
			return nil, err
		}
		design.Provider = "openai"
		design.ImagePath = path
		design.ImageURL = url
	}

	if err := StoreFromContext(ctx).InsertDesign(ctx, design); err != nil {
		return nil, fmt.Errorf("could not save design:\n>>> %w", err)
	}
	app.LoggerFromContext(ctx).Infow("design generated", "design_id", design.ID, "provider", design.Provider)
	return design, nil
}

// MockupPrompt describes the product photo to render for a design.
func MockupPrompt(productType string, design *Design) string {
	prompt := fmt.Sprintf("Photorealistic product photo of %s printed with this artwork: %s.", productScenes[productType], design.Prompt)
	if design.Style != "" {
		prompt += " Artwork style: " + design.Style + "."
	}
	return prompt + " Soft studio lighting, neutral background, the whole product visible."
}

func CreateMockup(ctx context.Context, businessID string, req MockupRequest, now time.Time) (*Mockup, error) {
	if _, known := productScenes[req.ProductType]; !known {
		return nil, fmt.Errorf("unknown product type %q", req.ProductType)
	}
	store := StoreFromContext(ctx)
	design, err := store.Design(ctx, req.DesignID)
	if err != nil {
		return nil, err
	}
	if design.BusinessID != businessID {
		return nil, ErrNotOwner
	}

	mockup := &Mockup{
		ID:          uuid.NewString(),
		DesignID:    design.ID,
		BusinessID:  businessID,
		ProductType: req.ProductType,
		CreatedAt:   now,
	}
	if app.MockProvider() {
		mockup.ImageURL = placeholderURL(DefaultSize, req.ProductType)
	} else {
		path, url, err := renderImage(ctx, MockupsBucket, businessID, MockupPrompt(req.ProductType, design), DefaultSize)
		if err != nil {
			return nil, err
		}
		mockup.ImagePath = path
		mockup.ImageURL = url
	}

	if err := store.InsertMockup(ctx, mockup); err != nil {
		return nil, fmt.Errorf("could not save mockup:\n>>> %w", err)
	}
	return mockup, nil
}
