package etsy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podmarket/common/app"
	"podmarket/common/catalog"
	"podmarket/common/helpers"

	"github.com/shopspring/decimal"
)

var (
	ErrNotOwner = errors.New("product belongs to another business")
	ErrNoDesign = errors.New("product has no design to publish")
)

type ListingRequest struct {
	ProductID         string   `json:"product_id" validate:"required"`
	Title             string   `json:"title" validate:"required,max=140"`
	Description       string   `json:"description" validate:"required"`
	PriceCents        int64    `json:"price_cents" validate:"required,gte=20"`
	Quantity          int      `json:"quantity" validate:"required,gt=0,lte=999"`
	Tags              []string `json:"tags" validate:"max=50"`
	TaxonomyID        int64    `json:"taxonomy_id" validate:"required,gt=0"`
	ShippingProfileID int64    `json:"shipping_profile_id,omitempty"`
}

type ListingResult struct {
	ProductID      string   `json:"product_id"`
	ListingID      int64    `json:"listing_id"`
	ListingImageID int64    `json:"listing_image_id,omitempty"`
	State          string   `json:"state"`
	Tags           []string `json:"tags"`
	Mock           bool     `json:"mock,omitempty"`
}

// ListingForm is the form body of a draft listing for a made-to-order printed product.
func ListingForm(req ListingRequest, tags []string) url.Values {
	form := url.Values{}
	form.Set("quantity", strconv.Itoa(req.Quantity))
	form.Set("title", req.Title)
	form.Set("description", req.Description)
	form.Set("price", decimal.New(req.PriceCents, -2).StringFixed(2))
	form.Set("who_made", "i_did")
	form.Set("when_made", "made_to_order")
	form.Set("taxonomy_id", strconv.FormatInt(req.TaxonomyID, 10))
	form.Set("is_supply", "false")
	if req.ShippingProfileID > 0 {
		form.Set("shipping_profile_id", strconv.FormatInt(req.ShippingProfileID, 10))
	}
	if len(tags) > 0 {
		form.Set("tags", strings.Join(tags, ","))
	}
	return form
}

func (c *Client) CreateDraftListing(ctx context.Context, shopID int64, form url.Values) (*Listing, error) {
	var listing Listing
	err := c.do(ctx, helpers.Request{
		Method:      http.MethodPost,
		RawBody:     strings.NewReader(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, fmt.Sprintf("/shops/%d/listings", shopID), &listing)
	if err != nil {
		return nil, fmt.Errorf("could not create Etsy listing:\n>>> %w", err)
	}
	return &listing, nil
}

func (c *Client) UploadListingImage(ctx context.Context, shopID, listingID int64, filename string, image []byte) (*ListingImage, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("error creating multipart image:\n>>> %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("error writing multipart image:\n>>> %w", err)
	}
	if err := writer.WriteField("rank", "1"); err != nil {
		return nil, fmt.Errorf("error writing multipart image rank:\n>>> %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing multipart image:\n>>> %w", err)
	}

	var uploaded ListingImage
	err = c.do(ctx, helpers.Request{
		Method:      http.MethodPost,
		RawBody:     body,
		ContentType: writer.FormDataContentType(),
	}, fmt.Sprintf("/shops/%d/listings/%d/images", shopID, listingID), &uploaded)
	if err != nil {
		return nil, fmt.Errorf("could not upload image to Etsy listing %d:\n>>> %w", listingID, err)
	}
	return &uploaded, nil
}

// PublishListing creates a draft Etsy listing for one of the business' products and links the two.
func PublishListing(ctx context.Context, businessID string, req ListingRequest, now time.Time) (*ListingResult, error) {
	products := catalog.StoreFromContext(ctx)
	product, err := products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.BusinessID != businessID {
		return nil, ErrNotOwner
	}
	if product.Design == nil || product.Design.ImageURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDesign, product.ID)
	}

	tags := SanitizeTags(req.Tags)
	result := &ListingResult{ProductID: product.ID, Tags: tags, State: "draft"}
	if app.MockProvider() {
		result.ListingID = now.Unix()
		result.Mock = true
		if err := products.SetEtsyListingID(ctx, product.ID, result.ListingID); err != nil {
			return nil, err
		}
		return result, nil
	}

	conn, err := StoreFromContext(ctx).Connection(ctx, businessID)
	if err != nil {
		return nil, err
	}
	client, err := ClientFor(ctx, conn, now)
	if err != nil {
		return nil, err
	}
	// the image is fetched first so a failed download leaves nothing on the shop
	image, _, err := helpers.Download(ctx, product.Design.ImageURL)
	if err != nil {
		return nil, err
	}
	listing, err := client.CreateDraftListing(ctx, conn.ShopID, ListingForm(req, tags))
	if err != nil {
		return nil, err
	}
	result.ListingID = listing.ListingID
	if listing.State != "" {
		result.State = listing.State
	}
	if err := products.SetEtsyListingID(ctx, product.ID, result.ListingID); err != nil {
		return nil, fmt.Errorf("listing %d created but not linked to product %s:\n>>> %w", result.ListingID, product.ID, err)
	}

	uploaded, err := client.UploadListingImage(ctx, conn.ShopID, listing.ListingID, product.Design.ID+".png", image)
	if err != nil {
		return nil, fmt.Errorf("listing %d linked to product %s without its image:\n>>> %w", result.ListingID, product.ID, err)
	}
	result.ListingImageID = uploaded.ListingImageID
	app.LoggerFromContext(ctx).Infow("Etsy listing published", "product_id", product.ID, "listing_id", result.ListingID)
	return result, nil
}
