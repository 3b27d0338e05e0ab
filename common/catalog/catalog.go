// Package catalog holds the products businesses sell: a design printed on a provider product.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"podmarket/common/app"
	"podmarket/common/supa"
)

var ErrProductNotFound = errors.New("product not found")

type ProductDesign struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

type Product struct {
	ID               string         `json:"id"`
	BusinessID       string         `json:"business_id"`
	DesignID         *string        `json:"design_id"`
	PodProductUID    string         `json:"pod_product_uid"`
	Title            string         `json:"title"`
	BaseCostCents    int64          `json:"base_cost_cents"`
	RetailPriceCents int64          `json:"retail_price_cents"`
	EtsyListingID    *int64         `json:"etsy_listing_id"`
	Design           *ProductDesign `json:"designs"`
}

const productColumns = "id,business_id,design_id,pod_product_uid,title,base_cost_cents,retail_price_cents,etsy_listing_id,designs(id,prompt,image_url)"

type Store interface {
	Get(ctx context.Context, id string) (*Product, error)
	ByIDs(ctx context.Context, ids []string) ([]Product, error)
	ByEtsyListingIDs(ctx context.Context, businessID string, listingIDs []int64) ([]Product, error)
	SetEtsyListingID(ctx context.Context, productID string, listingID int64) error
}

// StoreFromContext returns the Supabase store, or a replacement placed in the app cache under {"Catalog", "Store"}.
func StoreFromContext(ctx context.Context) Store {
	store, _ := app.GetCacheValue[Store](ctx, []any{"Catalog", "Store"}, supabaseStore{})
	return store
}

type supabaseStore struct{}

func (supabaseStore) Get(ctx context.Context, id string) (*Product, error) {
	var product Product
	err := supa.SelectOne(ctx, "products", productColumns, map[string]string{"id": id}, &product)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (supabaseStore) ByIDs(ctx context.Context, ids []string) ([]Product, error) {
	products := []Product{}
	if len(ids) == 0 {
		return products, nil
	}
	if err := supa.SelectIn(ctx, "products", productColumns, "id", ids, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (supabaseStore) ByEtsyListingIDs(ctx context.Context, businessID string, listingIDs []int64) ([]Product, error) {
	products := []Product{}
	if len(listingIDs) == 0 {
		return products, nil
	}
	ids := make([]string, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	if err := supa.SelectIn(ctx, "products", productColumns, "etsy_listing_id", ids, &products); err != nil {
		return nil, err
	}
	owned := products[:0]
	for _, p := range products {
		if p.BusinessID == businessID {
			owned = append(owned, p)
		}
	}
	return owned, nil
}

func (supabaseStore) SetEtsyListingID(ctx context.Context, productID string, listingID int64) error {
	n, err := supa.Update(ctx, "products", map[string]any{"etsy_listing_id": listingID}, map[string]string{"id": productID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return nil
}

// Static is an in-memory Store for tests.
type Static struct {
	Products map[string]*Product
}

func (s *Static) Get(ctx context.Context, id string) (*Product, error) {
	p, found := s.Products[id]
	if !found {
		return nil, ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *Static) ByIDs(ctx context.Context, ids []string) ([]Product, error) {
	products := []Product{}
	for _, id := range ids {
		if p, found := s.Products[id]; found {
			products = append(products, *p)
		}
	}
	return products, nil
}

func (s *Static) ByEtsyListingIDs(ctx context.Context, businessID string, listingIDs []int64) ([]Product, error) {
	products := []Product{}
	for _, p := range s.Products {
		if p.BusinessID != businessID || p.EtsyListingID == nil {
			continue
		}
		for _, id := range listingIDs {
			if *p.EtsyListingID == id {
				products = append(products, *p)
			}
		}
	}
	return products, nil
}

func (s *Static) SetEtsyListingID(ctx context.Context, productID string, listingID int64) error {
	p, found := s.Products[productID]
	if !found {
		return ErrProductNotFound
	}
	p.EtsyListingID = &listingID
	return nil
}
