// Package business resolves the business a signed-in user acts for.
package business

import (
	"context"
	"errors"
	"fmt"

	"podmarket/common/app"
	"podmarket/common/supa"
)

var ErrNoBusiness = errors.New("user has no business")

type Business struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Name            string  `json:"name"`
	StripeAccountID *string `json:"stripe_account_id"`
}

type Lookup interface {
	ByOwner(ctx context.Context, ownerID string) (*Business, error)
	ByID(ctx context.Context, id string) (*Business, error)
}

// LookupFromContext returns the Supabase lookup, or a replacement placed in the app cache under {"Business", "Lookup"}.
func LookupFromContext(ctx context.Context) Lookup {
	lookup, _ := app.GetCacheValue[Lookup](ctx, []any{"Business", "Lookup"}, supabaseLookup{})
	return lookup
}

type supabaseLookup struct{}

func (supabaseLookup) ByOwner(ctx context.Context, ownerID string) (*Business, error) {
	return selectBusiness(ctx, map[string]string{"owner_id": ownerID})
}

func (supabaseLookup) ByID(ctx context.Context, id string) (*Business, error) {
	return selectBusiness(ctx, map[string]string{"id": id})
}

func selectBusiness(ctx context.Context, filters map[string]string) (*Business, error) {
	var b Business
	err := supa.SelectOne(ctx, "businesses", "id,owner_id,name,stripe_account_id", filters, &b)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrNoBusiness
	}
	if err != nil {
		return nil, fmt.Errorf("could not load business:\n>>> %w", err)
	}
	return &b, nil
}

// ForUser returns the caller's business. Customers have none.
func ForUser(ctx context.Context) (*Business, error) {
	user, ok := app.UserFromContext(ctx)
	if !ok || user.Role == app.RoleCustomer {
		return nil, ErrNoBusiness
	}
	return LookupFromContext(ctx).ByOwner(ctx, user.ID)
}

// Static is a fixed Lookup, used in tests.
type Static []Business

func (s Static) ByOwner(ctx context.Context, ownerID string) (*Business, error) {
	for _, b := range s {
		if b.OwnerID == ownerID {
			return &b, nil
		}
	}
	return nil, ErrNoBusiness
}

func (s Static) ByID(ctx context.Context, id string) (*Business, error) {
	for _, b := range s {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, ErrNoBusiness
}
