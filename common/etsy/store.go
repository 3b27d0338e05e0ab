package etsy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/supa"
)

type Connection struct {
	BusinessID   string    `json:"business_id"`
	EtsyUserID   int64     `json:"etsy_user_id"`
	ShopID       int64     `json:"shop_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OAuthState is a pending authorization, kept until the callback consumes it.
type OAuthState struct {
	State        string    `json:"state"`
	BusinessID   string    `json:"business_id"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store interface {
	Connection(ctx context.Context, businessID string) (*Connection, error)
	SaveConnection(ctx context.Context, conn *Connection) error
	SaveState(ctx context.Context, state OAuthState) error
	// TakeState returns the state and deletes it, so each state is usable once.
	TakeState(ctx context.Context, state string) (*OAuthState, error)
}

// StoreFromContext returns the Supabase store, or a replacement placed in the app cache under {"Etsy", "Store"}.
func StoreFromContext(ctx context.Context) Store {
	store, _ := app.GetCacheValue[Store](ctx, []any{"Etsy", "Store"}, supabaseStore{})
	return store
}

type supabaseStore struct{}

func (supabaseStore) Connection(ctx context.Context, businessID string) (*Connection, error) {
	var conn Connection
	err := supa.SelectOne(ctx, "etsy_connections", "*", map[string]string{"business_id": businessID}, &conn)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("could not load Etsy connection:\n>>> %w", err)
	}
	return &conn, nil
}

func (supabaseStore) SaveConnection(ctx context.Context, conn *Connection) error {
	return supa.Upsert(ctx, "etsy_connections", conn, "business_id")
}

func (supabaseStore) SaveState(ctx context.Context, state OAuthState) error {
	return supa.Insert(ctx, "etsy_oauth_states", state, nil)
}

func (supabaseStore) TakeState(ctx context.Context, state string) (*OAuthState, error) {
	var pending OAuthState
	filters := map[string]string{"state": state}
	err := supa.SelectOne(ctx, "etsy_oauth_states", "*", filters, &pending)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrUnknownState
	}
	if err != nil {
		return nil, err
	}
	if err := supa.Delete(ctx, "etsy_oauth_states", filters); err != nil {
		return nil, err
	}
	return &pending, nil
}
