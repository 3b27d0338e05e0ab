package etsy

import (
	"context"
	"fmt"
	"os"
	"time"

	"podmarket/common/app"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const stateTTL = 15 * time.Minute

var Scopes = []string{"transactions_r", "listings_w", "listings_r", "shops_r"}

func OAuthConfig() (*oauth2.Config, error) {
	key := os.Getenv("ETSY_API_KEY")
	redirect := os.Getenv("ETSY_REDIRECT_URI")
	if key == "" || redirect == "" {
		return nil, fmt.Errorf("invalid or incomplete Etsy environment variables")
	}
	return &oauth2.Config{
		ClientID:    key,
		RedirectURL: redirect,
		Scopes:      Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   app.EnvString("ETSY_CONNECT_URL", "https://www.etsy.com/oauth/connect"),
			TokenURL:  apiURL() + "/v3/public/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// StartOAuth stores a fresh state with its PKCE verifier and returns the Etsy consent URL.
func StartOAuth(ctx context.Context, businessID string, now time.Time) (string, error) {
	cfg, err := OAuthConfig()
	if err != nil {
		return "", err
	}
	state := OAuthState{
		State:        uuid.NewString(),
		BusinessID:   businessID,
		CodeVerifier: oauth2.GenerateVerifier(),
		CreatedAt:    now,
	}
	if err := StoreFromContext(ctx).SaveState(ctx, state); err != nil {
		return "", fmt.Errorf("could not store OAuth state:\n>>> %w", err)
	}
	return cfg.AuthCodeURL(state.State, oauth2.S256ChallengeOption(state.CodeVerifier)), nil
}

// CompleteOAuth exchanges the callback code and saves the business' shop connection.
func CompleteOAuth(ctx context.Context, code, state string, now time.Time) (*Connection, error) {
	store := StoreFromContext(ctx)
	pending, err := store.TakeState(ctx, state)
	if err != nil {
		return nil, err
	}
	if now.Sub(pending.CreatedAt) > stateTTL {
		return nil, fmt.Errorf("%w: created %s", ErrStateExpired, pending.CreatedAt.Format(time.RFC3339))
	}

	var token *oauth2.Token
	var me *Me
	if app.MockProvider() {
		token = &oauth2.Token{AccessToken: fmt.Sprintf("%d.mock", mockUserID), RefreshToken: "mock-refresh", Expiry: now.Add(time.Hour)}
		me = &Me{UserID: mockUserID, ShopID: mockShopID}
	} else {
		cfg, err := OAuthConfig()
		if err != nil {
			return nil, err
		}
		token, err = cfg.Exchange(ctx, code, oauth2.VerifierOption(pending.CodeVerifier))
		if err != nil {
			return nil, fmt.Errorf("could not exchange Etsy authorization code:\n>>> %w", err)
		}
		if me, err = NewClient(token.AccessToken).Me(ctx); err != nil {
			return nil, err
		}
	}

	conn := &Connection{
		BusinessID:   pending.BusinessID,
		EtsyUserID:   me.UserID,
		ShopID:       me.ShopID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		UpdatedAt:    now,
	}
	if err := store.SaveConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("could not save Etsy connection:\n>>> %w", err)
	}
	app.LoggerFromContext(ctx).Infow("Etsy shop connected", "business_id", conn.BusinessID, "shop_id", conn.ShopID)
	return conn, nil
}

// ClientFor returns a client for the business' shop, refreshing and saving the token when it has expired.
func ClientFor(ctx context.Context, conn *Connection, now time.Time) (*Client, error) {
	if conn.ExpiresAt.After(now.Add(time.Minute)) {
		return NewClient(conn.AccessToken), nil
	}
	cfg, err := OAuthConfig()
	if err != nil {
		return nil, err
	}
	// expired in the past so the token source always refreshes; oauth2 checks the wall clock, not now
	current := &oauth2.Token{AccessToken: conn.AccessToken, RefreshToken: conn.RefreshToken, TokenType: "Bearer", Expiry: time.Unix(1, 0)}
	fresh, err := cfg.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, fmt.Errorf("could not refresh Etsy token for business %s:\n>>> %w", conn.BusinessID, err)
	}
	conn.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		conn.RefreshToken = fresh.RefreshToken
	}
	conn.ExpiresAt = fresh.Expiry
	conn.UpdatedAt = now
	if err := StoreFromContext(ctx).SaveConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("could not save refreshed Etsy token:\n>>> %w", err)
	}
	return NewClient(conn.AccessToken), nil
}
