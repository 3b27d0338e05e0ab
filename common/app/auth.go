package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = contextKey("app-user")

const (
	RoleCustomer = "customer"
	RoleBusiness = "business"
	RoleAdmin    = "admin"
)

var ErrMissingBearer = errors.New("missing bearer token")

// User is the caller authenticated from a Supabase access token.
type User struct {
	ID    string
	Email string
	Role  string
}

// SupabaseClaims mirrors the claims Supabase Auth puts in its access tokens.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	AppMetadata map[string]any `json:"app_metadata"`
}

func (c *SupabaseClaims) appRole() string {
	if role, ok := c.AppMetadata["role"].(string); ok && role != "" {
		return role
	}
	return RoleCustomer
}

func BearerToken(request events.APIGatewayProxyRequest) (string, error) {
	header := Header(request, "authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", ErrMissingBearer
	}
	return strings.TrimSpace(token), nil
}

// ParseUserToken validates an HS256 Supabase access token against SUPABASE_JWT_SECRET.
func ParseUserToken(token string) (*User, error) {
	secret := os.Getenv("SUPABASE_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("invalid or incomplete Supabase environment variables")
	}
	claims := &SupabaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience("authenticated"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token:\n>>> %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject")
	}
	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.appRole(),
	}, nil
}

func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// UserAuthMiddleware authenticates end users (customers, businesses, admins) by their Supabase session token.
func UserAuthMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		token, err := BearerToken(request)
		if err != nil {
			return NetlifyLogAndResponse(http.StatusUnauthorized, "Unauthorized", err)
		}
		user, err := ParseUserToken(token)
		if err != nil {
			return NetlifyLogAndResponse(http.StatusUnauthorized, "Unauthorized", err)
		}
		return function(ContextWithUser(ctx, user), request)
	}
}

// RequireRole authenticates the user and rejects anyone outside roles. Admins always pass.
func RequireRole(roles ...string) func(NetlifyFunction) NetlifyFunction {
	return func(function NetlifyFunction) NetlifyFunction {
		return UserAuthMiddleware(func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
			user, _ := UserFromContext(ctx)
			if user.Role != RoleAdmin && !slices.Contains(roles, user.Role) {
				return NetlifyLogAndResponse(http.StatusForbidden, "Forbidden", fmt.Errorf("role %q not allowed", user.Role))
			}
			return function(ctx, request)
		})
	}
}
