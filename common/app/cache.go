package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

type contextKey string

const cacheContextKey = contextKey("app-cache")

// Cache holds values for the lifetime of one invocation: lazily built clients and,
// in tests, fakes that replace calls to external services.
type Cache struct {
	items map[string]any
	mu    sync.RWMutex
}

func cacheKey(args ...any) string {
	largs := make([]string, len(args))
	for i, a := range args {
		largs[i] = fmt.Sprintf("%v", a)
	}
	return strings.Join(largs, "/")
}

func cacheFromContext(ctx context.Context) *Cache {
	cache, _ := ctx.Value(cacheContextKey).(*Cache)
	return cache
}

func GetCacheValue[T any](ctx context.Context, key []any, fallback T) (val T, found bool) {
	cache := cacheFromContext(ctx)
	if cache == nil {
		return fallback, false
	}
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	res, inCache := cache.items[cacheKey(key...)]
	if inCache {
		val, assertOk := res.(T)
		if assertOk {
			return val, true
		}
	}
	return fallback, false
}

// SetCacheValue stores val and returns a func restoring the previous value.
// Without a cache in ctx it is a no-op.
func SetCacheValue(ctx context.Context, key []any, val any) (reset func()) {
	cache := cacheFromContext(ctx)
	if cache == nil {
		return func() {}
	}
	cache.mu.Lock()

	ck := cacheKey(key...)
	original, originalFound := cache.items[ck]
	cache.items[ck] = val

	cache.mu.Unlock()

	return func() {
		cache.mu.Lock()

		if originalFound {
			cache.items[ck] = original
		} else {
			delete(cache.items, ck)
		}

		cache.mu.Unlock()
	}
}

// CachedValue returns the cached value for key, building and storing it on first use.
// Build errors are not cached.
func CachedValue[T any](ctx context.Context, key []any, build func() (T, error)) (T, error) {
	if val, found := GetCacheValue[T](ctx, key, *new(T)); found {
		return val, nil
	}
	val, err := build()
	if err != nil {
		return val, err
	}
	SetCacheValue(ctx, key, val)
	return val, nil
}

func ContextWithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheContextKey, &Cache{
		items: map[string]any{},
	})
}

// CacheMiddleware gives the invocation a fresh cache unless the caller already attached one.
func CacheMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if cacheFromContext(ctx) == nil {
			ctx = ContextWithCache(ctx)
		}
		return function(ctx, request)
	}
}
