package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MockProvider reports whether external providers should be replaced by canned data.
func MockProvider() bool {
	return strings.EqualFold(os.Getenv("MOCK_PROVIDER"), "true")
}

func EnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt falls back when the variable is unset or not an integer.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		Logger().Warnw("invalid integer environment variable, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// EnvDuration reads an integer count of unit, e.g. EnvDuration("PAYOUT_HOLD_DAYS", 24*time.Hour, 7*24*time.Hour).
func EnvDuration(key string, unit time.Duration, fallback time.Duration) time.Duration {
	n := EnvInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * unit
}
