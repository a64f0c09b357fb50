package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Global ceilings
	if c.Quota.GlobalPerMinute < 1 {
		errs = append(errs, "QUOTA_GLOBAL_PER_MINUTE must be positive")
	}
	if c.Quota.GlobalPerHour < c.Quota.GlobalPerMinute {
		errs = append(errs, "QUOTA_GLOBAL_PER_HOUR must be at least QUOTA_GLOBAL_PER_MINUTE")
	}

	// Cache
	if c.Cache.Capacity < 1 {
		errs = append(errs, "CACHE_CAPACITY must be positive")
	}
	if c.Cache.DedupWindow > c.Cache.TTL {
		errs = append(errs, "CACHE_DEDUP_WINDOW must not exceed CACHE_TTL")
	}

	// Storage: all-or-nothing
	if c.Storage.Enabled() {
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			errs = append(errs, "STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY are required when STORAGE_BUCKET is set")
		}
		if c.Storage.AccountID == "" && c.Storage.Endpoint == "" {
			errs = append(errs, "STORAGE_ACCOUNT_ID or STORAGE_ENDPOINT is required when STORAGE_BUCKET is set")
		}
	}

	// Paid analyzer: warn only; the free analyzer covers every request
	if c.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty, paid tier routes to the free analyzer")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
