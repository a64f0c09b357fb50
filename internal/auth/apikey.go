// Package auth authenticates API callers by API key and resolves them to a
// stable requester identity for quota tracking.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownKey is returned when no active API key matches.
var ErrUnknownKey = errors.New("auth: unknown api key")

// Resolver maps a presented API key to a requester identity.
type Resolver interface {
	Resolve(ctx context.Context, apiKey string) (requester string, err error)
}

// HashKey returns the hex SHA-256 digest keys are stored under. Raw keys
// never touch the database.
func HashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

type postgresResolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a Resolver backed by the api_keys table.
func NewResolver(pool *pgxpool.Pool) Resolver {
	return &postgresResolver{pool: pool}
}

func (r *postgresResolver) Resolve(ctx context.Context, apiKey string) (string, error) {
	query := `
		SELECT requester FROM api_keys
		WHERE key_hash = $1 AND revoked_at IS NULL`

	var requester string
	err := r.pool.QueryRow(ctx, query, HashKey(apiKey)).Scan(&requester)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownKey
		}
		return "", fmt.Errorf("resolving api key: %w", err)
	}
	return requester, nil
}

// StaticResolver resolves keys from a fixed map. Used in tests and
// single-tenant deployments without a database.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, apiKey string) (string, error) {
	requester, ok := s[apiKey]
	if !ok {
		return "", ErrUnknownKey
	}
	return requester, nil
}
