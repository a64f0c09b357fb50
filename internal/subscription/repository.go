package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	// GetActive returns the unexpired subscription for a requester, or nil.
	GetActive(ctx context.Context, requester string) (*Subscription, error)
	Deactivate(ctx context.Context, requester string) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (id, requester, tier, started_at, expires_at, cost_lamports, transaction_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.Requester, sub.Tier, sub.StartedAt, sub.ExpiresAt,
		sub.CostLamports, sub.TransactionHash)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetActive(ctx context.Context, requester string) (*Subscription, error) {
	query := `
		SELECT id, requester, tier, started_at, expires_at, cost_lamports, transaction_hash
		FROM subscriptions
		WHERE requester = $1 AND expires_at > now()
		ORDER BY expires_at DESC
		LIMIT 1`

	sub := &Subscription{}
	err := r.pool.QueryRow(ctx, query, requester).Scan(
		&sub.ID, &sub.Requester, &sub.Tier, &sub.StartedAt, &sub.ExpiresAt,
		&sub.CostLamports, &sub.TransactionHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active subscription: %w", err)
	}
	return sub, nil
}

func (r *postgresRepository) Deactivate(ctx context.Context, requester string) error {
	query := `UPDATE subscriptions SET expires_at = now() WHERE requester = $1 AND expires_at > now()`

	_, err := r.pool.Exec(ctx, query, requester)
	if err != nil {
		return fmt.Errorf("deactivating subscription: %w", err)
	}
	return nil
}
