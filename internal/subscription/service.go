// Package subscription manages paid tier grants and keeps the quota tracker
// in sync with them.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auditgate-platform/auditgate/internal/billing"
	"github.com/auditgate-platform/auditgate/internal/events"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

// TierSetter is the slice of the quota tracker the service needs.
type TierSetter interface {
	SetTier(userKey string, tier quota.Tier) error
}

// ActivationNotifier publishes tier purchases for downstream consumers.
type ActivationNotifier interface {
	PublishSubscriptionActivated(ctx context.Context, event events.SubscriptionActivated) error
}

type Service struct {
	repo     Repository
	tiers    TierSetter
	notifier ActivationNotifier
}

// Option configures optional collaborators.
type Option func(*Service)

// WithNotifier publishes an event for every activation. Publish failures are
// logged and never fail the purchase.
func WithNotifier(n ActivationNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(repo Repository, tiers TierSetter, opts ...Option) *Service {
	s := &Service{repo: repo, tiers: tiers}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate records a paid subscription and upgrades the requester's quota
// tier immediately.
func (s *Service) Activate(ctx context.Context, requester string, tier quota.Tier, txHash string) (*Subscription, error) {
	if tier != quota.TierSubscriber && tier != quota.TierPremium {
		return nil, fmt.Errorf("subscription: tier %q is not purchasable", tier)
	}

	now := time.Now().UTC()
	sub := &Subscription{
		ID:              uuid.New(),
		Requester:       requester,
		Tier:            tier,
		StartedAt:       now,
		ExpiresAt:       now.Add(DefaultDuration),
		CostLamports:    billing.SubscriptionFeeLamports(string(tier)),
		TransactionHash: txHash,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.tiers.SetTier(requester, tier); err != nil {
		return nil, fmt.Errorf("applying tier upgrade: %w", err)
	}

	if s.notifier != nil {
		event := events.SubscriptionActivated{
			Requester:    requester,
			Tier:         string(tier),
			CostLamports: sub.CostLamports,
			ExpiresAt:    sub.ExpiresAt,
			ActivatedAt:  sub.StartedAt,
		}
		if err := s.notifier.PublishSubscriptionActivated(ctx, event); err != nil {
			slog.Warn("subscription event publish failed", "requester", requester, "error", err)
		}
	}

	slog.Info("subscription activated",
		"requester", requester,
		"tier", tier,
		"expires_at", sub.ExpiresAt,
	)
	return sub, nil
}

// Deactivate expires any active subscription and drops the requester back to
// the free tier.
func (s *Service) Deactivate(ctx context.Context, requester string) error {
	if err := s.repo.Deactivate(ctx, requester); err != nil {
		return err
	}
	if err := s.tiers.SetTier(requester, quota.TierFree); err != nil {
		return fmt.Errorf("reverting tier: %w", err)
	}
	slog.Info("subscription deactivated", "requester", requester)
	return nil
}

// ActiveTier resolves the requester's current tier from storage. Requesters
// without an unexpired subscription are free tier.
func (s *Service) ActiveTier(ctx context.Context, requester string) (quota.Tier, error) {
	sub, err := s.repo.GetActive(ctx, requester)
	if err != nil {
		return quota.TierFree, err
	}
	if sub == nil {
		return quota.TierFree, nil
	}
	return sub.Tier, nil
}
