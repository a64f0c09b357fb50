package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditgate-platform/auditgate/internal/events"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

type fakeRepo struct {
	subs map[string]*Subscription
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: make(map[string]*Subscription)}
}

func (f *fakeRepo) Create(_ context.Context, sub *Subscription) error {
	f.subs[sub.Requester] = sub
	return nil
}

func (f *fakeRepo) GetActive(_ context.Context, requester string) (*Subscription, error) {
	sub, ok := f.subs[requester]
	if !ok || !sub.Active(time.Now()) {
		return nil, nil
	}
	return sub, nil
}

func (f *fakeRepo) Deactivate(_ context.Context, requester string) error {
	if sub, ok := f.subs[requester]; ok {
		sub.ExpiresAt = time.Now()
	}
	return nil
}

type fakeTiers struct {
	set map[string]quota.Tier
}

func (f *fakeTiers) SetTier(userKey string, tier quota.Tier) error {
	if f.set == nil {
		f.set = make(map[string]quota.Tier)
	}
	f.set[userKey] = tier
	return nil
}

func TestActivate_UpgradesTier(t *testing.T) {
	tiers := &fakeTiers{}
	svc := NewService(newFakeRepo(), tiers)

	sub, err := svc.Activate(context.Background(), "tg:42", quota.TierPremium, "txhash")
	require.NoError(t, err)

	assert.Equal(t, quota.TierPremium, tiers.set["tg:42"])
	assert.Equal(t, int64(1_000_000_000), sub.CostLamports)
	assert.WithinDuration(t, time.Now().Add(DefaultDuration), sub.ExpiresAt, time.Minute)
}

func TestActivate_FreeTierNotPurchasable(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeTiers{})
	_, err := svc.Activate(context.Background(), "tg:42", quota.TierFree, "")
	require.Error(t, err)
}

func TestActiveTier_DefaultsToFree(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeTiers{})

	tier, err := svc.ActiveTier(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, tier)
}

type fakeNotifier struct {
	published []events.SubscriptionActivated
}

func (f *fakeNotifier) PublishSubscriptionActivated(_ context.Context, e events.SubscriptionActivated) error {
	f.published = append(f.published, e)
	return nil
}

func TestActivate_PublishesEvent(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewService(newFakeRepo(), &fakeTiers{}, WithNotifier(notifier))

	_, err := svc.Activate(context.Background(), "tg:42", quota.TierSubscriber, "txhash")
	require.NoError(t, err)

	require.Len(t, notifier.published, 1)
	assert.Equal(t, "subscriber", notifier.published[0].Tier)
	assert.Equal(t, int64(100_000_000), notifier.published[0].CostLamports)
}

func TestDeactivate_RevertsToFree(t *testing.T) {
	repo := newFakeRepo()
	tiers := &fakeTiers{}
	svc := NewService(repo, tiers)

	_, err := svc.Activate(context.Background(), "tg:42", quota.TierSubscriber, "")
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), "tg:42"))

	assert.Equal(t, quota.TierFree, tiers.set["tg:42"])
	tier, err := svc.ActiveTier(context.Background(), "tg:42")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, tier)
}
