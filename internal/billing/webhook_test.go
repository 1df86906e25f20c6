package billing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

func event(t *testing.T, typ string, obj map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_1", Type: typ, Object: raw}
}

func subscriptionObject(id, facilityID, priceID, status string) map[string]any {
	return map[string]any{
		"id":         id,
		"object":     "subscription",
		"status":     status,
		"start_date": testNow.AddDate(0, -2, 0).Unix(),
		"metadata":   map[string]string{MetaFacilityID: facilityID, MetaTier: "featured"},
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": priceID, "object": "price"}},
			},
		},
	}
}

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.facility(t, "4001", intPtr(1))

	fx.notifier.On("Notify", mock.Anything, "owner@example.com", notify.KindWelcome, mock.MatchedBy(func(p notify.Params) bool {
		return p.Tier == model.TierFeatured && p.Token == "tok-123" && p.FacilityName == "Facility 4001"
	})).Return(nil).Once()

	err := fx.sync.HandleEvent(ctx, event(t, stripe.EventCheckoutCompleted, map[string]any{
		"id":               "cs_1",
		"object":           "checkout.session",
		"subscription":     "sub_1",
		"customer_details": map[string]any{"email": "owner@example.com"},
		"metadata":         map[string]string{MetaFacilityID: f.ID, MetaTier: "featured_verified"},
	}))
	require.NoError(t, err)

	got, err := fx.store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierFeatured, got.SponsorTier)
	assert.Equal(t, "tok-123", got.OnboardingToken)
	assert.False(t, got.OnboardingCompleted)
	assert.Equal(t, "owner@example.com", got.BillingEmail)

	sub, err := fx.store.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, f.ID, sub.FacilityID)
	assert.Equal(t, model.TierFeatured, sub.Tier)
	assert.Equal(t, "price_featured", sub.PriceID)
	assert.False(t, sub.Migrated)
}

func TestHandleEvent_CheckoutWithoutInspectionData(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.facility(t, "4002", nil)

	err := fx.sync.HandleEvent(ctx, event(t, stripe.EventCheckoutCompleted, map[string]any{
		"id":       "cs_2",
		"object":   "checkout.session",
		"metadata": map[string]string{MetaFacilityID: f.ID, MetaTier: "verified"},
	}))
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)

	got, err := fx.store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierNone, got.SponsorTier)
}

func TestHandleEvent_CheckoutMissingMetadata(t *testing.T) {
	fx := newFixture(t)
	err := fx.sync.HandleEvent(context.Background(), event(t, stripe.EventCheckoutCompleted, map[string]any{
		"id": "cs_3", "object": "checkout.session",
	}))
	require.NoError(t, err)
}

func TestHandleEvent_SubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.facility(t, "5001", intPtr(2))
	require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierFeatured)))
	require.NoError(t, fx.store.UpsertSubscription(ctx, &model.Subscription{
		ID: "sub_9", FacilityID: f.ID, Tier: model.TierFeatured, PriceID: "price_featured", Status: "active", StartedAt: testNow.AddDate(0, -3, 0),
	}))

	err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionDeleted, subscriptionObject("sub_9", f.ID, "price_featured", "canceled")))
	require.NoError(t, err)

	got, err := fx.store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierNone, got.SponsorTier)
	assert.Empty(t, got.OnboardingToken)
	assert.Empty(t, got.ContactEmail)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.ResponseText)
	// Inspection data and identity survive cancellation.
	require.NotNil(t, got.ViolationCount)
	assert.Equal(t, 2, *got.ViolationCount)
	assert.Equal(t, "Facility 5001", got.Name)
	assert.Equal(t, []string{"fl/tampa/facility-5001"}, fx.photos.prefixes)

	sub, err := fx.store.GetSubscription(ctx, "sub_9")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, testNow.AddDate(0, -3, 0).Unix(), sub.StartedAt.Unix())
}

func TestHandleEvent_SubscriptionUpdated(t *testing.T) {
	ctx := context.Background()

	t.Run("eligible tier change", func(t *testing.T) {
		fx := newFixture(t)
		f := fx.facility(t, "6001", intPtr(2))
		require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierFeatured)))

		err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_2", f.ID, "price_verified", "active")))
		require.NoError(t, err)

		got, err := fx.store.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierVerified, got.SponsorTier)
		sub, err := fx.store.GetSubscription(ctx, "sub_2")
		require.NoError(t, err)
		assert.Equal(t, "price_verified", sub.PriceID)
		assert.Equal(t, model.TierVerified, sub.Tier)
	})

	t.Run("ineligible tier change is rejected", func(t *testing.T) {
		fx := newFixture(t)
		f := fx.facility(t, "6002", intPtr(7))
		require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierResponseOnly)))

		err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_3", f.ID, "price_featured", "active")))
		require.NoError(t, err)

		got, err := fx.store.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierResponseOnly, got.SponsorTier)
		sub, err := fx.store.GetSubscription(ctx, "sub_3")
		require.NoError(t, err)
		assert.Equal(t, "price_featured", sub.PriceID)
	})

	t.Run("legacy price keeps tier", func(t *testing.T) {
		fx := newFixture(t)
		f := fx.facility(t, "6003", intPtr(0))
		require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierFeatured)))

		err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_4", f.ID, "price_2024_featured", "active")))
		require.NoError(t, err)

		got, err := fx.store.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierFeatured, got.SponsorTier)
	})
}

func TestHandleEvent_UpdateAfterDeletion(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.facility(t, "6101", intPtr(1))
	require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierFeatured)))

	require.NoError(t, fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionDeleted, subscriptionObject("sub_5", f.ID, "price_featured", "canceled"))))

	for _, status := range []string{"canceled", "active"} {
		err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_5", f.ID, "price_verified", status)))
		require.NoError(t, err)

		got, err := fx.store.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierNone, got.SponsorTier, status)
		assert.Empty(t, got.OnboardingToken, status)

		sub, err := fx.store.GetSubscription(ctx, "sub_5")
		require.NoError(t, err)
		assert.Equal(t, "canceled", sub.Status, status)
	}
}

func TestHandleEvent_UpdateOnLapsedSubscription(t *testing.T) {
	ctx := context.Background()

	for _, status := range []string{"unpaid", "incomplete_expired", "past_due"} {
		t.Run(status, func(t *testing.T) {
			fx := newFixture(t)
			f := fx.facility(t, "6201", intPtr(1))
			require.NoError(t, fx.store.ActivateSponsorship(ctx, storeActivation(f.ID, model.TierFeatured)))

			err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_6", f.ID, "price_verified", status)))
			require.NoError(t, err)

			got, err := fx.store.GetFacility(ctx, f.ID)
			require.NoError(t, err)
			assert.Equal(t, model.TierFeatured, got.SponsorTier)
			sub, err := fx.store.GetSubscription(ctx, "sub_6")
			require.NoError(t, err)
			assert.Equal(t, status, sub.Status)
		})
	}
}

func TestHandleEvent_UpdateOnUnsponsoredFacility(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.facility(t, "6301", intPtr(0))

	err := fx.sync.HandleEvent(ctx, event(t, stripe.EventSubscriptionUpdated, subscriptionObject("sub_7", f.ID, "price_featured", "active")))
	require.NoError(t, err)

	got, err := fx.store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierNone, got.SponsorTier)
}

func TestHandleEvent_IgnoresUnknownTypes(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.sync.HandleEvent(context.Background(), &stripe.Event{ID: "evt_x", Type: "invoice.paid"}))
}
