package tier

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	notifymocks "github.com/sells-group/careaudit-cli/internal/notify/mocks"
	"github.com/sells-group/careaudit-cli/internal/store"
	tiermocks "github.com/sells-group/careaudit-cli/internal/tier/mocks"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "tier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// seed creates a sponsored facility with count violations and returns it
// as read back from the store.
func seed(t *testing.T, s store.Store, tier model.Tier, count int) *model.Facility {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertFacilities(ctx, []model.Facility{{
		Jurisdiction: "FL", LicenseNumber: "9100", Name: "Bayview ALF", City: "Tampa", Status: model.StatusActive,
	}})
	require.NoError(t, err)
	page, err := s.FacilityPage(ctx, store.FacilityFilter{Jurisdiction: "FL"}, "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	id := page[0].ID

	require.NoError(t, s.ActivateSponsorship(ctx, store.Activation{
		FacilityID: id, Tier: tier, Token: "tok", BillingEmail: "owner@bayview.example",
	}))
	persist(t, s, id, count)

	f, err := s.GetFacility(ctx, id)
	require.NoError(t, err)
	return f
}

func persist(t *testing.T, s store.Store, id string, count int) {
	t.Helper()
	summary := "Inspectors cited the facility for medication storage problems. Staff corrected each violation."
	c := &model.Candidate{TotalViolations: &count, Summary: &summary}
	for i := 0; i < count; i++ {
		c.Violations = append(c.Violations, model.CandidateViolation{Description: "medication storage", Severity: model.SeverityLow})
	}
	require.NoError(t, s.PersistExtraction(context.Background(), id, c, true))
}

func TestApply_FeaturedDowngradeOnIncrease(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f := seed(t, s, model.TierFeatured, 2)
	old := f.ViolationCount

	persist(t, s, f.ID, 5)
	f, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)

	biller := tiermocks.NewMockBiller(t)
	biller.On("ScheduleTierChange", mock.Anything, mock.Anything, model.TierResponseOnly).Return(nil).Once()
	n := notifymocks.NewMockNotifier(t)
	n.On("Notify", mock.Anything, "owner@bayview.example", notify.KindDowngrade, mock.MatchedBy(func(p notify.Params) bool {
		return p.PreviousTier == model.TierFeatured && p.NewCount == 5 && p.OldCount != nil && *p.OldCount == 2 && p.Ceiling == 3
	})).Return(nil).Once()

	e := NewEngine(s, biller, n)
	res, err := e.Apply(ctx, f, old)
	require.NoError(t, err)
	assert.Equal(t, ActionDowngrade, res.Action)
	assert.True(t, res.Notified)
	assert.NoError(t, res.BillingErr)
	assert.Equal(t, model.TierResponseOnly, f.SponsorTier)

	stored, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierResponseOnly, stored.SponsorTier)

	// A second evaluation of the same state does nothing further.
	res, err = e.Apply(ctx, stored, stored.ViolationCount)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestApply_BillingFailureDoesNotBlockDowngrade(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f := seed(t, s, model.TierVerified, 7)

	biller := tiermocks.NewMockBiller(t)
	biller.On("ScheduleTierChange", mock.Anything, mock.Anything, model.TierResponseOnly).Return(errors.New("stripe down")).Once()
	n := notifymocks.NewMockNotifier(t)
	n.On("Notify", mock.Anything, mock.Anything, notify.KindDowngrade, mock.Anything).Return(nil).Once()

	res, err := NewEngine(s, biller, n).Apply(ctx, f, nil)
	require.NoError(t, err)
	assert.EqualError(t, res.BillingErr, "stripe down")

	stored, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierResponseOnly, stored.SponsorTier)
}

func TestApply_NoBiller(t *testing.T) {
	s := newStore(t)
	f := seed(t, s, model.TierFeatured, 4)
	n := notifymocks.NewMockNotifier(t)
	n.On("Notify", mock.Anything, mock.Anything, notify.KindDowngrade, mock.Anything).Return(nil).Once()

	res, err := NewEngine(s, nil, n).Apply(context.Background(), f, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.BillingErr, ErrBillingDisabled)
}

func TestApply_UpgradeOpportunityOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f := seed(t, s, model.TierResponseOnly, 1)

	n := notifymocks.NewMockNotifier(t)
	n.On("Notify", mock.Anything, "owner@bayview.example", notify.KindUpgradeOpportunity, mock.Anything).Return(nil).Once()
	e := NewEngine(s, nil, n)

	res, err := e.Apply(ctx, f, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionUpgradeOpportunity, res.Action)
	assert.True(t, res.Notified)
	assert.Equal(t, model.TierResponseOnly, f.SponsorTier)

	stored, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpgradeNotified)
	assert.Equal(t, model.TierResponseOnly, stored.SponsorTier)

	res, err = e.Apply(ctx, stored, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
}

func TestApply_UpgradeNoticeFailureRetriesLater(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f := seed(t, s, model.TierResponseOnly, 0)

	n := notifymocks.NewMockNotifier(t)
	n.On("Notify", mock.Anything, mock.Anything, notify.KindUpgradeOpportunity, mock.Anything).Return(errors.New("resend 500")).Once()

	res, err := NewEngine(s, nil, n).Apply(ctx, f, nil)
	require.NoError(t, err)
	assert.False(t, res.Notified)

	stored, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, stored.UpgradeNotified)
}

func TestApply_RearmAfterRelapse(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f := seed(t, s, model.TierResponseOnly, 6)
	require.NoError(t, s.SetUpgradeNotified(ctx, f.ID, true))
	f.UpgradeNotified = true

	res, err := NewEngine(s, nil, nil).Apply(ctx, f, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionRearm, res.Action)

	stored, err := s.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, stored.UpgradeNotified)
}

func TestApply_NilCountNoTransition(t *testing.T) {
	s := newStore(t)
	f := &model.Facility{ID: "missing", SponsorTier: model.TierFeatured}
	res, err := NewEngine(s, nil, nil).Apply(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
}

func TestApply_StoreFailure(t *testing.T) {
	s := newStore(t)
	f := &model.Facility{ID: "missing", SponsorTier: model.TierFeatured, ViolationCount: intPtr(8)}
	_, err := NewEngine(s, nil, nil).Apply(context.Background(), f, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
