package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careaudit-cli/internal/model"
)

func intPtr(n int) *int                       { return &n }
func strPtr(s string) *string                 { return &s }
func sevPtr(s model.Severity) *model.Severity { return &s }

func seedFacility(t *testing.T, s Store, license string) model.Facility {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertFacilities(ctx, []model.Facility{{
		Jurisdiction:  "fl",
		LicenseNumber: license,
		Name:          "Sunrise Assisted Living " + license,
		City:          "Tampa",
		Status:        model.StatusActive,
		Slug:          "sunrise-" + license,
	}})
	require.NoError(t, err)

	page, err := s.FacilityPage(ctx, FacilityFilter{Jurisdiction: "FL"}, "", 1000)
	require.NoError(t, err)
	for _, f := range page {
		if f.LicenseNumber == license {
			return f
		}
	}
	t.Fatalf("seeded facility %s not found", license)
	return model.Facility{}
}

func candidate(count int, summary string, violations ...model.CandidateViolation) *model.Candidate {
	return &model.Candidate{
		TotalViolations: intPtr(count),
		Severity:        sevPtr(model.SeverityMedium),
		Summary:         strPtr(summary),
		Violations:      violations,
	}
}

func violation(desc string) model.CandidateViolation {
	return model.CandidateViolation{Description: desc, Severity: model.SeverityLow, Status: model.ViolationOpen}
}

// storeTestSuite runs behavioural checks shared by every backend.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertFacilitiesMergesByLicense", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL100")
		assert.Equal(t, "FL", f.Jurisdiction)
		assert.Equal(t, model.TierNone, f.SponsorTier)
		assert.Nil(t, f.ViolationCount)

		_, err := s.UpsertFacilities(ctx, []model.Facility{{
			Jurisdiction: "FL", LicenseNumber: "AL100", Name: "Sunrise Renamed", Status: model.StatusClosed,
		}})
		require.NoError(t, err)

		got, err := s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sunrise Renamed", got.Name)
		assert.Equal(t, model.StatusClosed, got.Status)
		assert.Equal(t, "sunrise-AL100", got.Slug, "slug is set once at creation")

		n, err := s.UpsertFacilities(ctx, []model.Facility{{
			Jurisdiction: "FL", LicenseNumber: "AL100", Name: "Sunrise Renamed", Status: model.StatusClosed,
		}})
		require.NoError(t, err)
		assert.Zero(t, n, "an unchanged row is not rewritten")
	})

	t.Run("PersistExtractionReplacesViolations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL200")

		require.NoError(t, s.PersistExtraction(ctx, f.ID, candidate(3, "First.", violation("a"), violation("b"), violation("c")), true))
		require.NoError(t, s.PersistExtraction(ctx, f.ID, candidate(1, "Second.", violation("d")), true))

		vs, err := s.ListViolations(ctx, f.ID)
		require.NoError(t, err)
		require.Len(t, vs, 1)
		assert.Equal(t, "d", vs[0].Description)

		got, err := s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ViolationCount)
		assert.Equal(t, 1, *got.ViolationCount)
		require.NotNil(t, got.Grade)
		assert.Equal(t, model.GradeB, *got.Grade)
		assert.True(t, got.SummaryValidated)
		assert.NotNil(t, got.ExtractedAt)
	})

	t.Run("PersistExtractionIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL300")
		c := candidate(2, "Same.", violation("x"), violation("y"))

		require.NoError(t, s.PersistExtraction(ctx, f.ID, c, true))
		require.NoError(t, s.PersistExtraction(ctx, f.ID, c, true))

		vs, err := s.ListViolations(ctx, f.ID)
		require.NoError(t, err)
		assert.Len(t, vs, 2)
	})

	t.Run("PersistExtractionKeepsPriorValuesForNilFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL400")
		require.NoError(t, s.PersistExtraction(ctx, f.ID, candidate(4, "Prior summary."), true))

		require.NoError(t, s.PersistExtraction(ctx, f.ID, &model.Candidate{}, false))

		got, err := s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ViolationCount)
		assert.Equal(t, 4, *got.ViolationCount)
		require.NotNil(t, got.Summary)
		assert.Equal(t, "Prior summary.", *got.Summary)
		require.NotNil(t, got.Grade)
		assert.Equal(t, model.GradeC, *got.Grade)
		assert.False(t, got.SummaryValidated)
	})

	t.Run("PersistExtractionUnknownFacility", func(t *testing.T) {
		s := newStore(t)
		err := s.PersistExtraction(context.Background(), "missing", candidate(0, "None."), true)
		var pe *PersistError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "missing", pe.FacilityID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("FacilityPageFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedFacility(t, s, "AL500")
		b := seedFacility(t, s, "AL501")
		seedFacility(t, s, "AL502")

		require.NoError(t, s.PersistExtraction(ctx, a.ID, candidate(0, "Done."), true))
		require.NoError(t, s.PersistExtraction(ctx, b.ID, candidate(0, "Unvalidated."), false))
		require.NoError(t, s.SetSponsorTier(ctx, a.ID, model.TierFeatured))

		pending, err := s.FacilityPage(ctx, FacilityFilter{Jurisdiction: "FL", Pending: true}, "", 1000)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		sponsored, err := s.FacilityPage(ctx, FacilityFilter{Jurisdiction: "FL", Sponsored: true}, "", 1000)
		require.NoError(t, err)
		require.Len(t, sponsored, 1)
		assert.Equal(t, a.ID, sponsored[0].ID)

		other, err := s.FacilityPage(ctx, FacilityFilter{Jurisdiction: "TX"}, "", 1000)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("FacilitiesPager", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, l := range []string{"P1", "P2", "P3"} {
			seedFacility(t, s, l)
		}
		p := Facilities(s, FacilityFilter{Jurisdiction: "FL"})
		var n int
		for {
			if _, ok := p.Next(ctx); !ok {
				break
			}
			n++
		}
		require.NoError(t, p.Err())
		assert.Equal(t, 3, n)
	})

	t.Run("SponsorshipLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL600")
		require.NoError(t, s.PersistExtraction(ctx, f.ID, candidate(2, "Two citations."), true))

		require.NoError(t, s.ActivateSponsorship(ctx, Activation{
			FacilityID: f.ID, Tier: model.TierVerified, Token: "tok-1", BillingEmail: "owner@example.com",
		}))
		got, err := s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierVerified, got.SponsorTier)
		assert.Equal(t, "tok-1", got.OnboardingToken)
		assert.False(t, got.OnboardingCompleted)
		assert.Equal(t, "owner@example.com", got.BillingEmail)

		require.NoError(t, s.SetUpgradeNotified(ctx, f.ID, true))
		require.NoError(t, s.ClearSponsorship(ctx, f.ID))

		got, err = s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierNone, got.SponsorTier)
		assert.Empty(t, got.OnboardingToken)
		assert.Empty(t, got.WebsiteURL)
		assert.False(t, got.UpgradeNotified)
		require.NotNil(t, got.ViolationCount, "inspection data survives cancellation")
		assert.Equal(t, 2, *got.ViolationCount)
		assert.Equal(t, f.Name, got.Name)
	})

	t.Run("OwnerEnhancements", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL650")
		require.NoError(t, s.PersistExtraction(ctx, f.ID, candidate(1, "One citation."), true))

		_, err := s.FacilityByToken(ctx, "tok-owner")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateEnhancements(ctx, f.ID, Enhancements{WebsiteURL: strPtr("https://a.example")}), ErrNotFound,
			"unsponsored facilities are not editable")

		require.NoError(t, s.ActivateSponsorship(ctx, Activation{FacilityID: f.ID, Tier: model.TierFeatured, Token: "tok-owner"}))
		got, err := s.FacilityByToken(ctx, "tok-owner")
		require.NoError(t, err)
		assert.Equal(t, f.ID, got.ID)
		_, err = s.FacilityByToken(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.UpdateEnhancements(ctx, f.ID, Enhancements{
			WebsiteURL:   strPtr("https://sunrise.example"),
			ContactEmail: strPtr("director@sunrise.example"),
		}))
		require.NoError(t, s.UpdateEnhancements(ctx, f.ID, Enhancements{Description: strPtr("Family owned since 1998.")}))

		got, err = s.GetFacility(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://sunrise.example", got.WebsiteURL)
		assert.Equal(t, "director@sunrise.example", got.ContactEmail)
		assert.Equal(t, "Family owned since 1998.", got.Description)
		assert.True(t, got.OnboardingCompleted)
		assert.Equal(t, model.TierFeatured, got.SponsorTier)
		require.NotNil(t, got.ViolationCount)
		assert.Equal(t, 1, *got.ViolationCount)
	})

	t.Run("ReviewEntries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		f := seedFacility(t, s, "AL700")

		e := &model.ReviewEntry{
			FacilityID: f.ID, FacilityName: f.Name, Jurisdiction: "FL",
			Stage: model.StageFetch, Reason: "HTTP 404", Attempts: 1,
		}
		require.NoError(t, s.AddReviewEntry(ctx, e))
		require.NotEmpty(t, e.ID)

		open, err := s.ListReviewEntries(ctx, ReviewFilter{Jurisdiction: "fl"})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, model.StageFetch, open[0].Stage)
		assert.False(t, open[0].Resolved)

		require.NoError(t, s.ResolveReviewEntry(ctx, e.ID, "ops@example.com", "report moved"))
		assert.ErrorIs(t, s.ResolveReviewEntry(ctx, e.ID, "ops@example.com", ""), ErrNotFound)

		open, err = s.ListReviewEntries(ctx, ReviewFilter{})
		require.NoError(t, err)
		assert.Empty(t, open)

		all, err := s.ListReviewEntries(ctx, ReviewFilter{IncludeResolved: true})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Resolved)
		assert.Equal(t, "ops@example.com", all[0].ResolvedBy)
		assert.Equal(t, "report moved", all[0].Note)
		assert.NotNil(t, all[0].ResolvedAt)
	})

	t.Run("Subscriptions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		started := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

		sub := &model.Subscription{
			ID: "sub_1", FacilityID: "fac-1", Tier: model.TierFeatured, PriceID: "price_old",
			CustomerEmail: "a@example.com", Status: "active", StartedAt: started,
		}
		require.NoError(t, s.UpsertSubscription(ctx, sub))

		sub.CustomerEmail = ""
		sub.Status = "past_due"
		require.NoError(t, s.UpsertSubscription(ctx, sub))

		got, err := s.GetSubscription(ctx, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", got.CustomerEmail)
		assert.Equal(t, "past_due", got.Status)
		assert.True(t, started.Equal(got.StartedAt))

		at := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.MarkReminderSent(ctx, "sub_1", at))
		require.NoError(t, s.MarkMigrated(ctx, "sub_1", "price_new", at))

		got, err = s.GetSubscription(ctx, "sub_1")
		require.NoError(t, err)
		assert.True(t, got.Migrated)
		assert.Equal(t, "price_new", got.PriceID)
		require.NotNil(t, got.ReminderSentAt)

		_, err = s.GetSubscription(ctx, "sub_missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.MarkMigrated(ctx, "sub_missing", "p", at), ErrNotFound)
	})

	t.Run("FacilitySubscription", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := &model.Subscription{
			ID: "sub_a", FacilityID: "fac-9", Tier: model.TierVerified, PriceID: "price_v",
			Status: "active", StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		newer := &model.Subscription{
			ID: "sub_b", FacilityID: "fac-9", Tier: model.TierFeatured, PriceID: "price_f",
			Status: "active", StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, s.UpsertSubscription(ctx, older))
		require.NoError(t, s.UpsertSubscription(ctx, newer))

		got, err := s.FacilitySubscription(ctx, "fac-9")
		require.NoError(t, err)
		assert.Equal(t, "sub_b", got.ID)

		newer.Status = "canceled"
		require.NoError(t, s.UpsertSubscription(ctx, newer))
		got, err = s.FacilitySubscription(ctx, "fac-9")
		require.NoError(t, err)
		assert.Equal(t, "sub_a", got.ID)

		_, err = s.FacilitySubscription(ctx, "fac-none")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
