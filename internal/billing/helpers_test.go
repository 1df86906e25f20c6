package billing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/careaudit-cli/internal/model"
	notifymocks "github.com/sells-group/careaudit-cli/internal/notify/mocks"
	"github.com/sells-group/careaudit-cli/internal/store"
	stripemocks "github.com/sells-group/careaudit-cli/pkg/stripe/mocks"
)

var testPrices = Prices{Featured: "price_featured", Verified: "price_verified", ResponseOnly: "price_response"}

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type fakePhotos struct {
	mu       sync.Mutex
	prefixes []string
}

func (f *fakePhotos) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	return 3, nil
}

type fixture struct {
	store    store.Store
	stripe   *stripemocks.MockClient
	notifier *notifymocks.MockNotifier
	photos   *fakePhotos
	sync     *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))

	fx := &fixture{
		store:    s,
		stripe:   stripemocks.NewMockClient(t),
		notifier: notifymocks.NewMockNotifier(t),
		photos:   &fakePhotos{},
	}
	fx.sync = New(s, fx.stripe, Options{
		Prices:     testPrices,
		SuccessURL: "https://careaudit.org/for-facilities?success=true",
		CancelURL:  "https://careaudit.org/for-facilities?canceled=true",
		Notifier:   fx.notifier,
		Photos:     fx.photos,
	})
	fx.sync.now = func() time.Time { return testNow }
	fx.sync.newToken = func() string { return "tok-123" }
	return fx
}

// facility inserts a facility and, when count is non-nil, persists an
// extraction with that many violations.
func (fx *fixture) facility(t *testing.T, license string, count *int) *model.Facility {
	t.Helper()
	ctx := context.Background()
	_, err := fx.store.UpsertFacilities(ctx, []model.Facility{{
		Jurisdiction: "FL", LicenseNumber: license, Name: "Facility " + license, City: "Tampa",
		Slug: "fl/tampa/facility-" + license, Status: model.StatusActive,
	}})
	require.NoError(t, err)

	page, err := fx.store.FacilityPage(ctx, store.FacilityFilter{Jurisdiction: "FL"}, "", 100)
	require.NoError(t, err)
	var id string
	for _, f := range page {
		if f.LicenseNumber == license {
			id = f.ID
		}
	}
	require.NotEmpty(t, id)

	if count != nil {
		summary := "Inspectors cited medication storage problems. Staff corrected each violation."
		c := &model.Candidate{TotalViolations: count, Summary: &summary}
		for i := 0; i < *count; i++ {
			c.Violations = append(c.Violations, model.CandidateViolation{Description: "storage", Severity: model.SeverityLow})
		}
		require.NoError(t, fx.store.PersistExtraction(ctx, id, c, true))
	}

	f, err := fx.store.GetFacility(ctx, id)
	require.NoError(t, err)
	return f
}

func intPtr(n int) *int { return &n }

func storeActivation(facilityID string, t model.Tier) store.Activation {
	return store.Activation{FacilityID: facilityID, Tier: t, Token: "tok-old", BillingEmail: "billing@example.com"}
}
