// Package store persists facilities, violations, review entries and
// subscription mirrors. PostgresStore is the production backend;
// SQLiteStore backs local runs and tests.
package store

import (
	"context"
	"time"

	"github.com/sells-group/careaudit-cli/internal/db"
	"github.com/sells-group/careaudit-cli/internal/model"
)

// FacilityFilter selects facilities for a batch walk.
type FacilityFilter struct {
	Jurisdiction string
	// Pending limits the walk to facilities that were never extracted or
	// whose summary failed validation.
	Pending bool
	// Sponsored limits the walk to facilities with a paid tier.
	Sponsored bool
}

// ReviewFilter selects manual review entries.
type ReviewFilter struct {
	Jurisdiction    string
	IncludeResolved bool
	Limit           int
}

// Store defines the persistence interface for the pipeline and billing.
type Store interface {
	// Facilities
	FacilityPage(ctx context.Context, filter FacilityFilter, after string, limit int) ([]model.Facility, error)
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error)
	PersistExtraction(ctx context.Context, facilityID string, c *model.Candidate, validated bool) error
	ListViolations(ctx context.Context, facilityID string) ([]model.Violation, error)

	// Sponsorship
	SetSponsorTier(ctx context.Context, facilityID string, tier model.Tier) error
	ActivateSponsorship(ctx context.Context, a Activation) error
	ClearSponsorship(ctx context.Context, facilityID string) error
	SetUpgradeNotified(ctx context.Context, facilityID string, notified bool) error

	// Owner self-service
	FacilityByToken(ctx context.Context, token string) (*model.Facility, error)
	UpdateEnhancements(ctx context.Context, facilityID string, e Enhancements) error

	// Manual review
	AddReviewEntry(ctx context.Context, e *model.ReviewEntry) error
	ListReviewEntries(ctx context.Context, filter ReviewFilter) ([]model.ReviewEntry, error)
	ResolveReviewEntry(ctx context.Context, id, by, note string) error

	// Subscriptions
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
	// FacilitySubscription returns the newest subscription for a facility
	// that is not canceled.
	FacilitySubscription(ctx context.Context, facilityID string) (*model.Subscription, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	MarkMigrated(ctx context.Context, id, priceID string, at time.Time) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Activation is the facility side of a completed checkout.
type Activation struct {
	FacilityID   string
	Tier         model.Tier
	Token        string
	BillingEmail string
}

// Enhancements are the owner-editable listing fields. Nil fields keep their
// stored value. Writing them marks onboarding completed.
type Enhancements struct {
	WebsiteURL   *string
	ContactEmail *string
	Description  *string
	ResponseText *string
}

// Facilities returns a lazy keyset pager over the facilities matching
// filter, ordered by id.
func Facilities(s Store, filter FacilityFilter) *db.Pager[model.Facility] {
	return db.NewPager(
		func(ctx context.Context, after string, limit int) ([]model.Facility, error) {
			return s.FacilityPage(ctx, filter, after, limit)
		},
		func(f model.Facility) string { return f.ID },
		db.PageSize,
	)
}
