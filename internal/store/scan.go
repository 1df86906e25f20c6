package store

import (
	"time"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// Column order shared by both backends. Nullable columns scan into
// pointers, which pgx and database/sql both leave nil for NULL.
const facilityColumns = `id, jurisdiction, license_number, name, city, county, address, phone, capacity,
	slug, report_url, status, violation_count, grade, severity, summary, summary_validated,
	last_inspection_date, extracted_at, sponsor_tier, onboarding_token, onboarding_completed,
	billing_email, upgrade_notified, website_url, contact_email, facility_description,
	facility_response, created_at, updated_at`

const violationColumns = `id, facility_id, code, description, severity, date_cited, correction_deadline, status`

const reviewColumns = `id, facility_id, facility_name, jurisdiction, locator, stage, reason, attempts,
	resolved, resolved_at, resolved_by, note, created_at`

const subscriptionColumns = `id, facility_id, tier, price_id, customer_email, status, started_at,
	migrated, migrated_at, reminder_sent_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanFacility(row scannable) (*model.Facility, error) {
	var (
		f                      model.Facility
		status, tier           string
		grade, severity, token *string
	)
	err := row.Scan(
		&f.ID, &f.Jurisdiction, &f.LicenseNumber, &f.Name, &f.City, &f.County, &f.Address, &f.Phone, &f.Capacity,
		&f.Slug, &f.ReportURL, &status, &f.ViolationCount, &grade, &severity, &f.Summary, &f.SummaryValidated,
		&f.LastInspectionDate, &f.ExtractedAt, &tier, &token, &f.OnboardingCompleted,
		&f.BillingEmail, &f.UpgradeNotified, &f.WebsiteURL, &f.ContactEmail, &f.Description,
		&f.ResponseText, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Status = model.FacilityStatus(status)
	f.SponsorTier = model.Tier(tier)
	if grade != nil {
		g := model.Grade(*grade)
		f.Grade = &g
	}
	if severity != nil {
		s := model.Severity(*severity)
		f.Severity = &s
	}
	if token != nil {
		f.OnboardingToken = *token
	}
	return &f, nil
}

func scanViolation(row scannable) (*model.Violation, error) {
	var v model.Violation
	var severity, status string
	if err := row.Scan(&v.ID, &v.FacilityID, &v.Code, &v.Description, &severity, &v.DateCited, &v.CorrectionDeadline, &status); err != nil {
		return nil, err
	}
	v.Severity = model.Severity(severity)
	v.Status = model.ViolationStatus(status)
	return &v, nil
}

func scanReview(row scannable) (*model.ReviewEntry, error) {
	var e model.ReviewEntry
	var stage string
	var resolvedBy, note *string
	err := row.Scan(&e.ID, &e.FacilityID, &e.FacilityName, &e.Jurisdiction, &e.Locator, &stage, &e.Reason,
		&e.Attempts, &e.Resolved, &e.ResolvedAt, &resolvedBy, &note, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Stage = model.ReviewStage(stage)
	e.ResolvedBy = deref(resolvedBy)
	e.Note = deref(note)
	return &e, nil
}

func scanSubscription(row scannable) (*model.Subscription, error) {
	var s model.Subscription
	var tier string
	err := row.Scan(&s.ID, &s.FacilityID, &tier, &s.PriceID, &s.CustomerEmail, &s.Status, &s.StartedAt,
		&s.Migrated, &s.MigratedAt, &s.ReminderSentAt)
	if err != nil {
		return nil, err
	}
	s.Tier = model.Tier(tier)
	return &s, nil
}

// text converts an optional enum to a nullable column value.
func text[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// violationRows converts candidate violations into insert rows in
// violationColumns order, assigning fresh ids.
func violationRows(facilityID string, c *model.Candidate, newID func() string) [][]any {
	vs := c.ViolationRows(facilityID)
	rows := make([][]any, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []any{
			newID(), v.FacilityID, v.Code, v.Description, string(v.Severity),
			v.DateCited, v.CorrectionDeadline, string(v.Status),
		})
	}
	return rows
}

func utcNow() time.Time {
	return time.Now().UTC()
}
