package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	newID func() string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serialises writers; the pipeline is sequential.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, newID: newUUID}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePlaceholder(int) string { return "?" }

func (s *SQLiteStore) FacilityPage(ctx context.Context, filter FacilityFilter, after string, limit int) ([]model.Facility, error) {
	where, args := facilityWhere(filter, after, sqlitePlaceholder)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities`+where+` ORDER BY id LIMIT ?`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: facility page")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: facility page iterate")
}

func (s *SQLiteStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	f, err := scanFacility(s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "facility %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get facility %s", id)
	}
	return f, nil
}

func (s *SQLiteStore) UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error) {
	if len(facilities) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert facilities: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO facilities
		(id, jurisdiction, license_number, name, city, county, address, phone, capacity, slug, report_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (jurisdiction, license_number) DO UPDATE SET
			name = excluded.name, city = excluded.city, county = excluded.county, address = excluded.address,
			phone = excluded.phone, capacity = excluded.capacity, report_url = excluded.report_url,
			status = excluded.status, updated_at = excluded.updated_at
		WHERE (name, city, county, address, phone, capacity, report_url, status)
			IS NOT (excluded.name, excluded.city, excluded.county, excluded.address,
				excluded.phone, excluded.capacity, excluded.report_url, excluded.status)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert facilities: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := utcNow()
	var n int64
	for _, f := range facilities {
		res, err := stmt.ExecContext(ctx,
			s.newID(), strings.ToUpper(f.Jurisdiction), f.LicenseNumber, f.Name, f.City, f.County,
			f.Address, f.Phone, f.Capacity, f.Slug, f.ReportURL, string(f.Status), now, now)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert facility %s", f.LicenseNumber)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: upsert facilities: commit")
}

func (s *SQLiteStore) PersistExtraction(ctx context.Context, facilityID string, c *model.Candidate, validated bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(facilityID, "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := utcNow()
	res, err := tx.ExecContext(ctx, `UPDATE facilities SET
		violation_count = COALESCE(?, violation_count),
		grade = COALESCE(?, grade),
		severity = COALESCE(?, severity),
		summary = COALESCE(?, summary),
		last_inspection_date = COALESCE(?, last_inspection_date),
		summary_validated = ?,
		extracted_at = ?,
		updated_at = ?
		WHERE id = ?`,
		c.TotalViolations, text(c.Grade()), text(c.Severity), c.Summary, c.InspectionDate.Ptr(),
		validated, now, now, facilityID,
	)
	if err != nil {
		return persistErr(facilityID, "update facility", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistErr(facilityID, "update facility", ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM violations WHERE facility_id = ?`, facilityID); err != nil {
		return persistErr(facilityID, "delete violations", err)
	}

	for _, row := range violationRows(facilityID, c, s.newID) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO violations (`+violationColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append(row, now)...); err != nil {
			return persistErr(facilityID, "insert violations", err)
		}
	}

	return persistErr(facilityID, "commit", tx.Commit())
}

func (s *SQLiteStore) ListViolations(ctx context.Context, facilityID string) ([]model.Violation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE facility_id = ? ORDER BY date_cited IS NULL, date_cited DESC, id`,
		facilityID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list violations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan violation")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list violations iterate")
}

func (s *SQLiteStore) exec(ctx context.Context, op, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s", op, id)
	}
	return checkRowsAffected(res, op, id)
}

func (s *SQLiteStore) SetSponsorTier(ctx context.Context, facilityID string, tier model.Tier) error {
	return s.exec(ctx, "set sponsor tier", facilityID,
		`UPDATE facilities SET sponsor_tier = ?, upgrade_notified = 0, updated_at = ? WHERE id = ?`,
		string(tier), utcNow(), facilityID)
}

func (s *SQLiteStore) ActivateSponsorship(ctx context.Context, a Activation) error {
	return s.exec(ctx, "activate sponsorship", a.FacilityID,
		`UPDATE facilities SET sponsor_tier = ?, onboarding_token = ?, onboarding_completed = 0,
			billing_email = COALESCE(NULLIF(?, ''), billing_email), upgrade_notified = 0, updated_at = ?
		WHERE id = ?`,
		string(a.Tier), a.Token, a.BillingEmail, utcNow(), a.FacilityID)
}

func (s *SQLiteStore) ClearSponsorship(ctx context.Context, facilityID string) error {
	return s.exec(ctx, "clear sponsorship", facilityID,
		`UPDATE facilities SET sponsor_tier = 'none', onboarding_token = NULL, onboarding_completed = 0,
			upgrade_notified = 0, website_url = '', contact_email = '', facility_description = '',
			facility_response = '', updated_at = ?
		WHERE id = ?`,
		utcNow(), facilityID)
}

func (s *SQLiteStore) FacilityByToken(ctx context.Context, token string) (*model.Facility, error) {
	if token == "" {
		return nil, eris.Wrap(ErrNotFound, "facility by token")
	}
	f, err := scanFacility(s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE onboarding_token = ? AND sponsor_tier <> 'none'`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "facility by token")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: facility by token")
	}
	return f, nil
}

func (s *SQLiteStore) UpdateEnhancements(ctx context.Context, facilityID string, e Enhancements) error {
	return s.exec(ctx, "update enhancements", facilityID,
		`UPDATE facilities SET website_url = COALESCE(?, website_url), contact_email = COALESCE(?, contact_email),
			facility_description = COALESCE(?, facility_description), facility_response = COALESCE(?, facility_response),
			onboarding_completed = 1, updated_at = ?
		WHERE id = ? AND sponsor_tier <> 'none'`,
		e.WebsiteURL, e.ContactEmail, e.Description, e.ResponseText, utcNow(), facilityID)
}

func (s *SQLiteStore) SetUpgradeNotified(ctx context.Context, facilityID string, notified bool) error {
	return s.exec(ctx, "set upgrade notified", facilityID,
		`UPDATE facilities SET upgrade_notified = ?, updated_at = ? WHERE id = ?`,
		notified, utcNow(), facilityID)
}

func (s *SQLiteStore) AddReviewEntry(ctx context.Context, e *model.ReviewEntry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utcNow()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manual_review (id, facility_id, facility_name, jurisdiction, locator, stage, reason, attempts, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		e.ID, e.FacilityID, e.FacilityName, e.Jurisdiction, e.Locator, string(e.Stage), e.Reason, e.Attempts, e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: add review entry for %s", e.FacilityID)
}

func (s *SQLiteStore) ListReviewEntries(ctx context.Context, filter ReviewFilter) ([]model.ReviewEntry, error) {
	query := `SELECT ` + reviewColumns + ` FROM manual_review WHERE 1=1`
	var args []any
	if !filter.IncludeResolved {
		query += ` AND NOT resolved`
	}
	if filter.Jurisdiction != "" {
		query += ` AND jurisdiction = ?`
		args = append(args, strings.ToUpper(filter.Jurisdiction))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review entries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReviewEntry
	for rows.Next() {
		e, err := scanReview(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review entry")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list review entries iterate")
}

func (s *SQLiteStore) ResolveReviewEntry(ctx context.Context, id, by, note string) error {
	return s.exec(ctx, "resolve review entry", id,
		`UPDATE manual_review SET resolved = 1, resolved_at = ?, resolved_by = ?, note = ?
		WHERE id = ? AND NOT resolved`,
		utcNow(), by, nullIfEmpty(note), id)
}

func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sponsor_subscriptions (id, facility_id, tier, price_id, customer_email, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tier = excluded.tier,
			price_id = excluded.price_id,
			customer_email = COALESCE(NULLIF(excluded.customer_email, ''), sponsor_subscriptions.customer_email),
			status = excluded.status,
			updated_at = excluded.updated_at`,
		sub.ID, sub.FacilityID, string(sub.Tier), sub.PriceID, sub.CustomerEmail, sub.Status, sub.StartedAt.UTC(), utcNow(),
	)
	return eris.Wrapf(err, "sqlite: upsert subscription %s", sub.ID)
}

func (s *SQLiteStore) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM sponsor_subscriptions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subscription %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get subscription %s", id)
	}
	return sub, nil
}

func (s *SQLiteStore) FacilitySubscription(ctx context.Context, facilityID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM sponsor_subscriptions
		WHERE facility_id = ? AND status <> 'canceled'
		ORDER BY started_at DESC LIMIT 1`, facilityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subscription for facility %s", facilityID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: subscription for facility %s", facilityID)
	}
	return sub, nil
}

func (s *SQLiteStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "mark reminder sent", id,
		`UPDATE sponsor_subscriptions SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`, at.UTC(), at.UTC(), id)
}

func (s *SQLiteStore) MarkMigrated(ctx context.Context, id, priceID string, at time.Time) error {
	return s.exec(ctx, "mark migrated", id,
		`UPDATE sponsor_subscriptions SET migrated = 1, migrated_at = ?, price_id = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), priceID, at.UTC(), id)
}

func checkRowsAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", op, id)
	}
	return nil
}
