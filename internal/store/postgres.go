package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/careaudit-cli/internal/db"
	"github.com/sells-group/careaudit-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	newID   func() string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects to the database at connString.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	cfg := db.PoolConfig{MaxConns: 10, MinConns: 2}
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
	}
	pool, err := db.Open(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, newID: newUUID}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, newID: newUUID}
}

func newUUID() string { return uuid.New().String() }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// facilityWhere renders filter plus the keyset cursor. ph renders the
// placeholder for the n-th argument.
func facilityWhere(filter FacilityFilter, after string, ph func(int) string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, ph(len(args))))
	}

	if filter.Jurisdiction != "" {
		add("jurisdiction = %s", strings.ToUpper(filter.Jurisdiction))
	}
	if after != "" {
		add("id > %s", after)
	}
	if filter.Pending {
		clauses = append(clauses, "(extracted_at IS NULL OR NOT summary_validated)")
	}
	if filter.Sponsored {
		clauses = append(clauses, "sponsor_tier <> 'none'")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func (s *PostgresStore) FacilityPage(ctx context.Context, filter FacilityFilter, after string, limit int) ([]model.Facility, error) {
	where, args := facilityWhere(filter, after, pgPlaceholder)
	args = append(args, limit)
	query := `SELECT ` + facilityColumns + ` FROM facilities` + where +
		fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: facility page")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: facility page iterate")
}

func (s *PostgresStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	f, err := scanFacility(s.pool.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "facility %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get facility %s", id)
	}
	return f, nil
}

// UpsertFacilities merges an import batch on (jurisdiction, license_number).
// Only directory columns are written; extraction and sponsorship state on
// existing rows is preserved.
func (s *PostgresStore) UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error) {
	rows := make([][]any, 0, len(facilities))
	for _, f := range facilities {
		rows = append(rows, []any{
			s.newID(), strings.ToUpper(f.Jurisdiction), f.LicenseNumber, f.Name, f.City, f.County,
			f.Address, f.Phone, f.Capacity, f.Slug, f.ReportURL, string(f.Status),
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.Merge{
		Table:   "facilities",
		Columns: importColumns,
		Keys:    []string{"jurisdiction", "license_number"},
		Update:  importUpdateColumns,
		Touch:   "updated_at",
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert facilities")
}

var (
	importColumns = []string{
		"id", "jurisdiction", "license_number", "name", "city", "county",
		"address", "phone", "capacity", "slug", "report_url", "status",
	}
	importUpdateColumns = []string{"name", "city", "county", "address", "phone", "capacity", "report_url", "status"}
)

// PersistExtraction replaces the facility's violations with the candidate's
// and updates derived fields in one transaction. Nil candidate fields keep
// the stored value.
func (s *PostgresStore) PersistExtraction(ctx context.Context, facilityID string, c *model.Candidate, validated bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistErr(facilityID, "begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := utcNow()
	tag, err := tx.Exec(ctx, `UPDATE facilities SET
		violation_count = COALESCE($2, violation_count),
		grade = COALESCE($3, grade),
		severity = COALESCE($4, severity),
		summary = COALESCE($5, summary),
		last_inspection_date = COALESCE($6, last_inspection_date),
		summary_validated = $7,
		extracted_at = $8,
		updated_at = $8
		WHERE id = $1`,
		facilityID, c.TotalViolations, text(c.Grade()), text(c.Severity), c.Summary,
		c.InspectionDate.Ptr(), validated, now,
	)
	if err != nil {
		return persistErr(facilityID, "update facility", err)
	}
	if tag.RowsAffected() == 0 {
		return persistErr(facilityID, "update facility", ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM violations WHERE facility_id = $1`, facilityID); err != nil {
		return persistErr(facilityID, "delete violations", err)
	}

	rows := violationRows(facilityID, c, s.newID)
	if _, err := db.CopyFrom(ctx, tx, "violations", violationColumnList, rows); err != nil {
		return persistErr(facilityID, "insert violations", err)
	}

	return persistErr(facilityID, "commit", tx.Commit(ctx))
}

var violationColumnList = []string{
	"id", "facility_id", "code", "description", "severity", "date_cited", "correction_deadline", "status",
}

func (s *PostgresStore) ListViolations(ctx context.Context, facilityID string) ([]model.Violation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE facility_id = $1 ORDER BY date_cited DESC NULLS LAST, id`,
		facilityID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list violations")
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan violation")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list violations iterate")
}

func (s *PostgresStore) exec(ctx context.Context, op, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", op, id)
	}
	return nil
}

// SetSponsorTier changes the tier and clears the upgrade notice flag so a
// later eligibility transition notifies again.
func (s *PostgresStore) SetSponsorTier(ctx context.Context, facilityID string, tier model.Tier) error {
	return s.exec(ctx, "set sponsor tier", facilityID,
		`UPDATE facilities SET sponsor_tier = $2, upgrade_notified = false, updated_at = $3 WHERE id = $1`,
		facilityID, string(tier), utcNow())
}

func (s *PostgresStore) ActivateSponsorship(ctx context.Context, a Activation) error {
	return s.exec(ctx, "activate sponsorship", a.FacilityID,
		`UPDATE facilities SET sponsor_tier = $2, onboarding_token = $3, onboarding_completed = false,
			billing_email = COALESCE(NULLIF($4, ''), billing_email), upgrade_notified = false, updated_at = $5
		WHERE id = $1`,
		a.FacilityID, string(a.Tier), a.Token, a.BillingEmail, utcNow())
}

// ClearSponsorship rolls a facility back to an unsponsored listing.
// Inspection data and directory fields are untouched.
func (s *PostgresStore) ClearSponsorship(ctx context.Context, facilityID string) error {
	return s.exec(ctx, "clear sponsorship", facilityID,
		`UPDATE facilities SET sponsor_tier = 'none', onboarding_token = NULL, onboarding_completed = false,
			upgrade_notified = false, website_url = '', contact_email = '', facility_description = '',
			facility_response = '', updated_at = $2
		WHERE id = $1`,
		facilityID, utcNow())
}

// FacilityByToken returns the sponsored facility holding an onboarding token.
func (s *PostgresStore) FacilityByToken(ctx context.Context, token string) (*model.Facility, error) {
	if token == "" {
		return nil, eris.Wrap(ErrNotFound, "facility by token")
	}
	f, err := scanFacility(s.pool.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE onboarding_token = $1 AND sponsor_tier <> 'none'`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "facility by token")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: facility by token")
	}
	return f, nil
}

// UpdateEnhancements writes owner-submitted fields. It never touches the tier
// or inspection data.
func (s *PostgresStore) UpdateEnhancements(ctx context.Context, facilityID string, e Enhancements) error {
	return s.exec(ctx, "update enhancements", facilityID,
		`UPDATE facilities SET website_url = COALESCE($2, website_url), contact_email = COALESCE($3, contact_email),
			facility_description = COALESCE($4, facility_description), facility_response = COALESCE($5, facility_response),
			onboarding_completed = true, updated_at = $6
		WHERE id = $1 AND sponsor_tier <> 'none'`,
		facilityID, e.WebsiteURL, e.ContactEmail, e.Description, e.ResponseText, utcNow())
}

func (s *PostgresStore) SetUpgradeNotified(ctx context.Context, facilityID string, notified bool) error {
	return s.exec(ctx, "set upgrade notified", facilityID,
		`UPDATE facilities SET upgrade_notified = $2, updated_at = $3 WHERE id = $1`,
		facilityID, notified, utcNow())
}

func (s *PostgresStore) AddReviewEntry(ctx context.Context, e *model.ReviewEntry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utcNow()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO manual_review (id, facility_id, facility_name, jurisdiction, locator, stage, reason, attempts, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)`,
		e.ID, e.FacilityID, e.FacilityName, e.Jurisdiction, e.Locator, string(e.Stage), e.Reason, e.Attempts, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: add review entry for %s", e.FacilityID)
}

func (s *PostgresStore) ListReviewEntries(ctx context.Context, filter ReviewFilter) ([]model.ReviewEntry, error) {
	query := `SELECT ` + reviewColumns + ` FROM manual_review WHERE true`
	var args []any
	if !filter.IncludeResolved {
		query += ` AND NOT resolved`
	}
	if filter.Jurisdiction != "" {
		args = append(args, strings.ToUpper(filter.Jurisdiction))
		query += fmt.Sprintf(` AND jurisdiction = $%d`, len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review entries")
	}
	defer rows.Close()

	var out []model.ReviewEntry
	for rows.Next() {
		e, err := scanReview(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan review entry")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list review entries iterate")
}

func (s *PostgresStore) ResolveReviewEntry(ctx context.Context, id, by, note string) error {
	return s.exec(ctx, "resolve review entry", id,
		`UPDATE manual_review SET resolved = true, resolved_at = $2, resolved_by = $3, note = $4
		WHERE id = $1 AND NOT resolved`,
		id, utcNow(), by, nullIfEmpty(note))
}

func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sponsor_subscriptions (id, facility_id, tier, price_id, customer_email, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tier = EXCLUDED.tier,
			price_id = EXCLUDED.price_id,
			customer_email = COALESCE(NULLIF(EXCLUDED.customer_email, ''), sponsor_subscriptions.customer_email),
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.FacilityID, string(sub.Tier), sub.PriceID, sub.CustomerEmail, sub.Status, sub.StartedAt, utcNow(),
	)
	return eris.Wrapf(err, "postgres: upsert subscription %s", sub.ID)
}

func (s *PostgresStore) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM sponsor_subscriptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subscription %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get subscription %s", id)
	}
	return sub, nil
}

func (s *PostgresStore) FacilitySubscription(ctx context.Context, facilityID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM sponsor_subscriptions
		WHERE facility_id = $1 AND status <> 'canceled'
		ORDER BY started_at DESC LIMIT 1`, facilityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subscription for facility %s", facilityID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: subscription for facility %s", facilityID)
	}
	return sub, nil
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "mark reminder sent", id,
		`UPDATE sponsor_subscriptions SET reminder_sent_at = $2, updated_at = $2 WHERE id = $1`, id, at)
}

func (s *PostgresStore) MarkMigrated(ctx context.Context, id, priceID string, at time.Time) error {
	return s.exec(ctx, "mark migrated", id,
		`UPDATE sponsor_subscriptions SET migrated = true, migrated_at = $2, price_id = $3, updated_at = $2 WHERE id = $1`,
		id, at, priceID)
}
