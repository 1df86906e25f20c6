package store

const postgresMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	jurisdiction         TEXT NOT NULL,
	license_number       TEXT NOT NULL,
	name                 TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	county               TEXT NOT NULL DEFAULT '',
	address              TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	capacity             INTEGER,
	slug                 TEXT NOT NULL DEFAULT '',
	report_url           TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'active',
	violation_count      INTEGER,
	grade                TEXT,
	severity             TEXT,
	summary              TEXT,
	summary_validated    BOOLEAN NOT NULL DEFAULT false,
	last_inspection_date DATE,
	extracted_at         TIMESTAMPTZ,
	sponsor_tier         TEXT NOT NULL DEFAULT 'none',
	onboarding_token     TEXT UNIQUE,
	onboarding_completed BOOLEAN NOT NULL DEFAULT false,
	billing_email        TEXT NOT NULL DEFAULT '',
	upgrade_notified     BOOLEAN NOT NULL DEFAULT false,
	website_url          TEXT NOT NULL DEFAULT '',
	contact_email        TEXT NOT NULL DEFAULT '',
	facility_description TEXT NOT NULL DEFAULT '',
	facility_response    TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (jurisdiction, license_number)
);

CREATE INDEX IF NOT EXISTS idx_facilities_pending ON facilities(jurisdiction, id)
	WHERE extracted_at IS NULL OR NOT summary_validated;
CREATE INDEX IF NOT EXISTS idx_facilities_sponsored ON facilities(jurisdiction, id)
	WHERE sponsor_tier <> 'none';

CREATE TABLE IF NOT EXISTS violations (
	id                  TEXT PRIMARY KEY,
	facility_id         TEXT NOT NULL REFERENCES facilities(id),
	code                TEXT,
	description         TEXT NOT NULL,
	severity            TEXT NOT NULL,
	date_cited          DATE,
	correction_deadline DATE,
	status              TEXT NOT NULL DEFAULT 'unknown',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_violations_facility ON violations(facility_id);

CREATE TABLE IF NOT EXISTS manual_review (
	id            TEXT PRIMARY KEY,
	facility_id   TEXT NOT NULL REFERENCES facilities(id),
	facility_name TEXT NOT NULL DEFAULT '',
	jurisdiction  TEXT NOT NULL DEFAULT '',
	locator       TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL,
	reason        TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	resolved      BOOLEAN NOT NULL DEFAULT false,
	resolved_at   TIMESTAMPTZ,
	resolved_by   TEXT,
	note          TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_manual_review_open ON manual_review(jurisdiction, created_at) WHERE NOT resolved;

CREATE TABLE IF NOT EXISTS sponsor_subscriptions (
	id               TEXT PRIMARY KEY,
	facility_id      TEXT NOT NULL,
	tier             TEXT NOT NULL,
	price_id         TEXT NOT NULL DEFAULT '',
	customer_email   TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'active',
	started_at       TIMESTAMPTZ NOT NULL,
	migrated         BOOLEAN NOT NULL DEFAULT false,
	migrated_at      TIMESTAMPTZ,
	reminder_sent_at TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sponsor_subscriptions_facility ON sponsor_subscriptions(facility_id);
`

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id                   TEXT PRIMARY KEY,
	jurisdiction         TEXT NOT NULL,
	license_number       TEXT NOT NULL,
	name                 TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	county               TEXT NOT NULL DEFAULT '',
	address              TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	capacity             INTEGER,
	slug                 TEXT NOT NULL DEFAULT '',
	report_url           TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'active',
	violation_count      INTEGER,
	grade                TEXT,
	severity             TEXT,
	summary              TEXT,
	summary_validated    BOOLEAN NOT NULL DEFAULT 0,
	last_inspection_date DATE,
	extracted_at         DATETIME,
	sponsor_tier         TEXT NOT NULL DEFAULT 'none',
	onboarding_token     TEXT UNIQUE,
	onboarding_completed BOOLEAN NOT NULL DEFAULT 0,
	billing_email        TEXT NOT NULL DEFAULT '',
	upgrade_notified     BOOLEAN NOT NULL DEFAULT 0,
	website_url          TEXT NOT NULL DEFAULT '',
	contact_email        TEXT NOT NULL DEFAULT '',
	facility_description TEXT NOT NULL DEFAULT '',
	facility_response    TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (jurisdiction, license_number)
);

CREATE TABLE IF NOT EXISTS violations (
	id                  TEXT PRIMARY KEY,
	facility_id         TEXT NOT NULL REFERENCES facilities(id),
	code                TEXT,
	description         TEXT NOT NULL,
	severity            TEXT NOT NULL,
	date_cited          DATE,
	correction_deadline DATE,
	status              TEXT NOT NULL DEFAULT 'unknown',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_violations_facility ON violations(facility_id);

CREATE TABLE IF NOT EXISTS manual_review (
	id            TEXT PRIMARY KEY,
	facility_id   TEXT NOT NULL REFERENCES facilities(id),
	facility_name TEXT NOT NULL DEFAULT '',
	jurisdiction  TEXT NOT NULL DEFAULT '',
	locator       TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL,
	reason        TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	resolved      BOOLEAN NOT NULL DEFAULT 0,
	resolved_at   DATETIME,
	resolved_by   TEXT,
	note          TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sponsor_subscriptions (
	id               TEXT PRIMARY KEY,
	facility_id      TEXT NOT NULL,
	tier             TEXT NOT NULL,
	price_id         TEXT NOT NULL DEFAULT '',
	customer_email   TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'active',
	started_at       DATETIME NOT NULL,
	migrated         BOOLEAN NOT NULL DEFAULT 0,
	migrated_at      DATETIME,
	reminder_sent_at DATETIME,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`
