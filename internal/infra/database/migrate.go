package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS contacts (
	id             UUID PRIMARY KEY,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	email          TEXT,
	phone_raw      TEXT,
	phone_e164     TEXT,
	salesperson_id TEXT,
	source         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS contacts_email_key ON contacts (email) WHERE email IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS contacts_phone_key ON contacts (phone_e164) WHERE email IS NULL AND phone_e164 IS NOT NULL;

CREATE TABLE IF NOT EXISTS properties (
	id            UUID PRIMARY KEY,
	contact_id    UUID NOT NULL REFERENCES contacts (id),
	address_line1 TEXT NOT NULL,
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL,
	gated         BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (address_line1, postal_code, state)
);
CREATE INDEX IF NOT EXISTS properties_contact_idx ON properties (contact_id, created_at DESC);

CREATE TABLE IF NOT EXISTS leads (
	id           UUID PRIMARY KEY,
	contact_id   UUID NOT NULL REFERENCES contacts (id),
	property_id  UUID NOT NULL REFERENCES properties (id),
	quote_id     TEXT,
	services     JSONB NOT NULL DEFAULT '[]',
	notes        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	source       TEXT NOT NULL DEFAULT '',
	utm_source   TEXT NOT NULL DEFAULT '',
	utm_medium   TEXT NOT NULL DEFAULT '',
	utm_campaign TEXT NOT NULL DEFAULT '',
	referrer     TEXT NOT NULL DEFAULT '',
	landing_page TEXT NOT NULL DEFAULT '',
	form_payload JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_contact_idx ON leads (contact_id);

CREATE TABLE IF NOT EXISTS pipeline_states (
	contact_id UUID PRIMARY KEY REFERENCES contacts (id),
	stage      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id           BIGSERIAL PRIMARY KEY,
	event_id     UUID NOT NULL UNIQUE,
	type         TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS outbox_events_unpublished_idx ON outbox_events (id) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS instant_quotes (
	id                 UUID PRIMARY KEY,
	intake_id          TEXT NOT NULL,
	price_low          INTEGER NOT NULL,
	price_high         INTEGER NOT NULL,
	load_fraction      DOUBLE PRECISION NOT NULL,
	display_tier_label TEXT NOT NULL,
	reason_summary     TEXT NOT NULL,
	needs_in_person    BOOLEAN NOT NULL,
	min_units          INTEGER NOT NULL,
	max_units          INTEGER NOT NULL,
	min_high_units     INTEGER NOT NULL DEFAULT 0,
	source             TEXT NOT NULL,
	discount_percent   INTEGER NOT NULL DEFAULT 0,
	discounted_low     INTEGER NOT NULL,
	discounted_high    INTEGER NOT NULL,
	intake             JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS contacts (
	id             TEXT PRIMARY KEY,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	email          TEXT,
	phone_raw      TEXT,
	phone_e164     TEXT,
	salesperson_id TEXT,
	source         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS contacts_email_key ON contacts (email) WHERE email IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS contacts_phone_key ON contacts (phone_e164) WHERE email IS NULL AND phone_e164 IS NOT NULL;

CREATE TABLE IF NOT EXISTS properties (
	id            TEXT PRIMARY KEY,
	contact_id    TEXT NOT NULL REFERENCES contacts (id),
	address_line1 TEXT NOT NULL,
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL,
	gated         BOOLEAN NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	UNIQUE (address_line1, postal_code, state)
);
CREATE INDEX IF NOT EXISTS properties_contact_idx ON properties (contact_id, created_at DESC);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	contact_id   TEXT NOT NULL REFERENCES contacts (id),
	property_id  TEXT NOT NULL REFERENCES properties (id),
	quote_id     TEXT,
	services     TEXT NOT NULL DEFAULT '[]',
	notes        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	source       TEXT NOT NULL DEFAULT '',
	utm_source   TEXT NOT NULL DEFAULT '',
	utm_medium   TEXT NOT NULL DEFAULT '',
	utm_campaign TEXT NOT NULL DEFAULT '',
	referrer     TEXT NOT NULL DEFAULT '',
	landing_page TEXT NOT NULL DEFAULT '',
	form_payload TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_contact_idx ON leads (contact_id);

CREATE TABLE IF NOT EXISTS pipeline_states (
	contact_id TEXT PRIMARY KEY REFERENCES contacts (id),
	stage      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL UNIQUE,
	type         TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload      TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	published_at TIMESTAMP,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS outbox_events_unpublished_idx ON outbox_events (id) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS instant_quotes (
	id                 TEXT PRIMARY KEY,
	intake_id          TEXT NOT NULL,
	price_low          INTEGER NOT NULL,
	price_high         INTEGER NOT NULL,
	load_fraction      REAL NOT NULL,
	display_tier_label TEXT NOT NULL,
	reason_summary     TEXT NOT NULL,
	needs_in_person    BOOLEAN NOT NULL,
	min_units          INTEGER NOT NULL,
	max_units          INTEGER NOT NULL,
	min_high_units     INTEGER NOT NULL DEFAULT 0,
	source             TEXT NOT NULL,
	discount_percent   INTEGER NOT NULL DEFAULT 0,
	discounted_low     INTEGER NOT NULL,
	discounted_high    INTEGER NOT NULL,
	intake             TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL
);
`

// Migrate creates the schema for the given driver. Statements are
// idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	schema := postgresSchema
	if driver == DriverSQLite {
		schema = sqliteSchema
	}

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "database: migrate %q", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
