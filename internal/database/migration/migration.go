package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                 UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id           UUID        NOT NULL,
  template_id        UUID        NOT NULL,
  current_state      JSONB       NOT NULL DEFAULT '{}'::jsonb,
  schema_fingerprint TEXT        NOT NULL DEFAULT '',
  status             TEXT        NOT NULL CHECK (status IN ('draft', 'completed', 'exported')),
  external_ref       TEXT        NOT NULL DEFAULT '',
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id, created_at);`,
	},
	{
		Name: "create_table_document_versions",
		SQL: `CREATE TABLE IF NOT EXISTS document_versions (
  id             UUID        PRIMARY KEY,
  document_id    UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  version_number INTEGER     NOT NULL CHECK (version_number >= 1),
  payload        JSONB       NOT NULL,
  label          TEXT        NOT NULL DEFAULT '',
  change_type    TEXT        NOT NULL CHECK (change_type IN ('manual', 'auto', 'pre-restore')),
  created_by     TEXT        NOT NULL DEFAULT '',
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_document_versions_number UNIQUE (document_id, version_number)
);`,
	},
	{
		Name: "create_index_document_versions_lookup",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_versions_lookup ON document_versions (document_id, version_number DESC);`,
	},
	{
		Name: "create_table_outbox_events",
		SQL: `CREATE TABLE IF NOT EXISTS outbox_events (
  id              UUID        PRIMARY KEY,
  event_type      TEXT        NOT NULL,
  aggregate_type  TEXT        NOT NULL,
  aggregate_id    UUID        NOT NULL,
  payload         JSONB       NOT NULL,
  status          TEXT        NOT NULL DEFAULT 'pending'
                              CHECK (status IN ('pending', 'processing', 'processed', 'failed')),
  attempts        INTEGER     NOT NULL DEFAULT 0,
  last_error      TEXT        NOT NULL DEFAULT '',
  next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  processed_at    TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_outbox_events_dispatch",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_outbox_events_dispatch ON outbox_events (status, next_attempt_at, created_at);`,
	},
	{
		Name: "create_index_outbox_events_aggregate",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_outbox_events_aggregate ON outbox_events (aggregate_type, aggregate_id, created_at);`,
	},
	{
		Name: "create_table_orders",
		SQL: `CREATE TABLE IF NOT EXISTS orders (
  id              UUID        PRIMARY KEY,
  owner_id        UUID        NOT NULL,
  status          TEXT        NOT NULL CHECK (status IN ('pending', 'paid')),
  payment_ref     TEXT        NOT NULL DEFAULT '',
  payment_method  TEXT        NOT NULL DEFAULT '',
  payment_details JSONB       NOT NULL DEFAULT '{}'::jsonb,
  total_cents     BIGINT      NOT NULL DEFAULT 0 CHECK (total_cents >= 0),
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  paid_at         TIMESTAMPTZ
);`,
	},
	{
		Name: "create_table_order_items",
		SQL: `CREATE TABLE IF NOT EXISTS order_items (
  id          UUID   PRIMARY KEY,
  order_id    UUID   NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
  template_id UUID   NOT NULL,
  title       TEXT   NOT NULL DEFAULT '',
  price_cents BIGINT NOT NULL DEFAULT 0 CHECK (price_cents >= 0)
);`,
	},
}

// EnsureMigrated checks if the outbox_events sentinel table exists and runs
// all migration steps if it doesn't. Steps are idempotent, so a partially
// applied schema is completed rather than corrupted on the next boot.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.outbox_events') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("migration sentinel check failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration",
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("migration step failed",
				zap.String("step", step.Name),
				zap.Error(err),
				zap.Duration("step_elapsed", time.Since(stepStart)),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("migration step applied",
			zap.String("step", step.Name),
			zap.Duration("step_elapsed", time.Since(stepStart)),
		)
	}

	log.Info("migration complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}
