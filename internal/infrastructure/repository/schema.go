package repository

import (
	"context"

	"storefront-insights/internal/domain"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		shop_name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		shopify_customer_id TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, shopify_customer_id),
		UNIQUE (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		shopify_product_id TEXT NOT NULL,
		title TEXT NOT NULL,
		vendor TEXT NOT NULL,
		category TEXT,
		price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, shopify_product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		shopify_order_id TEXT NOT NULL,
		name TEXT NOT NULL,
		total_price NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
		ordered_at TIMESTAMPTZ NOT NULL,
		customer_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, shopify_order_id),
		FOREIGN KEY (tenant_id, customer_id) REFERENCES customers (tenant_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_ordered_at_idx ON orders (tenant_id, ordered_at)`,
	`CREATE TABLE IF NOT EXISTS custom_events (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		event_name TEXT NOT NULL,
		event_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS custom_events_tenant_name_idx ON custom_events (tenant_id, event_name)`,
}

// SQLite has no UUID, TIMESTAMPTZ or JSONB types. TIMESTAMP is kept as the
// declared type so the driver decodes those columns into time.Time. Amounts
// are TEXT: a NUMERIC column would store them as REAL.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		shop_name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants (id),
		shopify_customer_id TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, shopify_customer_id),
		UNIQUE (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants (id),
		shopify_product_id TEXT NOT NULL,
		title TEXT NOT NULL,
		vendor TEXT NOT NULL,
		category TEXT,
		price TEXT NOT NULL CHECK (CAST(price AS NUMERIC) >= 0),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, shopify_product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants (id),
		shopify_order_id TEXT NOT NULL,
		name TEXT NOT NULL,
		total_price TEXT NOT NULL CHECK (CAST(total_price AS NUMERIC) >= 0),
		ordered_at TIMESTAMP NOT NULL,
		customer_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, shopify_order_id),
		FOREIGN KEY (tenant_id, customer_id) REFERENCES customers (tenant_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_ordered_at_idx ON orders (tenant_id, ordered_at)`,
	`CREATE TABLE IF NOT EXISTS custom_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants (id),
		event_name TEXT NOT NULL,
		event_data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS custom_events_tenant_name_idx ON custom_events (tenant_id, event_name)`,
}

// Migrate creates the schema if it does not exist yet
func (s *SQLEntityStore) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.dialect == DialectSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error().Err(err).Msg("Failed to apply schema statement")
			return &domain.StorageError{Op: "migrate", Err: err}
		}
	}

	s.logger.Info().Str("dialect", string(s.dialect)).Int("statements", len(statements)).Msg("Schema is up to date")
	return nil
}
