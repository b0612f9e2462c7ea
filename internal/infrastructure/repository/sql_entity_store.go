package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and the database/sql driver name
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect validates a configured driver name
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(name))) {
	case DialectPostgres:
		return DialectPostgres, nil
	case DialectSQLite:
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// SQLEntityStore implements EntityStore on top of database/sql
type SQLEntityStore struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger
}

var _ ports.EntityStore = (*SQLEntityStore)(nil)

// Open connects to the database and verifies the connection
func Open(ctx context.Context, dialect Dialect, dsn string, logger zerolog.Logger) (*SQLEntityStore, error) {
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLEntityStore(db, dialect, logger), nil
}

// NewSQLEntityStore wraps an existing connection pool
func NewSQLEntityStore(db *sql.DB, dialect Dialect, logger zerolog.Logger) *SQLEntityStore {
	return &SQLEntityStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// Close releases the connection pool
func (s *SQLEntityStore) Close() error {
	return s.db.Close()
}

// sqliteDSN adds the connection options the store relies on: time values
// written in a sortable layout and enforced foreign keys.
func sqliteDSN(dsn string) string {
	var opts []string
	if !strings.Contains(dsn, "_time_format=") {
		opts = append(opts, "_time_format=sqlite")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		opts = append(opts, "_pragma=foreign_keys(1)")
	}
	if len(opts) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(opts, "&")
}

// rebind rewrites ? placeholders into $n for Postgres
func (s *SQLEntityStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLEntityStore) storageError(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("Entity store operation failed")
	return &domain.StorageError{Op: op, Err: err}
}

func now() time.Time {
	return time.Now().UTC()
}

// Tenant operations

// UpsertTenant returns the tenant for a shop, creating it on first sight
func (s *SQLEntityStore) UpsertTenant(ctx context.Context, shopName string) (*domain.Tenant, error) {
	query := s.rebind(`
		INSERT INTO tenants (id, shop_name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (shop_name) DO NOTHING
	`)
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), shopName, now()); err != nil {
		return nil, s.storageError("upsert tenant", err)
	}

	tenant, err := s.FindTenantByShop(ctx, shopName)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, s.storageError("upsert tenant", fmt.Errorf("tenant %s missing after insert", shopName))
	}
	return tenant, nil
}

// FindTenantByShop retrieves a tenant by shop domain
func (s *SQLEntityStore) FindTenantByShop(ctx context.Context, shopName string) (*domain.Tenant, error) {
	query := s.rebind(`SELECT id, shop_name, created_at FROM tenants WHERE shop_name = ?`)

	var t domain.Tenant
	err := s.db.QueryRowContext(ctx, query, shopName).Scan(&t.ID, &t.ShopName, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("find tenant", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// Customer operations

const customerColumns = `id, shopify_customer_id, first_name, last_name, email, tenant_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.ShopifyCustomerID, &c.FirstName, &c.LastName, &c.Email, &c.TenantID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// UpsertCustomer inserts a customer or refreshes its name and email
func (s *SQLEntityStore) UpsertCustomer(ctx context.Context, tenantID, externalID string, fields domain.CustomerFields) (*domain.Customer, error) {
	query := s.rebind(`
		INSERT INTO customers (id, tenant_id, shopify_customer_id, first_name, last_name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, shopify_customer_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`)
	ts := now()
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), tenantID, externalID,
		fields.FirstName, fields.LastName, fields.Email,
		ts, ts,
	)
	if err != nil {
		return nil, s.storageError("upsert customer", err)
	}

	customer, err := s.FindCustomerByExternalID(ctx, tenantID, externalID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, s.storageError("upsert customer", fmt.Errorf("customer %s missing after upsert", externalID))
	}
	return customer, nil
}

// FindCustomerByExternalID resolves a customer within a tenant
func (s *SQLEntityStore) FindCustomerByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Customer, error) {
	query := s.rebind(`SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = ? AND shopify_customer_id = ?`)

	customer, err := scanCustomer(s.db.QueryRowContext(ctx, query, tenantID, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("find customer", err)
	}
	return customer, nil
}

// ListCustomersByIDs loads the given customers of a tenant
func (s *SQLEntityStore) ListCustomersByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := s.rebind(`SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = ? AND id IN (` + placeholders + `)`)

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageError("list customers", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, s.storageError("list customers", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError("list customers", err)
	}
	return customers, nil
}

// CountCustomers counts the customers of a tenant
func (s *SQLEntityStore) CountCustomers(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "count customers", `SELECT COUNT(*) FROM customers WHERE tenant_id = ?`, tenantID)
}

func (s *SQLEntityStore) count(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&n); err != nil {
		return 0, s.storageError(op, err)
	}
	return n, nil
}

// Product operations

const productColumns = `id, shopify_product_id, title, vendor, category, price, tenant_id, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.ShopifyProductID, &p.Title, &p.Vendor, &p.Category, &p.Price, &p.TenantID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// UpsertProduct inserts a product or refreshes its catalog fields
func (s *SQLEntityStore) UpsertProduct(ctx context.Context, tenantID, externalID string, fields domain.ProductFields) (*domain.Product, error) {
	query := s.rebind(`
		INSERT INTO products (id, tenant_id, shopify_product_id, title, vendor, category, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, shopify_product_id) DO UPDATE SET
			title = excluded.title,
			vendor = excluded.vendor,
			category = excluded.category,
			price = excluded.price,
			updated_at = excluded.updated_at
	`)
	ts := now()
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), tenantID, externalID,
		fields.Title, fields.Vendor, fields.Category, fields.Price,
		ts, ts,
	)
	if err != nil {
		return nil, s.storageError("upsert product", err)
	}

	lookup := s.rebind(`SELECT ` + productColumns + ` FROM products WHERE tenant_id = ? AND shopify_product_id = ?`)
	product, err := scanProduct(s.db.QueryRowContext(ctx, lookup, tenantID, externalID))
	if err != nil {
		return nil, s.storageError("upsert product", err)
	}
	return product, nil
}

// ListProducts returns every product of a tenant
func (s *SQLEntityStore) ListProducts(ctx context.Context, tenantID string) ([]*domain.Product, error) {
	query := s.rebind(`SELECT ` + productColumns + ` FROM products WHERE tenant_id = ? ORDER BY created_at, id`)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, s.storageError("list products", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, s.storageError("list products", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError("list products", err)
	}
	return products, nil
}

// Order operations

const orderColumns = `id, shopify_order_id, name, total_price, ordered_at, customer_id, tenant_id, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ShopifyOrderID, &o.Name, &o.TotalPrice, &o.OrderedAt, &o.CustomerID, &o.TenantID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.OrderedAt = o.OrderedAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

// UpsertOrder inserts an order or refreshes its totals. customerID is the
// internal id of a customer of the same tenant.
func (s *SQLEntityStore) UpsertOrder(ctx context.Context, tenantID, externalID, customerID string, fields domain.OrderFields) (*domain.Order, error) {
	query := s.rebind(`
		INSERT INTO orders (id, tenant_id, shopify_order_id, name, total_price, ordered_at, customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, shopify_order_id) DO UPDATE SET
			name = excluded.name,
			total_price = excluded.total_price,
			ordered_at = excluded.ordered_at,
			customer_id = excluded.customer_id,
			updated_at = excluded.updated_at
	`)
	ts := now()
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), tenantID, externalID,
		fields.Name, fields.TotalPrice, fields.OrderedAt.UTC(), customerID,
		ts, ts,
	)
	if err != nil {
		return nil, s.storageError("upsert order", err)
	}

	lookup := s.rebind(`SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = ? AND shopify_order_id = ?`)
	order, err := scanOrder(s.db.QueryRowContext(ctx, lookup, tenantID, externalID))
	if err != nil {
		return nil, s.storageError("upsert order", err)
	}
	return order, nil
}

// CountOrders counts the orders of a tenant
func (s *SQLEntityStore) CountOrders(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "count orders", `SELECT COUNT(*) FROM orders WHERE tenant_id = ?`, tenantID)
}

// SumOrderRevenue sums order totals; zero orders sum to zero
func (s *SQLEntityStore) SumOrderRevenue(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	if s.dialect == DialectSQLite {
		spend, err := s.spendInMemory(ctx, "sum revenue", tenantID)
		if err != nil {
			return decimal.Zero, err
		}
		total := decimal.Zero
		for _, cs := range spend {
			total = total.Add(cs.TotalSpent)
		}
		return total, nil
	}

	query := s.rebind(`SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE tenant_id = ?`)

	var total decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&total); err != nil {
		return decimal.Zero, s.storageError("sum revenue", err)
	}
	return total, nil
}

// SpendByCustomer groups orders by customer, highest spend first
func (s *SQLEntityStore) SpendByCustomer(ctx context.Context, tenantID string, limit int) ([]domain.CustomerSpend, error) {
	if s.dialect == DialectSQLite {
		spend, err := s.spendInMemory(ctx, "spend by customer", tenantID)
		if err != nil {
			return nil, err
		}
		if len(spend) > limit {
			spend = spend[:limit]
		}
		return spend, nil
	}

	query := s.rebind(`
		SELECT customer_id, COALESCE(SUM(total_price), 0) AS total_spent, COUNT(*) AS order_count
		FROM orders
		WHERE tenant_id = ?
		GROUP BY customer_id
		ORDER BY total_spent DESC, customer_id ASC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, s.storageError("spend by customer", err)
	}
	defer rows.Close()

	var out []domain.CustomerSpend
	for rows.Next() {
		var cs domain.CustomerSpend
		if err := rows.Scan(&cs.CustomerID, &cs.TotalSpent, &cs.OrderCount); err != nil {
			return nil, s.storageError("spend by customer", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError("spend by customer", err)
	}
	return out, nil
}

// spendInMemory aggregates order totals per customer with decimal
// arithmetic. SQLite's SUM works in floating point.
func (s *SQLEntityStore) spendInMemory(ctx context.Context, op, tenantID string) ([]domain.CustomerSpend, error) {
	query := s.rebind(`SELECT customer_id, total_price FROM orders WHERE tenant_id = ?`)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, s.storageError(op, err)
	}
	defer rows.Close()

	index := make(map[string]int)
	spend := []domain.CustomerSpend{}
	for rows.Next() {
		var customerID string
		var amount decimal.Decimal
		if err := rows.Scan(&customerID, &amount); err != nil {
			return nil, s.storageError(op, err)
		}
		i, ok := index[customerID]
		if !ok {
			i = len(spend)
			index[customerID] = i
			spend = append(spend, domain.CustomerSpend{CustomerID: customerID, TotalSpent: decimal.Zero})
		}
		spend[i].TotalSpent = spend[i].TotalSpent.Add(amount)
		spend[i].OrderCount++
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError(op, err)
	}

	sort.Slice(spend, func(i, j int) bool {
		if c := spend[i].TotalSpent.Cmp(spend[j].TotalSpent); c != 0 {
			return c > 0
		}
		return spend[i].CustomerID < spend[j].CustomerID
	})
	return spend, nil
}

// ListOrdersBetween returns orders placed within [start, end], newest first
func (s *SQLEntityStore) ListOrdersBetween(ctx context.Context, tenantID string, start, end time.Time) ([]*domain.Order, error) {
	query := s.rebind(`
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = ? AND ordered_at >= ? AND ordered_at <= ?
		ORDER BY ordered_at DESC, id
	`)

	rows, err := s.db.QueryContext(ctx, query, tenantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, s.storageError("list orders", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, s.storageError("list orders", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError("list orders", err)
	}
	return orders, nil
}

// Event operations

// AppendEvent stores one webhook notification. Events are never updated.
func (s *SQLEntityStore) AppendEvent(ctx context.Context, tenantID, eventName string, payload json.RawMessage) (*domain.CustomEvent, error) {
	event := &domain.CustomEvent{
		ID:        uuid.NewString(),
		EventName: eventName,
		EventData: payload,
		TenantID:  tenantID,
		CreatedAt: now(),
	}

	query := s.rebind(`
		INSERT INTO custom_events (id, tenant_id, event_name, event_data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	// Sent as text: lib/pq encodes []byte as bytea, which jsonb rejects.
	_, err := s.db.ExecContext(ctx, query, event.ID, tenantID, eventName, string(payload), event.CreatedAt)
	if err != nil {
		return nil, s.storageError("append event", err)
	}
	return event, nil
}

// CountEvents counts a tenant's events with the given name
func (s *SQLEntityStore) CountEvents(ctx context.Context, tenantID, eventName string) (int64, error) {
	return s.count(ctx, "count events", `SELECT COUNT(*) FROM custom_events WHERE tenant_id = ? AND event_name = ?`, tenantID, eventName)
}
