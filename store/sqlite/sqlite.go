/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.EntryStore and ledger.Directory using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the entries table
  - No DELETE statements on the entries table
  - Corrections are new entries of the opposite or adjusting direction

KEY TABLES:
  vendors:    Tenant records
  customers:  Per-vendor customer records (weak references from entries)
  entries:    Immutable ledger of all money movements

INDEXES:
  - idx_entries_vendor_date:          History listing and summaries (hot path)
  - idx_entries_vendor_customer_date: Customer sub-ledger listing
  - idx_entries_occurrence (UNIQUE):  One clone per (template, occurrence).
    This is the materialization idempotence guarantee - correct even under
    process crashes and retries, with no explicit locking.
  - idx_entries_templates:            Recurrence Generator template scan

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL mode so
  readers don't block each other.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/draco/vendor-ledger/ledger"
)

// Store implements ledger.EntryStore and ledger.Directory using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Vendors (tenants)
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	-- Customers (per vendor; entries hold only weak references)
	CREATE TABLE IF NOT EXISTS customers (
		vendor_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (vendor_id, id)
	);

	-- Entries (append-only ledger; no UPDATE or DELETE, ever)
	CREATE TABLE IF NOT EXISTS entries (
		vendor_id TEXT NOT NULL,
		id TEXT NOT NULL,
		customer_id TEXT,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		category TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		description TEXT,
		note TEXT,
		attachments_json TEXT,
		recurring_pattern TEXT,
		recurring_start TEXT,
		recurring_end TEXT,
		template_id TEXT,
		occurrence_date TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (vendor_id, id)
	);

	-- History listing and summaries (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_vendor_date
		ON entries(vendor_id, transaction_date DESC, created_at DESC);

	-- Customer sub-ledger listing
	CREATE INDEX IF NOT EXISTS idx_entries_vendor_customer_date
		ON entries(vendor_id, customer_id, transaction_date DESC)
		WHERE customer_id IS NOT NULL;

	-- CRITICAL: one materialized clone per (template, occurrence date).
	-- Re-running the generator after a crash or retry cannot double-write.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_occurrence
		ON entries(template_id, occurrence_date)
		WHERE template_id IS NOT NULL;

	-- Recurrence Generator template scan
	CREATE INDEX IF NOT EXISTS idx_entries_templates
		ON entries(vendor_id, id)
		WHERE recurring_pattern IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (ledger.EntryStore interface)
// =============================================================================

const entryColumns = `vendor_id, id, customer_id, entry_type, amount, transaction_date,
	category, payment_method, description, note, attachments_json,
	recurring_pattern, recurring_start, recurring_end,
	template_id, occurrence_date, created_at`

// createdAtLayout is fixed-width so that text comparison in SQL matches
// time order. RFC3339Nano drops trailing fractional zeros, and a
// whole-second value ("...00Z") would then sort after "...00.5Z" because
// 'Z' > '.'.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// Append validates the entry, resolves its references, and inserts it.
func (s *Store) Append(ctx context.Context, e ledger.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.vendorExistsLocked(ctx, e.VendorID)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.NotFoundError{Kind: "vendor", ID: string(e.VendorID)}
	}
	if e.CustomerID != "" {
		ok, err := s.customerExistsLocked(ctx, e.VendorID, e.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "customer", ID: string(e.CustomerID)}
		}
	}

	attachmentsJSON, _ := json.Marshal(e.Attachments)

	var recurPattern, recurStart, recurEnd sql.NullString
	if e.Recurrence != nil {
		recurPattern = sql.NullString{String: string(e.Recurrence.Pattern), Valid: true}
		recurStart = sql.NullString{String: e.Recurrence.StartDate.String(), Valid: true}
		if e.Recurrence.EndDate != nil {
			recurEnd = sql.NullString{String: e.Recurrence.EndDate.String(), Valid: true}
		}
	}

	var occurrence sql.NullString
	if e.OccurrenceDate != nil {
		occurrence = sql.NullString{String: e.OccurrenceDate.String(), Valid: true}
	}

	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		e.VendorID,
		e.ID,
		nullString(string(e.CustomerID)),
		e.Type,
		e.Amount.String(),
		e.TransactionDate.String(),
		e.Category,
		e.PaymentMethod,
		e.Description,
		e.Note,
		string(attachmentsJSON),
		recurPattern,
		recurStart,
		recurEnd,
		nullString(string(e.TemplateID)),
		occurrence,
		e.CreatedAt.UTC().Format(createdAtLayout),
	)

	if err != nil {
		if isOccurrenceConstraintError(err) {
			return ledger.ErrDuplicateOccurrence
		}
		if isTransientError(err) {
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	return nil
}

// ListByVendor returns one page of history, newest first, resuming after
// the page cursor.
func (s *Store) ListByVendor(ctx context.Context, vendorID ledger.VendorID, filter ledger.Filter, page ledger.Page) ([]ledger.LedgerEntry, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, err := ledger.DecodeCursor(page.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := page.EffectiveLimit()

	where := []string{"vendor_id = ?"}
	args := []any{vendorID}
	where, args = appendFilter(where, args, filter)

	if !cursor.IsZero() {
		// Keyset pagination on the DESC ordering.
		where = append(where, `(transaction_date < ?
			OR (transaction_date = ? AND created_at < ?)
			OR (transaction_date = ? AND created_at = ? AND id < ?))`)
		date := cursor.TransactionDate.String()
		createdAt := cursor.CreatedAt.UTC().Format(createdAtLayout)
		args = append(args, date, date, createdAt, date, createdAt, cursor.ID)
	}

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY transaction_date DESC, created_at DESC, id DESC
		LIMIT ?
	`
	args = append(args, limit+1)

	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(entries) > limit {
		entries = entries[:limit]
		next = ledger.EntryCursor(entries[limit-1]).Encode()
	}
	return entries, next, nil
}

// ListByCustomer returns one page of the customer sub-ledger, newest first.
func (s *Store) ListByCustomer(ctx context.Context, vendorID ledger.VendorID, customerID ledger.CustomerID, page ledger.Page) ([]ledger.LedgerEntry, string, error) {
	return s.ListByVendor(ctx, vendorID, ledger.Filter{CustomerID: &customerID}, page)
}

// LoadForSummary returns all matching entries ascending.
func (s *Store) LoadForSummary(ctx context.Context, vendorID ledger.VendorID, filter ledger.Filter) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"vendor_id = ?"}
	args := []any{vendorID}
	where, args = appendFilter(where, args, filter)

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY transaction_date ASC, created_at ASC, id ASC
	`
	return s.queryEntries(ctx, query, args...)
}

// GetEntry returns one entry by ID.
func (s *Store) GetEntry(ctx context.Context, vendorID ledger.VendorID, id ledger.EntryID) (*ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + entryColumns + ` FROM entries WHERE vendor_id = ? AND id = ?`
	entries, err := s.queryEntries(ctx, query, vendorID, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return &entries[0], nil
}

// ListTemplates returns every recurrence template across all vendors.
func (s *Store) ListTemplates(ctx context.Context) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE recurring_pattern IS NOT NULL
		ORDER BY vendor_id ASC, id ASC
	`
	return s.queryEntries(ctx, query)
}

// HasOccurrence checks for an existing materialized clone.
func (s *Store) HasOccurrence(ctx context.Context, templateID ledger.EntryID, occurrence ledger.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE template_id = ? AND occurrence_date = ?",
		templateID, occurrence.String(),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func appendFilter(where []string, args []any, f ledger.Filter) ([]string, []any) {
	if f.From != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != nil {
		where = append(where, "entry_type = ?")
		args = append(args, *f.Type)
	}
	if f.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *f.Category)
	}
	if f.PaymentMethod != nil {
		where = append(where, "payment_method = ?")
		args = append(args, *f.PaymentMethod)
	}
	if f.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	return where, args
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isTransientError(err) {
			return nil, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.LedgerEntry, error) {
	var (
		e               ledger.LedgerEntry
		customerID      sql.NullString
		amount          string
		transactionDate string
		description     sql.NullString
		note            sql.NullString
		attachmentsJSON sql.NullString
		recurPattern    sql.NullString
		recurStart      sql.NullString
		recurEnd        sql.NullString
		templateID      sql.NullString
		occurrence      sql.NullString
		createdAt       string
	)

	err := rows.Scan(
		&e.VendorID, &e.ID, &customerID, &e.Type, &amount, &transactionDate,
		&e.Category, &e.PaymentMethod, &description, &note, &attachmentsJSON,
		&recurPattern, &recurStart, &recurEnd,
		&templateID, &occurrence, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.CustomerID = ledger.CustomerID(customerID.String)
	e.Amount, err = ledger.NewMoneyFromString(amount)
	if err != nil {
		return e, fmt.Errorf("corrupt amount on entry %s: %w", e.ID, err)
	}
	e.TransactionDate, _ = ledger.ParseDate(transactionDate)
	e.Description = description.String
	e.Note = note.String
	e.TemplateID = ledger.EntryID(templateID.String)
	e.CreatedAt, _ = time.Parse(createdAtLayout, createdAt)

	if attachmentsJSON.Valid && attachmentsJSON.String != "" {
		json.Unmarshal([]byte(attachmentsJSON.String), &e.Attachments)
	}

	if recurPattern.Valid {
		rec := &ledger.Recurrence{Pattern: ledger.RecurrencePattern(recurPattern.String)}
		rec.StartDate, _ = ledger.ParseDate(recurStart.String)
		if recurEnd.Valid {
			end, _ := ledger.ParseDate(recurEnd.String)
			rec.EndDate = &end
		}
		e.Recurrence = rec
	}

	if occurrence.Valid {
		occ, _ := ledger.ParseDate(occurrence.String)
		e.OccurrenceDate = &occ
	}

	return e, nil
}

// =============================================================================
// DIRECTORY (ledger.Directory interface)
// =============================================================================

func (s *Store) VendorExists(ctx context.Context, id ledger.VendorID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vendorExistsLocked(ctx, id)
}

func (s *Store) vendorExistsLocked(ctx context.Context, id ledger.VendorID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vendors WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (s *Store) CustomerExists(ctx context.Context, vendorID ledger.VendorID, id ledger.CustomerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerExistsLocked(ctx, vendorID, id)
}

func (s *Store) customerExistsLocked(ctx context.Context, vendorID ledger.VendorID, id ledger.CustomerID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM customers WHERE vendor_id = ? AND id = ?", vendorID, id).Scan(&count)
	return count > 0, err
}

// =============================================================================
// VENDOR STORE
// =============================================================================

// Vendor represents a tenant record.
type Vendor struct {
	ID        ledger.VendorID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// SaveVendor inserts or updates a vendor record.
func (s *Store) SaveVendor(ctx context.Context, v Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO vendors (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
	`
	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.Name, v.Phone, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetVendor retrieves a vendor by ID. Returns nil when absent.
func (s *Store) GetVendor(ctx context.Context, id ledger.VendorID) (*Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v Vendor
	var phone sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, created_at FROM vendors WHERE id = ?", id,
	).Scan(&v.ID, &v.Name, &phone, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.Phone = phone.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

// ListVendors returns all vendors.
func (s *Store) ListVendors(ctx context.Context) ([]Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone, created_at FROM vendors ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		var phone sql.NullString
		var createdAt string
		if err := rows.Scan(&v.ID, &v.Name, &phone, &createdAt); err != nil {
			return nil, err
		}
		v.Phone = phone.String
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

// Customer represents a per-vendor customer record.
type Customer struct {
	VendorID  ledger.VendorID
	ID        ledger.CustomerID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// SaveCustomer inserts or updates a customer record.
func (s *Store) SaveCustomer(ctx context.Context, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO customers (vendor_id, id, name, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vendor_id, id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
	`
	_, err := s.db.ExecContext(ctx, query,
		c.VendorID, c.ID, c.Name, c.Phone, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetCustomer retrieves a customer by ID. Returns nil when absent.
func (s *Store) GetCustomer(ctx context.Context, vendorID ledger.VendorID, id ledger.CustomerID) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Customer
	var phone sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT vendor_id, id, name, phone, created_at FROM customers WHERE vendor_id = ? AND id = ?",
		vendorID, id,
	).Scan(&c.VendorID, &c.ID, &c.Name, &phone, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Phone = phone.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListCustomers returns all customers for a vendor.
func (s *Store) ListCustomers(ctx context.Context, vendorID ledger.VendorID) ([]Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT vendor_id, id, name, phone, created_at FROM customers WHERE vendor_id = ? ORDER BY name",
		vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		var phone sql.NullString
		var createdAt string
		if err := rows.Scan(&c.VendorID, &c.ID, &c.Name, &phone, &createdAt); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isOccurrenceConstraintError(err error) bool {
	// SQLite reports "UNIQUE constraint failed: entries.template_id, entries.occurrence_date".
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "template_id")
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
