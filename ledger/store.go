/*
store.go - Append-only persistence interface for ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The EntryStore
  is the only component allowed to persist or retrieve raw entries.

APPEND-ONLY CONTRACT:
  The interface enforces append-only semantics by construction:
  - Append(): the ONLY write operation on entries
  - NO Update() or Delete() methods exist, and none may be added

ORDERING:
  History reads return entries newest-first: transaction date descending,
  ties broken by created-at descending. Summary/balance reads use the
  ascending equivalent. Ordering is defined by the data, never by arrival
  order, so concurrent writers need no coordination.

PAGINATION:
  List operations take an opaque cursor and return the cursor for the next
  page. Cursors are restartable: a caller can resume a listing after a
  disconnect without re-reading earlier pages.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - balance.go: Consumes entries loaded here
  - api/generator.go: Uses template queries and occurrence uniqueness
*/
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// FILTER AND PAGINATION
// =============================================================================

// Filter narrows a vendor's history listing. Nil fields match everything.
type Filter struct {
	From          *Date
	To            *Date
	Type          *EntryType
	Category      *Category
	PaymentMethod *PaymentMethod
	CustomerID    *CustomerID
}

// Matches reports whether an entry passes the filter.
func (f Filter) Matches(e LedgerEntry) bool {
	if f.From != nil && e.TransactionDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.TransactionDate.After(*f.To) {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.PaymentMethod != nil && e.PaymentMethod != *f.PaymentMethod {
		return false
	}
	if f.CustomerID != nil && e.CustomerID != *f.CustomerID {
		return false
	}
	return true
}

// Page is a pagination request. Cursor is opaque; empty means first page.
type Page struct {
	Limit  int
	Cursor string
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// EffectiveLimit applies the default for missing limits and clamps
// oversized ones to the maximum.
func (p Page) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		return MaxPageLimit
	}
	return p.Limit
}

// =============================================================================
// CURSOR - Position in the (transactionDate DESC, createdAt DESC, id) order
// =============================================================================

// Cursor marks the last entry of the previous page.
type Cursor struct {
	TransactionDate Date
	CreatedAt       time.Time
	ID              EntryID
}

// Encode renders the cursor as an opaque string.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%s|%s|%s",
		c.TransactionDate.String(),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string. Empty input yields a zero
// cursor (first page).
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 {
		return Cursor{}, ErrInvalidCursor
	}
	date, err := ParseDate(parts[0])
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{TransactionDate: date, CreatedAt: createdAt, ID: EntryID(parts[2])}, nil
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool { return c.ID == "" }

// EntryCursor builds the cursor positioned after the given entry.
func EntryCursor(e LedgerEntry) Cursor {
	return Cursor{TransactionDate: e.TransactionDate, CreatedAt: e.CreatedAt, ID: e.ID}
}

// =============================================================================
// ENTRY STORE - Durable append-only persistence
// =============================================================================

// EntryStore handles persistence of ledger entries, scoped by vendor and
// optionally by customer.
//
// INVARIANTS:
//   - Append-only: no Update, no Delete. Ever.
//   - Append validates the entry and resolves vendor/customer existence.
//   - An appended entry is immediately visible to subsequent reads within
//     the same vendor's ledger.
//   - At most one entry exists per (TemplateID, OccurrenceDate) pair; a
//     second Append for the same pair fails with ErrDuplicateOccurrence.
type EntryStore interface {
	// Append persists a fully validated entry. Fails with ErrValidation if
	// model invariants are violated, ErrNotFound if the vendor (or customer,
	// when set) does not resolve, ErrDuplicateOccurrence on a duplicate
	// materialization back-reference.
	Append(ctx context.Context, e LedgerEntry) error

	// ListByVendor returns one page of the vendor's history, newest first.
	// The returned cursor is empty when no more pages exist.
	ListByVendor(ctx context.Context, vendorID VendorID, filter Filter, page Page) ([]LedgerEntry, string, error)

	// ListByCustomer returns one page of the customer sub-ledger, newest
	// first. Same ordering and cursor semantics as ListByVendor.
	ListByCustomer(ctx context.Context, vendorID VendorID, customerID CustomerID, page Page) ([]LedgerEntry, string, error)

	// LoadForSummary returns ALL entries matching the filter in ascending
	// (transactionDate, createdAt) order, for summary and running-balance
	// computation. Callers bound the scan with the filter's date window.
	LoadForSummary(ctx context.Context, vendorID VendorID, filter Filter) ([]LedgerEntry, error)

	// GetEntry returns one entry, or a NotFoundError.
	GetEntry(ctx context.Context, vendorID VendorID, id EntryID) (*LedgerEntry, error)

	// ListTemplates returns every entry whose recurrence is non-nil,
	// across all vendors. Read by the Recurrence Generator.
	ListTemplates(ctx context.Context) ([]LedgerEntry, error)

	// HasOccurrence reports whether a clone exists for the back-reference.
	HasOccurrence(ctx context.Context, templateID EntryID, occurrence Date) (bool, error)
}

// =============================================================================
// DIRECTORY - Tenant/customer existence resolution
// =============================================================================

// Directory resolves vendor and customer references at write time. Backed
// by the same database in this repo; conceptually an external collaborator.
type Directory interface {
	VendorExists(ctx context.Context, id VendorID) (bool, error)
	CustomerExists(ctx context.Context, vendorID VendorID, id CustomerID) (bool, error)
}
