/*
Package ledger provides the core vendor ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for a multi-tenant,
  append-only financial ledger. Every money movement a vendor records (a
  sale, an expense, a salary payment) becomes one immutable LedgerEntry,
  and every balance or summary is derived by replaying entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An exact decimal monetary quantity (never floating binary)
  - LedgerEntry: One immutable record of a single money movement
  - EntryType/Category: Direction and closed per-direction category sets
  - Recurrence: Schedule attached to a template entry
  - LedgerSummary: Derived period totals (never persisted as truth)

DESIGN PRINCIPLES:
  1. Immutability: Entries are never updated or deleted, only appended
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Type Safety: Strong typing for vendor/customer/entry identifiers
  4. Derivation: Balances are always recomputed from the entry log

USAGE:
  entry := ledger.LedgerEntry{
      VendorID:        "vendor-1",
      Type:            ledger.EntryIn,
      Amount:          ledger.NewMoney(5000),
      TransactionDate: ledger.NewDate(2024, time.March, 10),
      Category:        ledger.CategoryProductSale,
      PaymentMethod:   ledger.PaymentUPI,
  }

SEE ALSO:
  - entry.go: Validation and materialization rules
  - balance.go: Summary and running-balance derivation
  - store.go: Append-only persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact single-currency monetary quantity
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustParseMoney panics on a malformed amount. Use it only for literals
// and for values already validated on the write path.
func MustParseMoney(s string) Money {
	m, err := NewMoneyFromString(s)
	if err != nil {
		panic("ledger: invalid money literal " + s + ": " + err.Error())
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money        { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money        { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money               { return Money{Value: m.Value.Neg()} }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) String() string           { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VendorID string
type CustomerID string
type EntryID string

// =============================================================================
// DATE - Day-granularity time point (transaction dates are calendar days)
// =============================================================================

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }
func (d Date) IsZero() bool              { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.normalize().AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.normalize().AddDate(n, 0, 0)} }

// AddMonthsClamped advances n months, clamping to the last day of the target
// month instead of overflowing (Jan 31 +1 month = Feb 28/29, not Mar 2/3).
func (d Date) AddMonthsClamped(n int) Date {
	t := d.normalize()
	year, month := t.Year(), int(t.Month())+n
	firstOfMonth := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return Date{Time: time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// ENTRY TYPE - Direction of money flow from the vendor's perspective
// =============================================================================

type EntryType string

const (
	EntryIn  EntryType = "in"
	EntryOut EntryType = "out"
)

func (t EntryType) Valid() bool { return t == EntryIn || t == EntryOut }

// =============================================================================
// CATEGORY - Closed per-direction sets
// =============================================================================

// Category direction is enforced at construction: an "in" entry can never
// carry an out-only category. See Category.ValidFor and entry.go.
type Category string

const (
	// Money-in categories
	CategoryProductSale  Category = "product_sale"
	CategoryService      Category = "service"
	CategoryLoanReceived Category = "loan_received"
	CategoryAdvance      Category = "advance"
	CategorySubscription Category = "subscription"

	// Money-out categories
	CategoryExpense   Category = "expense"
	CategoryPurchase  Category = "purchase"
	CategoryRefund    Category = "refund"
	CategoryLoanGiven Category = "loan_given"
	CategorySalary    Category = "salary"
	CategoryRent      Category = "rent"
	CategoryUtility   Category = "utility"

	// Valid for both directions
	CategoryOther Category = "other"
)

var inCategories = map[Category]bool{
	CategoryProductSale:  true,
	CategoryService:      true,
	CategoryLoanReceived: true,
	CategoryAdvance:      true,
	CategorySubscription: true,
	CategoryOther:        true,
}

var outCategories = map[Category]bool{
	CategoryExpense:   true,
	CategoryPurchase:  true,
	CategoryRefund:    true,
	CategoryLoanGiven: true,
	CategorySalary:    true,
	CategoryRent:      true,
	CategoryUtility:   true,
	CategoryOther:     true,
}

// ValidFor reports whether the category belongs to the enumerated set for
// the given entry direction.
func (c Category) ValidFor(t EntryType) bool {
	switch t {
	case EntryIn:
		return inCategories[c]
	case EntryOut:
		return outCategories[c]
	default:
		return false
	}
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentUPI  PaymentMethod = "upi"
	PaymentBank PaymentMethod = "bank"
	PaymentCard PaymentMethod = "card"
)

var paymentMethods = map[PaymentMethod]bool{
	PaymentCash: true,
	PaymentUPI:  true,
	PaymentBank: true,
	PaymentCard: true,
}

func (p PaymentMethod) Valid() bool { return paymentMethods[p] }

// =============================================================================
// RECURRENCE - Schedule attached to a template entry
// =============================================================================

type RecurrencePattern string

const (
	RecurDaily     RecurrencePattern = "daily"
	RecurWeekly    RecurrencePattern = "weekly"
	RecurMonthly   RecurrencePattern = "monthly"
	RecurQuarterly RecurrencePattern = "quarterly"
	RecurYearly    RecurrencePattern = "yearly"
)

var recurrencePatterns = map[RecurrencePattern]bool{
	RecurDaily:     true,
	RecurWeekly:    true,
	RecurMonthly:   true,
	RecurQuarterly: true,
	RecurYearly:    true,
}

func (p RecurrencePattern) Valid() bool { return recurrencePatterns[p] }

// Recurrence marks an entry as a template. The Recurrence Generator clones
// the template forward, one plain entry per due occurrence. Clones always
// carry a nil Recurrence so a clone can never itself generate.
type Recurrence struct {
	Pattern   RecurrencePattern
	StartDate Date
	EndDate   *Date // nil = open-ended
}

// =============================================================================
// LEDGER ENTRY - One immutable money movement
// =============================================================================

// LedgerEntry is append-only: once persisted it is never updated or deleted.
// Corrections are new entries of the opposite or adjusting direction.
type LedgerEntry struct {
	ID         EntryID
	VendorID   VendorID
	CustomerID CustomerID // optional; weak reference to the customer sub-ledger

	Type            EntryType
	Amount          Money // always positive; direction lives in Type
	TransactionDate Date  // the date the event is attributed to
	Category        Category
	PaymentMethod   PaymentMethod

	Description string
	Note        string   // vendor-private
	Attachments []string // opaque references owned by the upload subsystem

	Recurrence *Recurrence // non-nil = this entry is a recurrence template

	// Back-reference set on materialized clones only. The store enforces
	// uniqueness on (TemplateID, OccurrenceDate) so a re-run can never
	// double-materialize the same occurrence.
	TemplateID     EntryID
	OccurrenceDate *Date

	CreatedAt time.Time // server-assigned, set once
}

// IsTemplate reports whether this entry is a recurrence template.
func (e LedgerEntry) IsTemplate() bool { return e.Recurrence != nil }

// Signed returns the amount with direction applied: +Amount for in,
// -Amount for out.
func (e LedgerEntry) Signed() Money {
	if e.Type == EntryOut {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// LEDGER SUMMARY - Derived period totals
// =============================================================================

// LedgerSummary is always recomputable from entries; it carries no identity
// and is never the source of truth.
type LedgerSummary struct {
	PeriodStart Date
	PeriodEnd   Date

	TotalIn    Money
	TotalOut   Money
	NetBalance Money // TotalIn - TotalOut

	ByCategory      map[Category]Money
	ByPaymentMethod map[PaymentMethod]Money
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies "now" for CreatedAt stamping and recurrence due-date
// evaluation. Injectable for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
