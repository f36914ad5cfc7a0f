package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco/vendor-ledger/ledger"
	"github.com/draco/vendor-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveVendor(ctx, sqlite.Vendor{ID: "vendor-1", Name: "Ravi General Store"}))
	require.NoError(t, store.SaveCustomer(ctx, sqlite.Customer{VendorID: "vendor-1", ID: "cust-1", Name: "Anita"}))
	return store
}

func testEntry(id string, day int, createdAt time.Time) ledger.LedgerEntry {
	return ledger.LedgerEntry{
		ID:              ledger.EntryID(id),
		VendorID:        "vendor-1",
		Type:            ledger.EntryIn,
		Amount:          ledger.NewMoney(250),
		TransactionDate: ledger.NewDate(2024, time.March, day),
		Category:        ledger.CategoryProductSale,
		PaymentMethod:   ledger.PaymentUPI,
		CreatedAt:       createdAt,
	}
}

// =============================================================================
// APPEND + READ-BACK
// =============================================================================

func TestAppend_RoundTripsAllFields(t *testing.T) {
	// GIVEN: A fully populated entry with recurrence and attachments
	// WHEN: Appending and reading it back
	// THEN: Every field survives the round trip

	store := newTestStore(t)
	ctx := context.Background()

	end := ledger.NewDate(2024, time.December, 31)
	createdAt := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	e := testEntry("e1", 10, createdAt)
	e.CustomerID = "cust-1"
	e.Description = "Monthly groceries"
	e.Note = "paid in two installments"
	e.Attachments = []string{"att-1", "att-2"}
	e.Amount = ledger.MustParseMoney("1234.56")
	e.Recurrence = &ledger.Recurrence{
		Pattern:   ledger.RecurMonthly,
		StartDate: ledger.NewDate(2024, time.March, 10),
		EndDate:   &end,
	}

	require.NoError(t, store.Append(ctx, e))

	got, err := store.GetEntry(ctx, "vendor-1", "e1")
	require.NoError(t, err)

	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.CustomerID, got.CustomerID)
	assert.True(t, got.Amount.Equal(ledger.MustParseMoney("1234.56")))
	assert.True(t, got.TransactionDate.Equal(e.TransactionDate))
	assert.Equal(t, e.Category, got.Category)
	assert.Equal(t, e.PaymentMethod, got.PaymentMethod)
	assert.Equal(t, e.Description, got.Description)
	assert.Equal(t, e.Note, got.Note)
	assert.Equal(t, e.Attachments, got.Attachments)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, ledger.RecurMonthly, got.Recurrence.Pattern)
	assert.True(t, got.Recurrence.StartDate.Equal(e.Recurrence.StartDate))
	require.NotNil(t, got.Recurrence.EndDate)
	assert.True(t, got.Recurrence.EndDate.Equal(end))
	assert.True(t, got.CreatedAt.Equal(createdAt))
}

func TestAppend_UnknownVendor_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("e1", 10, time.Now().UTC())
	e.VendorID = "vendor-ghost"
	err := store.Append(ctx, e)

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestAppend_UnknownCustomer_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("e1", 10, time.Now().UTC())
	e.CustomerID = "cust-ghost"
	err := store.Append(ctx, e)

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestAppend_InvalidEntry_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("e1", 10, time.Now().UTC())
	e.Category = ledger.CategorySalary // out-only category on an in entry
	err := store.Append(ctx, e)

	require.Error(t, err)
	assert.True(t, ledger.IsClientError(err))
}

func TestGetEntry_Absent_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEntry(context.Background(), "vendor-1", "ghost")

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// HISTORY ORDERING + PAGINATION
// =============================================================================

func TestListByVendor_NewestFirst_CreatedAtTieBreak(t *testing.T) {
	// GIVEN: Two entries on the same date, one on an earlier date
	// WHEN: Listing history
	// THEN: Date descending, then created-at descending within the date

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, testEntry("old", 5, base)))
	require.NoError(t, store.Append(ctx, testEntry("same-day-early", 20, base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, testEntry("same-day-late", 20, base.Add(2*time.Second))))

	entries, _, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{})

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.EntryID("same-day-late"), entries[0].ID)
	assert.Equal(t, ledger.EntryID("same-day-early"), entries[1].ID)
	assert.Equal(t, ledger.EntryID("old"), entries[2].ID)
}

func TestListByVendor_SameSecondFractionTieBreak(t *testing.T) {
	// GIVEN: Two same-date entries, one created on a whole second and one
	// half a second later
	// WHEN: Listing history and resuming from a one-entry page
	// THEN: The later write sorts first and the cursor resume agrees

	store := newTestStore(t)
	ctx := context.Background()
	whole := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, testEntry("whole-second", 20, whole)))
	require.NoError(t, store.Append(ctx, testEntry("half-second-later", 20, whole.Add(500*time.Millisecond))))

	first, next, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, ledger.EntryID("half-second-later"), first[0].ID)
	require.NotEmpty(t, next)

	rest, _, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{Limit: 1, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ledger.EntryID("whole-second"), rest[0].ID)
}

func TestListByVendor_CursorRestartable(t *testing.T) {
	// GIVEN: 7 entries and a page size of 3
	// WHEN: Reading page 1, then resuming from its cursor in a fresh call
	// THEN: Pages are disjoint and together cover everything exactly once

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		require.NoError(t, store.Append(ctx, testEntry(fmt.Sprintf("e%d", i), i+1, base.Add(time.Duration(i)*time.Second))))
	}

	seen := map[ledger.EntryID]bool{}
	cursor := ""
	for {
		entries, next, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{Limit: 3, Cursor: cursor})
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, seen[e.ID], "entry %s returned twice", e.ID)
			seen[e.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Len(t, seen, 7)
}

func TestListByVendor_InvalidCursor(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.ListByVendor(context.Background(), "vendor-1", ledger.Filter{}, ledger.Page{Cursor: "%%%"})

	assert.ErrorIs(t, err, ledger.ErrInvalidCursor)
}

func TestListByVendor_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	sale := testEntry("sale", 10, base)
	expense := testEntry("expense", 12, base.Add(time.Second))
	expense.Type = ledger.EntryOut
	expense.Category = ledger.CategoryRent
	expense.PaymentMethod = ledger.PaymentBank
	late := testEntry("late", 25, base.Add(2*time.Second))
	require.NoError(t, store.Append(ctx, sale))
	require.NoError(t, store.Append(ctx, expense))
	require.NoError(t, store.Append(ctx, late))

	out := ledger.EntryOut
	byType, _, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{Type: &out}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, ledger.EntryID("expense"), byType[0].ID)

	from := ledger.NewDate(2024, time.March, 11)
	to := ledger.NewDate(2024, time.March, 20)
	byRange, _, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{From: &from, To: &to}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, ledger.EntryID("expense"), byRange[0].ID)

	rent := ledger.CategoryRent
	byCategory, _, err := store.ListByVendor(ctx, "vendor-1", ledger.Filter{Category: &rent}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
}

func TestListByCustomer_OnlyCustomerEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	mine := testEntry("mine", 10, base)
	mine.CustomerID = "cust-1"
	other := testEntry("other", 12, base.Add(time.Second))
	require.NoError(t, store.Append(ctx, mine))
	require.NoError(t, store.Append(ctx, other))

	entries, _, err := store.ListByCustomer(ctx, "vendor-1", "cust-1", ledger.Page{})

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryID("mine"), entries[0].ID)
}

// =============================================================================
// SUMMARY LOADS
// =============================================================================

func TestLoadForSummary_AscendingWithinWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, testEntry("e2", 15, base)))
	require.NoError(t, store.Append(ctx, testEntry("e1", 5, base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, testEntry("e3", 28, base.Add(2*time.Second))))

	from := ledger.NewDate(2024, time.March, 1)
	to := ledger.NewDate(2024, time.March, 20)
	entries, err := store.LoadForSummary(ctx, "vendor-1", ledger.Filter{From: &from, To: &to})

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.EntryID("e1"), entries[0].ID, "ascending order for replay")
	assert.Equal(t, ledger.EntryID("e2"), entries[1].ID)
}

// =============================================================================
// MATERIALIZATION UNIQUENESS
// =============================================================================

func TestAppend_DuplicateOccurrence_Rejected(t *testing.T) {
	// GIVEN: A clone already written for (tmpl-1, 2024-04-01)
	// WHEN: A second generator pass appends the same occurrence
	// THEN: ErrDuplicateOccurrence from the unique index, first clone intact

	store := newTestStore(t)
	ctx := context.Background()
	occ := ledger.NewDate(2024, time.April, 1)

	clone := testEntry("clone-1", 1, time.Now().UTC())
	clone.TransactionDate = occ
	clone.TemplateID = "tmpl-1"
	clone.OccurrenceDate = &occ
	require.NoError(t, store.Append(ctx, clone))

	dup := clone
	dup.ID = "clone-2"
	err := store.Append(ctx, dup)

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrDuplicateOccurrence)

	has, err := store.HasOccurrence(ctx, "tmpl-1", occ)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = store.GetEntry(ctx, "vendor-1", "clone-1")
	assert.NoError(t, err, "original clone must survive the rejected duplicate")
}

func TestHasOccurrence_AbsentPair(t *testing.T) {
	store := newTestStore(t)

	has, err := store.HasOccurrence(context.Background(), "tmpl-1", ledger.NewDate(2024, time.April, 1))

	require.NoError(t, err)
	assert.False(t, has)
}

func TestListTemplates_AcrossVendors(t *testing.T) {
	// GIVEN: Templates under two vendors plus a plain entry
	// WHEN: Listing templates
	// THEN: Both templates and nothing else

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveVendor(ctx, sqlite.Vendor{ID: "vendor-2", Name: "Meera Textiles"}))

	t1 := testEntry("tmpl-1", 1, time.Now().UTC())
	t1.Recurrence = &ledger.Recurrence{Pattern: ledger.RecurMonthly, StartDate: ledger.NewDate(2024, time.March, 1)}
	t2 := testEntry("tmpl-2", 1, time.Now().UTC())
	t2.VendorID = "vendor-2"
	t2.Recurrence = &ledger.Recurrence{Pattern: ledger.RecurWeekly, StartDate: ledger.NewDate(2024, time.March, 4)}
	plain := testEntry("plain", 2, time.Now().UTC())

	require.NoError(t, store.Append(ctx, t1))
	require.NoError(t, store.Append(ctx, t2))
	require.NoError(t, store.Append(ctx, plain))

	templates, err := store.ListTemplates(ctx)

	require.NoError(t, err)
	require.Len(t, templates, 2)
	for _, tmpl := range templates {
		assert.True(t, tmpl.IsTemplate())
	}
}

// =============================================================================
// VENDOR / CUSTOMER REGISTRY
// =============================================================================

func TestVendorRegistry_SaveGetList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.GetVendor(ctx, "vendor-1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Ravi General Store", v.Name)

	missing, err := store.GetVendor(ctx, "vendor-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	vendors, err := store.ListVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestCustomerRegistry_ScopedToVendor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CustomerExists(ctx, "vendor-1", "cust-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CustomerExists(ctx, "vendor-ghost", "cust-1")
	require.NoError(t, err)
	assert.False(t, ok, "customer ids are scoped per vendor")
}
