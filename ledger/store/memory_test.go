package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco/vendor-ledger/ledger"
	"github.com/draco/vendor-ledger/ledger/store"
)

func newSeededMemory() *store.Memory {
	m := store.NewMemory()
	m.AddVendor("vendor-1")
	m.AddCustomer("vendor-1", "cust-1")
	return m
}

func saleOn(id string, day int, createdAt time.Time) ledger.LedgerEntry {
	return ledger.LedgerEntry{
		ID:              ledger.EntryID(id),
		VendorID:        "vendor-1",
		Type:            ledger.EntryIn,
		Amount:          ledger.NewMoney(100),
		TransactionDate: ledger.NewDate(2024, time.March, day),
		Category:        ledger.CategoryProductSale,
		PaymentMethod:   ledger.PaymentCash,
		CreatedAt:       createdAt,
	}
}

func TestMemoryAppend_UnknownVendor_NotFound(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	err := m.Append(ctx, saleOn("e1", 1, time.Now()))

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemoryAppend_UnknownCustomer_NotFound(t *testing.T) {
	m := newSeededMemory()
	ctx := context.Background()

	e := saleOn("e1", 1, time.Now())
	e.CustomerID = "cust-ghost"
	err := m.Append(ctx, e)

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemoryListByVendor_NewestFirst(t *testing.T) {
	// GIVEN: Entries appended out of date order
	// WHEN: Listing the vendor history
	// THEN: Newest transaction date first, arrival order irrelevant

	m := newSeededMemory()
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.Append(ctx, saleOn("e2", 15, base.Add(time.Second))))
	require.NoError(t, m.Append(ctx, saleOn("e3", 20, base.Add(2*time.Second))))
	require.NoError(t, m.Append(ctx, saleOn("e1", 10, base)))

	entries, next, err := m.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{})

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.EntryID("e3"), entries[0].ID)
	assert.Equal(t, ledger.EntryID("e2"), entries[1].ID)
	assert.Equal(t, ledger.EntryID("e1"), entries[2].ID)
	assert.Empty(t, next, "single page, no cursor")
}

func TestMemoryListByVendor_CursorWalksWholeHistory(t *testing.T) {
	// GIVEN: 10 entries and a page size of 3
	// WHEN: Following cursors to exhaustion
	// THEN: Every entry appears exactly once, in descending order

	m := newSeededMemory()
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Append(ctx, saleOn(fmt.Sprintf("e%02d", i), i+1, base.Add(time.Duration(i)*time.Second))))
	}

	var seen []ledger.EntryID
	cursor := ""
	pages := 0
	for {
		entries, next, err := m.ListByVendor(ctx, "vendor-1", ledger.Filter{}, ledger.Page{Limit: 3, Cursor: cursor})
		require.NoError(t, err)
		for _, e := range entries {
			seen = append(seen, e.ID)
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	require.Len(t, seen, 10)
	assert.Equal(t, 4, pages)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, string(seen[i]), string(seen[i-1]), "descending id order for same-structured entries")
	}
}

func TestMemoryListByVendor_InvalidCursor(t *testing.T) {
	m := newSeededMemory()

	_, _, err := m.ListByVendor(context.Background(), "vendor-1", ledger.Filter{}, ledger.Page{Cursor: "!!not-base64!!"})

	assert.ErrorIs(t, err, ledger.ErrInvalidCursor)
}

func TestMemoryListByVendor_Filtered(t *testing.T) {
	m := newSeededMemory()
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	sale := saleOn("e1", 10, base)
	expense := ledger.LedgerEntry{
		ID: "e2", VendorID: "vendor-1", Type: ledger.EntryOut,
		Amount: ledger.NewMoney(50), TransactionDate: ledger.NewDate(2024, time.March, 12),
		Category: ledger.CategoryExpense, PaymentMethod: ledger.PaymentBank,
		CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, m.Append(ctx, sale))
	require.NoError(t, m.Append(ctx, expense))

	out := ledger.EntryOut
	entries, _, err := m.ListByVendor(ctx, "vendor-1", ledger.Filter{Type: &out}, ledger.Page{})

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryID("e2"), entries[0].ID)
}

func TestMemoryDuplicateOccurrence_Rejected(t *testing.T) {
	// GIVEN: A materialized clone for (tmpl-1, 2024-04-01)
	// WHEN: Appending a second clone for the same pair
	// THEN: ErrDuplicateOccurrence

	m := newSeededMemory()
	ctx := context.Background()
	occ := ledger.NewDate(2024, time.April, 1)

	clone := saleOn("c1", 1, time.Now())
	clone.TransactionDate = occ
	clone.TemplateID = "tmpl-1"
	clone.OccurrenceDate = &occ
	require.NoError(t, m.Append(ctx, clone))

	dup := clone
	dup.ID = "c2"
	err := m.Append(ctx, dup)

	assert.ErrorIs(t, err, ledger.ErrDuplicateOccurrence)

	has, err := m.HasOccurrence(ctx, "tmpl-1", occ)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMemoryListTemplates_OnlyTemplates(t *testing.T) {
	m := newSeededMemory()
	ctx := context.Background()

	plain := saleOn("e1", 5, time.Now())
	tmpl := saleOn("tmpl-1", 1, time.Now())
	tmpl.Recurrence = &ledger.Recurrence{Pattern: ledger.RecurMonthly, StartDate: ledger.NewDate(2024, time.March, 1)}
	require.NoError(t, m.Append(ctx, plain))
	require.NoError(t, m.Append(ctx, tmpl))

	templates, err := m.ListTemplates(ctx)

	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, ledger.EntryID("tmpl-1"), templates[0].ID)
}

func TestMemoryGetEntry_NotFound(t *testing.T) {
	m := newSeededMemory()

	_, err := m.GetEntry(context.Background(), "vendor-1", "ghost")

	assert.True(t, ledger.IsNotFound(err))
}
