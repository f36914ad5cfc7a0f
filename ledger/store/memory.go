// Package store provides EntryStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/draco/vendor-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.EntryStore and ledger.Directory. Entries are held
// per vendor in ascending (transactionDate, createdAt) order.
type Memory struct {
	mu          sync.RWMutex
	entries     map[ledger.VendorID][]ledger.LedgerEntry
	occurrences map[occurrenceKey]bool
	vendors     map[ledger.VendorID]bool
	customers   map[customerKey]bool
}

type occurrenceKey struct {
	TemplateID ledger.EntryID
	Occurrence string
}

type customerKey struct {
	VendorID   ledger.VendorID
	CustomerID ledger.CustomerID
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[ledger.VendorID][]ledger.LedgerEntry),
		occurrences: make(map[occurrenceKey]bool),
		vendors:     make(map[ledger.VendorID]bool),
		customers:   make(map[customerKey]bool),
	}
}

// AddVendor registers a vendor in the directory.
func (m *Memory) AddVendor(id ledger.VendorID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendors[id] = true
}

// AddCustomer registers a customer under a vendor.
func (m *Memory) AddCustomer(vendorID ledger.VendorID, id ledger.CustomerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customerKey{VendorID: vendorID, CustomerID: id}] = true
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) VendorExists(_ context.Context, id ledger.VendorID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vendors[id], nil
}

func (m *Memory) CustomerExists(_ context.Context, vendorID ledger.VendorID, id ledger.CustomerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.customers[customerKey{VendorID: vendorID, CustomerID: id}], nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// Append validates, resolves references, and inserts in sorted position.
func (m *Memory) Append(_ context.Context, e ledger.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.vendors[e.VendorID] {
		return &ledger.NotFoundError{Kind: "vendor", ID: string(e.VendorID)}
	}
	if e.CustomerID != "" && !m.customers[customerKey{VendorID: e.VendorID, CustomerID: e.CustomerID}] {
		return &ledger.NotFoundError{Kind: "customer", ID: string(e.CustomerID)}
	}

	if e.TemplateID != "" {
		k := occurrenceKey{TemplateID: e.TemplateID, Occurrence: e.OccurrenceDate.String()}
		if m.occurrences[k] {
			return ledger.ErrDuplicateOccurrence
		}
		m.occurrences[k] = true
	}

	list := m.entries[e.VendorID]

	// Binary search for the ascending insertion point.
	i := sort.Search(len(list), func(i int) bool {
		return ascLess(e, list[i])
	})

	list = append(list, ledger.LedgerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	m.entries[e.VendorID] = list
	return nil
}

// ascLess orders entries by (transactionDate, createdAt, id) ascending.
func ascLess(a, b ledger.LedgerEntry) bool {
	if !a.TransactionDate.Equal(b.TransactionDate) {
		return a.TransactionDate.Before(b.TransactionDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (m *Memory) ListByVendor(_ context.Context, vendorID ledger.VendorID, filter ledger.Filter, page ledger.Page) ([]ledger.LedgerEntry, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageDescending(m.entries[vendorID], filter, page)
}

func (m *Memory) ListByCustomer(_ context.Context, vendorID ledger.VendorID, customerID ledger.CustomerID, page ledger.Page) ([]ledger.LedgerEntry, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filter := ledger.Filter{CustomerID: &customerID}
	return m.pageDescending(m.entries[vendorID], filter, page)
}

// pageDescending walks the ascending slice back-to-front, emitting newest
// first, resuming strictly after the cursor position.
func (m *Memory) pageDescending(list []ledger.LedgerEntry, filter ledger.Filter, page ledger.Page) ([]ledger.LedgerEntry, string, error) {
	cursor, err := ledger.DecodeCursor(page.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := page.EffectiveLimit()

	result := make([]ledger.LedgerEntry, 0, limit)
	var next string
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if !filter.Matches(e) {
			continue
		}
		if !cursor.IsZero() && !followsInDescOrder(e, cursor) {
			continue
		}
		if len(result) == limit {
			next = ledger.EntryCursor(result[limit-1]).Encode()
			break
		}
		result = append(result, e)
	}
	return result, next, nil
}

// followsInDescOrder reports whether an entry comes strictly after the
// cursor position in (transactionDate DESC, createdAt DESC, id DESC) order.
func followsInDescOrder(e ledger.LedgerEntry, c ledger.Cursor) bool {
	if !e.TransactionDate.Equal(c.TransactionDate) {
		return e.TransactionDate.Before(c.TransactionDate)
	}
	if !e.CreatedAt.Equal(c.CreatedAt) {
		return e.CreatedAt.Before(c.CreatedAt)
	}
	return e.ID < c.ID
}

func (m *Memory) LoadForSummary(_ context.Context, vendorID ledger.VendorID, filter ledger.Filter) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.LedgerEntry
	for _, e := range m.entries[vendorID] {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) GetEntry(_ context.Context, vendorID ledger.VendorID, id ledger.EntryID) (*ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries[vendorID] {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "entry", ID: string(id)}
}

func (m *Memory) ListTemplates(_ context.Context) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var templates []ledger.LedgerEntry
	for _, list := range m.entries {
		for _, e := range list {
			if e.IsTemplate() {
				templates = append(templates, e)
			}
		}
	}
	// Deterministic order across runs.
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func (m *Memory) HasOccurrence(_ context.Context, templateID ledger.EntryID, occurrence ledger.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.occurrences[occurrenceKey{TemplateID: templateID, Occurrence: occurrence.String()}], nil
}
