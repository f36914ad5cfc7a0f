/*
generator.go - Recurring entry materialization

PURPOSE:
  Periodically scans recurring templates and appends concrete clone entries
  for every occurrence date that has come due. Clones are ordinary ledger
  entries; once written they participate in history, summaries and balances
  like any manual entry.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Computes due occurrence dates from the template's own schedule, anchored
    at its start date, so missed runs are backfilled on the next pass
  - Idempotent: the store enforces at most one clone per
    (templateID, occurrenceDate), so re-running a pass is harmless
  - Per-template failure isolation: one failing template never blocks the
    rest of the scan

CONFIGURATION:
  - CheckInterval: How often to scan (default: 1 hour)
  - Enabled: Whether the generator is active (default: true)

USAGE:
  gen := NewRecurrenceGenerator(store, ledger.SystemClock{})
  gen.Start()
  // ... later
  gen.Stop()

SEE ALSO:
  - ledger/recurrence.go: Occurrence date arithmetic
  - ledger/entry.go: Template -> clone materialization
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draco/vendor-ledger/ledger"
)

// RecurrenceGenerator materializes due occurrences of recurring templates.
type RecurrenceGenerator struct {
	Store         ledger.EntryStore
	Clock         ledger.Clock
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRecurrenceGenerator creates a new generator.
func NewRecurrenceGenerator(store ledger.EntryStore, clock ledger.Clock) *RecurrenceGenerator {
	return &RecurrenceGenerator{
		Store:         store,
		Clock:         clock,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the generator.
func (g *RecurrenceGenerator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.Enabled {
		log.Println("[Generator] Disabled, not starting")
		return
	}

	g.ticker = time.NewTicker(g.CheckInterval)
	g.wg.Add(1)

	go g.run()

	log.Printf("[Generator] Started with check interval: %v", g.CheckInterval)
}

// Stop stops the generator.
func (g *RecurrenceGenerator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ticker != nil {
		g.ticker.Stop()
		close(g.stop)
		g.wg.Wait()
		log.Println("[Generator] Stopped")
	}
}

func (g *RecurrenceGenerator) run() {
	defer g.wg.Done()

	// Run immediately on start
	g.materializeDue()

	for {
		select {
		case <-g.ticker.C:
			g.materializeDue()
		case <-g.stop:
			return
		}
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (g *RecurrenceGenerator) RunNow() {
	g.materializeDue()
}

func (g *RecurrenceGenerator) materializeDue() {
	ctx := context.Background()
	now := g.Clock.Now()
	today := ledger.DateOf(now)

	templates, err := g.Store.ListTemplates(ctx)
	if err != nil {
		log.Printf("[Generator] Error listing templates: %v", err)
		return
	}

	createdCount := 0
	skippedCount := 0

	for _, tmpl := range templates {
		created, skipped, err := g.materializeTemplate(ctx, tmpl, today, now)
		if err != nil {
			log.Printf("[Generator] Error materializing template %s: %v", tmpl.ID, err)
			continue
		}
		createdCount += created
		skippedCount += skipped
	}

	if createdCount > 0 || skippedCount > 0 {
		log.Printf("[Generator] Completed: %d created, %d skipped (already materialized)", createdCount, skippedCount)
	}
}

// materializeTemplate appends one clone per due occurrence of a single
// template. Occurrences already present are counted as skipped.
func (g *RecurrenceGenerator) materializeTemplate(ctx context.Context, tmpl ledger.LedgerEntry, today ledger.Date, now time.Time) (created, skipped int, err error) {
	if tmpl.Recurrence == nil {
		return 0, 0, nil
	}

	for _, occ := range tmpl.Recurrence.Occurrences(today) {
		exists, err := g.Store.HasOccurrence(ctx, tmpl.ID, occ)
		if err != nil {
			return created, skipped, &ledger.MaterializationError{TemplateID: tmpl.ID, Occurrence: occ, Err: err}
		}
		if exists {
			skipped++
			continue
		}

		clone := tmpl.Materialize(ledger.EntryID(uuid.NewString()), occ, now)
		if err := g.Store.Append(ctx, clone); err != nil {
			// A concurrent pass may have written the same occurrence between
			// the existence check and the append. That is the outcome we
			// wanted, so treat it as skipped.
			if errors.Is(err, ledger.ErrDuplicateOccurrence) {
				skipped++
				continue
			}
			return created, skipped, &ledger.MaterializationError{TemplateID: tmpl.ID, Occurrence: occ, Err: err}
		}
		created++
	}

	return created, skipped, nil
}
