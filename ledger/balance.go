/*
balance.go - Balance and summary derivation from the entry log

PURPOSE:
  Derives running balances and period summaries from a set of entries.
  There is no separately maintained mutable balance field - balance is
  always computed by replaying entries, so it can never drift from the
  ledger (the classic "stored balance disagrees with history" bug class
  is structurally impossible).

DETERMINISM:
  All functions here are pure: same entries in, byte-identical output out,
  across calls and process restarts. Ordering is imposed here at read time
  by (transactionDate, createdAt), never by arrival order.

NUMERIC SEMANTICS:
  All arithmetic is decimal-exact. Repeated summation over large histories
  must not introduce cent-level drift, so no float64 appears anywhere in
  these paths.

SEE ALSO:
  - types.go: Money and LedgerSummary
  - store.go: LoadForSummary supplies ascending entry sets
*/
package ledger

import "sort"

// =============================================================================
// SUMMARY - Single-pass period accumulation
// =============================================================================

// Summarize accumulates a LedgerSummary over entries whose transaction date
// falls in [periodStart, periodEnd]. An empty entry set yields a zero-valued
// summary, not an error. Recurrence templates never contribute: the template
// only generates, and its start-date occurrence is materialized as a clone,
// so counting the template too would double the first occurrence.
func Summarize(entries []LedgerEntry, periodStart, periodEnd Date) LedgerSummary {
	s := LedgerSummary{
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		TotalIn:         ZeroMoney(),
		TotalOut:        ZeroMoney(),
		NetBalance:      ZeroMoney(),
		ByCategory:      make(map[Category]Money),
		ByPaymentMethod: make(map[PaymentMethod]Money),
	}

	for _, e := range entries {
		if e.IsTemplate() {
			continue
		}
		if e.TransactionDate.Before(periodStart) || e.TransactionDate.After(periodEnd) {
			continue
		}
		switch e.Type {
		case EntryIn:
			s.TotalIn = s.TotalIn.Add(e.Amount)
		case EntryOut:
			s.TotalOut = s.TotalOut.Add(e.Amount)
		}
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		s.ByPaymentMethod[e.PaymentMethod] = s.ByPaymentMethod[e.PaymentMethod].Add(e.Amount)
	}

	s.NetBalance = s.TotalIn.Sub(s.TotalOut)
	return s
}

// =============================================================================
// RUNNING BALANCE
// =============================================================================

// BalancePoint is the cumulative net balance immediately after one entry.
type BalancePoint struct {
	Date    Date
	Balance Money
}

// RunningBalance replays entries ascending by transaction date, ties broken
// by created-at ascending, so generated and manual entries interleave
// deterministically. Returns one point per live entry; templates are skipped
// for the same reason Summarize skips them.
func RunningBalance(entries []LedgerEntry) []BalancePoint {
	sorted := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsTemplate() {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TransactionDate.Equal(sorted[j].TransactionDate) {
			return sorted[i].TransactionDate.Before(sorted[j].TransactionDate)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	points := make([]BalancePoint, 0, len(sorted))
	balance := ZeroMoney()
	for _, e := range sorted {
		balance = balance.Add(e.Signed())
		points = append(points, BalancePoint{Date: e.TransactionDate, Balance: balance})
	}
	return points
}

// CustomerBalance is the final running balance restricted to one customer's
// entries.
//
// SIGN CONVENTION: positive means the customer is a net payer to the vendor
// (money flowed in against this customer); negative means the vendor owes
// the customer.
func CustomerBalance(entries []LedgerEntry, customerID CustomerID) Money {
	balance := ZeroMoney()
	for _, e := range entries {
		if e.CustomerID != customerID || e.IsTemplate() {
			continue
		}
		balance = balance.Add(e.Signed())
	}
	return balance
}
