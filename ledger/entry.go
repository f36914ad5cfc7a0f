/*
entry.go - Entry validation and materialization

PURPOSE:
  Enforces the model invariants at construction time, before anything
  reaches the store:
  - amount is strictly positive (direction lives in Type, never in sign)
  - category belongs to the enumerated set for the entry's direction
  - payment method and recurrence pattern are drawn from their closed sets
  - materialized clones never carry a recurrence of their own

CORRECTIONS:
  There is no update path. A wrong entry is corrected by appending a new
  entry of the opposite or adjusting direction; both remain in the ledger
  and history stays reconstructible byte-for-byte.

SEE ALSO:
  - types.go: The closed sets validated here
  - store.go: Stores call Validate before persisting
*/
package ledger

import "time"

// Validate checks every model invariant on an entry about to be appended.
// Returns a *ValidationError naming the first field at fault.
func (e LedgerEntry) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "must be assigned before append"}
	}
	if e.VendorID == "" {
		return &ValidationError{Field: "vendorId", Reason: "required"}
	}
	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be \"in\" or \"out\""}
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !e.Category.ValidFor(e.Type) {
		return &ValidationError{Field: "category", Reason: "not valid for type " + string(e.Type)}
	}
	if !e.PaymentMethod.Valid() {
		return &ValidationError{Field: "paymentMethod", Reason: "unknown payment method"}
	}
	if e.TransactionDate.IsZero() {
		return &ValidationError{Field: "transactionDate", Reason: "required"}
	}
	if e.CreatedAt.IsZero() {
		return &ValidationError{Field: "createdAt", Reason: "must be assigned before append"}
	}
	if e.Recurrence != nil {
		if err := e.Recurrence.validate(); err != nil {
			return err
		}
		if e.TemplateID != "" {
			return &ValidationError{Field: "recurrence", Reason: "a materialized clone cannot be a template"}
		}
	}
	if (e.TemplateID == "") != (e.OccurrenceDate == nil) {
		return &ValidationError{Field: "templateId", Reason: "templateId and occurrenceDate must be set together"}
	}
	return nil
}

func (r *Recurrence) validate() error {
	if !r.Pattern.Valid() {
		return &ValidationError{Field: "recurrence.pattern", Reason: "unknown pattern"}
	}
	if r.StartDate.IsZero() {
		return &ValidationError{Field: "recurrence.startDate", Reason: "required"}
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return &ValidationError{Field: "recurrence.endDate", Reason: "before startDate"}
	}
	return nil
}

// Materialize builds the concrete clone entry for one due occurrence of a
// template. The clone copies all business fields but:
//   - gets a fresh ID and CreatedAt
//   - is dated at the occurrence
//   - carries the (template, occurrence) back-reference
//   - has a nil Recurrence, so it can never generate further clones
func (e LedgerEntry) Materialize(id EntryID, occurrence Date, now time.Time) LedgerEntry {
	clone := e
	clone.ID = id
	clone.TransactionDate = occurrence
	clone.CreatedAt = now
	clone.Recurrence = nil
	clone.TemplateID = e.ID
	occ := occurrence
	clone.OccurrenceDate = &occ
	// Attachments belong to the template's proof, not the occurrence.
	clone.Attachments = nil
	return clone
}
