/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS ON THE WIRE:
  Amounts arrive as JSON numbers, captured verbatim as json.Number and
  parsed straight into decimals; responses carry them as strings. No
  float64 touches an amount on the way in or out.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain model these map onto
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/draco/vendor-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateEntryRequest is the request to record a money movement. Server-owned
// fields (id, created_at, template back-references) are intentionally absent:
// a caller cannot supply them.
type CreateEntryRequest struct {
	CustomerID      string                `json:"customer_id,omitempty"`
	Type            string                `json:"type"`
	Amount          json.Number           `json:"amount"`
	TransactionDate string                `json:"transaction_date"`
	Category        string                `json:"category"`
	PaymentMethod   string                `json:"payment_method"`
	Description     string                `json:"description,omitempty"`
	Note            string                `json:"note,omitempty"`
	Attachments     []string              `json:"attachments,omitempty"`
	Recurrence      *RecurrenceRequestDTO `json:"recurrence,omitempty"`
}

// RecurrenceRequestDTO marks the new entry as a recurring template.
type RecurrenceRequestDTO struct {
	Pattern   string  `json:"pattern"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// EntryDTO represents a ledger entry in API responses.
type EntryDTO struct {
	ID              string         `json:"id"`
	VendorID        string         `json:"vendor_id"`
	CustomerID      string         `json:"customer_id,omitempty"`
	Type            string         `json:"type"`
	Amount          string         `json:"amount"`
	TransactionDate string         `json:"transaction_date"`
	Category        string         `json:"category"`
	PaymentMethod   string         `json:"payment_method"`
	Description     string         `json:"description,omitempty"`
	Note            string         `json:"note,omitempty"`
	Attachments     []string       `json:"attachments,omitempty"`
	Recurrence      *RecurrenceDTO `json:"recurrence,omitempty"`
	TemplateID      string         `json:"template_id,omitempty"`
	OccurrenceDate  string         `json:"occurrence_date,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

// RecurrenceDTO represents a recurrence schedule in responses.
type RecurrenceDTO struct {
	Pattern   string  `json:"pattern"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// HistoryResponse is one page of a vendor's ledger history.
type HistoryResponse struct {
	Entries    []EntryDTO `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// SummaryDTO represents derived period totals.
type SummaryDTO struct {
	PeriodStart     string            `json:"period_start"`
	PeriodEnd       string            `json:"period_end"`
	TotalIn         string            `json:"total_in"`
	TotalOut        string            `json:"total_out"`
	NetBalance      string            `json:"net_balance"`
	ByCategory      map[string]string `json:"by_category"`
	ByPaymentMethod map[string]string `json:"by_payment_method"`
}

// CustomerLedgerResponse is one page of a customer sub-ledger plus the
// customer's computed running balance. Balance sign: positive means the
// customer is a net payer to the vendor.
type CustomerLedgerResponse struct {
	Entries    []EntryDTO `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
	Balance    string     `json:"balance"`
}

// VendorDTO represents a vendor in API responses.
type VendorDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateVendorRequest is the request to register a vendor.
type CreateVendorRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	VendorID  string `json:"vendor_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateCustomerRequest is the request to register a customer.
type CreateCustomerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e ledger.LedgerEntry) EntryDTO {
	dto := EntryDTO{
		ID:              string(e.ID),
		VendorID:        string(e.VendorID),
		CustomerID:      string(e.CustomerID),
		Type:            string(e.Type),
		Amount:          e.Amount.String(),
		TransactionDate: e.TransactionDate.String(),
		Category:        string(e.Category),
		PaymentMethod:   string(e.PaymentMethod),
		Description:     e.Description,
		Note:            e.Note,
		Attachments:     e.Attachments,
		TemplateID:      string(e.TemplateID),
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Recurrence != nil {
		dto.Recurrence = &RecurrenceDTO{
			Pattern:   string(e.Recurrence.Pattern),
			StartDate: e.Recurrence.StartDate.String(),
		}
		if e.Recurrence.EndDate != nil {
			end := e.Recurrence.EndDate.String()
			dto.Recurrence.EndDate = &end
		}
	}
	if e.OccurrenceDate != nil {
		dto.OccurrenceDate = e.OccurrenceDate.String()
	}
	return dto
}

func toEntryDTOs(entries []ledger.LedgerEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toSummaryDTO(s ledger.LedgerSummary) SummaryDTO {
	byCategory := make(map[string]string, len(s.ByCategory))
	for c, m := range s.ByCategory {
		byCategory[string(c)] = m.String()
	}
	byMethod := make(map[string]string, len(s.ByPaymentMethod))
	for p, m := range s.ByPaymentMethod {
		byMethod[string(p)] = m.String()
	}
	return SummaryDTO{
		PeriodStart:     s.PeriodStart.String(),
		PeriodEnd:       s.PeriodEnd.String(),
		TotalIn:         s.TotalIn.String(),
		TotalOut:        s.TotalOut.String(),
		NetBalance:      s.NetBalance.String(),
		ByCategory:      byCategory,
		ByPaymentMethod: byMethod,
	}
}
