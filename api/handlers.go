/*
handlers.go - HTTP API handlers for the vendor ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Vendors:
    GET    /api/vendors                          List vendors
    POST   /api/vendors                          Register vendor
    GET    /api/vendors/{vendorID}               Get vendor

  Customers:
    GET    /api/vendors/{vendorID}/customers              List customers
    POST   /api/vendors/{vendorID}/customers              Register customer
    GET    /api/vendors/{vendorID}/customers/{customerID} Get customer

  Ledger:
    POST   /api/vendors/{vendorID}/entries       Record entry (append-only)
    GET    /api/vendors/{vendorID}/entries       Paginated, filtered history
    GET    /api/vendors/{vendorID}/summary       Period summary
    GET    /api/vendors/{vendorID}/customers/{customerID}/ledger
                                                 Customer sub-ledger + balance

  Explicitly absent: PUT/PATCH/DELETE on entries. A posted entry is
  immutable; corrections are new entries. The API enforces this by simply
  not offering the routes.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (never retried)
  - 404: Vendor/customer/entry not found (never retried)
  - 503: Transient store failure (retryable; writes already retried here
         with bounded backoff before surfacing)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - generator.go: Background recurrence materialization
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/draco/vendor-ledger/ledger"
	"github.com/draco/vendor-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the full persistence surface the handlers need. *sqlite.Store
// satisfies it; tests wrap it to inject failures.
type Store interface {
	ledger.EntryStore
	ledger.Directory

	SaveVendor(ctx context.Context, v sqlite.Vendor) error
	GetVendor(ctx context.Context, id ledger.VendorID) (*sqlite.Vendor, error)
	ListVendors(ctx context.Context) ([]sqlite.Vendor, error)
	SaveCustomer(ctx context.Context, c sqlite.Customer) error
	GetCustomer(ctx context.Context, vendorID ledger.VendorID, id ledger.CustomerID) (*sqlite.Customer, error)
	ListCustomers(ctx context.Context, vendorID ledger.VendorID) ([]sqlite.Customer, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store Store
	Clock ledger.Clock

	// Bounded retry policy for transient store failures on the append path.
	WriteAttempts int
	RetryBackoff  time.Duration
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store) *Handler {
	return &Handler{
		Store:         store,
		Clock:         ledger.SystemClock{},
		WriteAttempts: 3,
		RetryBackoff:  50 * time.Millisecond,
	}
}

// =============================================================================
// VENDOR HANDLERS
// =============================================================================

// ListVendors returns all vendors.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Store.ListVendors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vendors", err)
		return
	}

	dtos := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = VendorDTO{
			ID:        string(v.ID),
			Name:      v.Name,
			Phone:     v.Phone,
			CreatedAt: v.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetVendor returns a single vendor.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	id := ledger.VendorID(chi.URLParam(r, "vendorID"))

	v, err := h.Store.GetVendor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get vendor", err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "Vendor not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, VendorDTO{
		ID:        string(v.ID),
		Name:      v.Name,
		Phone:     v.Phone,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	})
}

// CreateVendor registers a vendor.
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	v := sqlite.Vendor{ID: ledger.VendorID(req.ID), Name: req.Name, Phone: req.Phone}
	if err := h.Store.SaveVendor(r.Context(), v); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create vendor", err)
		return
	}

	writeJSON(w, http.StatusCreated, VendorDTO{ID: req.ID, Name: req.Name, Phone: req.Phone})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers of a vendor.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))

	if !h.requireVendor(w, r.Context(), vendorID) {
		return
	}

	customers, err := h.Store.ListCustomers(r.Context(), vendorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = CustomerDTO{
			ID:        string(c.ID),
			VendorID:  string(c.VendorID),
			Name:      c.Name,
			Phone:     c.Phone,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))
	customerID := ledger.CustomerID(chi.URLParam(r, "customerID"))

	c, err := h.Store.GetCustomer(r.Context(), vendorID, customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, CustomerDTO{
		ID:        string(c.ID),
		VendorID:  string(c.VendorID),
		Name:      c.Name,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	})
}

// CreateCustomer registers a customer under a vendor.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))

	if !h.requireVendor(w, r.Context(), vendorID) {
		return
	}

	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c := sqlite.Customer{
		VendorID: vendorID,
		ID:       ledger.CustomerID(req.ID),
		Name:     req.Name,
		Phone:    req.Phone,
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, CustomerDTO{
		ID:       req.ID,
		VendorID: string(vendorID),
		Name:     req.Name,
		Phone:    req.Phone,
	})
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateEntry records one money movement. The ledger is append-only: the
// entry returned here will never change, and there is no endpoint to change
// it.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))

	dec := json.NewDecoder(r.Body)
	// Reject attempts to set server-owned fields (id, created_at, template
	// back-references) rather than silently dropping them.
	dec.DisallowUnknownFields()

	var req CreateEntryRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.buildEntry(vendorID, req)
	if err != nil {
		h.writeDomainError(w, err, "Failed to create entry")
		return
	}

	if err := h.appendWithRetry(r.Context(), entry); err != nil {
		h.writeDomainError(w, err, "Failed to create entry")
		return
	}

	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// buildEntry maps the request onto a validated LedgerEntry with
// server-assigned ID and creation timestamp.
func (h *Handler) buildEntry(vendorID ledger.VendorID, req CreateEntryRequest) (ledger.LedgerEntry, error) {
	var zero ledger.LedgerEntry

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return zero, &ledger.ValidationError{Field: "amount", Reason: "not a valid decimal"}
	}

	txDate, err := ledger.ParseDate(req.TransactionDate)
	if err != nil {
		return zero, &ledger.ValidationError{Field: "transactionDate", Reason: "use YYYY-MM-DD"}
	}

	entry := ledger.LedgerEntry{
		ID:              ledger.EntryID(uuid.NewString()),
		VendorID:        vendorID,
		CustomerID:      ledger.CustomerID(req.CustomerID),
		Type:            ledger.EntryType(req.Type),
		Amount:          amount,
		TransactionDate: txDate,
		Category:        ledger.Category(req.Category),
		PaymentMethod:   ledger.PaymentMethod(req.PaymentMethod),
		Description:     req.Description,
		Note:            req.Note,
		Attachments:     req.Attachments,
		CreatedAt:       h.Clock.Now(),
	}

	if req.Recurrence != nil {
		start, err := ledger.ParseDate(req.Recurrence.StartDate)
		if err != nil {
			return zero, &ledger.ValidationError{Field: "recurrence.startDate", Reason: "use YYYY-MM-DD"}
		}
		rec := &ledger.Recurrence{
			Pattern:   ledger.RecurrencePattern(req.Recurrence.Pattern),
			StartDate: start,
		}
		if req.Recurrence.EndDate != nil {
			end, err := ledger.ParseDate(*req.Recurrence.EndDate)
			if err != nil {
				return zero, &ledger.ValidationError{Field: "recurrence.endDate", Reason: "use YYYY-MM-DD"}
			}
			rec.EndDate = &end
		}
		entry.Recurrence = rec
	}

	if err := entry.Validate(); err != nil {
		return zero, err
	}
	return entry, nil
}

// appendWithRetry retries transient store failures with bounded backoff.
// Validation and not-found failures are deterministic and surface
// immediately.
func (h *Handler) appendWithRetry(ctx context.Context, entry ledger.LedgerEntry) error {
	var err error
	for attempt := 0; attempt < h.WriteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.RetryBackoff * time.Duration(attempt)):
			}
		}
		err = h.Store.Append(ctx, entry)
		if err == nil || !ledger.IsRetryable(err) {
			return err
		}
	}
	return err
}

// GetHistory returns one page of the vendor's ledger history, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))

	if !h.requireVendor(w, r.Context(), vendorID) {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeDomainError(w, err, "Invalid filter")
		return
	}
	page := parsePage(r)

	entries, next, err := h.Store.ListByVendor(r.Context(), vendorID, filter, page)
	if err != nil {
		h.writeDomainError(w, err, "Failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries:    toEntryDTOs(entries),
		NextCursor: next,
	})
}

// GetSummary returns derived totals for a period. The summary is computed
// from the entry log on every call; there is no stored balance to drift.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))

	if !h.requireVendor(w, r.Context(), vendorID) {
		return
	}

	start, err := ledger.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start is required (YYYY-MM-DD)", err)
		return
	}
	end, err := ledger.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end is required (YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "Invalid period", ledger.ErrInvalidPeriod)
		return
	}

	filter := ledger.Filter{From: &start, To: &end}
	entries, err := h.Store.LoadForSummary(r.Context(), vendorID, filter)
	if err != nil {
		// Either the full requested window is summarized or an error is
		// returned; never a partial summary.
		h.writeDomainError(w, err, "Failed to load entries")
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(ledger.Summarize(entries, start, end)))
}

// GetCustomerLedger returns one page of the customer sub-ledger plus the
// customer's full running balance.
func (h *Handler) GetCustomerLedger(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))
	customerID := ledger.CustomerID(chi.URLParam(r, "customerID"))

	ok, err := h.Store.CustomerExists(r.Context(), vendorID, customerID)
	if err != nil {
		h.writeDomainError(w, err, "Failed to resolve customer")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}

	page := parsePage(r)
	entries, next, err := h.Store.ListByCustomer(r.Context(), vendorID, customerID, page)
	if err != nil {
		h.writeDomainError(w, err, "Failed to list entries")
		return
	}

	all, err := h.Store.LoadForSummary(r.Context(), vendorID, ledger.Filter{CustomerID: &customerID})
	if err != nil {
		h.writeDomainError(w, err, "Failed to compute balance")
		return
	}
	balance := ledger.CustomerBalance(all, customerID)

	writeJSON(w, http.StatusOK, CustomerLedgerResponse{
		Entries:    toEntryDTOs(entries),
		NextCursor: next,
		Balance:    balance.String(),
	})
}

// GetEntry returns a single entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	vendorID := ledger.VendorID(chi.URLParam(r, "vendorID"))
	id := ledger.EntryID(chi.URLParam(r, "entryID"))

	entry, err := h.Store.GetEntry(r.Context(), vendorID, id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	var f ledger.Filter

	if s := q.Get("from"); s != "" {
		d, err := ledger.ParseDate(s)
		if err != nil {
			return f, &ledger.ValidationError{Field: "from", Reason: "use YYYY-MM-DD"}
		}
		f.From = &d
	}
	if s := q.Get("to"); s != "" {
		d, err := ledger.ParseDate(s)
		if err != nil {
			return f, &ledger.ValidationError{Field: "to", Reason: "use YYYY-MM-DD"}
		}
		f.To = &d
	}
	if s := q.Get("type"); s != "" {
		t := ledger.EntryType(s)
		if !t.Valid() {
			return f, &ledger.ValidationError{Field: "type", Reason: "must be \"in\" or \"out\""}
		}
		f.Type = &t
	}
	if s := q.Get("category"); s != "" {
		c := ledger.Category(s)
		f.Category = &c
	}
	if s := q.Get("payment_method"); s != "" {
		p := ledger.PaymentMethod(s)
		if !p.Valid() {
			return f, &ledger.ValidationError{Field: "paymentMethod", Reason: "unknown payment method"}
		}
		f.PaymentMethod = &p
	}
	if s := q.Get("customer_id"); s != "" {
		c := ledger.CustomerID(s)
		f.CustomerID = &c
	}
	return f, nil
}

func parsePage(r *http.Request) ledger.Page {
	q := r.URL.Query()
	page := ledger.Page{Cursor: q.Get("cursor")}
	if s := q.Get("limit"); s != "" {
		if limit, err := strconv.Atoi(s); err == nil {
			page.Limit = limit
		}
	}
	return page
}

func parseAmount(n json.Number) (ledger.Money, error) {
	if n.String() == "" {
		return ledger.Money{}, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return ledger.Money{}, err
	}
	return ledger.Money{Value: d}, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// requireVendor writes a 404 and returns false when the vendor is unknown.
func (h *Handler) requireVendor(w http.ResponseWriter, ctx context.Context, vendorID ledger.VendorID) bool {
	ok, err := h.Store.VendorExists(ctx, vendorID)
	if err != nil {
		h.writeDomainError(w, err, "Failed to resolve vendor")
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Vendor not found", nil)
		return false
	}
	return true
}

// writeDomainError maps the ledger error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, message string) {
	switch {
	case ledger.IsClientError(err):
		resp := ErrorResponse{Error: message, Details: err.Error()}
		var vErr *ledger.ValidationError
		if errors.As(err, &vErr) {
			resp.Field = vErr.Field
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Details: err.Error()})
	case ledger.IsRetryable(err):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: message, Details: err.Error(), Retryable: true,
		})
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
