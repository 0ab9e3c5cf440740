/*
handlers.go - HTTP API handlers for the gas agency storefront

PURPOSE:
  Exposes the settlement engine and storefront records via REST. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic. No settlement arithmetic lives here.

ENDPOINTS:
  Customers:
    GET    /api/customers                    List customers
    POST   /api/customers                    Register customer
    GET    /api/customers/{id}               Customer details
    DELETE /api/customers/{id}               Delete (refused with history)
    GET    /api/customers/{id}/transactions  Transaction history
    GET    /api/customers/{id}/audit         Compare aggregate vs ledger fold
    POST   /api/customers/{id}/reconcile     Rebuild aggregate from ledger

  Transactions:
    GET    /api/transactions                 List all (?from=&to=)
    POST   /api/transactions                 Commit a sale

  Suppliers / Expenses / Stock:
    GET/POST /api/suppliers, DELETE /api/suppliers/{id}
    GET/POST /api/expenses, GET /api/expenses/categories
    GET/POST /api/stock, GET /api/stock/latest

  Analytics:
    GET    /api/analytics/summary            Revenue/expense rollup

ERROR HANDLING:
  Errors map onto HTTP statuses via the ledger taxonomy:
  - 400: validation failures
  - 404: unknown customer
  - 409: concurrent-commit conflict, duplicate idempotency key,
         delete-with-history
  - 500: store failures (outcome may be unknown; the response tells the
         client to verify before retrying)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/gasledger/agency"
	"github.com/warp/gasledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Stores is the full persistence surface the API needs. *sqlite.Store
// satisfies it.
type Stores interface {
	ledger.TxStore
	agency.SupplierStore
	agency.ExpenseStore
	agency.StockStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Stores
	Coordinator *ledger.Coordinator
	Customers   *agency.CustomerService
	Reporter    *agency.Reporter
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Stores) *Handler {
	return &Handler{
		Store:       store,
		Coordinator: ledger.NewCoordinator(store),
		Customers:   agency.NewCustomerService(store),
		Reporter: &agency.Reporter{
			Ledger:    store,
			Customers: store,
			Expenses:  store,
		},
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers, newest first.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	c, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// CreateCustomer registers a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Customers.Register(r.Context(), agency.NewCustomerInput{
		Name:             req.Name,
		Phone:            req.Phone,
		Address:          req.Address,
		SeedBalance:      req.SeedBalance,
		SeedCylindersOut: req.SeedCylindersOut,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// DeleteCustomer removes a customer without ledger history.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	if err := h.Customers.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCustomerTransactions returns a customer's history, newest first.
func (h *Handler) GetCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	if _, err := h.Store.Get(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := h.Store.ListByCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// AuditCustomer compares the cached aggregate against the ledger fold.
func (h *Handler) AuditCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	agg, drift, ok, err := h.Coordinator.Audit(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditDTO{
		Consistent:   ok,
		Replayed:     toAggregateDTO(agg),
		BalanceDiff:  drift.BalanceDiff,
		CylinderDiff: drift.CylinderDiff,
	})
}

// ReconcileCustomer rebuilds the aggregate from the ledger.
// This is the administrative correction path; it never accepts numbers
// from the request body.
func (h *Handler) ReconcileCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	agg, err := h.Coordinator.Recompute(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CommitSale settles a sale against the customer's running balance.
func (h *Handler) CommitSale(w http.ResponseWriter, r *http.Request) {
	var req CommitSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Coordinator.Commit(r.Context(), toSaleInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ListTransactions returns all transactions, newest first, optionally
// bounded by ?from= and ?to= (RFC 3339 or YYYY-MM-DD).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' parameter", err)
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' parameter", err)
		return
	}

	txs, err := h.Store.ListAll(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// SUPPLIER HANDLERS
// =============================================================================

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.Store.ListSuppliers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SupplierDTO, len(suppliers))
	for i, s := range suppliers {
		dtos[i] = toSupplierDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Supplier name is required", nil)
		return
	}

	s := agency.Supplier{
		ID:        fmt.Sprintf("sup-%d", time.Now().UnixNano()),
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateSupplier(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSupplierDTO(s))
}

func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' parameter", err)
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' parameter", err)
		return
	}

	expenses, err := h.Store.ListExpenses(r.Context(), r.URL.Query().Get("category"), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListExpenseCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ExpenseCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "Expense category is required", nil)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Expense amount must not be negative", nil)
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = d
	}

	e := agency.Expense{
		ID:          fmt.Sprintf("exp-%d", time.Now().UnixNano()),
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        date,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.CreateExpense(r.Context(), e); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(e))
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.ListStock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]StockSnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toStockDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) LatestStock(w http.ResponseWriter, r *http.Request) {
	snap, found, err := h.Store.LatestStock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "No stock snapshot recorded yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(snap))
}

func (h *Handler) CreateStock(w http.ResponseWriter, r *http.Request) {
	var req CreateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FullCylinders < 0 || req.EmptyCylinders < 0 {
		writeError(w, http.StatusBadRequest, "Cylinder counts must not be negative", nil)
		return
	}

	snap := agency.StockSnapshot{
		ID:             fmt.Sprintf("stock-%d", time.Now().UnixNano()),
		FullCylinders:  req.FullCylinders,
		EmptyCylinders: req.EmptyCylinders,
		RecordedAt:     time.Now().UTC(),
	}
	if err := h.Store.CreateStock(r.Context(), snap); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStockDTO(snap))
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// GetSummary returns the revenue/expense rollup, optionally bounded by
// ?from= and ?to=.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' parameter", err)
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' parameter", err)
		return
	}

	summary, err := h.Reporter.Summarize(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		TotalRevenue:     summary.TotalRevenue,
		TotalExpenses:    summary.TotalExpenses,
		NetProfit:        summary.NetProfit,
		Receivables:      summary.Receivables,
		TransactionCount: summary.TransactionCount,
		CylindersNet:     summary.CylindersNet,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
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

// writeDomainError maps the ledger error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		resp := ErrorResponse{Error: err.Error(), Code: "validation"}
		var ve *ledger.ValidationError
		if errors.As(err, &ve) {
			resp.Details = map[string]string{ve.Field: ve.Message}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, ledger.ErrConcurrentUpdate):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Another transaction for this customer was committed first; please retry",
			Code:  "conflict",
		})
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "This sale was already committed",
			Code:  "duplicate",
		})
	case errors.Is(err, ledger.ErrCustomerHasTransactions):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Customer has transaction history and cannot be deleted",
			Code:  "has_transactions",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Could not complete the operation; please verify before retrying",
			Code:  "store_failure",
		})
	}
}
