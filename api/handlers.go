/*
handlers.go - HTTP API handlers for the back-office engine

PURPOSE:
  Exposes the allocation, pricing, supplier ledger and cash closure
  engines via REST API. Handles HTTP request/response and JSON
  serialization, and delegates to the engine packages.

ENDPOINTS:
  Sales:
    POST   /api/allocations                      Redistribute session discounts
    POST   /api/reports/sales                    Allocate, then aggregate

  Happy hours:
    GET    /api/happy-hours                      List stored rules (evaluation order)
    POST   /api/happy-hours                      Create or replace a rule
    DELETE /api/happy-hours/{id}                 Delete a rule
    POST   /api/pricing/resolve                  Resolve prices at an instant

  Suppliers:
    GET    /api/suppliers/{id}/transactions      Ledger, newest first
    POST   /api/suppliers/{id}/transactions      Record a transaction
    DELETE /api/suppliers/{id}/transactions/{txID}
    POST   /api/suppliers/{id}/recompute         Refold balances from an index
    GET    /api/suppliers/{id}/verify            Replay audit
    GET    /api/suppliers/{id}/summary           Totals by kind

  Closures:
    POST   /api/closures/reconcile               Stateless reconciliation
    GET    /api/closures                         Stored closures, latest first
    POST   /api/closures                         Reconcile and persist
    GET    /api/closures/{id}
    POST   /api/closures/{id}/expenses           Add an expense

  Scenarios (scenarios.go):
    GET    /api/scenarios                        List demo scenarios
    GET    /api/scenarios/current
    POST   /api/scenarios/load                   Reset and seed
    POST   /api/scenarios/reset                  Reset only

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Transaction or closure not found
  - 409: Duplicate idempotency key
  - 500: Internal errors

  Degenerate inputs (zero-gross sessions, unparsable happy-hour clocks)
  are not errors: they come back in "warnings" and are logged with the
  request id.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/warp/backoffice-engine/allocation"
	"github.com/warp/backoffice-engine/closure"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/factory"
	"github.com/warp/backoffice-engine/ledger"
	"github.com/warp/backoffice-engine/pricing"
	"github.com/warp/backoffice-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RuleStore persists happy-hour rules in evaluation order.
type RuleStore interface {
	SaveRule(ctx context.Context, rule pricing.Rule) error
	ListRules(ctx context.Context) ([]pricing.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resetter clears all persisted data (demo scenarios only).
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Suppliers   *ledger.SupplierLedger
	Closures    *closure.Service
	Rules       RuleStore
	RuleFactory *factory.RuleFactory
	Pricing     *pricing.Resolver
	Location    *time.Location
	DB          Pinger
	Resetter    Resetter
	Now         func() time.Time

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires every engine to a SQLite store. Happy-hour windows and
// date-only inputs are interpreted in loc.
func NewHandler(store *sqlite.Store, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Suppliers:   ledger.NewSupplierLedger(store),
		Closures:    closure.NewService(store),
		Rules:       store,
		RuleFactory: factory.NewRuleFactory(),
		Pricing:     pricing.NewResolver(loc),
		Location:    loc,
		DB:          store,
		Resetter:    store,
		Now:         time.Now,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok", Time: h.Now().In(h.Location).Format(time.RFC3339)}
	status := http.StatusOK
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// ALLOCATION AND REPORTS
// =============================================================================

// Allocate redistributes each session's discount lines over its products.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := allocation.AllocateRecords(toRecords(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	logWarnings(r, "allocation", res.Warnings)

	writeJSON(w, http.StatusOK, AllocationResponse{
		Lines:    toProductLineDTOs(res.Lines),
		Sessions: toSessionDTOs(res.Sessions),
		Warnings: warningsOrEmpty(res.Warnings),
	})
}

// SalesReport allocates then aggregates per product and category.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := allocation.AllocateRecords(toRecords(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	logWarnings(r, "sales report", res.Warnings)

	writeJSON(w, http.StatusOK, toSalesReportResponse(allocation.BuildReport(res.Lines), res))
}

// =============================================================================
// HAPPY HOURS
// =============================================================================

func (h *Handler) ListHappyHours(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.ListRules(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSONList(rules))
}

// CreateHappyHour stores a rule. A rule with an existing id replaces it
// and keeps its evaluation position.
func (h *Handler) CreateHappyHour(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := decodeJSON(r, &rj, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if rj.ID == "" {
		rj.ID = uuid.NewString()
	}

	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid happy-hour rule", err)
		return
	}
	if err := h.Rules.SaveRule(r.Context(), rule); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(rule))
}

func (h *Handler) DeleteHappyHour(w http.ResponseWriter, r *http.Request) {
	if err := h.Rules.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolvePrices prices the posted products. Supplied rules take
// precedence; without them the stored rules apply.
func (h *Handler) ResolvePrices(w http.ResponseWriter, r *http.Request) {
	var req ResolvePricesRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	at := h.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'at' timestamp (use RFC 3339)", err)
			return
		}
		at = parsed
	}

	var rules []pricing.Rule
	var err error
	if req.Rules == nil {
		rules, err = h.Rules.ListRules(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
	} else {
		rules, err = h.RuleFactory.FromJSONList(req.Rules)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid happy-hour rule", err)
			return
		}
	}

	prices, warnings, err := h.Pricing.ResolveAll(toProducts(req.Products), rules, at)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	logWarnings(r, "pricing", warnings)

	writeJSON(w, http.StatusOK, ResolvePricesResponse{
		At:       at.In(h.Location).Format(time.RFC3339),
		Timezone: h.Location.String(),
		Prices:   toPriceDTOs(prices),
		Warnings: warningsOrEmpty(warnings),
	})
}

// =============================================================================
// SUPPLIER LEDGER
// =============================================================================

// ListSupplierTransactions returns the ledger newest first.
func (h *Handler) ListSupplierTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Suppliers.Transactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(ledger.DisplayOrder(txs), h.Location))
}

func (h *Handler) RecordSupplierTransaction(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := parseDate(req.Date, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or RFC 3339)", err)
		return
	}

	tx, err := h.Suppliers.Record(r.Context(), ledger.Transaction{
		ID:             req.ID,
		SupplierID:     chi.URLParam(r, "id"),
		Date:           date,
		Kind:           ledger.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		GrossAmount:    req.GrossAmount.Decimal,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx, h.Location))
}

func (h *Handler) DeleteSupplierTransaction(w http.ResponseWriter, r *http.Request) {
	err := h.Suppliers.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "txID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecomputeSupplier refolds balances from index "from" (body or query,
// default 0) and returns the ledger newest first.
func (h *Handler) RecomputeSupplier(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if q := r.URL.Query().Get("from"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' index", err)
			return
		}
		req.From = n
	}

	txs, err := h.Suppliers.Recompute(r.Context(), chi.URLParam(r, "id"), req.From)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(ledger.DisplayOrder(txs), h.Location))
}

// VerifySupplier replays the ledger. Drift is reported in the body with
// status 200; only storage failures are errors.
func (h *Handler) VerifySupplier(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")
	resp := VerifyResponse{SupplierID: supplierID, OK: true}

	err := h.Suppliers.Verify(r.Context(), supplierID)
	var drift *ledger.BalanceDriftError
	switch {
	case err == nil:
	case errors.As(err, &drift):
		resp.OK = false
		resp.Drift = &DriftDTO{
			Index:         drift.Index,
			TransactionID: drift.TransactionID,
			Stored:        drift.Stored,
			Expected:      drift.Expected,
		}
		log.Printf("[%s] supplier %s: %v", middleware.GetReqID(r.Context()), supplierID, err)
	default:
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SupplierSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Suppliers.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerSummaryDTO(s))
}

// =============================================================================
// CASH CLOSURES
// =============================================================================

// ReconcileClosure computes a closure summary without persisting it.
func (h *Handler) ReconcileClosure(w http.ResponseWriter, r *http.Request) {
	var req ClosureInputDTO
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	writeJSON(w, http.StatusOK, toClosureSummaryDTO(closure.Reconcile(req.toInput())))
}

func (h *Handler) CreateClosure(w http.ResponseWriter, r *http.Request) {
	var req CreateClosureRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDate(req.BusinessDate, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business_date (use YYYY-MM-DD or RFC 3339)", err)
		return
	}

	c, err := h.Closures.Open(r.Context(), date, req.Note, req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClosureDTO(c, h.Location))
}

// ListClosures returns stored closures, latest business date first.
func (h *Handler) ListClosures(w http.ResponseWriter, r *http.Request) {
	closures, err := h.Closures.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]ClosureDTO, 0, len(closures))
	for _, c := range closures {
		out = append(out, toClosureDTO(c, h.Location))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetClosure(w http.ResponseWriter, r *http.Request) {
	c, err := h.Closures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClosureDTO(c, h.Location))
}

// AddClosureExpense appends an expense. The variance does not change;
// totals and drawer figures do.
func (h *Handler) AddClosureExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseDTO
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Closures.AddExpense(r.Context(), chi.URLParam(r, "id"), closure.Expense{
		Amount:      req.Amount.Decimal,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClosureDTO(c, h.Location))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: errorCode(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   verr.Error(),
			Code:    "validation_error",
			Details: map[string]string{"field": verr.Field, "subject": verr.Subject},
		})
	case errors.Is(err, ledger.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
	case errors.Is(err, closure.ErrClosureNotFound):
		writeError(w, http.StatusNotFound, "Closure not found", nil)
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "Duplicate idempotency key", err)
	case errors.Is(err, ledger.ErrDuplicateTransactionID):
		writeError(w, http.StatusConflict, "Duplicate transaction id", err)
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, "Recompute index out of range", err)
	default:
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	default:
		return "internal_error"
	}
}

func logWarnings(r *http.Request, op string, warnings []core.DegenerateInputWarning) {
	reqID := middleware.GetReqID(r.Context())
	for _, w := range warnings {
		log.Printf("[%s] %s warning: %v", reqID, op, w)
	}
}

// decodeJSON decodes the request body into v. With optional set, an
// empty body leaves v untouched.
func decodeJSON(r *http.Request, v any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parseDate accepts YYYY-MM-DD (midnight in loc) or RFC 3339. Empty
// input returns the zero time so services default it to now.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
