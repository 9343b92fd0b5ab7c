/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the HTTP endpoints over the savings engine: scheme management,
  enrollment, payments, status evaluation, redemption, and reconciliation.

ERROR MAPPING:
  Engine errors classify through the scheme package helpers:
  - scheme.IsNotFound    -> 404
  - duplicates/conflicts -> 409
  - scheme.IsClientError -> 422
  - scheme.IsRetryable   -> 503 with Retry-After
  - anything else        -> 500

AMOUNT PARSING:
  All amounts arrive as decimal strings and are parsed with shopspring
  decimal. A parse failure is a 400 before the engine is consulted.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Routing
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aurum/savings-engine/factory"
	"github.com/aurum/savings-engine/scheme"
	"github.com/aurum/savings-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     scheme.TxStore
	Customers *sqlite.Store // optional; enables the /customers endpoints
	Factory   *factory.SchemeFactory
	Accrual   *scheme.AccrualEngine
	Lifecycle *scheme.LifecycleManager

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new handler wired to the engine components.
// customers may be nil when the backend does not keep customer records.
func NewHandler(store scheme.TxStore, customers *sqlite.Store, log zerolog.Logger) *Handler {
	accrual := scheme.NewAccrualEngine(store, log)
	return &Handler{
		Store:     store,
		Customers: customers,
		Factory:   factory.NewSchemeFactory(),
		Accrual:   accrual,
		Lifecycle: scheme.NewLifecycleManager(store, accrual, log),
		validate:  validator.New(),
		log:       log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// CreateScheme accepts a factory.SchemeJSON body and persists the scheme.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var sj factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sch, err := h.Factory.FromJSON(sj)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := h.Lifecycle.CreateScheme(r.Context(), sch); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSchemeDTO(sch))
}

// ListSchemes returns schemes, optionally filtered by ?shop_id=.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	shopID := scheme.ShopID(r.URL.Query().Get("shop_id"))
	schemes, err := h.Store.ListSchemes(r.Context(), shopID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]SchemeDTO, len(schemes))
	for i, s := range schemes {
		dtos[i] = toSchemeDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetScheme returns one scheme by ID.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id := scheme.SchemeID(chi.URLParam(r, "id"))
	sch, err := h.Store.GetScheme(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemeDTO(sch))
}

// SetSchemeActive toggles the is_active flag.
func (h *Handler) SetSchemeActive(w http.ResponseWriter, r *http.Request) {
	id := scheme.SchemeID(chi.URLParam(r, "id"))
	var req SetSchemeActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Lifecycle.SetSchemeActive(r.Context(), id, req.IsActive); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "is_active": req.IsActive})
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment opens a new enrollment.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	enr, err := h.Lifecycle.Enroll(r.Context(), scheme.EnrollRequest{
		SchemeID:      scheme.SchemeID(req.SchemeID),
		CustomerID:    scheme.CustomerID(req.CustomerID),
		AccountNumber: req.AccountNumber,
		StartDate:     start,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(enr))
}

// ListEnrollments returns enrollments filtered by ?shop_id= and ?status=.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	shopID := scheme.ShopID(r.URL.Query().Get("shop_id"))
	status := scheme.EnrollmentStatus(r.URL.Query().Get("status"))
	enrs, err := h.Store.ListEnrollments(r.Context(), shopID, status)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]EnrollmentDTO, len(enrs))
	for i, e := range enrs {
		dtos[i] = toEnrollmentDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEnrollment returns one enrollment by ID.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	enr, err := h.Store.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(enr))
}

// GetEnrollmentStatus evaluates the enrollment's schedule position.
// ?as_of=YYYY-MM-DD overrides the evaluation date (defaults to today).
func (h *Handler) GetEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	asOf := time.Now().UTC()
	if q := r.URL.Query().Get("as_of"); q != "" {
		t, err := time.Parse(dateLayout, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = t
	}
	report, err := h.Lifecycle.EvaluateStatus(r.Context(), id, asOf)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusReportDTO(report))
}

// CancelEnrollment cancels an active enrollment.
func (h *Handler) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var req CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if err := h.Lifecycle.Cancel(r.Context(), id, req.Forfeit); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "status": string(scheme.StatusCancelled)})
}

// ReconcileEnrollment replays the ledger against the cached totals.
func (h *Handler) ReconcileEnrollment(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	rep, err := h.Lifecycle.Reconcile(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileReportDTO{
		EnrollmentID:       string(rep.EnrollmentID),
		CachedPaid:         rep.CachedPaid.String(),
		ComputedPaid:       rep.ComputedPaid.String(),
		CachedGoldWeight:   rep.CachedGoldWeight.String(),
		ComputedGoldWeight: rep.ComputedGoldWeight.String(),
		CachedFines:        rep.CachedFines.String(),
		ComputedFines:      rep.ComputedFines.String(),
		Consistent:         rep.Consistent,
	})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// RecordPayment records an installment against an enrollment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
		return
	}
	var rate decimal.Decimal
	if req.GoldRate != "" {
		rate, err = decimal.NewFromString(req.GoldRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid gold_rate", err)
			return
		}
	}
	tx, err := h.Accrual.RecordPayment(r.Context(), scheme.PaymentRequest{
		EnrollmentID:   id,
		Amount:         amount,
		GoldRate:       rate,
		PaymentDate:    date,
		PaymentMode:    req.PaymentMode,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// RecordFine records a late-payment penalty.
func (h *Handler) RecordFine(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var req RecordFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, date, ok := h.parseAmountDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	tx, err := h.Accrual.RecordFine(r.Context(), scheme.FineRequest{
		EnrollmentID:   id,
		Amount:         amount,
		Date:           date,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// RecordAdjustment records a signed correction.
func (h *Handler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var req RecordAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}
	amount, date, ok := h.parseAmountDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	tx, err := h.Accrual.RecordAdjustment(r.Context(), scheme.AdjustmentRequest{
		EnrollmentID:   id,
		Amount:         amount,
		Date:           date,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ListTransactions returns the enrollment's ledger, optionally filtered by
// ?type=, ?from=, ?to=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var f scheme.TransactionFilter
	f.Type = scheme.TransactionType(r.URL.Query().Get("type"))
	if q := r.URL.Query().Get("from"); q != "" {
		t, err := time.Parse(dateLayout, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		f.From = t
	}
	if q := r.URL.Query().Get("to"); q != "" {
		t, err := time.Parse(dateLayout, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		f.To = t
	}
	txs, err := h.Store.ListTransactions(r.Context(), id, f)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// PreviewMaturity values the enrollment without settling it.
// ?gold_rate= supplies the spot rate for at-maturity conversion schemes.
func (h *Handler) PreviewMaturity(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var rate decimal.Decimal
	if q := r.URL.Query().Get("gold_rate"); q != "" {
		var err error
		rate, err = decimal.NewFromString(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid gold_rate", err)
			return
		}
	}
	mv, err := h.Lifecycle.PreviewMaturityValue(r.Context(), id, rate)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MaturityValueDTO{
		BonusAmount: mv.BonusAmount.String(),
		CashValue:   mv.CashValue.String(),
		GoldValue:   mv.GoldValue.String(),
	})
}

// Redeem settles an enrollment.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}
	date, err := time.Parse(dateLayout, req.RedeemDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid redeem_date format (use YYYY-MM-DD)", err)
		return
	}
	var rate decimal.Decimal
	if req.GoldRate != "" {
		rate, err = decimal.NewFromString(req.GoldRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid gold_rate", err)
			return
		}
	}
	red, err := h.Lifecycle.Redeem(r.Context(), scheme.RedeemRequest{
		EnrollmentID: id,
		RedeemDate:   date,
		GoldRate:     rate,
		InvoiceID:    req.InvoiceID,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionDTO(red))
}

// GetRedemption returns the settlement record for an enrollment.
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	id := scheme.EnrollmentID(chi.URLParam(r, "id"))
	red, err := h.Store.GetRedemption(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if red == nil {
		writeError(w, http.StatusNotFound, "Enrollment not redeemed", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(red))
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// CreateCustomer registers a thin customer record.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	if h.Customers == nil {
		writeError(w, http.StatusNotImplemented, "Customer records not available on this backend", nil)
		return
	}
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}
	err := h.Customers.SaveCustomer(r.Context(), sqlite.Customer{
		ID:     scheme.CustomerID(req.ID),
		ShopID: scheme.ShopID(req.ShopID),
		Name:   req.Name,
		Phone:  req.Phone,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerDTO{
		ID:     req.ID,
		ShopID: req.ShopID,
		Name:   req.Name,
		Phone:  req.Phone,
	})
}

// GetCustomer returns one customer record.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	if h.Customers == nil {
		writeError(w, http.StatusNotImplemented, "Customer records not available on this backend", nil)
		return
	}
	id := scheme.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Customers.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, CustomerDTO{
		ID:     string(c.ID),
		ShopID: string(c.ShopID),
		Name:   c.Name,
		Phone:  c.Phone,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseAmountDate(w http.ResponseWriter, amountStr, dateStr string) (decimal.Decimal, time.Time, bool) {
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return decimal.Decimal{}, time.Time{}, false
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return decimal.Decimal{}, time.Time{}, false
	}
	return amount, date, true
}

// writeEngineError maps engine errors to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case scheme.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, scheme.ErrDuplicateAccountNumber),
		errors.Is(err, scheme.ErrDuplicateIdempotencyKey),
		errors.Is(err, scheme.ErrAlreadyRedeemed):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case scheme.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case scheme.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable", err)
	default:
		h.log.Error().Err(err).Msg("unhandled engine error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
