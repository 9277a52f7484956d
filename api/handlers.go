/*
handlers.go - HTTP API handlers for the benefit engine

PURPOSE:
  Exposes the claim service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to benefit.ClaimService.

ENDPOINTS:
  Claims:
    GET    /api/claims                  List (employee, period, status, expense_type)
    POST   /api/claims                  Submit a claim
    POST   /api/claims/approve          Batch approve {ids}
    POST   /api/claims/reject           Batch reject {ids, reason}
    GET    /api/claims/{id}             Get one claim
    PATCH  /api/claims/{id}             Edit a pending claim
    POST   /api/claims/{id}/review      enviado -> em_analise
    POST   /api/claims/{id}/approve     -> valido
    POST   /api/claims/{id}/reject      -> invalido {reason}
    GET    /api/claims/{id}/audit       Audit trail

  Employees:
    GET    /api/employees
    POST   /api/employees                                   Create or change ceiling
    GET    /api/employees/{id}
    GET    /api/employees/{id}/periods/{pid}/ledger
    GET    /api/employees/{id}/periods/{pid}/eligibility?amount=

  Periods:
    GET    /api/periods
    POST   /api/periods
    GET    /api/periods/{pid}
    POST   /api/periods/{pid}/close
    GET    /api/periods/{pid}/taxable-conversion

  Expense types:
    GET    /api/expense-types
    POST   /api/expense-types
    GET    /api/expense-types/{id}

REQUEST FLOW:
  1. Identity middleware puts the benefit.Actor in the context
  2. Decode and validate the body (validator struct tags)
  3. Call the service
  4. Serialize the DTO, or map the error with writeServiceError

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *benefit.ClaimService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc *benefit.ClaimService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Service: svc, validate: v, logger: logger}
}

// decode reads a JSON body into dst and runs struct validation. It writes the
// 400 response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationErrors(w, err)
		return false
	}
	return true
}

func actor(r *http.Request) benefit.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// SubmitClaim creates a claim. A partial allocation is still 201; the
// response carries the split and blockedAfter.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req SubmitClaimRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := generic.ParseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, generic.NewValidationError("amount", err.Error()))
		return
	}
	expenseDate, err := generic.ParseDate(req.ExpenseDate)
	if err != nil {
		writeServiceError(w, h.logger, generic.NewValidationError("expenseDate", err.Error()))
		return
	}

	res, err := h.Service.Submit(r.Context(), actor(r), benefit.SubmitInput{
		EmployeeID:       benefit.EmployeeID(req.EmployeeID),
		PeriodID:         benefit.PeriodID(req.PeriodID),
		ExpenseTypeID:    benefit.ExpenseTypeID(req.ExpenseTypeID),
		Origin:           benefit.Origin(req.Origin),
		Description:      req.Description,
		ExpenseDate:      expenseDate,
		ReceiptSignature: req.ReceiptSignature,
		Requested:        amount,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := SubmitClaimResponse{
		Claim:      toClaimDTO(*res.Claim),
		Resolution: toResolutionDTO(res.Resolution),
		Allocation: toAllocationDTO(res.Allocation),
	}
	if res.Allocation != nil {
		resp.BlockedAfter = res.Allocation.BlockedAfter
		resp.Message = res.Allocation.Message
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := benefit.ClaimFilter{
		EmployeeID:    benefit.EmployeeID(q.Get("employee")),
		PeriodID:      benefit.PeriodID(q.Get("period")),
		ExpenseTypeID: benefit.ExpenseTypeID(q.Get("expense_type")),
	}
	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			status, err := benefit.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				writeServiceError(w, h.logger, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	claims, err := h.Service.ListClaims(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTOs(claims))
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetClaim(r.Context(), benefit.ClaimID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*c))
}

func (h *Handler) EditClaim(w http.ResponseWriter, r *http.Request) {
	var req EditClaimRequest
	if !h.decode(w, r, &req) {
		return
	}

	var in benefit.EditInput
	if req.ExpenseTypeID != nil {
		id := benefit.ExpenseTypeID(*req.ExpenseTypeID)
		in.ExpenseTypeID = &id
	}
	if req.Origin != nil {
		o := benefit.Origin(*req.Origin)
		in.Origin = &o
	}
	in.Description = req.Description
	in.ReceiptSignature = req.ReceiptSignature
	if req.ExpenseDate != nil {
		d, err := generic.ParseDate(*req.ExpenseDate)
		if err != nil {
			writeServiceError(w, h.logger, generic.NewValidationError("expenseDate", err.Error()))
			return
		}
		in.ExpenseDate = &d
	}
	if req.Amount != nil {
		a, err := generic.ParseAmount(*req.Amount)
		if err != nil {
			writeServiceError(w, h.logger, generic.NewValidationError("amount", err.Error()))
			return
		}
		in.Requested = &a
	}

	c, alloc, err := h.Service.Edit(r.Context(), actor(r), benefit.ClaimID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, EditClaimResponse{Claim: toClaimDTO(*c), Allocation: toAllocationDTO(alloc)})
}

func (h *Handler) StartReview(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.StartReview(r.Context(), actor(r), benefit.ClaimID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*c))
}

func (h *Handler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Approve(r.Context(), actor(r), benefit.ClaimID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*c))
}

func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Service.Reject(r.Context(), actor(r), benefit.ClaimID(chi.URLParam(r, "id")), req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*c))
}

// ApproveClaims approves each id independently; per-item failures are in
// the result, not the status code.
func (h *Handler) ApproveClaims(w http.ResponseWriter, r *http.Request) {
	var req BatchApproveRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Service.ApproveMany(r.Context(), actor(r), claimIDs(req.IDs))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) RejectClaims(w http.ResponseWriter, r *http.Request) {
	var req BatchRejectRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Service.RejectMany(r.Context(), actor(r), claimIDs(req.IDs), req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ClaimAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.ClaimHistory(r.Context(), benefit.ClaimID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func claimIDs(ids []string) []benefit.ClaimID {
	out := make([]benefit.ClaimID, len(ids))
	for i, id := range ids {
		out[i] = benefit.ClaimID(id)
	}
	return out
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.GetEmployee(r.Context(), benefit.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// SaveEmployee creates an employee or changes their ceiling.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ceiling, err := generic.ParseAmount(req.Ceiling)
	if err != nil {
		writeServiceError(w, h.logger, generic.NewValidationError("ceiling", err.Error()))
		return
	}
	e, err := h.Service.SaveEmployee(r.Context(), actor(r), benefit.Employee{
		ID:          benefit.EmployeeID(req.ID),
		Name:        req.Name,
		Ceiling:     ceiling,
		IdentityRef: req.IdentityRef,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Ledger(r.Context(),
		benefit.EmployeeID(chi.URLParam(r, "id")), benefit.PeriodID(chi.URLParam(r, "pid")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(snap))
}

// GetEligibility previews a submission. The amount query parameter is
// optional; without it only the resolution and ledger are returned.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	amount := generic.Zero
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := generic.ParseAmount(raw)
		if err != nil {
			writeServiceError(w, h.logger, generic.NewValidationError("amount", err.Error()))
			return
		}
		amount = parsed
	}
	e, err := h.Service.Eligibility(r.Context(),
		benefit.EmployeeID(chi.URLParam(r, "id")), benefit.PeriodID(chi.URLParam(r, "pid")), amount)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityDTO{
		Resolution: toResolutionDTO(e.Resolution),
		Allocation: toAllocationDTO(e.Allocation),
		Ledger:     toLedgerDTO(e.Ledger),
	})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Service.ListPeriods(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPeriod(r.Context(), benefit.PeriodID(chi.URLParam(r, "pid")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(*p))
}

func (h *Handler) SavePeriod(w http.ResponseWriter, r *http.Request) {
	var req SavePeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := benefit.Period{
		ID:     benefit.PeriodID(req.ID),
		Label:  req.Label,
		Status: benefit.PeriodStatus(req.Status),
		Accrual: generic.Window{
			Start: generic.MustParseDate(req.Accrual.Start),
			End:   generic.MustParseDate(req.Accrual.End),
		},
		Submission: generic.Window{
			Start: generic.MustParseDate(req.Submission.Start),
			End:   generic.MustParseDate(req.Submission.End),
		},
	}
	if req.NextPeriodID != "" {
		next := benefit.PeriodID(req.NextPeriodID)
		p.NextPeriodID = &next
	}

	saved, err := h.Service.SavePeriod(r.Context(), actor(r), p)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(*saved))
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.ClosePeriod(r.Context(), actor(r), benefit.PeriodID(chi.URLParam(r, "pid")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(*p))
}

func (h *Handler) TaxableConversion(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.TaxableConversion(r.Context(), benefit.PeriodID(chi.URLParam(r, "pid")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	dto := TaxableConversionReportDTO{
		PeriodID: string(report.PeriodID),
		Final:    report.Final,
		Items:    make([]TaxableConversionDTO, len(report.Items)),
		Total:    report.Total,
	}
	for i, item := range report.Items {
		dto.Items[i] = TaxableConversionDTO{
			EmployeeID:  string(item.EmployeeID),
			Ceiling:     item.Ceiling,
			ApprovedSum: item.ApprovedSum,
			Amount:      item.Amount,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// EXPENSE TYPE HANDLERS
// =============================================================================

func (h *Handler) ListExpenseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.ListExpenseTypes(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	dtos := make([]ExpenseTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toExpenseTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetExpenseType(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.GetExpenseType(r.Context(), benefit.ExpenseTypeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseTypeDTO(*t))
}

func (h *Handler) SaveExpenseType(w http.ResponseWriter, r *http.Request) {
	var req SaveExpenseTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	t := benefit.ExpenseType{
		ID:             benefit.ExpenseTypeID(req.ID),
		Name:           req.Name,
		Classification: benefit.Classification(req.Classification),
	}
	for _, o := range req.AllowedOrigins {
		t.AllowedOrigins = append(t.AllowedOrigins, benefit.Origin(o))
	}
	saved, err := h.Service.SaveExpenseType(r.Context(), actor(r), t)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseTypeDTO(*saved))
}
