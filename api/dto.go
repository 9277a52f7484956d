/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures of the HTTP contract. Wire strings for status
  (enviado, em_analise, valido, invalido) and origin (proprio, conjuge,
  filhos) pass through unchanged; amounts travel as decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request shapes are checked with go-playground/validator struct tags in the
  handlers. Domain rules (origin allowed for the type, ceiling, windows) stay
  in the benefit package.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: ErrorResponse
*/
package api

import (
	"time"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// REQUESTS
// =============================================================================

type SubmitClaimRequest struct {
	EmployeeID       string `json:"employeeId" validate:"required"`
	PeriodID         string `json:"periodId" validate:"required"`
	ExpenseTypeID    string `json:"expenseTypeId" validate:"required"`
	Origin           string `json:"origin" validate:"required,oneof=proprio conjuge filhos"`
	Description      string `json:"description" validate:"max=500"`
	ExpenseDate      string `json:"expenseDate" validate:"required,datetime=2006-01-02"`
	ReceiptSignature string `json:"receiptSignature" validate:"max=200"`
	Amount           string `json:"amount" validate:"required,numeric"`
}

// EditClaimRequest carries only the fields to change.
type EditClaimRequest struct {
	ExpenseTypeID    *string `json:"expenseTypeId,omitempty" validate:"omitempty,min=1"`
	Origin           *string `json:"origin,omitempty" validate:"omitempty,oneof=proprio conjuge filhos"`
	Description      *string `json:"description,omitempty" validate:"omitempty,max=500"`
	ExpenseDate      *string `json:"expenseDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ReceiptSignature *string `json:"receiptSignature,omitempty" validate:"omitempty,max=200"`
	Amount           *string `json:"amount,omitempty" validate:"omitempty,numeric"`
}

// RejectRequest carries the reason. The service checks it is not blank.
type RejectRequest struct {
	Reason string `json:"reason"`
}

type BatchApproveRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type BatchRejectRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Reason string   `json:"reason"`
}

type WindowDTO struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

type SavePeriodRequest struct {
	ID           string    `json:"id" validate:"required"`
	Label        string    `json:"label"`
	Accrual      WindowDTO `json:"accrual"`
	Submission   WindowDTO `json:"submission"`
	Status       string    `json:"status" validate:"omitempty,oneof=open closed"`
	NextPeriodID string    `json:"nextPeriodId"`
}

type SaveEmployeeRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Ceiling     string `json:"ceiling" validate:"required,numeric"`
	IdentityRef string `json:"identityRef"`
}

type SaveExpenseTypeRequest struct {
	ID             string   `json:"id" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Classification string   `json:"classification" validate:"required,oneof=fixa variavel"`
	AllowedOrigins []string `json:"allowedOrigins" validate:"required,min=1,dive,oneof=proprio conjuge filhos"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ClaimDTO struct {
	ID               string         `json:"id"`
	EmployeeID       string         `json:"employeeId"`
	PeriodID         string         `json:"periodId"`
	ExpenseTypeID    string         `json:"expenseTypeId"`
	Origin           string         `json:"origin"`
	Description      string         `json:"description,omitempty"`
	ExpenseDate      string         `json:"expenseDate"`
	ReceiptSignature string         `json:"receiptSignature,omitempty"`
	Requested        generic.Amount `json:"requested"`
	Considered       generic.Amount `json:"considered"`
	NotConsidered    generic.Amount `json:"notConsidered"`
	Status           string         `json:"status"`
	RejectionReason  string         `json:"rejectionReason,omitempty"`
	ReviewedBy       string         `json:"reviewedBy,omitempty"`
	ReviewedAt       string         `json:"reviewedAt,omitempty"`
	SubmittedBy      string         `json:"submittedBy"`
	CreatedAt        string         `json:"createdAt"`
	UpdatedAt        string         `json:"updatedAt"`
	Version          int64          `json:"version"`
}

type ResolutionDTO struct {
	Permitted bool   `json:"permitted"`
	Outcome   string `json:"outcome"`
	PeriodID  string `json:"periodId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type AllocationDTO struct {
	Requested     generic.Amount `json:"requested"`
	Considered    generic.Amount `json:"considered"`
	NotConsidered generic.Amount `json:"notConsidered"`
	Remaining     generic.Amount `json:"remaining"`
	Permitted     bool           `json:"permitted"`
	BlockedAfter  bool           `json:"blockedAfter"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
}

// SubmitClaimResponse is returned on 201. Message repeats the allocation
// message so partial acceptance is visible without digging.
type SubmitClaimResponse struct {
	Claim        ClaimDTO       `json:"claim"`
	Resolution   ResolutionDTO  `json:"resolution"`
	Allocation   *AllocationDTO `json:"allocation,omitempty"`
	BlockedAfter bool           `json:"blockedAfter"`
	Message      string         `json:"message"`
}

type EditClaimResponse struct {
	Claim      ClaimDTO       `json:"claim"`
	Allocation *AllocationDTO `json:"allocation,omitempty"`
}

type LedgerDTO struct {
	EmployeeID  string         `json:"employeeId"`
	PeriodID    string         `json:"periodId"`
	Ceiling     generic.Amount `json:"ceiling"`
	ApprovedSum generic.Amount `json:"approvedSum"`
	PendingSum  generic.Amount `json:"pendingSum"`
	RejectedSum generic.Amount `json:"rejectedSum"`
	Remaining   generic.Amount `json:"remaining"`
	Counts      map[string]int `json:"counts"`
	Blocked     bool           `json:"blockedByPriorOverflow"`
}

type EligibilityDTO struct {
	Resolution ResolutionDTO  `json:"resolution"`
	Allocation *AllocationDTO `json:"allocation,omitempty"`
	Ledger     *LedgerDTO     `json:"ledger,omitempty"`
}

type TaxableConversionDTO struct {
	EmployeeID  string         `json:"employeeId"`
	Ceiling     generic.Amount `json:"ceiling"`
	ApprovedSum generic.Amount `json:"approvedSum"`
	Amount      generic.Amount `json:"amount"`
}

type TaxableConversionReportDTO struct {
	PeriodID string                 `json:"periodId"`
	Final    bool                   `json:"final"`
	Items    []TaxableConversionDTO `json:"items"`
	Total    generic.Amount         `json:"total"`
}

type PeriodDTO struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Accrual      WindowDTO `json:"accrual"`
	Submission   WindowDTO `json:"submission"`
	Status       string    `json:"status"`
	NextPeriodID string    `json:"nextPeriodId,omitempty"`
}

type EmployeeDTO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Ceiling     generic.Amount `json:"ceiling"`
	IdentityRef string         `json:"identityRef,omitempty"`
}

type ExpenseTypeDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Classification string   `json:"classification"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	ActorID    string         `json:"actorId"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toClaimDTO(c benefit.Claim) ClaimDTO {
	dto := ClaimDTO{
		ID:               string(c.ID),
		EmployeeID:       string(c.EmployeeID),
		PeriodID:         string(c.PeriodID),
		ExpenseTypeID:    string(c.ExpenseTypeID),
		Origin:           string(c.Origin),
		Description:      c.Description,
		ExpenseDate:      c.ExpenseDate.String(),
		ReceiptSignature: c.ReceiptSignature,
		Requested:        c.Requested,
		Considered:       c.Considered,
		NotConsidered:    c.NotConsidered,
		Status:           string(c.Status),
		RejectionReason:  c.RejectionReason,
		ReviewedBy:       c.ReviewedBy,
		SubmittedBy:      c.SubmittedBy,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
		Version:          c.Version,
	}
	if c.ReviewedAt != nil {
		dto.ReviewedAt = c.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toClaimDTOs(claims []benefit.Claim) []ClaimDTO {
	dtos := make([]ClaimDTO, len(claims))
	for i, c := range claims {
		dtos[i] = toClaimDTO(c)
	}
	return dtos
}

func toResolutionDTO(r benefit.Resolution) ResolutionDTO {
	return ResolutionDTO{
		Permitted: r.Permitted,
		Outcome:   string(r.Outcome),
		PeriodID:  string(r.PeriodID),
		Code:      r.Code,
		Message:   r.Message,
	}
}

func toAllocationDTO(a *benefit.Allocation) *AllocationDTO {
	if a == nil {
		return nil
	}
	return &AllocationDTO{
		Requested:     a.Requested,
		Considered:    a.Considered,
		NotConsidered: a.NotConsidered,
		Remaining:     a.Remaining,
		Permitted:     a.Permitted,
		BlockedAfter:  a.BlockedAfter,
		Code:          a.Code,
		Message:       a.Message,
	}
}

func toLedgerDTO(s *benefit.LedgerSnapshot) *LedgerDTO {
	if s == nil {
		return nil
	}
	counts := make(map[string]int, len(s.Counts))
	for status, n := range s.Counts {
		counts[string(status)] = n
	}
	return &LedgerDTO{
		EmployeeID:  string(s.EmployeeID),
		PeriodID:    string(s.PeriodID),
		Ceiling:     s.Ceiling,
		ApprovedSum: s.ApprovedSum,
		PendingSum:  s.PendingSum,
		RejectedSum: s.RejectedSum,
		Remaining:   s.Remaining,
		Counts:      counts,
		Blocked:     s.BlockedByPriorOverflow(),
	}
}

func toPeriodDTO(p benefit.Period) PeriodDTO {
	dto := PeriodDTO{
		ID:         string(p.ID),
		Label:      p.Label,
		Accrual:    WindowDTO{Start: p.Accrual.Start.String(), End: p.Accrual.End.String()},
		Submission: WindowDTO{Start: p.Submission.Start.String(), End: p.Submission.End.String()},
		Status:     string(p.Status),
	}
	if p.NextPeriodID != nil {
		dto.NextPeriodID = string(*p.NextPeriodID)
	}
	return dto
}

func toEmployeeDTO(e benefit.Employee) EmployeeDTO {
	return EmployeeDTO{ID: string(e.ID), Name: e.Name, Ceiling: e.Ceiling, IdentityRef: e.IdentityRef}
}

func toExpenseTypeDTO(t benefit.ExpenseType) ExpenseTypeDTO {
	origins := make([]string, len(t.AllowedOrigins))
	for i, o := range t.AllowedOrigins {
		origins[i] = string(o)
	}
	return ExpenseTypeDTO{
		ID:             string(t.ID),
		Name:           t.Name,
		Classification: string(t.Classification),
		AllowedOrigins: origins,
	}
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		Action:     string(e.Action),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		OldValues:  e.OldValues,
		NewValues:  e.NewValues,
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
	}
}
