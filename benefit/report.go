package benefit

import (
	"context"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// REPORTS - Read-only views over the ledger
// =============================================================================

// Ledger recomputes the snapshot of one employee in one period from the
// latest committed claims.
func (s *ClaimService) Ledger(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (*LedgerSnapshot, error) {
	employee, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	claims, err := s.store.ListClaims(ctx, ClaimFilter{EmployeeID: employeeID, PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	snap := Aggregate(employeeID, periodID, employee.Ceiling, claims)
	return &snap, nil
}

// Eligibility previews what Submit would decide for a request right now,
// without writing anything. Allocation is nil when the period is blocked or
// no amount was given.
type Eligibility struct {
	Resolution Resolution
	Allocation *Allocation
	Ledger     *LedgerSnapshot
}

func (s *ClaimService) Eligibility(ctx context.Context, employeeID EmployeeID, periodID PeriodID, requested generic.Amount) (*Eligibility, error) {
	if requested.IsNegative() {
		return nil, generic.NewValidationError("requested", "amount must not be negative")
	}
	if err := requireCents("requested", requested); err != nil {
		return nil, err
	}
	employee, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	target, next, err := s.loadPeriods(ctx, periodID)
	if err != nil {
		return nil, err
	}

	out := &Eligibility{Resolution: Resolve(s.clock.Now(), target, next)}
	if !out.Resolution.Permitted {
		return out, nil
	}

	destination := out.Resolution.PeriodID
	claims, err := s.store.ListClaims(ctx, ClaimFilter{EmployeeID: employeeID, PeriodID: destination})
	if err != nil {
		return nil, err
	}
	snap := Aggregate(employeeID, destination, employee.Ceiling, claims)
	out.Ledger = &snap
	if requested.IsPositive() {
		alloc, _ := decide(requested, snap)
		out.Allocation = &alloc
	}
	return out, nil
}

// TaxableConversion is the unused ceiling of one employee at the end of a
// period, reported downstream as a taxable event.
type TaxableConversion struct {
	EmployeeID  EmployeeID
	Ceiling     generic.Amount
	ApprovedSum generic.Amount
	Amount      generic.Amount
}

// TaxableConversionReport is the per-employee conversion of a period. Final
// is false while the submission window is still running.
type TaxableConversionReport struct {
	PeriodID PeriodID
	Final    bool
	Items    []TaxableConversion
	Total    generic.Amount
}

func (s *ClaimService) TaxableConversion(ctx context.Context, periodID PeriodID) (*TaxableConversionReport, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := s.store.ListClaims(ctx, ClaimFilter{PeriodID: periodID, Statuses: []Status{StatusApproved}})
	if err != nil {
		return nil, err
	}

	report := &TaxableConversionReport{
		PeriodID: periodID,
		Final:    period.Status == PeriodClosed || period.Submission.Elapsed(s.clock.Now()),
		Items:    make([]TaxableConversion, 0, len(employees)),
		Total:    generic.Zero,
	}
	for _, e := range employees {
		snap := Aggregate(e.ID, periodID, e.Ceiling, claims)
		item := TaxableConversion{
			EmployeeID:  e.ID,
			Ceiling:     e.Ceiling,
			ApprovedSum: snap.ApprovedSum,
			Amount:      snap.TaxableConversion(),
		}
		report.Items = append(report.Items, item)
		report.Total = report.Total.Add(item.Amount)
	}
	return report, nil
}
