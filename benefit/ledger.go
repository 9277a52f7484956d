/*
ledger.go - Per employee/period totals, recomputed from claims

PURPOSE:
  There are no running counters. Every question about consumption is
  answered by replaying the current set of claims for an employee and
  period. A ceiling change or a status change is therefore reflected on the
  very next read, with nothing to keep in sync.

TOTALS:
  ApprovedSum: Σ considered where status = valido
  PendingSum:  Σ considered where status ∈ {enviado, em_analise}
  RejectedSum: Σ considered where status = invalido
  Remaining:   max(0, ceiling - ApprovedSum), for display

ALLOCATION BASIS:
  The amount fed to Allocate as "already used" is ApprovedSum + PendingSum:
  every claim not rejected holds its considered amount against the ceiling,
  the same way a pending request holds balance until it is decided. Only a
  rejection frees room. See AlreadyUsed.

SEE ALSO:
  - allocator.go: Consumes AlreadyUsed / AllocationRoom
  - service.go: Reads the snapshot inside the allocation transaction
*/
package benefit

import (
	"github.com/warp/benefit-engine/generic"
)

// LedgerSnapshot is the computed state of one employee in one period.
type LedgerSnapshot struct {
	EmployeeID EmployeeID
	PeriodID   PeriodID
	Ceiling    generic.Amount

	ApprovedSum generic.Amount
	PendingSum  generic.Amount
	RejectedSum generic.Amount

	// Remaining is max(0, Ceiling - ApprovedSum), for display.
	Remaining generic.Amount

	Counts map[Status]int

	// NotConsideredByClaim lists the overflow of each non-rejected claim.
	NotConsideredByClaim []generic.Amount
}

// Aggregate replays claims into a snapshot. Claims belonging to another
// employee or period are ignored.
func Aggregate(employeeID EmployeeID, periodID PeriodID, ceiling generic.Amount, claims []Claim) LedgerSnapshot {
	snap := LedgerSnapshot{
		EmployeeID:  employeeID,
		PeriodID:    periodID,
		Ceiling:     ceiling,
		ApprovedSum: generic.Zero,
		PendingSum:  generic.Zero,
		RejectedSum: generic.Zero,
		Counts:      make(map[Status]int),
	}

	for _, c := range claims {
		if c.EmployeeID != employeeID || c.PeriodID != periodID {
			continue
		}
		snap.Counts[c.Status]++
		switch c.Status {
		case StatusApproved:
			snap.ApprovedSum = snap.ApprovedSum.Add(c.Considered)
		case StatusSubmitted, StatusInReview:
			snap.PendingSum = snap.PendingSum.Add(c.Considered)
		case StatusRejected:
			snap.RejectedSum = snap.RejectedSum.Add(c.Considered)
			continue
		}
		snap.NotConsideredByClaim = append(snap.NotConsideredByClaim, c.NotConsidered)
	}

	snap.Remaining = ceiling.Sub(snap.ApprovedSum).ClampZero()
	return snap
}

// AlreadyUsed is the canonical "already used" input of Allocate.
func (s LedgerSnapshot) AlreadyUsed() generic.Amount {
	return s.ApprovedSum.Add(s.PendingSum)
}

// AllocationRoom is the ceiling room seen by Allocate. It may be negative
// after a ceiling decrease.
func (s LedgerSnapshot) AllocationRoom() generic.Amount {
	return s.Ceiling.Sub(s.AlreadyUsed())
}

// BlockedByPriorOverflow applies IsBlockedByPriorOverflow to this snapshot.
func (s LedgerSnapshot) BlockedByPriorOverflow() bool {
	return IsBlockedByPriorOverflow(s.NotConsideredByClaim, s.AllocationRoom())
}

// TaxableConversion is the unused approved room of the period.
func (s LedgerSnapshot) TaxableConversion() generic.Amount {
	return UnusedToTaxableConversion(s.Ceiling, s.ApprovedSum)
}

// excluding returns the claims without the one identified by id. Used when a
// claim is edited: its own previous allocation must not count against it.
func excluding(claims []Claim, id ClaimID) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
