package benefit

import (
	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// QUOTA ALLOCATOR - How much of a request fits under the ceiling
// =============================================================================

// Allocation codes, stable for API clients.
const (
	CodeFullyConsidered     = "fully_considered"
	CodePartiallyConsidered = "partially_considered"
	CodeCeilingReached      = "ceiling_already_reached"
	CodeBlockedByOverflow   = "blocked_by_prior_overflow"
)

// Allocation splits a requested amount into the part that counts against the
// ceiling (Considered) and the part that does not (NotConsidered).
//
// INVARIANT: Considered + NotConsidered == Requested.
type Allocation struct {
	Requested     generic.Amount
	Considered    generic.Amount
	NotConsidered generic.Amount
	Remaining     generic.Amount // ceiling room before this request
	Permitted     bool
	BlockedAfter  bool // this claim consumed the last room of the period
	Code          string
	Message       string
}

// Allocate decides the split of requested given the ceiling and what is
// already used.
//
//	remaining <= 0          -> nothing considered, not permitted
//	requested <= remaining  -> fully considered
//	requested >  remaining  -> remaining considered, the rest not, and the
//	                           period is blocked after this claim
func Allocate(requested, ceiling, alreadyUsed generic.Amount) Allocation {
	remaining := ceiling.Sub(alreadyUsed)

	if !remaining.IsPositive() {
		return Allocation{
			Requested:     requested,
			Considered:    generic.Zero,
			NotConsidered: requested,
			Remaining:     remaining,
			Permitted:     false,
			Code:          CodeCeilingReached,
			Message:       "benefit ceiling already reached for this period",
		}
	}

	if requested.LessThanOrEqual(remaining) {
		return Allocation{
			Requested:     requested,
			Considered:    requested,
			NotConsidered: generic.Zero,
			Remaining:     remaining,
			Permitted:     true,
			Code:          CodeFullyConsidered,
			Message:       "amount fully considered",
		}
	}

	return Allocation{
		Requested:     requested,
		Considered:    remaining,
		NotConsidered: requested.Sub(remaining),
		Remaining:     remaining,
		Permitted:     true,
		BlockedAfter:  true,
		Code:          CodePartiallyConsidered,
		Message: "only " + remaining.String() + " of " + requested.String() +
			" considered; this is the last claim allowed this period",
	}
}

// Err converts a refused Allocation into a PolicyError carrying the
// breakdown; nil when permitted.
func (a Allocation) Err() error {
	if a.Permitted {
		return nil
	}
	return &generic.PolicyError{Code: a.Code, Message: a.Message, Detail: a}
}

// IsBlockedByPriorOverflow reports whether a new claim must be refused
// because an earlier claim already overflowed the ceiling. Both conditions
// are required: a ceiling raise that leaves room again lifts the block even
// though a past claim overflowed.
func IsBlockedByPriorOverflow(priorNotConsidered []generic.Amount, currentRemaining generic.Amount) bool {
	overflowed := false
	for _, nc := range priorNotConsidered {
		if nc.IsPositive() {
			overflowed = true
			break
		}
	}
	return overflowed && !currentRemaining.IsPositive()
}

// UnusedToTaxableConversion is the ceiling room left unused at period end,
// reported downstream as a taxable event. Never negative.
func UnusedToTaxableConversion(ceiling, approvedUsed generic.Amount) generic.Amount {
	return ceiling.Sub(approvedUsed).ClampZero()
}
