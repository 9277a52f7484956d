package benefit

import (
	"time"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// PERIOD RESOLVER - Where does a claim submitted now belong?
// =============================================================================

// Outcome classifies a Resolution.
type Outcome string

const (
	OutcomeBlocked    Outcome = "blocked"
	OutcomeCurrent    Outcome = "current"
	OutcomeRedirected Outcome = "redirected"
)

// Resolution codes, stable for API clients.
const (
	CodeNoPeriod          = "no_period_configured"
	CodeNotYetOpen        = "window_not_yet_open"
	CodeWithinWindow      = "within_window"
	CodeRedirectedNext    = "redirected_to_next_period"
	CodeClosedNoNext      = "period_closed_no_next"
	CodeNextPeriodNotOpen = "next_period_not_open"
)

// Resolution is the PeriodResolver's decision. PeriodID is the destination
// period when Permitted, empty otherwise.
type Resolution struct {
	Permitted bool
	Outcome   Outcome
	PeriodID  PeriodID
	Code      string
	Message   string
}

// Resolve decides which period a claim created at now belongs to.
//
// Day boundaries are evaluated in now's location. The close day is inclusive
// through 23:59:59.999. Only the explicitly linked next period is consulted;
// later periods are never searched by date. A target period closed by an
// administrator behaves as if its submission window had elapsed.
func Resolve(now time.Time, target *Period, next *Period) Resolution {
	if target == nil {
		return blocked(CodeNoPeriod, "no period configured")
	}

	window := target.Submission
	if window.NotYetOpen(now) {
		return blocked(CodeNotYetOpen, "submission window not yet open: opens "+window.Start.String())
	}

	if !window.Elapsed(now) && target.Status != PeriodClosed {
		return Resolution{
			Permitted: true,
			Outcome:   OutcomeCurrent,
			PeriodID:  target.ID,
			Code:      CodeWithinWindow,
			Message:   "claim will be recorded under period " + target.Label,
		}
	}

	if next == nil {
		return blocked(CodeClosedNoNext, "period closed, no next period configured")
	}
	if next.Status != PeriodOpen {
		return blocked(CodeNextPeriodNotOpen, "period closed and next period "+next.Label+" is not open")
	}
	return Resolution{
		Permitted: true,
		Outcome:   OutcomeRedirected,
		PeriodID:  next.ID,
		Code:      CodeRedirectedNext,
		Message:   "period " + target.Label + " is closed; claim will be recorded under the next period " + next.Label,
	}
}

// Err converts a blocked Resolution into a PolicyError; nil when permitted.
func (r Resolution) Err() error {
	if r.Permitted {
		return nil
	}
	return &generic.PolicyError{Code: r.Code, Message: r.Message, Detail: r}
}

func blocked(code, message string) Resolution {
	return Resolution{Permitted: false, Outcome: OutcomeBlocked, Code: code, Message: message}
}
