package benefit

import (
	"strings"
	"time"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// EXPENSE LIFECYCLE - Claim status state machine
// =============================================================================
//
//	enviado ──startReview──► em_analise ──approve──► valido
//	   │                        │
//	   ├──────approve───────────┼──────────────────► valido
//	   └──────reject────────────┴──reject──────────► invalido
//
// valido and invalido are terminal. Every transition requires the approver
// role. Transitions do not touch the allocation: the considered amount fixed
// at submission is what approval makes official.

// CodeInvalidTransition is the PolicyError code of a refused transition.
const CodeInvalidTransition = "invalid_transition"

// Lifecycle actions, used in authorization errors and audit entries.
const (
	ActionStartReview = "start_review"
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionEdit        = "edit"
)

var transitions = map[Status][]Status{
	StatusSubmitted: {StatusInReview, StatusApproved, StatusRejected},
	StatusInReview:  {StatusApproved, StatusRejected},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to Status) error {
	return &generic.PolicyError{
		Code:    CodeInvalidTransition,
		Message: "invalid transition",
		Detail:  map[string]Status{"from": from, "to": to},
	}
}

func requireApprover(actor Actor, action string) error {
	if !actor.HasRole(RoleApprover) {
		return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Role: RoleApprover}
	}
	return nil
}

// StartReview moves a submitted claim to em_analise.
func StartReview(c Claim, actor Actor, now time.Time) (Claim, error) {
	if err := requireApprover(actor, ActionStartReview); err != nil {
		return c, err
	}
	if c.Status != StatusSubmitted {
		return c, invalidTransition(c.Status, StatusInReview)
	}
	c.Status = StatusInReview
	c.UpdatedAt = now
	return c, nil
}

// Approve makes the claim's considered amount official.
func Approve(c Claim, actor Actor, now time.Time) (Claim, error) {
	if err := requireApprover(actor, ActionApprove); err != nil {
		return c, err
	}
	if !CanTransition(c.Status, StatusApproved) {
		return c, invalidTransition(c.Status, StatusApproved)
	}
	c.Status = StatusApproved
	c.ReviewedBy = actor.ID
	c.ReviewedAt = &now
	c.UpdatedAt = now
	return c, nil
}

// Reject frees the claim's considered amount. A non-blank reason is
// mandatory.
func Reject(c Claim, actor Actor, reason string, now time.Time) (Claim, error) {
	if err := requireApprover(actor, ActionReject); err != nil {
		return c, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return c, generic.NewValidationError("reason", "rejection reason is required")
	}
	if !CanTransition(c.Status, StatusRejected) {
		return c, invalidTransition(c.Status, StatusRejected)
	}
	c.Status = StatusRejected
	c.RejectionReason = reason
	c.ReviewedBy = actor.ID
	c.ReviewedAt = &now
	c.UpdatedAt = now
	return c, nil
}

// CanEdit checks that actor may edit c. Only pending claims are editable.
func CanEdit(c Claim, actor Actor) error {
	if err := requireApprover(actor, ActionEdit); err != nil {
		return err
	}
	if !c.Status.IsPending() {
		return &generic.PolicyError{
			Code:    CodeInvalidTransition,
			Message: "claim in status " + string(c.Status) + " can no longer be edited",
		}
	}
	return nil
}
