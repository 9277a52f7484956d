package generic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds_UnwrapToSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{NewValidationError("amount", "must be positive"), ErrValidation},
		{&PolicyError{Code: "x", Message: "refused"}, ErrPolicy},
		{&AuthorizationError{ActorID: "a", Action: "approve", Role: "approver"}, ErrUnauthorized},
		{&NotFoundError{Entity: "claim", ID: "c1"}, ErrNotFound},
		{&ConflictError{Resource: "ledger"}, ErrConcurrentModification},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("outer: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.sentinel, "%T", tt.err)
	}
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsRetryable(&ConflictError{Resource: "ledger"}))
	assert.True(t, IsRetryable(fmt.Errorf("%w: key", ErrLockNotAcquired)))
	assert.False(t, IsRetryable(NewValidationError("f", "bad")))

	assert.True(t, IsClientError(&PolicyError{Message: "no"}))
	assert.True(t, IsClientError(&AuthorizationError{}))
	assert.False(t, IsClientError(errors.New("disk full")))

	assert.True(t, IsNotFound(&NotFoundError{Entity: "period", ID: "p"}))
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "reason: required", NewValidationError("reason", "required").Error())
	assert.Equal(t, "required", NewValidationError("", "required").Error())
}
