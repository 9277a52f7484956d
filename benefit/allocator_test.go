package benefit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

func amt(s string) generic.Amount { return generic.MustParseAmount(s) }

func TestAllocate_Partial_BlocksAfter(t *testing.T) {
	// GIVEN: Ceiling 1000, 800 already used
	// WHEN: Requesting 300
	// THEN: 200 considered, 100 not considered, permitted, blocked after

	a := benefit.Allocate(amt("300"), amt("1000"), amt("800"))

	assert.True(t, a.Permitted)
	assert.True(t, a.BlockedAfter)
	assert.True(t, a.Considered.Equal(amt("200")), "considered: %s", a.Considered)
	assert.True(t, a.NotConsidered.Equal(amt("100")), "not considered: %s", a.NotConsidered)
	assert.Equal(t, benefit.CodePartiallyConsidered, a.Code)
	assert.NoError(t, a.Err())
}

func TestAllocate_CeilingReached_Refused(t *testing.T) {
	// GIVEN: Ceiling 1000 fully used
	// WHEN: Requesting 50
	// THEN: Nothing considered, not permitted

	a := benefit.Allocate(amt("50"), amt("1000"), amt("1000"))

	assert.False(t, a.Permitted)
	assert.True(t, a.Considered.IsZero())
	assert.True(t, a.NotConsidered.Equal(amt("50")))
	assert.Equal(t, benefit.CodeCeilingReached, a.Code)

	err := a.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrPolicy)
	var pe *generic.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, a, pe.Detail)
}

func TestAllocate_FitsEntirely(t *testing.T) {
	a := benefit.Allocate(amt("150.50"), amt("1000"), amt("200"))

	assert.True(t, a.Permitted)
	assert.False(t, a.BlockedAfter)
	assert.True(t, a.Considered.Equal(amt("150.50")))
	assert.True(t, a.NotConsidered.IsZero())
	assert.True(t, a.Remaining.Equal(amt("800")))
}

func TestAllocate_ExactlyRemaining_NotBlocked(t *testing.T) {
	a := benefit.Allocate(amt("200"), amt("1000"), amt("800"))

	assert.True(t, a.Permitted)
	assert.False(t, a.BlockedAfter)
	assert.Equal(t, benefit.CodeFullyConsidered, a.Code)
}

func TestAllocate_OverdrawnAfterCeilingDecrease_Refused(t *testing.T) {
	// GIVEN: Ceiling lowered below what is already used
	a := benefit.Allocate(amt("10"), amt("500"), amt("800"))

	assert.False(t, a.Permitted)
	assert.True(t, a.Considered.IsZero())
}

func TestAllocate_SplitAlwaysSumsToRequested(t *testing.T) {
	cases := []struct{ requested, ceiling, used string }{
		{"300", "1000", "800"},
		{"50", "1000", "1000"},
		{"0.01", "1000", "999.99"},
		{"1000.01", "1000", "0"},
		{"75.33", "100", "24.67"},
		{"10", "0", "0"},
	}
	for _, c := range cases {
		a := benefit.Allocate(amt(c.requested), amt(c.ceiling), amt(c.used))
		assert.True(t, a.Considered.Add(a.NotConsidered).Equal(amt(c.requested)),
			"%+v: %s + %s", c, a.Considered, a.NotConsidered)
		assert.False(t, a.Considered.IsNegative(), "%+v", c)
		assert.True(t, a.Considered.LessThanOrEqual(amt(c.ceiling).Sub(amt(c.used)).Max(generic.Zero)), "%+v", c)
	}
}

func TestIsBlockedByPriorOverflow(t *testing.T) {
	tests := []struct {
		name      string
		prior     []generic.Amount
		remaining generic.Amount
		want      bool
	}{
		{"overflow and no room", []generic.Amount{amt("0"), amt("100")}, amt("0"), true},
		{"overflow but ceiling raised", []generic.Amount{amt("100")}, amt("50"), false},
		{"no overflow, no room", []generic.Amount{amt("0")}, amt("0"), false},
		{"no prior claims", nil, amt("0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, benefit.IsBlockedByPriorOverflow(tt.prior, tt.remaining))
		})
	}
}

func TestUnusedToTaxableConversion(t *testing.T) {
	assert.True(t, benefit.UnusedToTaxableConversion(amt("1000"), amt("600")).Equal(amt("400")))
	assert.True(t, benefit.UnusedToTaxableConversion(amt("1000"), amt("1000")).IsZero())
	assert.True(t, benefit.UnusedToTaxableConversion(amt("1000"), amt("1200")).IsZero())
}
