package benefit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/benefit-engine/benefit"
)

func claimWith(id string, status benefit.Status, considered, notConsidered string) benefit.Claim {
	c := amt(considered)
	nc := amt(notConsidered)
	return benefit.Claim{
		ID:            benefit.ClaimID(id),
		EmployeeID:    "emp-1",
		PeriodID:      "p-2024",
		Requested:     c.Add(nc),
		Considered:    c,
		NotConsidered: nc,
		Status:        status,
	}
}

func TestAggregate_TotalsByStatus(t *testing.T) {
	claims := []benefit.Claim{
		claimWith("c1", benefit.StatusApproved, "300", "0"),
		claimWith("c2", benefit.StatusApproved, "100", "0"),
		claimWith("c3", benefit.StatusSubmitted, "50", "0"),
		claimWith("c4", benefit.StatusInReview, "25", "0"),
		claimWith("c5", benefit.StatusRejected, "200", "0"),
	}

	snap := benefit.Aggregate("emp-1", "p-2024", amt("1000"), claims)

	assert.True(t, snap.ApprovedSum.Equal(amt("400")))
	assert.True(t, snap.PendingSum.Equal(amt("75")))
	assert.True(t, snap.RejectedSum.Equal(amt("200")))
	assert.True(t, snap.Remaining.Equal(amt("600")))
	assert.True(t, snap.AlreadyUsed().Equal(amt("475")))
	assert.True(t, snap.AllocationRoom().Equal(amt("525")))
	assert.Equal(t, 2, snap.Counts[benefit.StatusApproved])
	assert.Equal(t, 1, snap.Counts[benefit.StatusRejected])
}

func TestAggregate_IgnoresOtherEmployeesAndPeriods(t *testing.T) {
	other := claimWith("x", benefit.StatusApproved, "999", "0")
	other.EmployeeID = "emp-2"
	otherPeriod := claimWith("y", benefit.StatusApproved, "999", "0")
	otherPeriod.PeriodID = "p-2025"

	snap := benefit.Aggregate("emp-1", "p-2024", amt("1000"), []benefit.Claim{other, otherPeriod})

	assert.True(t, snap.ApprovedSum.IsZero())
	assert.True(t, snap.Remaining.Equal(amt("1000")))
}

func TestAggregate_RemainingNeverNegative(t *testing.T) {
	// GIVEN: Ceiling lowered to 300 after 400 was approved
	snap := benefit.Aggregate("emp-1", "p-2024", amt("300"),
		[]benefit.Claim{claimWith("c1", benefit.StatusApproved, "400", "0")})

	assert.True(t, snap.Remaining.IsZero())
	assert.True(t, snap.AllocationRoom().IsNegative())
	assert.True(t, snap.TaxableConversion().IsZero())
}

func TestAggregate_CeilingRaise_Reflected(t *testing.T) {
	claims := []benefit.Claim{claimWith("c1", benefit.StatusApproved, "1000", "200")}

	before := benefit.Aggregate("emp-1", "p-2024", amt("1000"), claims)
	after := benefit.Aggregate("emp-1", "p-2024", amt("1500"), claims)

	assert.True(t, before.BlockedByPriorOverflow())
	assert.False(t, after.BlockedByPriorOverflow())
	assert.True(t, after.Remaining.Equal(amt("500")))
}

func TestAggregate_RejectedOverflow_DoesNotBlock(t *testing.T) {
	// GIVEN: The overflowing claim was rejected
	// THEN: Its room is freed and its overflow no longer counts
	claims := []benefit.Claim{claimWith("c1", benefit.StatusRejected, "1000", "200")}

	snap := benefit.Aggregate("emp-1", "p-2024", amt("1000"), claims)

	assert.False(t, snap.BlockedByPriorOverflow())
	assert.True(t, snap.AllocationRoom().Equal(amt("1000")))
}
