package benefit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func window(start, end string) generic.Window {
	return generic.Window{Start: generic.MustParseDate(start), End: generic.MustParseDate(end)}
}

func period2024(next *benefit.PeriodID) *benefit.Period {
	return &benefit.Period{
		ID:           "p-2024",
		Label:        "2024",
		Accrual:      window("2023-01-01", "2023-12-31"),
		Submission:   window("2024-01-11", "2024-01-20"),
		Status:       benefit.PeriodOpen,
		NextPeriodID: next,
	}
}

func period2025() *benefit.Period {
	return &benefit.Period{
		ID:         "p-2025",
		Label:      "2025",
		Accrual:    window("2024-01-01", "2024-12-31"),
		Submission: window("2025-01-11", "2025-01-20"),
		Status:     benefit.PeriodOpen,
	}
}

func at(date string, hour, min int) time.Time {
	d := generic.MustParseDate(date)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, time.UTC)
}

func nextID(id benefit.PeriodID) *benefit.PeriodID { return &id }

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolve_WithinWindow_Current(t *testing.T) {
	// GIVEN: Submission window Jan 11 - Jan 20
	// WHEN: Resolving on Jan 15
	// THEN: The claim stays in the target period

	target := period2024(nextID("p-2025"))
	r := benefit.Resolve(at("2024-01-15", 10, 0), target, period2025())

	assert.True(t, r.Permitted)
	assert.Equal(t, benefit.OutcomeCurrent, r.Outcome)
	assert.Equal(t, benefit.PeriodID("p-2024"), r.PeriodID)
	assert.Equal(t, benefit.CodeWithinWindow, r.Code)
	assert.NoError(t, r.Err())
}

func TestResolve_AfterWindow_RedirectedToNext(t *testing.T) {
	// GIVEN: Same period, next period linked and open
	// WHEN: Resolving on Jan 25
	// THEN: Redirected to the next period

	next := period2025()
	r := benefit.Resolve(at("2024-01-25", 9, 0), period2024(&next.ID), next)

	assert.True(t, r.Permitted)
	assert.Equal(t, benefit.OutcomeRedirected, r.Outcome)
	assert.Equal(t, next.ID, r.PeriodID)
	assert.Contains(t, r.Message, "2025")
}

func TestResolve_BeforeWindow_Blocked(t *testing.T) {
	r := benefit.Resolve(at("2024-01-10", 23, 59), period2024(nil), nil)

	assert.False(t, r.Permitted)
	assert.Equal(t, benefit.OutcomeBlocked, r.Outcome)
	assert.Equal(t, benefit.CodeNotYetOpen, r.Code)
	assert.Empty(t, r.PeriodID)
	assert.Contains(t, r.Message, "2024-01-11")
}

func TestResolve_BoundaryInstants(t *testing.T) {
	target := period2024(nil)

	tests := []struct {
		name      string
		now       time.Time
		permitted bool
		code      string
	}{
		{"first instant of open day", at("2024-01-11", 0, 0), true, benefit.CodeWithinWindow},
		{"last millisecond of close day", at("2024-01-20", 23, 59).Add(59*time.Second + 999*time.Millisecond), true, benefit.CodeWithinWindow},
		{"first instant after close day", at("2024-01-21", 0, 0), false, benefit.CodeClosedNoNext},
		{"just before open day", at("2024-01-10", 23, 59), false, benefit.CodeNotYetOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := benefit.Resolve(tt.now, target, nil)
			assert.Equal(t, tt.permitted, r.Permitted)
			assert.Equal(t, tt.code, r.Code)
		})
	}
}

func TestResolve_ElapsedWithoutNext_Blocked(t *testing.T) {
	r := benefit.Resolve(at("2024-02-01", 12, 0), period2024(nil), nil)

	assert.False(t, r.Permitted)
	assert.Equal(t, benefit.CodeClosedNoNext, r.Code)
	assert.Equal(t, "period closed, no next period configured", r.Message)
}

func TestResolve_NextPeriodClosed_Blocked(t *testing.T) {
	next := period2025()
	next.Status = benefit.PeriodClosed

	r := benefit.Resolve(at("2024-01-25", 9, 0), period2024(&next.ID), next)

	assert.False(t, r.Permitted)
	assert.Equal(t, benefit.CodeNextPeriodNotOpen, r.Code)
}

func TestResolve_NoPeriod_Blocked(t *testing.T) {
	r := benefit.Resolve(at("2024-01-15", 9, 0), nil, nil)

	assert.False(t, r.Permitted)
	assert.Equal(t, benefit.CodeNoPeriod, r.Code)
	assert.Equal(t, "no period configured", r.Message)
}

func TestResolve_ManuallyClosedTarget_Redirects(t *testing.T) {
	// GIVEN: An administrator closed the period during its window
	// WHEN: Resolving inside the window
	// THEN: Behaves as if the window had elapsed

	next := period2025()
	target := period2024(&next.ID)
	target.Status = benefit.PeriodClosed

	r := benefit.Resolve(at("2024-01-15", 9, 0), target, next)

	assert.True(t, r.Permitted)
	assert.Equal(t, benefit.OutcomeRedirected, r.Outcome)
	assert.Equal(t, next.ID, r.PeriodID)
}

func TestResolve_UsesCallerLocation(t *testing.T) {
	// GIVEN: 2024-01-21 01:00 in UTC is still 2024-01-20 in Sao Paulo
	// THEN: The result depends on the location of now

	saoPaulo := time.FixedZone("BRT", -3*60*60)
	instant := at("2024-01-21", 1, 0)

	assert.False(t, benefit.Resolve(instant, period2024(nil), nil).Permitted)
	assert.True(t, benefit.Resolve(instant.In(saoPaulo), period2024(nil), nil).Permitted)
}

func TestResolution_Err_IsPolicyError(t *testing.T) {
	r := benefit.Resolve(at("2024-02-01", 12, 0), period2024(nil), nil)

	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrPolicy)

	var pe *generic.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, benefit.CodeClosedNoNext, pe.Code)
	assert.Equal(t, r, pe.Detail)
}
