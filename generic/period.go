package generic

import "time"

// =============================================================================
// WINDOW - Inclusive span of calendar days
// =============================================================================

// Window is a closed range of days [Start, End]. Both ends are inclusive:
// an instant on the End day is inside the window up to 23:59:59.999.
//
// Examples:
//   - Accrual window 2023: Jan 1 - Dec 31 (dates an expense may reference)
//   - Submission window: Jan 11 - Jan 20 (dates a claim may be entered)
type Window struct {
	Start Date
	End   Date
}

// Validate checks that both ends are set and ordered.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// ContainsDate returns true if the day is within [Start, End].
func (w Window) ContainsDate(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

// Opens returns the first instant of the window in loc.
func (w Window) Opens(loc *time.Location) time.Time {
	return w.Start.StartOfDay(loc)
}

// Closes returns the last instant of the window in loc.
func (w Window) Closes(loc *time.Location) time.Time {
	return w.End.EndOfDay(loc)
}

// NotYetOpen reports whether now is before the first day.
func (w Window) NotYetOpen(now time.Time) bool {
	return now.Before(w.Opens(now.Location()))
}

// Elapsed reports whether now is after the end of the last day.
func (w Window) Elapsed(now time.Time) bool {
	return now.After(w.Closes(now.Location()))
}

// ContainsInstant reports whether now falls inside the window, evaluating the
// day boundaries in now's location.
func (w Window) ContainsInstant(now time.Time) bool {
	return !w.NotYetOpen(now) && !w.Elapsed(now)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}
