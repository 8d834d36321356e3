// Package election resolves the reset boundaries used by contribution limit
// math: calendar-year windows for the base tier and primary/general election
// windows for the elevated tier. Election dates come from a live source with a
// cached-then-static fallback chain; which source answered is always reported.
package election

import "time"

// Source identifies which tier of the fallback chain produced a boundary.
type Source string

const (
	SourceLive    Source = "live"
	SourceCache   Source = "cache"
	SourceDefault Source = "default"
)

// Boundary is the resolved reset boundary for one jurisdiction and cycle.
type Boundary struct {
	Jurisdiction string
	CycleYear    int
	Primary      time.Time
	General      time.Time
	Source       Source
}

// WindowIndex places t into one of the cycle's three ordered windows:
// 0 up to and including the primary, 1 after the primary through the general,
// 2 after the general (rolling toward the next cycle).
func (b Boundary) WindowIndex(t time.Time) int {
	switch {
	case !t.After(b.Primary):
		return 0
	case !t.After(b.General):
		return 1
	default:
		return 2
	}
}

// SameWindow reports whether two instants fall in the same election window,
// which is what decides whether their contributions share a per-election cap.
func (b Boundary) SameWindow(a, c time.Time) bool {
	return b.WindowIndex(a) == b.WindowIndex(c)
}

// CycleYearFor returns the even-numbered federal cycle year covering t.
func CycleYearFor(t time.Time) int {
	year := t.Year()
	if year%2 != 0 {
		year++
	}
	return year
}

// ReferenceZone is the fixed offset used for calendar-year resets. The annual
// window boundary is local midnight between Dec 31 and Jan 1 at this offset,
// never the wall clock of the executing process.
func ReferenceZone(offsetHours int) *time.Location {
	return time.FixedZone("reference", offsetHours*3600)
}

// YearWindow returns the half-open [start, end) calendar-year window
// containing asOf, computed in the given reference zone.
func YearWindow(asOf time.Time, zone *time.Location) (time.Time, time.Time) {
	year := asOf.In(zone).Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, zone)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, zone)
	return start, end
}
