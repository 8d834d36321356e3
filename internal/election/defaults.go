package election

import "time"

// defaultDates is a static month/day entry materialized into a concrete cycle
// year when no live or cached data exists.
type defaultDates struct {
	primaryMonth time.Month
	primaryDay   int
	generalMonth time.Month
	generalDay   int
}

// defaultTable is the last-resort fallback, keyed by jurisdiction code. The
// "US" row is the federal default: an early-summer primary placeholder and the
// statutory Tuesday-after-first-Monday November general, fixed here to Nov 3
// as a stable approximation.
var defaultTable = map[string]defaultDates{
	"US": {time.June, 4, time.November, 3},
	"AL": {time.May, 21, time.November, 3},
	"CA": {time.March, 5, time.November, 3},
	"FL": {time.August, 20, time.November, 3},
	"GA": {time.May, 21, time.November, 3},
	"IL": {time.March, 19, time.November, 3},
	"MI": {time.August, 6, time.November, 3},
	"NC": {time.March, 5, time.November, 3},
	"NH": {time.September, 10, time.November, 3},
	"NY": {time.June, 25, time.November, 3},
	"OH": {time.March, 19, time.November, 3},
	"PA": {time.April, 23, time.November, 3},
	"TX": {time.March, 5, time.November, 3},
	"WI": {time.August, 13, time.November, 3},
}

// defaultDatesFor materializes the static entry for the jurisdiction, if one
// exists. No catch-all: a jurisdiction absent from every tier fails the limit
// calculation closed instead of inheriting federal dates.
func defaultDatesFor(jurisdiction string, year int) (Dates, bool) {
	d, ok := defaultTable[jurisdiction]
	if !ok {
		return Dates{}, false
	}
	return Dates{
		Primary: time.Date(year, d.primaryMonth, d.primaryDay, 0, 0, 0, 0, time.UTC),
		General: time.Date(year, d.generalMonth, d.generalDay, 0, 0, 0, 0, time.UTC),
	}, true
}
