// Package payperiod resolves the biweekly payroll period that contains a date.
//
// Periods are 14 consecutive calendar days counted from a fixed Monday anchor.
// All arithmetic happens on civil dates (UTC midnight), so daylight-saving
// transitions in the office time zone never move a period boundary.
package payperiod

import (
	"fmt"
	"time"
)

// Length is the number of days in a pay period.
const Length = 14

// DateLayout is the wire format for civil dates.
const DateLayout = "2006-01-02"

// DisplayLayout is the human-readable format used for period labels.
const DisplayLayout = "Jan 2, 2006"

// DefaultAnchor is the first day of pay period zero.
var DefaultAnchor = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

// Period is an inclusive range of 14 civil dates.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Resolver maps instants onto pay periods.
type Resolver struct {
	anchor   time.Time
	location *time.Location
}

// NewResolver creates a resolver for the given anchor. Calendar dates are read
// in loc; a nil loc means UTC.
func NewResolver(anchor time.Time, loc *time.Location) (*Resolver, error) {
	if loc == nil {
		loc = time.UTC
	}
	a := Day(anchor)
	if a.Weekday() != time.Monday {
		return nil, fmt.Errorf("pay period anchor %s is a %s, not a Monday", a.Format(DateLayout), a.Weekday())
	}
	return &Resolver{anchor: a, location: loc}, nil
}

// Default returns a resolver on DefaultAnchor in UTC.
func Default() *Resolver {
	return &Resolver{anchor: DefaultAnchor, location: time.UTC}
}

// Anchor returns the first day of period zero.
func (r *Resolver) Anchor() time.Time { return r.anchor }

// Location returns the zone calendar dates are read in.
func (r *Resolver) Location() *time.Location { return r.location }

// Today returns the civil date of now in the resolver's zone.
func (r *Resolver) Today(now time.Time) time.Time {
	return Day(now.In(r.location))
}

// Resolve returns the period containing the instant t, read as a calendar
// date in the resolver's zone.
func (r *Resolver) Resolve(t time.Time) Period {
	return r.ResolveDay(t.In(r.location))
}

// ResolveDay returns the period containing the calendar date of day. The
// year, month and day are taken as written; no zone conversion happens.
func (r *Resolver) ResolveDay(day time.Time) Period {
	idx := floorDiv(daysBetween(r.anchor, Day(day)), Length)
	start := r.anchor.AddDate(0, 0, idx*Length)
	return Period{Start: start, End: start.AddDate(0, 0, Length-1)}
}

// Index returns the signed number of whole periods between the anchor and t.
func (r *Resolver) Index(t time.Time) int {
	return floorDiv(daysBetween(r.anchor, Day(t.In(r.location))), Length)
}

// ForStart returns the period beginning on the calendar date start, or an
// error when start is not a period boundary.
func (r *Resolver) ForStart(start time.Time) (Period, error) {
	p := r.ResolveDay(start)
	if !p.Start.Equal(Day(start)) {
		return Period{}, fmt.Errorf("%s is not a pay period start", FormatDate(start))
	}
	return p, nil
}

// Contains reports whether the civil date of t lies within the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// WeekOf returns 1 or 2 for days inside the period and 0 otherwise.
func (p Period) WeekOf(t time.Time) int {
	if !p.Contains(t) {
		return 0
	}
	if !Day(t).After(p.Start.AddDate(0, 0, 6)) {
		return 1
	}
	return 2
}

// Days lists the 14 dates of the period in order.
func (p Period) Days() []time.Time {
	days := make([]time.Time, 0, Length)
	for i := 0; i < Length; i++ {
		days = append(days, p.Start.AddDate(0, 0, i))
	}
	return days
}

// Next returns the following period.
func (p Period) Next() Period {
	start := p.Start.AddDate(0, 0, Length)
	return Period{Start: start, End: start.AddDate(0, 0, Length-1)}
}

// Previous returns the preceding period.
func (p Period) Previous() Period {
	start := p.Start.AddDate(0, 0, -Length)
	return Period{Start: start, End: start.AddDate(0, 0, Length-1)}
}

// StartFormatted renders the start date for display, e.g. "Jan 6, 2025".
func (p Period) StartFormatted() string { return p.Start.Format(DisplayLayout) }

// EndFormatted renders the end date for display.
func (p Period) EndFormatted() string { return p.End.Format(DisplayLayout) }

// Label renders "Jan 6, 2025 - Jan 19, 2025".
func (p Period) Label() string {
	return p.StartFormatted() + " - " + p.EndFormatted()
}

// String implements fmt.Stringer.
func (p Period) String() string {
	return FormatDate(p.Start) + ".." + FormatDate(p.End)
}

// Day truncates t to its calendar date, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "2006-01-02" civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a civil date as "2006-01-02".
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// daysBetween counts whole days from a to b; both must be UTC midnights.
// Unix seconds keep the count exact where time.Duration would saturate.
func daysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
