package timesheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
)

// ParseClock parses "HH:MM" (or "H:MM", or "HH:MM:SS" with seconds ignored)
// into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid time %q: second out of range", s)
		}
	}
	return h*60 + m, nil
}

// ComputeHours returns the hours worked between start and end less the break,
// clamped at zero and rounded to two decimals. Missing or malformed times
// yield zero. End is assumed to be on the same day as start.
func ComputeHours(start, end string, breakMinutes int) float64 {
	if start == "" || end == "" {
		return 0
	}
	s, err := ParseClock(start)
	if err != nil {
		return 0
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0
	}
	if breakMinutes < 0 {
		breakMinutes = 0
	}
	raw := e - s - breakMinutes
	if raw < 0 {
		raw = 0
	}
	return Round2(float64(raw) / 60)
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate sums entry hours into week 1 (the first seven days of the period
// starting at periodStart), week 2 (the rest) and the grand total. Each total
// is rounded on its own.
func Aggregate(entries []*TimeEntry, periodStart time.Time) Totals {
	lastWeek1Day := payperiod.Day(periodStart).AddDate(0, 0, 6)

	var w1, w2 float64
	for _, e := range entries {
		if e == nil {
			continue
		}
		if !payperiod.Day(e.Date).After(lastWeek1Day) {
			w1 += e.TotalHours
		} else {
			w2 += e.TotalHours
		}
	}
	return Totals{
		Week1Total: Round2(w1),
		Week2Total: Round2(w2),
		GrandTotal: Round2(w1 + w2),
	}
}
