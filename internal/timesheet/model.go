package timesheet

import (
	"sort"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
)

// Status is the lifecycle state of a timesheet.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// DefaultRejectionReason is recorded when a rejecter gives no reason.
const DefaultRejectionReason = "No reason provided"

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus parses a status filter. The empty string yields "" with no error.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", nil
	}
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", inputError("status", "Unknown status %q", s)
	}
	return st, nil
}

// Staff is the directory record used to label timesheets in admin listings.
type Staff struct {
	UserID     string `json:"userId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
}

// FullName returns "First Last".
func (s Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// TimeEntry is one calendar day's worked time within a timesheet.
type TimeEntry struct {
	ID           string    `json:"id"`
	TimesheetID  string    `json:"timesheetId"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"startTime,omitempty"`
	EndTime      string    `json:"endTime,omitempty"`
	BreakMinutes int       `json:"breakMinutes"`
	TotalHours   float64   `json:"totalHours"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsSet reports whether both clock times are present.
func (e *TimeEntry) IsSet() bool {
	return e.StartTime != "" && e.EndTime != ""
}

// Totals holds the derived week and period sums.
type Totals struct {
	Week1Total float64 `json:"week1Total"`
	Week2Total float64 `json:"week2Total"`
	GrandTotal float64 `json:"grandTotal"`
}

// Timesheet is the aggregate root for one user's pay period.
type Timesheet struct {
	ID              string       `json:"id"`
	UserID          string       `json:"userId"`
	PayPeriodStart  time.Time    `json:"payPeriodStart"`
	PayPeriodEnd    time.Time    `json:"payPeriodEnd"`
	Status          Status       `json:"status"`
	Entries         []*TimeEntry `json:"entries"`
	Week1Total      float64      `json:"week1Total"`
	Week2Total      float64      `json:"week2Total"`
	GrandTotal      float64      `json:"grandTotal"`
	SubmittedAt     *time.Time   `json:"submittedAt,omitempty"`
	ApprovedAt      *time.Time   `json:"approvedAt,omitempty"`
	ApprovedBy      string       `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time   `json:"rejectedAt,omitempty"`
	RejectedBy      string       `json:"rejectedBy,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
	Owner           *Staff       `json:"user,omitempty"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// New returns an empty draft timesheet for the user and period.
func New(id, userID string, p payperiod.Period, now time.Time) *Timesheet {
	return &Timesheet{
		ID:             id,
		UserID:         userID,
		PayPeriodStart: p.Start,
		PayPeriodEnd:   p.End,
		Status:         StatusDraft,
		Entries:        []*TimeEntry{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Period returns the pay period the timesheet covers.
func (t *Timesheet) Period() payperiod.Period {
	return payperiod.Period{Start: t.PayPeriodStart, End: t.PayPeriodEnd}
}

// Totals returns the stored totals.
func (t *Timesheet) Totals() Totals {
	return Totals{Week1Total: t.Week1Total, Week2Total: t.Week2Total, GrandTotal: t.GrandTotal}
}

// Recalculate refreshes the three totals from the entries.
func (t *Timesheet) Recalculate() {
	totals := Aggregate(t.Entries, t.PayPeriodStart)
	t.Week1Total = totals.Week1Total
	t.Week2Total = totals.Week2Total
	t.GrandTotal = totals.GrandTotal
}

// EntryOn returns the entry for the given day, or nil.
func (t *Timesheet) EntryOn(day time.Time) *TimeEntry {
	d := payperiod.Day(day)
	for _, e := range t.Entries {
		if e.Date.Equal(d) {
			return e
		}
	}
	return nil
}

// EntryByID returns the entry with the given id, or nil.
func (t *Timesheet) EntryByID(id string) *TimeEntry {
	for _, e := range t.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (t *Timesheet) Clone() *Timesheet {
	if t == nil {
		return nil
	}
	c := *t
	c.Entries = make([]*TimeEntry, len(t.Entries))
	for i, e := range t.Entries {
		ec := *e
		c.Entries[i] = &ec
	}
	c.SubmittedAt = cloneTime(t.SubmittedAt)
	c.ApprovedAt = cloneTime(t.ApprovedAt)
	c.RejectedAt = cloneTime(t.RejectedAt)
	if t.Owner != nil {
		o := *t.Owner
		c.Owner = &o
	}
	return &c
}

func (t *Timesheet) sortEntries() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Date.Before(t.Entries[j].Date)
	})
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
