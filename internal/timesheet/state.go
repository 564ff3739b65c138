package timesheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/google/uuid"
)

// EntryInput carries the raw values for saving one day.
type EntryInput struct {
	TimesheetID  string `json:"timesheetId"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	BreakMinutes int    `json:"breakMinutes"`
}

// CanEdit reports whether entries may be added, changed or removed.
func (t *Timesheet) CanEdit() bool { return t.Status == StatusDraft }

// CanDelete reports whether the timesheet may be deleted.
func (t *Timesheet) CanDelete() bool { return t.Status == StatusDraft }

// UpsertEntry validates in and writes it as the entry for its day, replacing
// any existing entry on that day. Totals are recomputed. On error t is left
// unchanged.
func (t *Timesheet) UpsertEntry(in EntryInput, now time.Time) (*TimeEntry, error) {
	if !t.CanEdit() {
		return nil, stateError("save entry", t.Status, msgCannotEdit)
	}

	day, err := payperiod.ParseDate(in.Date)
	if err != nil {
		return nil, inputError("date", "Invalid date %q", in.Date)
	}
	if !t.Period().Contains(day) {
		return nil, inputError("date", "Date %s is outside the pay period %s",
			payperiod.FormatDate(day), t.Period().Label())
	}
	start, end, err := normalizeTimes(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	if in.BreakMinutes < 0 {
		return nil, inputError("breakMinutes", "Break minutes cannot be negative")
	}

	hours := ComputeHours(start, end, in.BreakMinutes)

	if e := t.EntryOn(day); e != nil {
		e.StartTime = start
		e.EndTime = end
		e.BreakMinutes = in.BreakMinutes
		e.TotalHours = hours
		e.UpdatedAt = now
		t.touch(now)
		return e, nil
	}

	e := &TimeEntry{
		ID:           uuid.NewString(),
		TimesheetID:  t.ID,
		Date:         day,
		StartTime:    start,
		EndTime:      end,
		BreakMinutes: in.BreakMinutes,
		TotalHours:   hours,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.Entries = append(t.Entries, e)
	t.touch(now)
	return e, nil
}

// RemoveEntryOn deletes the entry for day. Removing a day with no entry is
// a no-op.
func (t *Timesheet) RemoveEntryOn(day time.Time, now time.Time) error {
	if !t.CanEdit() {
		return stateError("delete entry", t.Status, msgCannotEdit)
	}
	d := payperiod.Day(day)
	for i, e := range t.Entries {
		if e.Date.Equal(d) {
			t.Entries = append(t.Entries[:i:i], t.Entries[i+1:]...)
			t.touch(now)
			return nil
		}
	}
	return nil
}

// RemoveEntryByID deletes the entry with the given id.
func (t *Timesheet) RemoveEntryByID(id string, now time.Time) error {
	if !t.CanEdit() {
		return stateError("delete entry", t.Status, msgCannotEdit)
	}
	e := t.EntryByID(id)
	if e == nil {
		return ErrEntryNotFound
	}
	return t.RemoveEntryOn(e.Date, now)
}

// Submit moves a draft with recorded hours to SUBMITTED.
func (t *Timesheet) Submit(now time.Time) error {
	if t.Status != StatusDraft {
		return stateError("submit", t.Status, msgSubmitNotDraft)
	}
	if Aggregate(t.Entries, t.PayPeriodStart).GrandTotal <= 0 {
		return stateError("submit", t.Status, msgSubmitNoHours)
	}
	t.Recalculate()
	t.Status = StatusSubmitted
	t.SubmittedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// Approve moves a submitted timesheet to APPROVED and clears any earlier rejection.
func (t *Timesheet) Approve(now time.Time, approverID string) error {
	if t.Status != StatusSubmitted {
		return stateError("approve", t.Status, msgApproveNotSubm)
	}
	t.Status = StatusApproved
	t.ApprovedAt = timePtr(now)
	t.ApprovedBy = approverID
	t.clearRejection()
	t.UpdatedAt = now
	return nil
}

// Reject moves a submitted timesheet to REJECTED. A blank reason is recorded
// as DefaultRejectionReason.
func (t *Timesheet) Reject(now time.Time, rejecterID, reason string) error {
	if t.Status != StatusSubmitted {
		return stateError("reject", t.Status, msgRejectNotSubm)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}
	t.Status = StatusRejected
	t.RejectedAt = timePtr(now)
	t.RejectedBy = rejecterID
	t.RejectionReason = reason
	t.UpdatedAt = now
	return nil
}

// RevertToDraft reopens a rejected timesheet for editing.
func (t *Timesheet) RevertToDraft(now time.Time) error {
	if t.Status != StatusRejected {
		return stateError("revert", t.Status, msgRevertNotReject)
	}
	t.Status = StatusDraft
	t.SubmittedAt = nil
	t.clearRejection()
	t.UpdatedAt = now
	return nil
}

// CheckDelete returns the guard error for deleting t, if any.
func (t *Timesheet) CheckDelete() error {
	if !t.CanDelete() {
		return stateError("delete", t.Status, msgDeleteNotDraft)
	}
	return nil
}

func (t *Timesheet) touch(now time.Time) {
	t.sortEntries()
	t.Recalculate()
	t.UpdatedAt = now
}

func (t *Timesheet) clearRejection() {
	t.RejectedAt = nil
	t.RejectedBy = ""
	t.RejectionReason = ""
}

// normalizeTimes validates the clock strings. Both empty is an unset day;
// exactly one empty is also accepted and yields zero hours.
func normalizeTimes(start, end string) (string, string, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start != "" {
		m, err := ParseClock(start)
		if err != nil {
			return "", "", inputError("startTime", "Invalid start time %q", start)
		}
		start = formatClock(m)
	}
	if end != "" {
		m, err := ParseClock(end)
		if err != nil {
			return "", "", inputError("endTime", "Invalid end time %q", end)
		}
		end = formatClock(m)
	}
	return start, end, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func timePtr(t time.Time) *time.Time { return &t }
