package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

var testPeriod = payperiod.Default().Resolve(time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC))

func TestTimesheetStore_UpsertCurrent(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()

	first, err := store.UpsertCurrent(ctx, "user-1", testPeriod)
	if err != nil {
		t.Fatalf("UpsertCurrent() error = %v", err)
	}
	if first.Status != timesheet.StatusDraft {
		t.Errorf("Status = %s; want DRAFT", first.Status)
	}
	if !first.PayPeriodStart.Equal(testPeriod.Start) || !first.PayPeriodEnd.Equal(testPeriod.End) {
		t.Errorf("period = %s..%s; want %s", first.PayPeriodStart, first.PayPeriodEnd, testPeriod)
	}
	if first.Version != 1 {
		t.Errorf("Version = %d; want 1", first.Version)
	}
	if first.Entries == nil {
		t.Error("Entries = nil; want empty slice")
	}

	second, err := store.UpsertCurrent(ctx, "user-1", testPeriod)
	if err != nil {
		t.Fatalf("UpsertCurrent() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second ID = %q; want %q", second.ID, first.ID)
	}

	other, _ := store.UpsertCurrent(ctx, "user-1", testPeriod.Next())
	if other.ID == first.ID {
		t.Error("next period reused the same timesheet")
	}
}

func TestTimesheetStore_UpsertCurrent_Concurrent(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts, err := store.UpsertCurrent(ctx, "user-1", testPeriod)
			if err != nil {
				t.Errorf("UpsertCurrent() error = %v", err)
				return
			}
			ids[i] = ts.ID
		}(i)
	}
	wg.Wait()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM timesheets").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("timesheets rows = %d; want 1", n)
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Errorf("got ids %v; want all equal", ids)
			break
		}
	}
}

func TestTimesheetStore_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()
	now := time.Date(2025, time.January, 8, 12, 0, 0, 0, time.UTC)

	ts, _ := store.UpsertCurrent(ctx, "user-1", testPeriod)
	if _, err := ts.UpsertEntry(timesheet.EntryInput{Date: "2025-01-06", StartTime: "09:00", EndTime: "17:00"}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.UpsertEntry(timesheet.EntryInput{Date: "2025-01-13", StartTime: "09:00", EndTime: "15:30", BreakMinutes: 30}, now); err != nil {
		t.Fatal(err)
	}
	if err := ts.Submit(now); err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ts.Version != 2 {
		t.Errorf("Version after save = %d; want 2", ts.Version)
	}

	loaded, err := store.Get(ctx, ts.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.Status != timesheet.StatusSubmitted {
		t.Errorf("Status = %s; want SUBMITTED", loaded.Status)
	}
	if loaded.SubmittedAt == nil || !loaded.SubmittedAt.Equal(now) {
		t.Errorf("SubmittedAt = %v; want %v", loaded.SubmittedAt, now)
	}
	if loaded.Week1Total != 8 || loaded.Week2Total != 6 || loaded.GrandTotal != 14 {
		t.Errorf("totals = %+v", loaded.Totals())
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("len(Entries) = %d; want 2", len(loaded.Entries))
	}
	e := loaded.Entries[1]
	if payperiod.FormatDate(e.Date) != "2025-01-13" || e.StartTime != "09:00" || e.BreakMinutes != 30 || e.TotalHours != 6 {
		t.Errorf("entry = %+v", e)
	}
	if loaded.Version != 2 {
		t.Errorf("loaded Version = %d; want 2", loaded.Version)
	}

	got, err := store.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.TimesheetID != ts.ID {
		t.Errorf("GetEntry().TimesheetID = %q; want %q", got.TimesheetID, ts.ID)
	}
	if _, err := store.GetEntry(ctx, "missing"); !errors.Is(err, timesheet.ErrEntryNotFound) {
		t.Errorf("GetEntry(missing) error = %v; want ErrEntryNotFound", err)
	}
}

func TestTimesheetStore_SaveVersionConflict(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()
	now := time.Now()

	ts, _ := store.UpsertCurrent(ctx, "user-1", testPeriod)
	stale := ts.Clone()

	if _, err := ts.UpsertEntry(timesheet.EntryInput{Date: "2025-01-06", StartTime: "09:00", EndTime: "17:00"}, now); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := stale.UpsertEntry(timesheet.EntryInput{Date: "2025-01-07", StartTime: "09:00", EndTime: "17:00"}, now); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, stale); !errors.Is(err, timesheet.ErrVersionConflict) {
		t.Fatalf("Save(stale) error = %v; want ErrVersionConflict", err)
	}

	loaded, _ := store.Get(ctx, ts.ID)
	if len(loaded.Entries) != 1 || payperiod.FormatDate(loaded.Entries[0].Date) != "2025-01-06" {
		t.Errorf("stale save leaked entries: %v", loaded.Entries)
	}

	ghost := ts.Clone()
	ghost.ID = "missing"
	if err := store.Save(ctx, ghost); !errors.Is(err, timesheet.ErrNotFound) {
		t.Errorf("Save(missing) error = %v; want ErrNotFound", err)
	}
}

func TestTimesheetStore_Delete(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()

	ts, _ := store.UpsertCurrent(ctx, "user-1", testPeriod)
	if _, err := ts.UpsertEntry(timesheet.EntryInput{Date: "2025-01-06", StartTime: "09:00", EndTime: "17:00"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, ts); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, ts.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, ts.ID); !errors.Is(err, timesheet.ErrNotFound) {
		t.Errorf("Get() after delete error = %v; want ErrNotFound", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM time_entries").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("time_entries rows = %d; want 0 after cascade", n)
	}

	if err := store.Delete(ctx, ts.ID); !errors.Is(err, timesheet.ErrNotFound) {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestTimesheetStore_ListFilters(t *testing.T) {
	db := openTestDB(t)
	store := NewTimesheetStore(db)
	ctx := context.Background()

	if err := store.SaveStaff(ctx, timesheet.Staff{UserID: "user-1", FirstName: "Ada", LastName: "Moose", Department: "Finance"}); err != nil {
		t.Fatalf("SaveStaff() error = %v", err)
	}
	if err := store.SaveStaff(ctx, timesheet.Staff{UserID: "user-2", Department: "Housing"}); err != nil {
		t.Fatal(err)
	}
	// Update replaces the department.
	if err := store.SaveStaff(ctx, timesheet.Staff{UserID: "user-2", FirstName: "Bo", Department: "Health"}); err != nil {
		t.Fatal(err)
	}

	older, _ := store.UpsertCurrent(ctx, "user-1", testPeriod.Previous())
	newer, _ := store.UpsertCurrent(ctx, "user-1", testPeriod)
	other, _ := store.UpsertCurrent(ctx, "user-2", testPeriod)
	_, _ = store.UpsertCurrent(ctx, "user-3", testPeriod)

	now := time.Now()
	if _, err := newer.UpsertEntry(timesheet.EntryInput{Date: "2025-01-06", StartTime: "09:00", EndTime: "17:00"}, now); err != nil {
		t.Fatal(err)
	}
	if err := newer.Submit(now); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, newer); err != nil {
		t.Fatal(err)
	}

	mine, err := store.List(ctx, timesheet.Filter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(mine) != 2 || mine[0].ID != newer.ID || mine[1].ID != older.ID {
		t.Errorf("List(user-1) order wrong: %v", mine)
	}
	if mine[0].Owner == nil || mine[0].Owner.FullName() != "Ada Moose" {
		t.Errorf("Owner = %+v", mine[0].Owner)
	}

	submitted, _ := store.List(ctx, timesheet.Filter{Status: timesheet.StatusSubmitted})
	if len(submitted) != 1 || submitted[0].ID != newer.ID {
		t.Errorf("List(SUBMITTED) = %v", submitted)
	}

	health, _ := store.List(ctx, timesheet.Filter{Department: "Health"})
	if len(health) != 1 || health[0].ID != other.ID {
		t.Errorf("List(Health) = %v", health)
	}

	all, _ := store.List(ctx, timesheet.Filter{})
	if len(all) != 4 {
		t.Errorf("List() = %d rows; want 4", len(all))
	}
	for _, ts := range all {
		if ts.UserID == "user-3" && ts.Owner != nil {
			t.Errorf("user-3 has Owner %+v; want nil", ts.Owner)
		}
	}

	empty, _ := store.List(ctx, timesheet.Filter{Department: "Nowhere"})
	if empty == nil || len(empty) != 0 {
		t.Errorf("List(Nowhere) = %v; want empty non-nil", empty)
	}
}

func TestTimesheetStore_WithService(t *testing.T) {
	db := openTestDB(t)
	svc := timesheet.NewService(NewTimesheetStore(db), payperiod.Default(),
		timesheet.WithClock(func() time.Time { return time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC) }))
	ctx := context.Background()

	ts, err := svc.GetOrCreateCurrent(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateCurrent() error = %v", err)
	}
	if _, _, err := svc.SaveEntry(ctx, timesheet.EntryInput{TimesheetID: ts.ID, Date: "2025-01-06", StartTime: "09:00", EndTime: "17:00"}); err != nil {
		t.Fatalf("SaveEntry() error = %v", err)
	}
	if _, err := svc.Submit(ctx, ts.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got, err := svc.Reject(ctx, ts.ID, "boss", "")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.RejectionReason != timesheet.DefaultRejectionReason {
		t.Errorf("RejectionReason = %q", got.RejectionReason)
	}
	got, err = svc.RevertToDraft(ctx, ts.ID)
	if err != nil {
		t.Fatalf("RevertToDraft() error = %v", err)
	}

	stored, _ := svc.Get(ctx, ts.ID)
	if stored.Status != timesheet.StatusDraft || stored.RejectionReason != "" || stored.SubmittedAt != nil {
		t.Errorf("stored after revert = %s %q %v", stored.Status, stored.RejectionReason, stored.SubmittedAt)
	}
	if stored.Version != got.Version {
		t.Errorf("Version = %d; want %d", stored.Version, got.Version)
	}
	if err := svc.Delete(ctx, ts.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
