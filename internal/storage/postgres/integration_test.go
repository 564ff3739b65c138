//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/storage/postgres"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupPostgres starts a Postgres container and returns a migrated store.
func setupPostgres(t *testing.T) *postgres.TimesheetStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tcn"),
		tcpostgres.WithUsername("tcn"),
		tcpostgres.WithPassword("tcn"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return postgres.NewTimesheetStore(db)
}

func period(t *testing.T) payperiod.Period {
	t.Helper()
	return payperiod.Default().Resolve(time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC))
}

func TestIntegration_UpsertCurrent_Concurrent(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	p := period(t)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts, err := store.UpsertCurrent(ctx, "u1", p)
			if err != nil {
				t.Errorf("UpsertCurrent() error = %v", err)
				return
			}
			ids[i] = ts.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("UpsertCurrent returned ids %q and %q; want one row", ids[0], ids[i])
		}
	}

	list, err := store.List(ctx, timesheet.Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d timesheets; want 1", len(list))
	}
}

func TestIntegration_SaveAndGet(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	p := period(t)

	if err := store.SaveStaff(ctx, timesheet.Staff{
		UserID: "u1", FirstName: "Mary", LastName: "Spence", Department: "Finance",
	}); err != nil {
		t.Fatalf("SaveStaff() error = %v", err)
	}

	ts, err := store.UpsertCurrent(ctx, "u1", p)
	if err != nil {
		t.Fatalf("UpsertCurrent() error = %v", err)
	}
	if !ts.PayPeriodStart.Equal(p.Start) || !ts.PayPeriodEnd.Equal(p.End) {
		t.Errorf("period = %s..%s; want %s", ts.PayPeriodStart, ts.PayPeriodEnd, p)
	}

	now := time.Now().UTC()
	entry, err := ts.UpsertEntry(timesheet.EntryInput{
		TimesheetID:  ts.ID,
		Date:         payperiod.FormatDate(p.Start),
		StartTime:    "08:00",
		EndTime:      "16:30",
		BreakMinutes: 30,
	}, now)
	if err != nil {
		t.Fatalf("UpsertEntry() error = %v", err)
	}
	if err := store.Save(ctx, ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, ts.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d; want 2", got.Version)
	}
	if got.GrandTotal != 8 || got.Week1Total != 8 {
		t.Errorf("totals = %v/%v; want 8/8", got.Week1Total, got.GrandTotal)
	}
	if len(got.Entries) != 1 || !got.Entries[0].Date.Equal(p.Start) {
		t.Fatalf("Entries = %+v; want one entry on %s", got.Entries, p.Start)
	}
	if got.Owner == nil || got.Owner.Department != "Finance" {
		t.Errorf("Owner = %+v; want Finance staff record", got.Owner)
	}

	list, err := store.List(ctx, timesheet.Filter{Department: "Finance", Status: timesheet.StatusDraft})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List(Finance, DRAFT) = %d; want 1", len(list))
	}

	e, err := store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if e.TotalHours != 8 {
		t.Errorf("TotalHours = %v; want 8", e.TotalHours)
	}
}

func TestIntegration_Save_VersionConflict(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	ts, err := store.UpsertCurrent(ctx, "u1", period(t))
	if err != nil {
		t.Fatalf("UpsertCurrent() error = %v", err)
	}
	stale := ts.Clone()

	if err := store.Save(ctx, ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, stale); !errors.Is(err, timesheet.ErrVersionConflict) {
		t.Errorf("stale Save() error = %v; want ErrVersionConflict", err)
	}
}

func TestIntegration_Delete(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	ts, err := store.UpsertCurrent(ctx, "u1", period(t))
	if err != nil {
		t.Fatalf("UpsertCurrent() error = %v", err)
	}
	if err := store.Delete(ctx, ts.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, ts.ID); !errors.Is(err, timesheet.ErrNotFound) {
		t.Errorf("Get() after delete error = %v; want ErrNotFound", err)
	}
	if err := store.Delete(ctx, ts.ID); !errors.Is(err, timesheet.ErrNotFound) {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}
