package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TimesheetStore implements timesheet.Store on PostgreSQL.
type TimesheetStore struct {
	db *DB
}

var _ timesheet.Store = (*TimesheetStore)(nil)

// NewTimesheetStore creates a Postgres-backed timesheet store.
func NewTimesheetStore(db *DB) *TimesheetStore {
	return &TimesheetStore{db: db}
}

const selectTimesheet = `
	SELECT t.id, t.user_id, t.pay_period_start, t.pay_period_end, t.status,
		t.week1_total, t.week2_total, t.grand_total,
		t.submitted_at, t.approved_at, COALESCE(t.approved_by, ''),
		t.rejected_at, COALESCE(t.rejected_by, ''), COALESCE(t.rejection_reason, ''),
		t.version, t.created_at, t.updated_at,
		s.user_id, s.first_name, s.last_name, s.department
	FROM timesheets t
	LEFT JOIN staff s ON s.user_id = t.user_id`

const selectEntry = `
	SELECT id, timesheet_id, entry_date, start_time, end_time, break_minutes,
		total_hours, created_at, updated_at
	FROM time_entries`

// UpsertCurrent inserts the (userID, p.Start) row if missing and returns it.
// The no-op DO UPDATE makes RETURNING yield the existing id on conflict.
func (s *TimesheetStore) UpsertCurrent(ctx context.Context, userID string, p payperiod.Period) (*timesheet.Timesheet, error) {
	var id string
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO timesheets (id, user_id, pay_period_start, pay_period_end, status, version)
		VALUES ($1, $2, $3, $4, 'DRAFT', 1)
		ON CONFLICT (user_id, pay_period_start) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`,
		uuid.NewString(), userID, p.Start, p.End,
	).Scan(&id)
	if err != nil {
		return nil, classify("upsert timesheet", err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a timesheet and its entries.
func (s *TimesheetStore) Get(ctx context.Context, id string) (*timesheet.Timesheet, error) {
	ts, err := scanTimesheet(s.db.pool.QueryRow(ctx, selectTimesheet+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, err
	}
	ts.Entries, err = entries(ctx, s.db.pool, id)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// GetEntry retrieves one entry.
func (s *TimesheetStore) GetEntry(ctx context.Context, entryID string) (*timesheet.TimeEntry, error) {
	e, err := scanEntry(s.db.pool.QueryRow(ctx, selectEntry+` WHERE id = $1`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, timesheet.ErrEntryNotFound
	}
	return e, err
}

// List returns timesheets matching f, newest period first, without entries.
func (s *TimesheetStore) List(ctx context.Context, f timesheet.Filter) ([]*timesheet.Timesheet, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("t.user_id", f.UserID)
	}
	if f.Status != "" {
		add("t.status", string(f.Status))
	}
	if f.Department != "" {
		add("s.department", f.Department)
	}

	query := selectTimesheet
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.pay_period_start DESC, t.created_at DESC"

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list timesheets", err)
	}
	defer rows.Close()

	list := []*timesheet.Timesheet{}
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list timesheets", err)
	}
	return list, nil
}

// Save locks the row, checks the version and rewrites the row and its entries.
func (s *TimesheetStore) Save(ctx context.Context, ts *timesheet.Timesheet) error {
	err := s.db.WithTx(ctx, func(tx querier) error {
		var stored int
		err := tx.QueryRow(ctx,
			`SELECT version FROM timesheets WHERE id = $1 FOR UPDATE`, ts.ID).Scan(&stored)
		if errors.Is(err, pgx.ErrNoRows) {
			return timesheet.ErrNotFound
		}
		if err != nil {
			return classify("lock timesheet", err)
		}
		if stored != ts.Version {
			return timesheet.ErrVersionConflict
		}

		_, err = tx.Exec(ctx, `
			UPDATE timesheets SET
				status = $1, week1_total = $2, week2_total = $3, grand_total = $4,
				submitted_at = $5, approved_at = $6, approved_by = $7,
				rejected_at = $8, rejected_by = $9, rejection_reason = $10,
				version = version + 1, updated_at = $11
			WHERE id = $12`,
			string(ts.Status), ts.Week1Total, ts.Week2Total, ts.GrandTotal,
			ts.SubmittedAt, ts.ApprovedAt, nullString(ts.ApprovedBy),
			ts.RejectedAt, nullString(ts.RejectedBy), nullString(ts.RejectionReason),
			ts.UpdatedAt, ts.ID,
		)
		if err != nil {
			return classify("update timesheet", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM time_entries WHERE timesheet_id = $1`, ts.ID); err != nil {
			return classify("clear entries", err)
		}
		for _, e := range ts.Entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO time_entries (id, timesheet_id, entry_date, start_time, end_time,
					break_minutes, total_hours, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				e.ID, ts.ID, payperiod.Day(e.Date), e.StartTime, e.EndTime,
				e.BreakMinutes, e.TotalHours, e.CreatedAt, e.UpdatedAt,
			)
			if err != nil {
				return classify("insert entry "+payperiod.FormatDate(e.Date), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ts.Version++
	return nil
}

// Delete removes a timesheet and, by cascade, its entries.
func (s *TimesheetStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM timesheets WHERE id = $1`, id)
	if err != nil {
		return classify("delete timesheet", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrNotFound
	}
	return nil
}

// SaveStaff inserts or updates a staff record.
func (s *TimesheetStore) SaveStaff(ctx context.Context, st timesheet.Staff) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO staff (user_id, first_name, last_name, department, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			department = EXCLUDED.department,
			updated_at = EXCLUDED.updated_at`,
		st.UserID, st.FirstName, st.LastName, st.Department,
	)
	if err != nil {
		return classify("upsert staff", err)
	}
	return nil
}

func entries(ctx context.Context, q querier, timesheetID string) ([]*timesheet.TimeEntry, error) {
	rows, err := q.Query(ctx, selectEntry+` WHERE timesheet_id = $1 ORDER BY entry_date`, timesheetID)
	if err != nil {
		return nil, classify("query entries", err)
	}
	defer rows.Close()

	list := []*timesheet.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanTimesheet(row pgx.Row) (*timesheet.Timesheet, error) {
	var (
		ts                         timesheet.Timesheet
		status                     string
		staffID, first, last, dept *string
	)
	err := row.Scan(
		&ts.ID, &ts.UserID, &ts.PayPeriodStart, &ts.PayPeriodEnd, &status,
		&ts.Week1Total, &ts.Week2Total, &ts.GrandTotal,
		&ts.SubmittedAt, &ts.ApprovedAt, &ts.ApprovedBy,
		&ts.RejectedAt, &ts.RejectedBy, &ts.RejectionReason,
		&ts.Version, &ts.CreatedAt, &ts.UpdatedAt,
		&staffID, &first, &last, &dept,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, timesheet.ErrNotFound
	}
	if err != nil {
		return nil, classify("scan timesheet", err)
	}

	ts.PayPeriodStart = payperiod.Day(ts.PayPeriodStart)
	ts.PayPeriodEnd = payperiod.Day(ts.PayPeriodEnd)
	ts.Status = timesheet.Status(status)
	ts.SubmittedAt = utc(ts.SubmittedAt)
	ts.ApprovedAt = utc(ts.ApprovedAt)
	ts.RejectedAt = utc(ts.RejectedAt)
	if staffID != nil {
		ts.Owner = &timesheet.Staff{
			UserID:     *staffID,
			FirstName:  deref(first),
			LastName:   deref(last),
			Department: deref(dept),
		}
	}
	ts.Entries = []*timesheet.TimeEntry{}
	return &ts, nil
}

func scanEntry(row pgx.Row) (*timesheet.TimeEntry, error) {
	var e timesheet.TimeEntry
	err := row.Scan(&e.ID, &e.TimesheetID, &e.Date, &e.StartTime, &e.EndTime,
		&e.BreakMinutes, &e.TotalHours, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, classify("scan entry", err)
	}
	e.Date = payperiod.Day(e.Date)
	return &e, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
