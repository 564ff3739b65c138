package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/google/uuid"
)

// TimesheetStore implements timesheet.Store backed by SQLite.
type TimesheetStore struct {
	db *DB
}

// NewTimesheetStore creates a SQLite-backed timesheet store.
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

// UpsertCurrent returns the timesheet for (userID, p.Start), inserting an
// empty draft first if the pair is new. The insert and read share one
// transaction so concurrent callers always see the same row.
func (s *TimesheetStore) UpsertCurrent(ctx context.Context, userID string, p payperiod.Period) (*timesheet.Timesheet, error) {
	var ts *timesheet.Timesheet
	err := s.db.WithTx(ctx, func(tx querier) error {
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO timesheets (id, user_id, pay_period_start, pay_period_end, status,
				version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'DRAFT', 1, ?, ?)
			ON CONFLICT(user_id, pay_period_start) DO NOTHING`,
			uuid.NewString(), userID, payperiod.FormatDate(p.Start), payperiod.FormatDate(p.End), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert timesheet: %w", err)
		}

		row := tx.QueryRowContext(ctx, selectTimesheet+`
			WHERE t.user_id = ? AND t.pay_period_start = ?`,
			userID, payperiod.FormatDate(p.Start))
		ts, err = scanTimesheet(row)
		if err != nil {
			return err
		}
		ts.Entries, err = s.entries(ctx, tx, ts.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// Get retrieves a timesheet and its entries.
func (s *TimesheetStore) Get(ctx context.Context, id string) (*timesheet.Timesheet, error) {
	row := s.db.QueryRowContext(ctx, selectTimesheet+` WHERE t.id = ?`, id)
	ts, err := scanTimesheet(row)
	if err != nil {
		return nil, err
	}
	ts.Entries, err = s.entries(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// GetEntry retrieves one entry.
func (s *TimesheetStore) GetEntry(ctx context.Context, entryID string) (*timesheet.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	if f.UserID != "" {
		where = append(where, "t.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Department != "" {
		where = append(where, "s.department = ?")
		args = append(args, f.Department)
	}

	query := selectTimesheet
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.pay_period_start DESC, t.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
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
	return list, rows.Err()
}

// Save writes the row and replaces its entries when the stored version matches.
func (s *TimesheetStore) Save(ctx context.Context, ts *timesheet.Timesheet) error {
	err := s.db.WithTx(ctx, func(tx querier) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE timesheets SET
				status = ?, week1_total = ?, week2_total = ?, grand_total = ?,
				submitted_at = ?, approved_at = ?, approved_by = ?,
				rejected_at = ?, rejected_by = ?, rejection_reason = ?,
				version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			string(ts.Status), ts.Week1Total, ts.Week2Total, ts.GrandTotal,
			nullTime(ts.SubmittedAt), nullTime(ts.ApprovedAt), nullString(ts.ApprovedBy),
			nullTime(ts.RejectedAt), nullString(ts.RejectedBy), nullString(ts.RejectionReason),
			ts.UpdatedAt.UTC(), ts.ID, ts.Version,
		)
		if err != nil {
			return fmt.Errorf("update timesheet: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrConflict(ctx, tx, ts.ID)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM time_entries WHERE timesheet_id = ?", ts.ID); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		for _, e := range ts.Entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO time_entries (id, timesheet_id, entry_date, start_time, end_time,
					break_minutes, total_hours, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, ts.ID, payperiod.FormatDate(e.Date), e.StartTime, e.EndTime,
				e.BreakMinutes, e.TotalHours, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert entry %s: %w", payperiod.FormatDate(e.Date), err)
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

// Delete removes a timesheet; entries go with it through the foreign key.
func (s *TimesheetStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM timesheets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete timesheet: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return timesheet.ErrNotFound
	}
	return nil
}

// SaveStaff inserts or updates a staff record.
func (s *TimesheetStore) SaveStaff(ctx context.Context, st timesheet.Staff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (user_id, first_name, last_name, department, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			first_name=excluded.first_name,
			last_name=excluded.last_name,
			department=excluded.department,
			updated_at=excluded.updated_at`,
		st.UserID, st.FirstName, st.LastName, st.Department, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	}
	return nil
}

func (s *TimesheetStore) entries(ctx context.Context, q querier, timesheetID string) ([]*timesheet.TimeEntry, error) {
	rows, err := q.QueryContext(ctx, selectEntry+` WHERE timesheet_id = ? ORDER BY entry_date`, timesheetID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []*timesheet.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func missingOrConflict(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM timesheets WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check timesheet: %w", err)
	}
	return timesheet.ErrVersionConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimesheet(row scanner) (*timesheet.Timesheet, error) {
	var (
		ts                                  timesheet.Timesheet
		start, end, status                  string
		submittedAt, approvedAt, rejectedAt sql.NullTime
		staffID, first, last, dept          sql.NullString
	)
	err := row.Scan(
		&ts.ID, &ts.UserID, &start, &end, &status,
		&ts.Week1Total, &ts.Week2Total, &ts.GrandTotal,
		&submittedAt, &approvedAt, &ts.ApprovedBy,
		&rejectedAt, &ts.RejectedBy, &ts.RejectionReason,
		&ts.Version, &ts.CreatedAt, &ts.UpdatedAt,
		&staffID, &first, &last, &dept,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timesheet.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan timesheet: %w", err)
	}

	if ts.PayPeriodStart, err = payperiod.ParseDate(start); err != nil {
		return nil, fmt.Errorf("scan timesheet %s: %w", ts.ID, err)
	}
	if ts.PayPeriodEnd, err = payperiod.ParseDate(end); err != nil {
		return nil, fmt.Errorf("scan timesheet %s: %w", ts.ID, err)
	}
	ts.Status = timesheet.Status(status)
	ts.SubmittedAt = timePtr(submittedAt)
	ts.ApprovedAt = timePtr(approvedAt)
	ts.RejectedAt = timePtr(rejectedAt)
	if staffID.Valid {
		ts.Owner = &timesheet.Staff{
			UserID:     staffID.String,
			FirstName:  first.String,
			LastName:   last.String,
			Department: dept.String,
		}
	}
	ts.Entries = []*timesheet.TimeEntry{}
	return &ts, nil
}

func scanEntry(row scanner) (*timesheet.TimeEntry, error) {
	var (
		e    timesheet.TimeEntry
		date string
	)
	err := row.Scan(&e.ID, &e.TimesheetID, &date, &e.StartTime, &e.EndTime,
		&e.BreakMinutes, &e.TotalHours, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if e.Date, err = payperiod.ParseDate(date); err != nil {
		return nil, fmt.Errorf("scan entry %s: %w", e.ID, err)
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
