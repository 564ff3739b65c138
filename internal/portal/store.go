package portal

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

// Store adapts the portal API to timesheet.Store.
type Store struct {
	client *Client
}

var _ timesheet.Store = (*Store)(nil)

// NewStore wraps client as a timesheet store.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

type upsertRequest struct {
	UserID         string `json:"userId"`
	PayPeriodStart string `json:"payPeriodStart"`
	PayPeriodEnd   string `json:"payPeriodEnd"`
}

// UpsertCurrent asks the portal for the (userID, p.Start) timesheet,
// creating it there if needed.
func (s *Store) UpsertCurrent(ctx context.Context, userID string, p payperiod.Period) (*timesheet.Timesheet, error) {
	var ts timesheet.Timesheet
	err := s.client.do(ctx, http.MethodPost, "/api/v1/timesheets/current", upsertRequest{
		UserID:         userID,
		PayPeriodStart: payperiod.FormatDate(p.Start),
		PayPeriodEnd:   payperiod.FormatDate(p.End),
	}, &ts)
	if err != nil {
		return nil, err
	}
	return normalize(&ts), nil
}

// Get fetches one timesheet with its entries.
func (s *Store) Get(ctx context.Context, id string) (*timesheet.Timesheet, error) {
	var ts timesheet.Timesheet
	err := s.client.do(ctx, http.MethodGet, "/api/v1/timesheets/"+url.PathEscape(id), nil, &ts)
	if err != nil {
		return nil, notFound(err, timesheet.ErrNotFound)
	}
	return normalize(&ts), nil
}

// GetEntry fetches one entry.
func (s *Store) GetEntry(ctx context.Context, entryID string) (*timesheet.TimeEntry, error) {
	var e timesheet.TimeEntry
	err := s.client.do(ctx, http.MethodGet, "/api/v1/entries/"+url.PathEscape(entryID), nil, &e)
	if err != nil {
		return nil, notFound(err, timesheet.ErrEntryNotFound)
	}
	e.Date = payperiod.Day(e.Date)
	return &e, nil
}

// List fetches timesheets matching f.
func (s *Store) List(ctx context.Context, f timesheet.Filter) ([]*timesheet.Timesheet, error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Department != "" {
		q.Set("department", f.Department)
	}
	path := "/api/v1/timesheets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []*timesheet.Timesheet
	if err := s.client.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []*timesheet.Timesheet{}
	}
	for _, ts := range list {
		normalize(ts)
	}
	return list, nil
}

// Save sends the full timesheet; the portal enforces the version check and
// answers 409 on a stale write.
func (s *Store) Save(ctx context.Context, ts *timesheet.Timesheet) error {
	var saved timesheet.Timesheet
	err := s.client.do(ctx, http.MethodPut, "/api/v1/timesheets/"+url.PathEscape(ts.ID), ts, &saved)
	if err != nil {
		return notFound(err, timesheet.ErrNotFound)
	}
	if saved.Version > ts.Version {
		ts.Version = saved.Version
	} else {
		ts.Version++
	}
	return nil
}

// Delete removes a timesheet on the portal.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.client.do(ctx, http.MethodDelete, "/api/v1/timesheets/"+url.PathEscape(id), nil, nil)
	return notFound(err, timesheet.ErrNotFound)
}

// SaveStaff pushes a staff directory record.
func (s *Store) SaveStaff(ctx context.Context, st timesheet.Staff) error {
	return s.client.do(ctx, http.MethodPut, "/api/v1/staff/"+url.PathEscape(st.UserID), st, nil)
}

// notFound replaces a 404 reply with sentinel.
func notFound(err, sentinel error) error {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return sentinel
	}
	return err
}

func normalize(ts *timesheet.Timesheet) *timesheet.Timesheet {
	ts.PayPeriodStart = payperiod.Day(ts.PayPeriodStart)
	ts.PayPeriodEnd = payperiod.Day(ts.PayPeriodEnd)
	if ts.Entries == nil {
		ts.Entries = []*timesheet.TimeEntry{}
	}
	for _, e := range ts.Entries {
		e.Date = payperiod.Day(e.Date)
	}
	return ts
}
