package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

// EnvelopeVersion tags every response body.
const EnvelopeVersion = "1"

const maxBodyBytes = 1 << 20

// Response is the single response shape for every timesheet route.
type Response struct {
	Version    string                 `json:"version"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Timesheet  *timesheet.Timesheet   `json:"timesheet,omitempty"`
	Timesheets []*timesheet.Timesheet `json:"timesheets,omitzero"`
	Entry      *timesheet.TimeEntry   `json:"entry,omitempty"`
	Totals     *timesheet.Totals      `json:"totals,omitempty"`
	PayPeriod  *timesheet.PeriodInfo  `json:"payPeriod,omitempty"`
	Events     []timesheet.Event      `json:"events,omitzero"`
}

func succeeded() Response { return Response{Version: EnvelopeVersion, Success: true} }

func failed(msg string) Response {
	return Response{Version: EnvelopeVersion, Error: msg}
}

// Params is the union of every command's parameter bundle.
type Params struct {
	UserID       string `json:"userId,omitempty"`
	TimesheetID  string `json:"timesheetId,omitempty"`
	EntryID      string `json:"entryId,omitempty"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
	BreakMinutes int    `json:"breakMinutes,omitempty"`
	Status       string `json:"status,omitempty"`
	Department   string `json:"department,omitempty"`
	ApproverID   string `json:"approverId,omitempty"`
	RejecterID   string `json:"rejecterId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
}

// requestError is a malformed request caught before reaching the service.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return timesheet.ErrInvalidInput }

type command func(s *Server, ctx context.Context, p Params) (Response, error)

var commands = map[string]command{
	timesheet.OpGetOrCreateCurrent: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.GetOrCreateCurrent(ctx, p.UserID)
		return withTimesheet(ts), err
	},
	timesheet.OpGet: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.Get(ctx, p.TimesheetID)
		return withTimesheet(ts), err
	},
	timesheet.OpListForUser: func(s *Server, ctx context.Context, p Params) (Response, error) {
		status, err := timesheet.ParseStatus(p.Status)
		if err != nil {
			return Response{}, err
		}
		list, err := s.service.ListForUser(ctx, p.UserID, status)
		return withTimesheets(list), err
	},
	timesheet.OpListAll: func(s *Server, ctx context.Context, p Params) (Response, error) {
		status, err := timesheet.ParseStatus(p.Status)
		if err != nil {
			return Response{}, err
		}
		list, err := s.service.ListAll(ctx, status, p.Department)
		return withTimesheets(list), err
	},
	timesheet.OpSaveEntry: func(s *Server, ctx context.Context, p Params) (Response, error) {
		entry, totals, err := s.service.SaveEntry(ctx, timesheet.EntryInput{
			TimesheetID:  p.TimesheetID,
			Date:         p.Date,
			StartTime:    p.StartTime,
			EndTime:      p.EndTime,
			BreakMinutes: p.BreakMinutes,
		})
		if err != nil {
			return Response{}, err
		}
		resp := succeeded()
		resp.Entry = entry
		resp.Totals = &totals
		return resp, nil
	},
	timesheet.OpDeleteEntry: func(s *Server, ctx context.Context, p Params) (Response, error) {
		totals, err := s.service.DeleteEntry(ctx, timesheet.DeleteEntryInput{
			EntryID:     p.EntryID,
			TimesheetID: p.TimesheetID,
			Date:        p.Date,
		})
		if err != nil {
			return Response{}, err
		}
		resp := succeeded()
		resp.Totals = &totals
		return resp, nil
	},
	timesheet.OpSubmit: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.Submit(ctx, p.TimesheetID)
		return withTimesheet(ts), err
	},
	timesheet.OpApprove: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.Approve(ctx, p.TimesheetID, p.ApproverID)
		return withTimesheet(ts), err
	},
	timesheet.OpReject: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.Reject(ctx, p.TimesheetID, p.RejecterID, p.Reason)
		return withTimesheet(ts), err
	},
	timesheet.OpRevert: func(s *Server, ctx context.Context, p Params) (Response, error) {
		ts, err := s.service.RevertToDraft(ctx, p.TimesheetID)
		return withTimesheet(ts), err
	},
	timesheet.OpDelete: func(s *Server, ctx context.Context, p Params) (Response, error) {
		return succeeded(), s.service.Delete(ctx, p.TimesheetID)
	},
	timesheet.OpPayPeriodInfo: func(s *Server, ctx context.Context, p Params) (Response, error) {
		var date *time.Time
		if p.Date != "" {
			d, err := parseInstant(p.Date, s.service.Resolver().Location())
			if err != nil {
				return Response{}, err
			}
			date = &d
		}
		info := s.service.PayPeriodInfo(date)
		resp := succeeded()
		resp.PayPeriod = &info
		return resp, nil
	},
	timesheet.OpSaveStaff: func(s *Server, ctx context.Context, p Params) (Response, error) {
		return succeeded(), s.service.SaveStaff(ctx, timesheet.Staff{
			UserID:     p.UserID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Department: p.Department,
		})
	},
}

func withTimesheet(ts *timesheet.Timesheet) Response {
	resp := succeeded()
	resp.Timesheet = ts
	return resp
}

// withTimesheets always carries the list, so an empty result encodes as [].
func withTimesheets(list []*timesheet.Timesheet) Response {
	if list == nil {
		list = []*timesheet.Timesheet{}
	}
	resp := succeeded()
	resp.Timesheets = list
	return resp
}

// parseInstant accepts a civil date or an RFC 3339 timestamp. A civil date
// is midnight in loc so it keeps its calendar day when resolved.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	if d, err := payperiod.ParseDate(s); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &requestError{msg: fmt.Sprintf("Invalid date %q", s)}
	}
	return t, nil
}

// execute runs op and converts its outcome into a status code and envelope.
func (s *Server) execute(ctx context.Context, op string, p Params) (int, Response) {
	cmd, ok := commands[op]
	if !ok {
		return http.StatusNotFound, failed(fmt.Sprintf("Unknown command %q", op))
	}
	resp, err := cmd(s, ctx, p)
	if err != nil {
		return s.failure(ctx, op, err)
	}
	return http.StatusOK, resp
}

// failure maps err to a response. Validation and state errors keep their
// message; anything else is logged and reported generically.
func (s *Server) failure(ctx context.Context, op string, err error) (int, Response) {
	if timesheet.IsValidation(err) {
		return validationStatus(err), failed(timesheet.Message(err))
	}

	status := http.StatusInternalServerError
	if errors.Is(err, timesheet.ErrStorageUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	slog.Error("operation failed",
		"correlation_id", GetCorrelationID(ctx),
		"operation", op,
		"error", err,
	)
	return status, failed(op + " failed")
}

func validationStatus(err error) int {
	switch {
	case errors.Is(err, timesheet.ErrNotFound), errors.Is(err, timesheet.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, timesheet.ErrVersionConflict), errors.Is(err, timesheet.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// decodeBody reads an optional JSON body into p. An empty body is fine.
func decodeBody(w http.ResponseWriter, r *http.Request, p *Params) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return &requestError{msg: "Invalid request body"}
	}
	return nil
}

// serve runs op for a REST route.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, op string, p Params) {
	status, resp := s.execute(r.Context(), op, p)
	writeJSON(w, status, resp)
}

// serveWithBody decodes the body, lets fill apply path values over it and
// runs op.
func (s *Server) serveWithBody(w http.ResponseWriter, r *http.Request, op string, fill func(p *Params)) {
	var p Params
	if err := decodeBody(w, r, &p); err != nil {
		status, resp := s.failure(r.Context(), op, err)
		writeJSON(w, status, resp)
		return
	}
	if fill != nil {
		fill(&p)
	}
	s.serve(w, r, op, p)
}

// handleRPC accepts the historical command names and always answers 200;
// success is carried in the envelope.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("command")
	var p Params
	if err := decodeBody(w, r, &p); err != nil {
		_, resp := s.failure(r.Context(), op, err)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	_, resp := s.execute(r.Context(), op, p)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	s.serveWithBody(w, r, timesheet.OpGetOrCreateCurrent, nil)
}

func (s *Server) handleGetTimesheet(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpGet, Params{TimesheetID: r.PathValue("id")})
}

func (s *Server) handleUserTimesheets(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpListForUser, Params{
		UserID: r.PathValue("userID"),
		Status: r.URL.Query().Get("status"),
	})
}

func (s *Server) handleAllTimesheets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.serve(w, r, timesheet.OpListAll, Params{
		Status:     q.Get("status"),
		Department: q.Get("department"),
	})
}

func (s *Server) handleDeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpDelete, Params{TimesheetID: r.PathValue("id")})
}

func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	s.serveWithBody(w, r, timesheet.OpSaveEntry, func(p *Params) {
		p.TimesheetID = r.PathValue("id")
	})
}

func (s *Server) handleDeleteEntryByID(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpDeleteEntry, Params{EntryID: r.PathValue("entryID")})
}

func (s *Server) handleDeleteEntryByDate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpDeleteEntry, Params{
		TimesheetID: r.PathValue("id"),
		Date:        r.PathValue("date"),
	})
}

// handleTransition serves the submit, approve, reject and revert routes.
func (s *Server) handleTransition(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveWithBody(w, r, op, func(p *Params) {
			p.TimesheetID = r.PathValue("id")
		})
	}
}

func (s *Server) handlePayPeriod(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, timesheet.OpPayPeriodInfo, Params{Date: strings.TrimSpace(r.URL.Query().Get("date"))})
}

func (s *Server) handleSaveStaff(w http.ResponseWriter, r *http.Request) {
	s.serveWithBody(w, r, timesheet.OpSaveStaff, func(p *Params) {
		p.UserID = r.PathValue("userID")
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotImplemented, failed("Event history is not kept by this backend"))
		return
	}
	events, err := s.history.History(r.Context(), r.PathValue("id"))
	if err != nil {
		status, resp := s.failure(r.Context(), "history", err)
		writeJSON(w, status, resp)
		return
	}
	if events == nil {
		events = []timesheet.Event{}
	}
	resp := succeeded()
	resp.Events = events
	writeJSON(w, http.StatusOK, resp)
}
