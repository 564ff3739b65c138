package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
)

const (
	defaultMaxAttempts  = 3
	defaultStoreTimeout = 10 * time.Second
)

// Operation names, shared with the transport layer and metrics labels.
const (
	OpGetOrCreateCurrent = "getOrCreateCurrentTimesheet"
	OpGet                = "getTimesheetById"
	OpListForUser        = "getUserTimesheets"
	OpListAll            = "getAllTimesheets"
	OpSaveEntry          = "saveTimeEntry"
	OpDeleteEntry        = "deleteTimeEntry"
	OpSubmit             = "submitTimesheet"
	OpApprove            = "approveTimesheet"
	OpReject             = "rejectTimesheet"
	OpRevert             = "revertToDraft"
	OpDelete             = "deleteTimesheet"
	OpPayPeriodInfo      = "getPayPeriodInfo"
	OpSaveStaff          = "saveStaff"
)

// Service runs timesheet operations against a Store.
type Service struct {
	store         Store
	resolver      *payperiod.Resolver
	publisher     EventPublisher
	recorder      Recorder
	logger        *slog.Logger
	now           Clock
	requireReason bool
	maxAttempts   int
	storeTimeout  time.Duration
	locks         *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(s *Service) { s.now = c } }

// WithPublisher sends lifecycle events to p after each committed transition.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithRecorder reports operation outcomes to r.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithRequireRejectionReason makes a blank rejection reason invalid input.
func WithRequireRejectionReason(v bool) Option { return func(s *Service) { s.requireReason = v } }

// WithMaxAttempts bounds how often a write is retried after a version conflict.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithStoreTimeout bounds every store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// NewService creates a timesheet service.
func NewService(store Store, resolver *payperiod.Resolver, opts ...Option) *Service {
	if resolver == nil {
		resolver = payperiod.Default()
	}
	s := &Service{
		store:        store,
		resolver:     resolver,
		recorder:     nopRecorder{},
		logger:       slog.Default(),
		now:          time.Now,
		maxAttempts:  defaultMaxAttempts,
		storeTimeout: defaultStoreTimeout,
		locks:        newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the pay period resolver in use.
func (s *Service) Resolver() *payperiod.Resolver { return s.resolver }

// GetOrCreateCurrent returns the user's timesheet for the period containing now.
func (s *Service) GetOrCreateCurrent(ctx context.Context, userID string) (ts *Timesheet, err error) {
	defer s.observe(OpGetOrCreateCurrent, time.Now(), &err)

	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	p := s.resolver.Resolve(s.now())

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	ts, err = s.store.UpsertCurrent(sctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("upsert current timesheet for %s: %w", userID, err)
	}
	return ts, nil
}

// Get loads a timesheet with its entries.
func (s *Service) Get(ctx context.Context, id string) (ts *Timesheet, err error) {
	defer s.observe(OpGet, time.Now(), &err)

	if err := requireID("timesheetId", id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// ListForUser lists one user's timesheets, optionally by status.
func (s *Service) ListForUser(ctx context.Context, userID string, status Status) (list []*Timesheet, err error) {
	defer s.observe(OpListForUser, time.Now(), &err)

	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{UserID: userID, Status: status})
}

// ListAll lists every user's timesheets, optionally by status and department.
func (s *Service) ListAll(ctx context.Context, status Status, department string) (list []*Timesheet, err error) {
	defer s.observe(OpListAll, time.Now(), &err)

	return s.list(ctx, Filter{Status: status, Department: strings.TrimSpace(department)})
}

// SaveEntry adds or replaces the entry for one day of a draft timesheet.
func (s *Service) SaveEntry(ctx context.Context, in EntryInput) (entry *TimeEntry, totals Totals, err error) {
	defer s.observe(OpSaveEntry, time.Now(), &err)

	ts, err := s.mutate(ctx, in.TimesheetID, func(ts *Timesheet, now time.Time) error {
		e, err := ts.UpsertEntry(in, now)
		entry = e
		return err
	})
	if err != nil {
		return nil, Totals{}, err
	}
	return entry, ts.Totals(), nil
}

// DeleteEntryInput identifies an entry by id, or by timesheet and date.
type DeleteEntryInput struct {
	EntryID     string `json:"entryId"`
	TimesheetID string `json:"timesheetId"`
	Date        string `json:"date"`
}

// DeleteEntry removes one entry from a draft timesheet and returns the new totals.
func (s *Service) DeleteEntry(ctx context.Context, in DeleteEntryInput) (totals Totals, err error) {
	defer s.observe(OpDeleteEntry, time.Now(), &err)

	var remove func(ts *Timesheet, now time.Time) error
	timesheetID := in.TimesheetID

	switch {
	case in.EntryID != "":
		sctx, cancel := s.storeCtx(ctx)
		e, err := s.store.GetEntry(sctx, in.EntryID)
		cancel()
		if err != nil {
			return Totals{}, fmt.Errorf("load entry %s: %w", in.EntryID, err)
		}
		timesheetID = e.TimesheetID
		remove = func(ts *Timesheet, now time.Time) error {
			return ts.RemoveEntryByID(in.EntryID, now)
		}
	case in.TimesheetID != "" && in.Date != "":
		day, err := payperiod.ParseDate(in.Date)
		if err != nil {
			return Totals{}, inputError("date", "Invalid date %q", in.Date)
		}
		remove = func(ts *Timesheet, now time.Time) error {
			if ts.CanEdit() && ts.EntryOn(day) == nil {
				return errUnchanged
			}
			return ts.RemoveEntryOn(day, now)
		}
	default:
		return Totals{}, inputError("entryId", "Either entryId or timesheetId and date are required")
	}

	ts, err := s.mutate(ctx, timesheetID, remove)
	if err != nil {
		return Totals{}, err
	}
	return ts.Totals(), nil
}

// Submit sends a draft with hours for approval.
func (s *Service) Submit(ctx context.Context, id string) (ts *Timesheet, err error) {
	defer s.observe(OpSubmit, time.Now(), &err)

	ts, err = s.transition(ctx, id, EventSubmitted, "", func(ts *Timesheet, now time.Time) error {
		return ts.Submit(now)
	})
	return ts, err
}

// Approve approves a submitted timesheet.
func (s *Service) Approve(ctx context.Context, id, approverID string) (ts *Timesheet, err error) {
	defer s.observe(OpApprove, time.Now(), &err)

	if err := requireID("approverId", approverID); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, EventApproved, approverID, func(ts *Timesheet, now time.Time) error {
		return ts.Approve(now, approverID)
	})
}

// Reject rejects a submitted timesheet with a reason.
func (s *Service) Reject(ctx context.Context, id, rejecterID, reason string) (ts *Timesheet, err error) {
	defer s.observe(OpReject, time.Now(), &err)

	if err := requireID("rejecterId", rejecterID); err != nil {
		return nil, err
	}
	if s.requireReason && strings.TrimSpace(reason) == "" {
		return nil, inputError("reason", "A rejection reason is required")
	}
	return s.transition(ctx, id, EventRejected, rejecterID, func(ts *Timesheet, now time.Time) error {
		return ts.Reject(now, rejecterID, reason)
	})
}

// RevertToDraft reopens a rejected timesheet.
func (s *Service) RevertToDraft(ctx context.Context, id string) (ts *Timesheet, err error) {
	defer s.observe(OpRevert, time.Now(), &err)

	return s.transition(ctx, id, EventReverted, "", func(ts *Timesheet, now time.Time) error {
		return ts.RevertToDraft(now)
	})
}

// Delete removes a draft timesheet and its entries.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe(OpDelete, time.Now(), &err)

	if err := requireID("timesheetId", id); err != nil {
		return err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	ts, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := ts.CheckDelete(); err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Delete(sctx, id); err != nil {
		return fmt.Errorf("delete timesheet %s: %w", id, err)
	}

	s.publish(ctx, NewEvent(EventDeleted, ts, "", s.now()))
	return nil
}

// PeriodInfo describes a pay period for display.
type PeriodInfo struct {
	Start          string `json:"start"`
	End            string `json:"end"`
	StartFormatted string `json:"startFormatted"`
	EndFormatted   string `json:"endFormatted"`
}

// NewPeriodInfo renders p.
func NewPeriodInfo(p payperiod.Period) PeriodInfo {
	return PeriodInfo{
		Start:          payperiod.FormatDate(p.Start),
		End:            payperiod.FormatDate(p.End),
		StartFormatted: p.StartFormatted(),
		EndFormatted:   p.EndFormatted(),
	}
}

// PayPeriodInfo describes the period containing date, or now when date is nil.
func (s *Service) PayPeriodInfo(date *time.Time) PeriodInfo {
	t := s.now()
	if date != nil {
		t = *date
	}
	return NewPeriodInfo(s.resolver.Resolve(t))
}

// SaveStaff records directory details used to label admin listings.
func (s *Service) SaveStaff(ctx context.Context, st Staff) (err error) {
	defer s.observe(OpSaveStaff, time.Now(), &err)

	st.UserID = strings.TrimSpace(st.UserID)
	if err := requireID("userId", st.UserID); err != nil {
		return err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.SaveStaff(sctx, st); err != nil {
		return fmt.Errorf("save staff %s: %w", st.UserID, err)
	}
	return nil
}

// transition applies fn under the timesheet lock, records the status change
// and publishes kind once the save has committed.
func (s *Service) transition(ctx context.Context, id string, kind EventKind, actorID string,
	fn func(ts *Timesheet, now time.Time) error) (*Timesheet, error) {
	var from Status
	ts, err := s.mutate(ctx, id, func(ts *Timesheet, now time.Time) error {
		from = ts.Status
		return fn(ts, now)
	})
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveTransition(from, ts.Status)
	s.publish(ctx, NewEvent(kind, ts, actorID, ts.UpdatedAt))
	return ts, nil
}

// mutate serializes writers on id, applies fn to a fresh copy and saves it.
// A version conflict from another process reloads and retries; fn errors are
// returned as-is and nothing is written.
// errUnchanged tells mutate the change is a no-op and nothing is saved.
var errUnchanged = errors.New("timesheet unchanged")

func (s *Service) mutate(ctx context.Context, id string, fn func(ts *Timesheet, now time.Time) error) (*Timesheet, error) {
	if err := requireID("timesheetId", id); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		work := current.Clone()
		if err := fn(work, s.now()); err != nil {
			if errors.Is(err, errUnchanged) {
				return current, nil
			}
			return nil, err
		}

		sctx, cancel := s.storeCtx(ctx)
		err = s.store.Save(sctx, work)
		cancel()
		if err == nil {
			return work, nil
		}
		if errors.Is(err, ErrVersionConflict) && attempt < s.maxAttempts {
			s.logger.Warn("timesheet version conflict, retrying",
				"timesheet_id", id,
				"attempt", attempt,
			)
			continue
		}
		return nil, fmt.Errorf("save timesheet %s: %w", id, err)
	}
}

func (s *Service) load(ctx context.Context, id string) (*Timesheet, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	ts, err := s.store.Get(sctx, id)
	if err != nil {
		return nil, fmt.Errorf("load timesheet %s: %w", id, err)
	}
	return ts, nil
}

func (s *Service) list(ctx context.Context, f Filter) ([]*Timesheet, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, inputError("status", "Unknown status %q", f.Status)
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	list, err := s.store.List(sctx, f)
	if err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
	}
	if list == nil {
		list = []*Timesheet{}
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.recorder.ObservePublishFailure(ev.Kind)
		s.logger.Warn("failed to publish timesheet event",
			"kind", ev.Kind,
			"timesheet_id", ev.TimesheetID,
			"error", err,
		)
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		if IsValidation(err) {
			outcome = "rejected"
		} else {
			outcome = "error"
		}
	}
	s.recorder.ObserveOperation(op, outcome, time.Since(start))
}

func requireID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return inputError(field, "%s is required", field)
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveTransition(Status, Status)               {}
func (nopRecorder) ObservePublishFailure(EventKind)                {}
