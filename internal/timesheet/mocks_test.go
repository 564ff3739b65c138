package timesheet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same version semantics as the SQL stores.
type memStore struct {
	mu     sync.Mutex
	sheets map[string]*Timesheet
	staff  map[string]Staff

	saveErr   error
	conflicts int // number of Save calls to fail with ErrVersionConflict
	saves     int
}

func newMemStore() *memStore {
	return &memStore{
		sheets: make(map[string]*Timesheet),
		staff:  make(map[string]Staff),
	}
}

func (m *memStore) UpsertCurrent(_ context.Context, userID string, p payperiod.Period) (*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ts := range m.sheets {
		if ts.UserID == userID && ts.PayPeriodStart.Equal(p.Start) {
			return ts.Clone(), nil
		}
	}
	ts := New(uuid.NewString(), userID, p, time.Now())
	ts.Version = 1
	m.sheets[ts.ID] = ts
	return ts.Clone(), nil
}

func (m *memStore) Get(_ context.Context, id string) (*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.sheets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ts.Clone(), nil
}

func (m *memStore) GetEntry(_ context.Context, entryID string) (*TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ts := range m.sheets {
		if e := ts.EntryByID(entryID); e != nil {
			ec := *e
			return &ec, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *memStore) List(_ context.Context, f Filter) ([]*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Timesheet
	for _, ts := range m.sheets {
		if f.UserID != "" && ts.UserID != f.UserID {
			continue
		}
		if f.Status != "" && ts.Status != f.Status {
			continue
		}
		if f.Department != "" {
			st, ok := m.staff[ts.UserID]
			if !ok || st.Department != f.Department {
				continue
			}
		}
		c := ts.Clone()
		c.Entries = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayPeriodStart.After(out[j].PayPeriodStart) })
	return out, nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) Save(_ context.Context, ts *Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return ErrVersionConflict
	}
	cur, ok := m.sheets[ts.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != ts.Version {
		return ErrVersionConflict
	}
	ts.Version++
	m.sheets[ts.ID] = ts.Clone()
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[id]; !ok {
		return ErrNotFound
	}
	delete(m.sheets, id)
	return nil
}

func (m *memStore) SaveStaff(_ context.Context, s Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[s.UserID] = s
	return nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

// countingRecorder counts observations by outcome.
type countingRecorder struct {
	mu          sync.Mutex
	outcomes    map[string]int
	transitions []string
	pubFailures int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (r *countingRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[op+"/"+outcome]++
}

func (r *countingRecorder) ObserveTransition(from, to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
}

func (r *countingRecorder) ObservePublishFailure(EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pubFailures++
}

var errBackendDown = errors.New("connection refused")
