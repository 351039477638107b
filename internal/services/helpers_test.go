package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gatepass/checkout-backend/internal/database"
	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeNotifier records queued events
type fakeNotifier struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (n *fakeNotifier) Enqueue(evt TransitionEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return true
}

func (n *fakeNotifier) Events() []TransitionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]TransitionEvent(nil), n.events...)
}

// memStore is an in-memory record store with the same preconditions as the
// Postgres repository. Every method holds the lock for its whole body.
type memStore struct {
	mu        sync.Mutex
	records   []*models.CheckoutRecord
	employees map[string]models.Employee
}

var _ CheckoutStore = (*memStore)(nil)
var _ TokenStore = (*memStore)(nil)
var _ SweepStore = (*memStore)(nil)
var _ EmployeeDirectory = (*memStore)(nil)

func newMemStore(employees ...models.Employee) *memStore {
	s := &memStore{employees: make(map[string]models.Employee)}
	for _, e := range employees {
		s.employees[e.EmployeeNo] = e
	}
	return s
}

func (s *memStore) GetByEmployeeNo(ctx context.Context, employeeNo string) (*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[employeeNo]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memStore) CreatePending(ctx context.Context, record *models.CheckoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.EmployeeNo == record.EmployeeNo && r.Status.IsActive() {
			return &database.ActiveCheckoutError{EmployeeNo: r.EmployeeNo, Status: r.Status}
		}
	}
	record.ID = uuid.New()
	record.Status = models.CheckoutStatusPending
	copied := *record
	s.records = append(s.records, &copied)
	return nil
}

func (s *memStore) FindActiveByToken(ctx context.Context, token string) (*models.CheckoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SessionToken != nil && *r.SessionToken == token && r.Status.IsActive() {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindOutByEmployee(ctx context.Context, employeeNo string) (*models.CheckoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.EmployeeNo == employeeNo && r.Status == models.CheckoutStatusOut {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ConfirmPending(ctx context.Context, token string, now time.Time) (*models.CheckoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SessionToken != nil && *r.SessionToken == token && r.Status == models.CheckoutStatusPending {
			r.Status = models.CheckoutStatusOut
			t := now
			r.CheckoutTime = &t
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CheckIn(ctx context.Context, employeeNo string, now time.Time) (*models.CheckoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.EmployeeNo == employeeNo && r.Status == models.CheckoutStatusOut {
			r.Status = models.CheckoutStatusIn
			t := now
			r.CheckinTime = &t
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListHistory(ctx context.Context, includeReturned bool) ([]models.CheckoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.CheckoutRecord{}
	for _, r := range s.records {
		if r.Status == models.CheckoutStatusOut || (includeReturned && r.Status == models.CheckoutStatusIn) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckoutTime.After(*out[j].CheckoutTime) })
	return out, nil
}

func (s *memStore) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.records[:0]
	for _, r := range s.records {
		if r.Status == models.CheckoutStatusPending && r.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

func (s *memStore) ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.SessionToken != nil && r.Status == models.CheckoutStatusIn && r.CheckinTime != nil && r.CheckinTime.Before(cutoff) {
			r.SessionToken = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) AutoCheckInOverdue(ctx context.Context, startOfDay, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Status == models.CheckoutStatusOut && r.CheckoutTime.Before(startOfDay) {
			r.Status = models.CheckoutStatusIn
			t := now
			r.CheckinTime = &t
			r.SessionToken = nil
			n++
		}
	}
	return n, nil
}

// activeCount returns the number of PENDING or OUT records for employeeNo
func (s *memStore) activeCount(employeeNo string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.EmployeeNo == employeeNo && r.Status.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) byEmployee(employeeNo string) []models.CheckoutRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CheckoutRecord
	for _, r := range s.records {
		if r.EmployeeNo == employeeNo {
			out = append(out, *r)
		}
	}
	return out
}
