package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatepass/checkout-backend/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepName identifies a reconciliation sweep
type SweepName string

const (
	SweepPendingExpiry SweepName = "pending-expiry"
	SweepTokenExpiry   SweepName = "token-expiry"
	SweepDailyCheckin  SweepName = "daily-checkin"
)

// SweepNames lists the sweeps in scheduling order
var SweepNames = []SweepName{SweepPendingExpiry, SweepTokenExpiry, SweepDailyCheckin}

// SweepStore is the part of the record store the sweeps operate on. Each
// method is a single filtered statement returning the affected row count.
type SweepStore interface {
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
	ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
	AutoCheckInOverdue(ctx context.Context, startOfDay, now time.Time) (int64, error)
}

// SweepResult is the outcome of one sweep run
type SweepResult struct {
	Name     SweepName     `json:"name"`
	Count    int64         `json:"count"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"-"`
	RanAt    time.Time     `json:"ranAt"`
}

// SweepStatus describes a scheduled sweep for the admin endpoint
type SweepStatus struct {
	Name      SweepName  `json:"name"`
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastCount int64      `json:"lastCount"`
	LastError string     `json:"lastError,omitempty"`
}

// sweepJob is one independently scheduled sweep with its own cron instance
type sweepJob struct {
	name     SweepName
	schedule string
	run      func(ctx context.Context, now time.Time) (int64, error)

	cron    *cron.Cron
	entryID cron.EntryID

	mu        sync.Mutex
	lastRun   *time.Time
	lastCount int64
	lastErr   string
}

// CronService is the reconciliation scheduler. Each sweep owns a cron
// instance that skips a tick while the previous run is still going, so runs
// of the same sweep never overlap.
type CronService struct {
	store    SweepStore
	cfg      config.SchedulerConfig
	location *time.Location
	locker   SweepLocker
	now      Clock
	logger   *logrus.Logger
	jobs     map[SweepName]*sweepJob
	startMu  sync.Mutex
	started  bool
}

// NewCronService creates the reconciliation scheduler
func NewCronService(store SweepStore, cfg config.SchedulerConfig, logger *logrus.Logger) *CronService {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	s := &CronService{
		store:    store,
		cfg:      cfg,
		location: cfg.Location(),
		now:      time.Now,
		logger:   logger,
	}

	s.jobs = map[SweepName]*sweepJob{
		SweepPendingExpiry: {name: SweepPendingExpiry, schedule: cfg.PendingSweepSchedule, run: s.expirePending},
		SweepTokenExpiry:   {name: SweepTokenExpiry, schedule: cfg.TokenSweepSchedule, run: s.expireTokens},
		SweepDailyCheckin:  {name: SweepDailyCheckin, schedule: cfg.DailySweepSchedule, run: s.autoCheckIn},
	}

	return s
}

// WithLocker enables cross-instance exclusion for sweep runs
func (s *CronService) WithLocker(locker SweepLocker) *CronService {
	s.locker = locker
	return s
}

// WithClock replaces the scheduler clock
func (s *CronService) WithClock(clock Clock) *CronService {
	s.now = clock
	return s
}

// Start schedules and starts every sweep
func (s *CronService) Start() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return nil
	}

	s.logger.WithField("timezone", s.location.String()).Info("Starting reconciliation scheduler")

	cronLogger := cron.PrintfLogger(s.logger)
	for _, name := range SweepNames {
		job := s.jobs[name]
		// Cron format: second minute hour day month weekday, descriptors allowed
		job.cron = cron.New(
			cron.WithSeconds(),
			cron.WithLocation(s.location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		)

		id, err := job.cron.AddFunc(job.schedule, func() { s.execute(context.Background(), job) })
		if err != nil {
			s.stopJobs(context.Background())
			return fmt.Errorf("failed to schedule %s sweep (%q): %w", job.name, job.schedule, err)
		}
		job.entryID = id

		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"schedule": job.schedule,
		}).Info("Scheduled sweep")
	}

	for _, name := range SweepNames {
		s.jobs[name].cron.Start()
	}
	s.started = true

	s.logger.Info("Reconciliation scheduler started")
	return nil
}

// Stop stops every sweep and waits for running ones until ctx expires
func (s *CronService) Stop(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info("Stopping reconciliation scheduler")
	if err := s.stopJobs(ctx); err != nil {
		s.logger.WithError(err).Warn("Reconciliation scheduler stop timed out")
		return err
	}
	s.logger.Info("Reconciliation scheduler stopped")
	return nil
}

func (s *CronService) stopJobs(ctx context.Context) error {
	var waits []context.Context
	for _, name := range SweepNames {
		if job := s.jobs[name]; job.cron != nil {
			waits = append(waits, job.cron.Stop())
		}
	}
	for _, done := range waits {
		select {
		case <-done.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RunNow runs a sweep immediately, outside its schedule
func (s *CronService) RunNow(ctx context.Context, name SweepName) (*SweepResult, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, validationError(CodeUnknownSweep, fmt.Sprintf("Unknown sweep %q", name))
	}

	s.logger.WithField("job", name).Info("Running sweep on demand")
	result, err := s.execute(ctx, job)
	if err != nil {
		return nil, infrastructureError(err)
	}
	return result, nil
}

// Status reports schedule and last outcome of every sweep
func (s *CronService) Status() []SweepStatus {
	s.startMu.Lock()
	running := s.started
	s.startMu.Unlock()

	statuses := make([]SweepStatus, 0, len(SweepNames))
	for _, name := range SweepNames {
		job := s.jobs[name]
		status := SweepStatus{
			Name:     job.name,
			Schedule: job.schedule,
			Running:  running,
		}

		if running && job.cron != nil {
			if next := job.cron.Entry(job.entryID).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}

		job.mu.Lock()
		status.LastRun = job.lastRun
		status.LastCount = job.lastCount
		status.LastError = job.lastErr
		job.mu.Unlock()

		statuses = append(statuses, status)
	}
	return statuses
}

// execute runs one sweep under the job timeout and, when configured, the
// cross-instance lock. Errors are logged and recorded, never raised further
// than the direct caller.
func (s *CronService) execute(parent context.Context, job *sweepJob) (*SweepResult, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	fields := logrus.Fields{"job": job.name}
	started := s.now()
	result := &SweepResult{Name: job.name, RanAt: started}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "checkout:sweep:"+string(job.name), s.cfg.JobTimeout)
		if err != nil {
			s.logger.WithFields(fields).WithError(err).Warn("Sweep lock unavailable, running without it")
		} else if !ok {
			s.logger.WithFields(fields).Info("Sweep skipped, another instance holds the lock")
			result.Skipped = true
			return result, nil
		} else {
			defer release()
		}
	}

	count, err := job.run(ctx, started)
	result.Count = count
	result.Duration = time.Since(started)

	job.mu.Lock()
	job.lastRun = &started
	job.lastCount = count
	job.lastErr = ""
	if err != nil {
		job.lastErr = err.Error()
	}
	job.mu.Unlock()

	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Sweep failed")
		return nil, err
	}

	s.logger.WithFields(fields).WithFields(logrus.Fields{
		"count":    count,
		"duration": result.Duration.String(),
	}).Info("Sweep completed")

	return result, nil
}

// expirePending deletes pre-registrations never confirmed at the guardhouse
func (s *CronService) expirePending(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteStalePending(ctx, now.Add(-s.cfg.PendingMaxAge))
}

// expireTokens clears tokens left on records checked in a while ago
func (s *CronService) expireTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.store.ClearExpiredTokens(ctx, now.Add(-s.cfg.TokenRetention))
}

// autoCheckIn closes OUT records from previous days. No notification is sent.
func (s *CronService) autoCheckIn(ctx context.Context, now time.Time) (int64, error) {
	return s.store.AutoCheckInOverdue(ctx, StartOfDay(now, s.location), now)
}

// StartOfDay returns midnight of t's date in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ParseSweepName validates a sweep name from user input
func ParseSweepName(raw string) (SweepName, bool) {
	for _, name := range SweepNames {
		if string(name) == raw {
			return name, true
		}
	}
	return "", false
}
