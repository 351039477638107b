package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/gatepass/checkout-backend/internal/config"
	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/gatepass/checkout-backend/pkg/mailer"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// TransitionKind identifies the state change that produced an event
type TransitionKind string

const (
	TransitionCheckout TransitionKind = "checkout"
	TransitionCheckin  TransitionKind = "checkin"
)

// TransitionEvent carries the snapshot of a record after an OUT or IN transition
type TransitionEvent struct {
	Kind         TransitionKind
	EmployeeNo   string
	EmployeeName string
	Department   string
	Location     string
	Purpose      string
	CheckoutTime *time.Time
	CheckinTime  *time.Time
	Duration     string
}

// NewCheckoutEvent builds the event for a PENDING to OUT transition
func NewCheckoutEvent(r *models.CheckoutRecord) TransitionEvent {
	return TransitionEvent{
		Kind:         TransitionCheckout,
		EmployeeNo:   r.EmployeeNo,
		EmployeeName: r.EmployeeName,
		Department:   r.Department,
		Location:     r.Location,
		Purpose:      r.Purpose,
		CheckoutTime: r.CheckoutTime,
	}
}

// NewCheckinEvent builds the event for an OUT to IN transition
func NewCheckinEvent(r *models.CheckoutRecord, duration string) TransitionEvent {
	evt := NewCheckoutEvent(r)
	evt.Kind = TransitionCheckin
	evt.CheckinTime = r.CheckinTime
	evt.Duration = duration
	return evt
}

// Notifier accepts transition events without blocking the caller
type Notifier interface {
	// Enqueue hands the event off for delivery. It returns false when the
	// event was dropped.
	Enqueue(evt TransitionEvent) bool
}

type transitionTemplate struct {
	subject string
	heading string
	intro   string
	accent  string
	tmpl    *template.Template
}

// NotificationService is the notification dispatcher: a fixed pool of workers
// draining a bounded queue of transition events. Delivery is best-effort with
// a single attempt per event; failures are logged and never reach a caller.
type NotificationService struct {
	mailer      mailer.Mailer
	routing     map[string][]string
	hr          []string
	opsManagers []string
	workers     int
	sendTimeout time.Duration
	logger      *logrus.Logger
	templates   map[TransitionKind]transitionTemplate

	queue   chan TransitionEvent
	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewNotificationService creates a dispatcher from the notification config
func NewNotificationService(cfg config.NotificationConfig, m mailer.Mailer, logger *logrus.Logger) (*NotificationService, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}

	return &NotificationService{
		mailer:      m,
		routing:     cfg.DepartmentRecipients,
		hr:          cfg.HRRecipients,
		opsManagers: cfg.OpsManagerRecipients,
		workers:     workers,
		sendTimeout: sendTimeout,
		logger:      logger,
		templates:   templates,
		queue:       make(chan TransitionEvent, queueSize),
	}, nil
}

func loadTemplates() (map[TransitionKind]transitionTemplate, error) {
	parse := func(file string) (*template.Template, error) {
		t, err := template.ParseFS(templateFS, "templates/layout.html.tmpl", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse notification template %s: %w", file, err)
		}
		return t.Lookup(file), nil
	}

	checkout, err := parse("checkout.html.tmpl")
	if err != nil {
		return nil, err
	}
	checkin, err := parse("checkin.html.tmpl")
	if err != nil {
		return nil, err
	}

	return map[TransitionKind]transitionTemplate{
		TransitionCheckout: {
			subject: "Check Out Notification",
			heading: "Employee Checkout Notification",
			intro:   "An employee has checked out from the premise:",
			accent:  "#4CAF50",
			tmpl:    checkout,
		},
		TransitionCheckin: {
			subject: "Check In Notification",
			heading: "Employee Check-in Notification",
			intro:   "An employee has checked back into the premise:",
			accent:  "#2196F3",
			tmpl:    checkin,
		},
	}, nil
}

// Start launches the worker pool
func (s *NotificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.WithFields(logrus.Fields{
		"workers":    s.workers,
		"queue_size": cap(s.queue),
		"transport":  s.mailer.GetName(),
	}).Info("Notification dispatcher started")
}

// Enqueue queues evt without blocking. A full queue or a stopped dispatcher
// drops the event with a warning.
func (s *NotificationService) Enqueue(evt TransitionEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := logrus.Fields{"employee_no": evt.EmployeeNo, "transition": evt.Kind}

	if s.closed {
		s.logger.WithFields(fields).Warn("Notification dropped, dispatcher is stopped")
		return false
	}

	select {
	case s.queue <- evt:
		return true
	default:
		s.logger.WithFields(fields).Warn("Notification dropped, queue is full")
		return false
	}
}

// Stop closes the queue and waits for workers to drain it. When ctx expires
// first the remaining sends are abandoned.
func (s *NotificationService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		s.logger.WithField("pending", len(s.queue)).Warn("Notification dispatcher stop timed out, abandoning in-flight sends")
		return ctx.Err()
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()
	for evt := range s.queue {
		s.Deliver(evt)
	}
	s.logger.WithField("worker", id).Debug("Notification worker exited")
}

// Deliver resolves recipients, renders and sends one event synchronously.
// Every failure is logged and absorbed.
func (s *NotificationService) Deliver(evt TransitionEvent) {
	fields := logrus.Fields{
		"employee_no": evt.EmployeeNo,
		"department":  evt.Department,
		"transition":  evt.Kind,
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(fields).WithField("panic", r).Error("Notification delivery panicked")
		}
	}()

	to, cc := s.Recipients(evt.Department)
	if len(to) == 0 && len(cc) == 0 {
		s.logger.WithFields(fields).Warn("No recipients found for notification")
		return
	}

	msg, err := s.Render(evt)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Failed to render notification")
		return
	}
	msg.To = to
	msg.Cc = cc

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WithFields(fields).WithFields(logrus.Fields{
			"to": to,
			"cc": cc,
		}).WithError(err).Error("Failed to send notification")
		return
	}

	s.logger.WithFields(fields).WithFields(logrus.Fields{
		"to_count": len(to),
		"cc_count": len(cc),
	}).Info("Notification sent")
}

// Recipients resolves the primary recipients for department and the CC list
// made of the HR and operations-manager groups. Both lists are deduplicated
// and a CC address already in the primary list is dropped.
func (s *NotificationService) Recipients(department string) (to, cc []string) {
	primary, ok := s.routing[department]
	if !ok {
		s.logger.WithField("department", department).Warn("Department not found in notification routing")
	}

	to = dedupe(primary, nil)
	seen := make(map[string]struct{}, len(to))
	for _, addr := range to {
		seen[addr] = struct{}{}
	}

	cc = dedupe(append(append([]string{}, s.hr...), s.opsManagers...), seen)
	return to, cc
}

// Render builds the subject and HTML body for evt
func (s *NotificationService) Render(evt TransitionEvent) (mailer.Message, error) {
	tt, ok := s.templates[evt.Kind]
	if !ok {
		return mailer.Message{}, fmt.Errorf("unknown transition kind %q", evt.Kind)
	}

	data := struct {
		Heading      string
		Intro        string
		Accent       template.CSS
		Event        TransitionEvent
		CheckoutTime string
		CheckinTime  string
	}{
		Heading:      tt.heading,
		Intro:        tt.intro,
		Accent:       template.CSS(tt.accent),
		Event:        evt,
		CheckoutTime: formatOrNA(evt.CheckoutTime),
		CheckinTime:  formatOrNA(evt.CheckinTime),
	}

	var body bytes.Buffer
	if err := tt.tmpl.Execute(&body, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to execute %s template: %w", evt.Kind, err)
	}

	return mailer.Message{Subject: tt.subject, HTMLBody: body.String()}, nil
}

func formatOrNA(t *time.Time) string {
	if s := models.FormatTimestamp(t); s != nil {
		return *s
	}
	return "N/A"
}

// dedupe drops blanks, duplicates and anything in exclude, keeping order
func dedupe(addresses []string, exclude map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if _, skip := exclude[addr]; skip {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
