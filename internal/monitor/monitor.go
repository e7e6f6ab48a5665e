// Package monitor runs the periodic verification cycle: overdue loans,
// upcoming due dates and expired holds.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/bookstack-dev/library-reservations/internal/database/postgres"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
	"github.com/bookstack-dev/library-reservations/internal/service"
)

const (
	DefaultInterval         = time.Hour
	DefaultReminderLeadDays = 1
)

type Config struct {
	Interval         time.Duration
	ReminderLeadDays int
}

type Monitor struct {
	loans        service.LoanService
	reservations service.ReservationService
	catalog      repository.CatalogRepository
	users        repository.UserRepository
	notifier     service.Notifier
	cfg          Config

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	cycles atomic.Int64
}

func New(
	loans service.LoanService,
	reservations service.ReservationService,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	n service.Notifier,
	cfg Config,
) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ReminderLeadDays <= 0 {
		cfg.ReminderLeadDays = DefaultReminderLeadDays
	}
	return &Monitor{
		loans:        loans,
		reservations: reservations,
		catalog:      catalog,
		users:        users,
		notifier:     n,
		cfg:          cfg,
	}
}

// Start launches the periodic cycle. Calling it on a running monitor is a
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx, stop)

	logrus.WithField("interval", m.cfg.Interval).Info("system monitor started")
}

// Stop halts the periodic cycle and waits for an in-flight one to finish.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
	logrus.Info("system monitor stopped")
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Cycles returns how many verification cycles have run, including manual
// ones.
func (m *Monitor) Cycles() int64 {
	return m.cycles.Load()
}

// RunVerificationNow executes one verification cycle synchronously. It works
// whether or not the periodic loop is running.
func (m *Monitor) RunVerificationNow(ctx context.Context) {
	logrus.Info("manual verification cycle requested")
	m.runCycle(ctx, time.Now())
}

func (m *Monitor) loop(ctx context.Context, stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.runCycle(ctx, time.Now())

	for {
		select {
		case <-ticker.C:
			m.runCycle(ctx, time.Now())
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes the three verification scans. A failure in one scan
// never prevents the others from running.
func (m *Monitor) runCycle(ctx context.Context, now time.Time) {
	cycle := m.cycles.Add(1)
	logrus.WithField("cycle", cycle).Debug("verification cycle started")

	m.runScan("overdue_loans", func() { m.checkOverdueLoans(ctx, now) })
	m.runScan("upcoming_due", func() { m.checkUpcomingDue(ctx, now) })
	m.runScan("expired_reservations", func() { m.checkExpiredReservations(ctx, now) })
}

func (m *Monitor) runScan(name string, scan func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("monitor scan %s panicked: %v", name, r)
		}
	}()
	scan()
}

func (m *Monitor) checkOverdueLoans(ctx context.Context, now time.Time) {
	overdue, err := m.loans.ListOverdue(ctx, now)
	if err != nil {
		logrus.Errorf("failed to list overdue loans: %v", err)
		return
	}
	if len(overdue) == 0 {
		return
	}

	logrus.Infof("found %d overdue loans", len(overdue))

	for _, loan := range overdue {
		user, err := m.users.GetByID(ctx, loan.UserID)
		if err != nil {
			logrus.Errorf("failed to load user %s for overdue notice: %v", loan.UserID, err)
			continue
		}

		days := loan.DaysOverdue(now)
		level := entity.AlertLevelForOverdue(days)
		message := level.Tag(fmt.Sprintf("Your loan of %q is %d day(s) overdue. Please return it as soon as possible.",
			m.resourceTitle(ctx, loan.ResourceID), days))

		m.notifier.Enqueue(*user, message, notifier.ChannelEmail, level.Priority())
		if level.RequiresSMS() && user.Phone != "" {
			m.notifier.Enqueue(*user, message, notifier.ChannelSMS, level.Priority())
		}
	}
}

func (m *Monitor) checkUpcomingDue(ctx context.Context, now time.Time) {
	day := now.AddDate(0, 0, m.cfg.ReminderLeadDays)
	upcoming, err := m.loans.ListDueOn(ctx, day)
	if err != nil {
		logrus.Errorf("failed to list upcoming due loans: %v", err)
		return
	}
	if len(upcoming) == 0 {
		return
	}

	logrus.Infof("found %d loans due on %s", len(upcoming), day.Format("2006-01-02"))

	for _, loan := range upcoming {
		user, err := m.users.GetByID(ctx, loan.UserID)
		if err != nil {
			logrus.Errorf("failed to load user %s for due reminder: %v", loan.UserID, err)
			continue
		}

		message := fmt.Sprintf("Reminder: your loan of %q is due on %s. You can return or renew it before the deadline.",
			m.resourceTitle(ctx, loan.ResourceID), loan.DueAt.Format("2006-01-02"))

		m.notifier.Enqueue(*user, message, notifier.ChannelEmail, 3)
	}
}

func (m *Monitor) checkExpiredReservations(ctx context.Context, now time.Time) {
	expired, err := m.reservations.ExpireReservations(ctx, now)
	if err != nil {
		logrus.Errorf("failed to expire reservations: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	logrus.Infof("expired %d reservations", len(expired))

	for _, reservation := range expired {
		user, err := m.users.GetByID(ctx, reservation.UserID)
		if err != nil {
			logrus.Errorf("failed to load user %s for expiry notice: %v", reservation.UserID, err)
			continue
		}

		message := fmt.Sprintf("Your hold on %q expired because it was not claimed in time.",
			m.resourceTitle(ctx, reservation.ResourceID))

		m.notifier.Enqueue(*user, message, notifier.ChannelEmail, notifier.DefaultPriority)
	}
}

func (m *Monitor) resourceTitle(ctx context.Context, resourceID string) string {
	resource, err := m.catalog.GetByID(ctx, resourceID)
	if err != nil {
		return resourceID
	}
	return resource.Title
}
