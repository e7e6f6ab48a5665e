package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstack-dev/library-reservations/internal/database/memory"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
	"github.com/bookstack-dev/library-reservations/internal/service"
	"github.com/bookstack-dev/library-reservations/internal/waitlist"
)

type notifierRecorder struct {
	mu   sync.Mutex
	sent []recordedNotification
}

type recordedNotification struct {
	UserID   string
	Message  string
	Channel  string
	Priority int
}

func (r *notifierRecorder) Enqueue(recipient entity.User, message, channel string, priority int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recordedNotification{
		UserID:   recipient.ID,
		Message:  message,
		Channel:  channel,
		Priority: priority,
	})
	return true
}

func (r *notifierRecorder) byChannel(channel string) []recordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedNotification
	for _, n := range r.sent {
		if n.Channel == channel {
			out = append(out, n)
		}
	}
	return out
}

type monitorEnv struct {
	catalog  *memory.CatalogStore
	users    *memory.UserStore
	loans    *memory.LoanStore
	notifier *notifierRecorder
	resSvc   service.ReservationService
	loanSvc  service.LoanService
	monitor  *Monitor
}

func newMonitorEnv(t *testing.T, holdDuration time.Duration) *monitorEnv {
	t.Helper()

	env := &monitorEnv{
		catalog:  memory.NewCatalogStore(),
		users:    memory.NewUserStore(),
		loans:    memory.NewLoanStore(),
		notifier: &notifierRecorder{},
	}
	env.resSvc = service.NewReservationService(env.catalog, env.users, waitlist.NewStore(), env.notifier,
		service.ReservationConfig{HoldDuration: holdDuration})
	env.loanSvc = service.NewLoanService(env.loans, env.catalog, env.users, env.resSvc,
		service.NewRenewalRules(), env.notifier, service.LoanConfig{})
	env.monitor = New(env.loanSvc, env.resSvc, env.catalog, env.users, env.notifier, Config{})
	return env
}

func (e *monitorEnv) addUser(t *testing.T, id, phone string) {
	t.Helper()
	require.NoError(t, e.users.Create(context.Background(), &entity.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		Phone:     phone,
		CreatedAt: time.Now(),
	}))
}

func (e *monitorEnv) addResource(t *testing.T, id string, status entity.ResourceStatus) {
	t.Helper()
	require.NoError(t, e.catalog.Create(context.Background(), &entity.Resource{
		ID:        id,
		Title:     "Title of " + id,
		Category:  entity.CategoryFiction,
		Status:    status,
		CreatedAt: time.Now(),
	}))
}

func (e *monitorEnv) addLoanDue(t *testing.T, id, resourceID, userID string, dueAt time.Time) {
	t.Helper()
	require.NoError(t, e.loans.Create(context.Background(), &entity.Loan{
		ID:         id,
		ResourceID: resourceID,
		UserID:     userID,
		CreatedAt:  dueAt.AddDate(0, 0, -14),
		DueAt:      dueAt,
	}))
}

func TestOverdueSeverityDrivesChannelsAndPriority(t *testing.T) {
	tests := []struct {
		name        string
		daysOverdue int
		wantTag     string
		wantPrio    int
		wantSMS     bool
	}{
		{name: "mild sends a plain notice", daysOverdue: 2, wantTag: "[NOTICE]", wantPrio: 5, wantSMS: false},
		{name: "moderate warns by email only", daysOverdue: 5, wantTag: "[WARNING]", wantPrio: 3, wantSMS: false},
		{name: "severe adds sms", daysOverdue: 12, wantTag: "[URGENT]", wantPrio: 1, wantSMS: true},
		{name: "critical adds sms", daysOverdue: 35, wantTag: "[CRITICAL]", wantPrio: 1, wantSMS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newMonitorEnv(t, 0)
			env.addUser(t, "user-a", "+100200300")
			env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
			env.addLoanDue(t, "loan-1", "res-1", "user-a", time.Now().AddDate(0, 0, -tt.daysOverdue))

			env.monitor.RunVerificationNow(context.Background())

			emails := env.notifier.byChannel(notifier.ChannelEmail)
			require.Len(t, emails, 1)
			assert.True(t, strings.HasPrefix(emails[0].Message, tt.wantTag), "got %q", emails[0].Message)
			assert.Contains(t, emails[0].Message, "overdue")
			assert.Equal(t, tt.wantPrio, emails[0].Priority)

			sms := env.notifier.byChannel(notifier.ChannelSMS)
			if tt.wantSMS {
				require.Len(t, sms, 1)
				assert.Equal(t, emails[0].Message, sms[0].Message)
			} else {
				assert.Empty(t, sms)
			}
		})
	}
}

func TestSevereOverdueWithoutPhoneSkipsSMS(t *testing.T) {
	env := newMonitorEnv(t, 0)
	env.addUser(t, "user-a", "")
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addLoanDue(t, "loan-1", "res-1", "user-a", time.Now().AddDate(0, 0, -15))

	env.monitor.RunVerificationNow(context.Background())

	assert.Len(t, env.notifier.byChannel(notifier.ChannelEmail), 1)
	assert.Empty(t, env.notifier.byChannel(notifier.ChannelSMS))
}

func TestLoanDueTomorrowGetsReminder(t *testing.T) {
	env := newMonitorEnv(t, 0)
	env.addUser(t, "user-a", "")
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addLoanDue(t, "loan-1", "res-1", "user-a", time.Now().AddDate(0, 0, 1))

	env.monitor.RunVerificationNow(context.Background())

	emails := env.notifier.byChannel(notifier.ChannelEmail)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Message, "Reminder")
	assert.Equal(t, 3, emails[0].Priority)
}

func TestLoanDueLaterGetsNoReminder(t *testing.T) {
	env := newMonitorEnv(t, 0)
	env.addUser(t, "user-a", "")
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addLoanDue(t, "loan-1", "res-1", "user-a", time.Now().AddDate(0, 0, 3))

	env.monitor.RunVerificationNow(context.Background())

	assert.Empty(t, env.notifier.byChannel(notifier.ChannelEmail))
}

func TestExpiredHoldIsReleasedAndOwnerNotified(t *testing.T) {
	env := newMonitorEnv(t, time.Millisecond)
	env.addUser(t, "user-a", "")
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)

	_, err := env.resSvc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	require.NoError(t, env.resSvc.HandleResourceReleased(context.Background(), "res-1"))

	hold, ok := env.resSvc.PendingReservation("res-1", "user-a")
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	env.monitor.RunVerificationNow(context.Background())

	expired, err := env.resSvc.GetReservation(hold.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusExpired, expired.Status)

	// Nobody else waits, so the copy is available again.
	resource, err := env.catalog.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceStatusAvailable, resource.Status)

	emails := env.notifier.byChannel(notifier.ChannelEmail)
	var expiryNotices int
	for _, n := range emails {
		if strings.Contains(n.Message, "expired") {
			expiryNotices++
			assert.Equal(t, notifier.DefaultPriority, n.Priority)
		}
	}
	assert.Equal(t, 1, expiryNotices)
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	env := newMonitorEnv(t, 0)

	ctx := context.Background()
	env.monitor.Start(ctx)
	env.monitor.Start(ctx)
	assert.True(t, env.monitor.Running())

	env.monitor.Stop()
	env.monitor.Stop()
	assert.False(t, env.monitor.Running())

	// Start runs an immediate cycle; manual runs add to the same counter.
	cycles := env.monitor.Cycles()
	assert.GreaterOrEqual(t, cycles, int64(1))

	env.monitor.RunVerificationNow(ctx)
	assert.Equal(t, cycles+1, env.monitor.Cycles())
}
