package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstack-dev/library-reservations/internal/database/memory"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/waitlist"
)

// notifierRecorder captures enqueued notifications for assertions.
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

func (r *notifierRecorder) all() []recordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedNotification, len(r.sent))
	copy(out, r.sent)
	return out
}

type reservationEnv struct {
	catalog  *memory.CatalogStore
	users    *memory.UserStore
	notifier *notifierRecorder
	svc      ReservationService
}

func newReservationEnv(t *testing.T, cfg ReservationConfig) *reservationEnv {
	t.Helper()

	env := &reservationEnv{
		catalog:  memory.NewCatalogStore(),
		users:    memory.NewUserStore(),
		notifier: &notifierRecorder{},
	}
	env.svc = NewReservationService(env.catalog, env.users, waitlist.NewStore(), env.notifier, cfg)
	return env
}

func (e *reservationEnv) addResource(t *testing.T, id string, status entity.ResourceStatus) {
	t.Helper()
	err := e.catalog.Create(context.Background(), &entity.Resource{
		ID:        id,
		Title:     "Title of " + id,
		Category:  entity.CategoryFiction,
		Status:    status,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (e *reservationEnv) addUser(t *testing.T, id string) {
	t.Helper()
	err := e.users.Create(context.Background(), &entity.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (e *reservationEnv) resourceStatus(t *testing.T, id string) entity.ResourceStatus {
	t.Helper()
	resource, err := e.catalog.GetByID(context.Background(), id)
	require.NoError(t, err)
	return resource.Status
}

func TestCreateOnAvailableResourcePassesThrough(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusAvailable)
	env.addUser(t, "user-1")

	placement, err := env.svc.CreateReservation(context.Background(), "res-1", "user-1")
	require.NoError(t, err)

	assert.True(t, placement.ResourceAvailable)
	assert.Empty(t, placement.TicketID)
	assert.Equal(t, 0, env.svc.QueueLength("res-1"))
}

func TestCreateOnBorrowedResourceJoinsWaitlist(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	first, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	second, err := env.svc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	assert.False(t, first.ResourceAvailable)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	assert.NotEqual(t, first.TicketID, second.TicketID)
	assert.Equal(t, 2, env.svc.QueueLength("res-1"))

	// Joining the queue produces a confirmation notice.
	notices := env.notifier.all()
	require.Len(t, notices, 2)
	assert.Equal(t, "user-a", notices[0].UserID)
	assert.Contains(t, notices[0].Message, "number 1 in line")
}

func TestCreateTwiceReturnsSameTicket(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")

	first, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	again, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	assert.Equal(t, first.TicketID, again.TicketID)
	assert.Equal(t, 1, env.svc.QueueLength("res-1"))
}

func TestReservationLimitEnforced(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{MaxActivePerUser: 5})
	env.addUser(t, "user-a")
	for i := 0; i < 6; i++ {
		env.addResource(t, fmt.Sprintf("res-%d", i), entity.ResourceStatusBorrowed)
	}

	for i := 0; i < 5; i++ {
		_, err := env.svc.CreateReservation(context.Background(), fmt.Sprintf("res-%d", i), "user-a")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, env.svc.CountActiveByUser("user-a"))

	_, err := env.svc.CreateReservation(context.Background(), "res-5", "user-a")
	assert.ErrorIs(t, err, entity.ErrReservationLimit)
}

func TestRepeatedCreateAtLimitReturnsExistingTicket(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{MaxActivePerUser: 5})
	env.addUser(t, "user-a")
	for i := 0; i < 5; i++ {
		env.addResource(t, fmt.Sprintf("res-%d", i), entity.ResourceStatusBorrowed)
	}

	first, err := env.svc.CreateReservation(context.Background(), "res-0", "user-a")
	require.NoError(t, err)
	for i := 1; i < 5; i++ {
		_, err := env.svc.CreateReservation(context.Background(), fmt.Sprintf("res-%d", i), "user-a")
		require.NoError(t, err)
	}

	// Re-requesting a queue the user already holds a ticket for stays
	// idempotent even at the limit.
	repeat, err := env.svc.CreateReservation(context.Background(), "res-0", "user-a")
	require.NoError(t, err)
	assert.Equal(t, first.TicketID, repeat.TicketID)
	assert.Equal(t, 1, repeat.Position)
	assert.Equal(t, 5, env.svc.CountActiveByUser("user-a"))
}

func TestCreateValidatesCollaborators(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")

	_, err := env.svc.CreateReservation(context.Background(), "missing", "user-a")
	assert.ErrorIs(t, err, entity.ErrResourceNotFound)

	_, err = env.svc.CreateReservation(context.Background(), "res-1", "missing")
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
}

func TestCancelWaitlistTicketShiftsQueue(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	first, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	_, err = env.svc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.CancelReservation(context.Background(), first.TicketID))

	assert.Equal(t, 1, env.svc.QueueLength("res-1"))
	assert.Equal(t, 0, env.svc.CountActiveByUser("user-a"))

	// A cancelled ticket is gone for good.
	err = env.svc.CancelReservation(context.Background(), first.TicketID)
	assert.ErrorIs(t, err, entity.ErrReservationNotFound)
}

func TestCancelUnknownID(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})

	err := env.svc.CancelReservation(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrReservationNotFound)
}

func TestReleasePromotesWaitersInOrder(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	_, err = env.svc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))

	// user-a holds the resource now; user-b still queues.
	hold, ok := env.svc.PendingReservation("res-1", "user-a")
	require.True(t, ok)
	assert.Equal(t, entity.ReservationStatusPending, hold.Status)
	assert.Equal(t, entity.ResourceStatusReserved, env.resourceStatus(t, "res-1"))
	assert.Equal(t, 1, env.svc.QueueLength("res-1"))

	// The ticket turned into a hold, so the active count is unchanged.
	assert.Equal(t, 1, env.svc.CountActiveByUser("user-a"))

	// Promotion sends an urgent pickup notice.
	notices := env.notifier.all()
	last := notices[len(notices)-1]
	assert.Equal(t, "user-a", last.UserID)
	assert.Equal(t, 1, last.Priority)
	assert.Contains(t, last.Message, "ready for pickup")

	// Completing the hold marks the resource borrowed; the next release
	// promotes user-b.
	require.NoError(t, env.svc.CompleteReservation(context.Background(), hold.ID))
	assert.Equal(t, entity.ResourceStatusBorrowed, env.resourceStatus(t, "res-1"))

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
	_, ok = env.svc.PendingReservation("res-1", "user-b")
	assert.True(t, ok)
	assert.Equal(t, 0, env.svc.QueueLength("res-1"))
}

func TestReleaseWithEmptyQueueFreesResource(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
	assert.Equal(t, entity.ResourceStatusAvailable, env.resourceStatus(t, "res-1"))
}

func TestCancelHoldPromotesNextWaiter(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	_, err = env.svc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
	hold, ok := env.svc.PendingReservation("res-1", "user-a")
	require.True(t, ok)

	require.NoError(t, env.svc.CancelReservation(context.Background(), hold.ID))

	// Terminal holds cannot transition again.
	err = env.svc.CancelReservation(context.Background(), hold.ID)
	assert.ErrorIs(t, err, entity.ErrReservationTerminal)

	_, ok = env.svc.PendingReservation("res-1", "user-b")
	assert.True(t, ok)
	assert.Equal(t, entity.ResourceStatusReserved, env.resourceStatus(t, "res-1"))
}

func TestCompleteKeepsHoldWhenResourceUpdateFails(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))

	hold := env.svc.ListActive()[0]

	// Removing the resource makes the catalog transition fail. The hold
	// must not turn terminal on a failed completion.
	require.NoError(t, env.catalog.Delete(context.Background(), "res-1"))

	err = env.svc.CompleteReservation(context.Background(), hold.ID)
	require.ErrorIs(t, err, entity.ErrResourceNotFound)

	kept, err := env.svc.GetReservation(hold.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusPending, kept.Status)
	assert.Len(t, env.svc.ListActive(), 1)
}

func TestExtendReservation(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))

	hold, ok := env.svc.PendingReservation("res-1", "user-a")
	require.True(t, ok)

	assert.ErrorIs(t, env.svc.ExtendReservation(context.Background(), hold.ID, 0), entity.ErrInvalidExtension)
	assert.ErrorIs(t, env.svc.ExtendReservation(context.Background(), "missing", 2), entity.ErrReservationNotFound)

	require.NoError(t, env.svc.ExtendReservation(context.Background(), hold.ID, 2))

	extended, err := env.svc.GetReservation(hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.ExpiresAt.AddDate(0, 0, 2), extended.ExpiresAt)
}

func TestExpireReservationsReleasesAndPromotes(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{HoldDuration: time.Millisecond})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	_, err = env.svc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
	hold, ok := env.svc.PendingReservation("res-1", "user-a")
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	expired, err := env.svc.ExpireReservations(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, hold.ID, expired[0].ID)
	assert.Equal(t, entity.ReservationStatusExpired, expired[0].Status)

	// The freed hold went straight to user-b.
	_, ok = env.svc.PendingReservation("res-1", "user-b")
	assert.True(t, ok)

	// An expired hold never expires twice. user-b's fresh hold is already
	// past its tiny deadline, so exclude it by its own id.
	time.Sleep(5 * time.Millisecond)
	again, err := env.svc.ExpireReservations(context.Background(), time.Now())
	require.NoError(t, err)
	for _, r := range again {
		assert.NotEqual(t, hold.ID, r.ID)
	}
}

func TestListActiveReservations(t *testing.T) {
	env := newReservationEnv(t, ReservationConfig{})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	env.addResource(t, "res-2", entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	_, err := env.svc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	_, err = env.svc.CreateReservation(context.Background(), "res-2", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
	require.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-2"))

	assert.Len(t, env.svc.ListActive(), 2)
	assert.Len(t, env.svc.ListActiveByUser("user-a"), 1)
	assert.Len(t, env.svc.ListActiveByUser("user-b"), 1)
}

func TestConcurrentReleasesPromoteQueueHeadsExactlyOnce(t *testing.T) {
	const waiters = 12
	const releases = 8

	env := newReservationEnv(t, ReservationConfig{MaxActivePerUser: 1})
	env.addResource(t, "res-1", entity.ResourceStatusBorrowed)
	for i := 0; i < waiters; i++ {
		env.addUser(t, fmt.Sprintf("user-%02d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.CreateReservation(context.Background(), "res-1", fmt.Sprintf("user-%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, waiters, env.svc.QueueLength("res-1"))

	// Repeating each request returns the existing ticket with the settled
	// position, which reconstructs the queue order.
	queueOrder := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		userID := fmt.Sprintf("user-%02d", i)
		placement, err := env.svc.CreateReservation(context.Background(), "res-1", userID)
		require.NoError(t, err)
		require.Empty(t, queueOrder[placement.Position-1])
		queueOrder[placement.Position-1] = userID
	}

	for i := 0; i < releases; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.svc.HandleResourceReleased(context.Background(), "res-1"))
		}()
	}
	wg.Wait()

	// Each release promotes at most one waiter, in queue order.
	var promoted []string
	seen := make(map[string]bool)
	for _, notice := range env.notifier.all() {
		if notice.Priority != 1 {
			continue
		}
		assert.False(t, seen[notice.UserID], "user %s promoted twice", notice.UserID)
		seen[notice.UserID] = true
		promoted = append(promoted, notice.UserID)
	}
	require.Len(t, promoted, releases)
	assert.Equal(t, queueOrder[:releases], promoted)

	holds := env.svc.ListActive()
	assert.Len(t, holds, releases)
	assert.Equal(t, waiters-releases, env.svc.QueueLength("res-1"))
}
