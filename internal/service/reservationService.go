package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/bookstack-dev/library-reservations/internal/database/postgres"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
	"github.com/bookstack-dev/library-reservations/internal/waitlist"
)

const (
	DefaultMaxActivePerUser = 5
	DefaultHoldDuration     = 72 * time.Hour
)

// Notifier is the slice of the dispatcher the services need.
type Notifier interface {
	Enqueue(recipient entity.User, message, channel string, priority int) bool
}

type ReservationConfig struct {
	MaxActivePerUser int
	HoldDuration     time.Duration
}

func (c ReservationConfig) withDefaults() ReservationConfig {
	if c.MaxActivePerUser <= 0 {
		c.MaxActivePerUser = DefaultMaxActivePerUser
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = DefaultHoldDuration
	}
	return c
}

// ticketRef ties a waitlist ticket to its queue entry.
type ticketRef struct {
	resourceID string
	userID     string
}

type reservationService struct {
	catalog  repository.CatalogRepository
	users    repository.UserRepository
	waitlist *waitlist.Store
	notifier Notifier
	cfg      ReservationConfig

	// mu guards the reservation and ticket maps. Resource locks are always
	// taken before mu, never the other way around.
	mu           sync.RWMutex
	reservations map[string]*entity.Reservation
	tickets      map[string]ticketRef
	ticketIDs    map[ticketRef]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewReservationService(
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	wl *waitlist.Store,
	n Notifier,
	cfg ReservationConfig,
) ReservationService {
	return &reservationService{
		catalog:      catalog,
		users:        users,
		waitlist:     wl,
		notifier:     n,
		cfg:          cfg.withDefaults(),
		reservations: make(map[string]*entity.Reservation),
		tickets:      make(map[string]ticketRef),
		ticketIDs:    make(map[ticketRef]string),
		locks:        make(map[string]*sync.Mutex),
	}
}

// resourceLock returns the mutex serializing all transitions for one
// resource. Operations on different resources never contend.
func (s *reservationService) resourceLock(resourceID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[resourceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[resourceID] = lock
	}
	return lock
}

func (s *reservationService) CreateReservation(ctx context.Context, resourceID, userID string) (*entity.Placement, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	lock := s.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	resource, err := s.catalog.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}

	// Nothing to queue for: the caller can borrow the resource directly.
	if resource.Available() {
		return &entity.Placement{ResourceAvailable: true}, nil
	}

	s.mu.Lock()

	// A repeated request returns the existing ticket even when the user
	// is at the limit, so the limit check comes second.
	ref := ticketRef{resourceID: resourceID, userID: userID}
	if ticketID, ok := s.ticketIDs[ref]; ok {
		s.mu.Unlock()
		return &entity.Placement{
			TicketID: ticketID,
			Position: s.waitlist.Position(resourceID, userID),
		}, nil
	}

	if s.countActiveLocked(userID) >= s.cfg.MaxActivePerUser {
		s.mu.Unlock()
		return nil, entity.ErrReservationLimit
	}

	ticketID := uuid.NewString()
	s.tickets[ticketID] = ref
	s.ticketIDs[ref] = ticketID
	s.mu.Unlock()

	position := s.waitlist.Enqueue(resourceID, userID)

	logrus.WithFields(logrus.Fields{
		"resource_id": resourceID,
		"user_id":     userID,
		"position":    position,
	}).Info("user joined waitlist")

	s.notifier.Enqueue(*user,
		fmt.Sprintf("You are number %d in line for %q.", position, resource.Title),
		notifier.ChannelEmail, notifier.DefaultPriority)

	return &entity.Placement{TicketID: ticketID, Position: position}, nil
}

func (s *reservationService) CancelReservation(ctx context.Context, id string) error {
	s.mu.RLock()
	reservation, isReservation := s.reservations[id]
	ref, isTicket := s.tickets[id]
	s.mu.RUnlock()

	switch {
	case isReservation:
		return s.cancelHold(ctx, reservation.ResourceID, id)
	case isTicket:
		s.cancelTicket(id, ref)
		return nil
	default:
		return entity.ErrReservationNotFound
	}
}

func (s *reservationService) cancelHold(ctx context.Context, resourceID, id string) error {
	lock := s.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	reservation := s.reservations[id]
	if reservation.Terminal() {
		s.mu.Unlock()
		return entity.ErrReservationTerminal
	}
	s.mu.Unlock()

	if err := s.releaseLocked(ctx, resourceID); err != nil {
		return err
	}

	s.mu.Lock()
	reservation.Status = entity.ReservationStatusCancelled
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"resource_id":    resourceID,
	}).Info("reservation cancelled")

	return nil
}

func (s *reservationService) cancelTicket(id string, ref ticketRef) {
	lock := s.resourceLock(ref.resourceID)
	lock.Lock()
	defer lock.Unlock()

	s.waitlist.Remove(ref.resourceID, ref.userID)

	s.mu.Lock()
	delete(s.tickets, id)
	delete(s.ticketIDs, ref)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"ticket_id":   id,
		"resource_id": ref.resourceID,
		"user_id":     ref.userID,
	}).Info("waitlist entry cancelled")
}

func (s *reservationService) CompleteReservation(ctx context.Context, id string) error {
	s.mu.RLock()
	reservation, ok := s.reservations[id]
	s.mu.RUnlock()
	if !ok {
		return entity.ErrReservationNotFound
	}

	lock := s.resourceLock(reservation.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	reservation = s.reservations[id]
	if reservation.Terminal() {
		s.mu.Unlock()
		return entity.ErrReservationTerminal
	}
	s.mu.Unlock()

	// The reservation turns terminal only once the resource moved. The
	// resource lock keeps other mutators out in between.
	if err := s.catalog.UpdateStatus(ctx, reservation.ResourceID, entity.ResourceStatusBorrowed); err != nil {
		return fmt.Errorf("failed to update resource status: %w", err)
	}

	s.mu.Lock()
	reservation.Status = entity.ReservationStatusCompleted
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"resource_id":    reservation.ResourceID,
		"user_id":        reservation.UserID,
	}).Info("reservation completed")

	return nil
}

func (s *reservationService) ExtendReservation(ctx context.Context, id string, days int) error {
	if days <= 0 {
		return entity.ErrInvalidExtension
	}

	s.mu.RLock()
	reservation, ok := s.reservations[id]
	s.mu.RUnlock()
	if !ok {
		return entity.ErrReservationNotFound
	}

	lock := s.resourceLock(reservation.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	reservation = s.reservations[id]
	if reservation.Terminal() {
		return entity.ErrReservationTerminal
	}
	reservation.ExpiresAt = reservation.ExpiresAt.AddDate(0, 0, days)

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"expires_at":     reservation.ExpiresAt,
	}).Info("reservation extended")

	return nil
}

func (s *reservationService) HandleResourceReleased(ctx context.Context, resourceID string) error {
	lock := s.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	return s.releaseLocked(ctx, resourceID)
}

// releaseLocked hands a freed resource to the head of its waitlist, or marks
// it available when the queue is empty. The caller holds the resource lock.
func (s *reservationService) releaseLocked(ctx context.Context, resourceID string) error {
	entry, ok := s.waitlist.DequeueNext(resourceID)
	if !ok {
		if err := s.catalog.UpdateStatus(ctx, resourceID, entity.ResourceStatusAvailable); err != nil {
			return fmt.Errorf("failed to update resource status: %w", err)
		}
		return nil
	}

	now := time.Now()
	reservation := &entity.Reservation{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		UserID:     entry.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.HoldDuration),
		Status:     entity.ReservationStatusPending,
	}

	s.mu.Lock()
	ref := ticketRef{resourceID: resourceID, userID: entry.UserID}
	if ticketID, ok := s.ticketIDs[ref]; ok {
		delete(s.tickets, ticketID)
		delete(s.ticketIDs, ref)
	}
	s.reservations[reservation.ID] = reservation
	s.mu.Unlock()

	if err := s.catalog.UpdateStatus(ctx, resourceID, entity.ResourceStatusReserved); err != nil {
		return fmt.Errorf("failed to update resource status: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"resource_id":    resourceID,
		"user_id":        entry.UserID,
	}).Info("waitlist head promoted to hold")

	s.notifyPromotion(ctx, reservation)
	return nil
}

func (s *reservationService) notifyPromotion(ctx context.Context, reservation *entity.Reservation) {
	user, err := s.users.GetByID(ctx, reservation.UserID)
	if err != nil {
		logrus.Errorf("failed to load user %s for promotion notice: %v", reservation.UserID, err)
		return
	}

	title := reservation.ResourceID
	if resource, err := s.catalog.GetByID(ctx, reservation.ResourceID); err == nil {
		title = resource.Title
	}

	s.notifier.Enqueue(*user,
		fmt.Sprintf("%q is ready for pickup. Your hold expires on %s.",
			title, reservation.ExpiresAt.Format("2006-01-02 15:04")),
		notifier.ChannelEmail, 1)
}

func (s *reservationService) ExpireReservations(ctx context.Context, now time.Time) ([]*entity.Reservation, error) {
	s.mu.RLock()
	var candidates []string
	for id, reservation := range s.reservations {
		if reservation.HasExpired(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	var expired []*entity.Reservation
	for _, id := range candidates {
		reservation, ok := s.expireOne(ctx, id, now)
		if !ok {
			continue
		}
		expired = append(expired, reservation)
	}

	return expired, nil
}

func (s *reservationService) expireOne(ctx context.Context, id string, now time.Time) (*entity.Reservation, bool) {
	s.mu.RLock()
	reservation, ok := s.reservations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	lock := s.resourceLock(reservation.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	reservation = s.reservations[id]
	// A completion or cancellation may have won the race.
	if !reservation.HasExpired(now) {
		s.mu.Unlock()
		return nil, false
	}
	reservation.Status = entity.ReservationStatusExpired
	snapshot := *reservation
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"resource_id":    reservation.ResourceID,
		"user_id":        reservation.UserID,
	}).Info("reservation expired")

	if err := s.releaseLocked(ctx, snapshot.ResourceID); err != nil {
		logrus.Errorf("failed to release resource %s after expiry: %v", snapshot.ResourceID, err)
	}

	return &snapshot, true
}

func (s *reservationService) GetReservation(id string) (*entity.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return nil, entity.ErrReservationNotFound
	}

	snapshot := *reservation
	return &snapshot, nil
}

func (s *reservationService) PendingReservation(resourceID, userID string) (*entity.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, reservation := range s.reservations {
		if reservation.Pending() && reservation.ResourceID == resourceID && reservation.UserID == userID {
			snapshot := *reservation
			return &snapshot, true
		}
	}
	return nil, false
}

func (s *reservationService) ListActive() []*entity.Reservation {
	return s.listPending(func(*entity.Reservation) bool { return true })
}

func (s *reservationService) ListActiveByUser(userID string) []*entity.Reservation {
	return s.listPending(func(r *entity.Reservation) bool { return r.UserID == userID })
}

func (s *reservationService) listPending(match func(*entity.Reservation) bool) []*entity.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Reservation
	for _, reservation := range s.reservations {
		if reservation.Pending() && match(reservation) {
			snapshot := *reservation
			out = append(out, &snapshot)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *reservationService) CountActiveByUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countActiveLocked(userID)
}

// countActiveLocked counts pending holds plus waitlist tickets. Callers must
// hold at least a read lock on mu.
func (s *reservationService) countActiveLocked(userID string) int {
	count := 0
	for _, reservation := range s.reservations {
		if reservation.Pending() && reservation.UserID == userID {
			count++
		}
	}
	for ref := range s.ticketIDs {
		if ref.userID == userID {
			count++
		}
	}
	return count
}

func (s *reservationService) QueueLength(resourceID string) int {
	return s.waitlist.Length(resourceID)
}
