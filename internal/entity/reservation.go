package entity

import (
	"time"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a user's claim on a resource. It stays pending until it is
// completed (claimed), cancelled, or expired; terminal states never revert.
type Reservation struct {
	ID         string            `json:"id" db:"id"`
	ResourceID string            `json:"resource_id" db:"resource_id"`
	UserID     string            `json:"user_id" db:"user_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at" db:"expires_at"`
	Status     ReservationStatus `json:"status" db:"status"`
}

// Placement is the outcome of asking for a resource. Either the resource
// was available (direct loan path, nothing queued) or the user was placed
// on the waitlist under a ticket id at the given 1-based position.
type Placement struct {
	ResourceAvailable bool   `json:"resource_available"`
	TicketID          string `json:"ticket_id,omitempty"`
	Position          int    `json:"position,omitempty"`
}

func (r *Reservation) Pending() bool {
	return r.Status == ReservationStatusPending
}

// Terminal reports whether the reservation reached a final state.
func (r *Reservation) Terminal() bool {
	return r.Status != ReservationStatusPending
}

// HasExpired reports whether a pending reservation is past its expiry time.
// Terminal reservations never expire again.
func (r *Reservation) HasExpired(now time.Time) bool {
	if r.Status != ReservationStatusPending {
		return false
	}
	return now.After(r.ExpiresAt)
}
