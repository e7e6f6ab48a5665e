package entity

import (
	"time"
)

type Loan struct {
	ID         string     `json:"id" db:"id"`
	ResourceID string     `json:"resource_id" db:"resource_id"`
	UserID     string     `json:"user_id" db:"user_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	DueAt      time.Time  `json:"due_at" db:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	Renewals   int        `json:"renewals" db:"renewals"`
}

func (l *Loan) Active() bool {
	return l.ReturnedAt == nil
}

// Overdue reports whether an active loan is past its due date.
func (l *Loan) Overdue(now time.Time) bool {
	if !l.Active() {
		return false
	}
	return now.After(l.DueAt)
}

// DaysOverdue returns whole calendar days elapsed since the due date.
// Zero for loans that are returned or not yet due.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.Overdue(now) {
		return 0
	}
	due := truncateToDay(l.DueAt)
	cur := truncateToDay(now)
	return int(cur.Sub(due).Hours() / 24)
}

// DueOn reports whether the due date falls on the given calendar day.
func (l *Loan) DueOn(day time.Time) bool {
	if !l.Active() {
		return false
	}
	return truncateToDay(l.DueAt).Equal(truncateToDay(day))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
