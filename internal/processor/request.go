package processor

import (
	"fmt"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

// Kind discriminates the reservation request variants.
type Kind int

const (
	KindCreate Kind = iota + 1
	KindCancel
	KindComplete
	KindExtend
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindCancel:
		return "cancel"
	case KindComplete:
		return "complete"
	case KindExtend:
		return "extend"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is delivered on a request's result channel once a worker has
// processed it. Placement is set only for create requests.
type Result struct {
	Placement *entity.Placement
	Err       error
}

// Request is a command consumed exactly once by a processor worker. Each
// kind carries only the fields it needs; the constructors below are the
// intended way to build one.
type Request struct {
	Kind          Kind
	ResourceID    string
	UserID        string
	ReservationID string
	ExtensionDays int

	// Result, when non-nil, receives exactly one Result. It must be
	// buffered: workers never block on it.
	Result chan Result
}

// NewCreateRequest asks for resourceID on behalf of userID.
func NewCreateRequest(resourceID, userID string) Request {
	return Request{
		Kind:       KindCreate,
		ResourceID: resourceID,
		UserID:     userID,
		Result:     make(chan Result, 1),
	}
}

// NewCancelRequest cancels an active reservation or a queued waitlist ticket.
func NewCancelRequest(reservationID string) Request {
	return Request{
		Kind:          KindCancel,
		ReservationID: reservationID,
		Result:        make(chan Result, 1),
	}
}

// NewCompleteRequest marks a reservation claimed by its owner.
func NewCompleteRequest(reservationID string) Request {
	return Request{
		Kind:          KindComplete,
		ReservationID: reservationID,
		Result:        make(chan Result, 1),
	}
}

// NewExtendRequest pushes a pending reservation's expiry forward by days.
func NewExtendRequest(reservationID string, days int) Request {
	return Request{
		Kind:          KindExtend,
		ReservationID: reservationID,
		ExtensionDays: days,
		Result:        make(chan Result, 1),
	}
}
