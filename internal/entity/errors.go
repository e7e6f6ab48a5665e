package entity

import "errors"

var (
	// Validation errors
	ErrResourceNotFound    = errors.New("resource not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInvalidExtension    = errors.New("extension days must be positive")

	// Capacity errors
	ErrReservationLimit = errors.New("user reached the maximum number of active reservations")

	// State errors
	ErrReservationTerminal = errors.New("reservation is already in a terminal state")
	ErrResourceUnavailable = errors.New("resource is not available")
	ErrLoanNotActive       = errors.New("loan has already been returned")
	ErrRenewalRejected     = errors.New("loan renewal rejected")

	// Infrastructure errors
	ErrProcessorStopped  = errors.New("request processor is stopped")
	ErrDispatcherStopped = errors.New("notification dispatcher is stopped")
	ErrUnknownChannel    = errors.New("unknown notification channel")
)
