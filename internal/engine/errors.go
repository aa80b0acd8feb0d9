package engine

import (
	"errors"
	"fmt"
)

// The engine reports failures through a small taxonomy: validation errors
// (rejected before any state mutation), conflicts (business-rule
// violations), not-found lookups, and invariant breaches (engine bugs,
// fatal for the affected title).

var (
	// Conflict errors.
	ErrDuplicateActiveLoan       = errors.New("reader already holds an active loan for this title")
	ErrDuplicateReservation      = errors.New("reader already has a reservation in the queue for this title")
	ErrRenewalLimitExceeded      = errors.New("renewal limit exceeded")
	ErrLoanNotRenewable          = errors.New("loan is overdue and can no longer be renewed")
	ErrLoanAlreadyReturned       = errors.New("loan has already been returned")
	ErrDuplicatePenalty          = errors.New("a penalty for this loan and cause already exists")
	ErrPenaltyAlreadyPaid        = errors.New("penalty has already been paid")
	ErrPickupExpiredOrMissing    = errors.New("pickup window has expired or the reservation is not ready")
	ErrReservationNotCancellable = errors.New("reservation is no longer cancellable")
	ErrBookFrozen                = errors.New("title is frozen pending operator intervention")

	// NotFound errors.
	ErrBookNotFound        = errors.New("book not found")
	ErrReaderNotFound      = errors.New("reader not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPenaltyNotFound     = errors.New("penalty not found")

	// Validation errors.
	ErrInvalidReturnCondition = errors.New("invalid return condition")
)

// InvariantBreachError reports a copy-accounting violation. It indicates a
// bug in the engine itself; the affected title is frozen and further writes
// to it are rejected until an operator intervenes.
type InvariantBreachError struct {
	BookID int64
	Detail string
}

func (e *InvariantBreachError) Error() string {
	return fmt.Sprintf("invariant breach on book %d: %s", e.BookID, e.Detail)
}

// IsConflict reports whether err is a business-rule conflict.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrDuplicateActiveLoan,
		ErrDuplicateReservation,
		ErrRenewalLimitExceeded,
		ErrLoanNotRenewable,
		ErrLoanAlreadyReturned,
		ErrDuplicatePenalty,
		ErrPenaltyAlreadyPaid,
		ErrPickupExpiredOrMissing,
		ErrReservationNotCancellable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is an unknown-entity lookup failure.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrBookNotFound,
		ErrReaderNotFound,
		ErrLoanNotFound,
		ErrReservationNotFound,
		ErrPenaltyNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err was rejected before any state mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidReturnCondition)
}

// IsInvariantBreach reports whether err is a fatal copy-accounting breach.
func IsInvariantBreach(err error) bool {
	var breach *InvariantBreachError
	return errors.As(err, &breach)
}
