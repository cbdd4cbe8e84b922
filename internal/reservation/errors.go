package reservation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind of every missing book or reservation error
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest is the kind of every business rule violation
	ErrInvalidRequest = errors.New("invalid request")
)

// Messages reported to clients
const (
	MsgBookNotFound         = "Book Not Found"
	MsgReservationNotFound  = "Reservation Not Found"
	MsgReservationsNotFound = "Reservations Not Found"
	MsgNoCopies             = "No copies of the book left to be reserved."
	MsgInvalidStatus        = "Invalid Status Change, only CANCELED is allowed."
)

// Error is a rule violation. It unwraps to ErrNotFound or ErrInvalidRequest.
type Error struct {
	Kind    error
	Message string
	reason  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func notFound(reason, msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg, reason: reason}
}

func invalid(reason, msg string) *Error {
	return &Error{Kind: ErrInvalidRequest, Message: msg, reason: reason}
}

func limitExceeded(userID string) string {
	return fmt.Sprintf("User %s is not allow to make more book reservations.", userID)
}
