package services

import "errors"

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidStatus      = errors.New("operation not allowed in current tournament status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyPaid        = errors.New("tournament prizes already distributed")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrAlreadyJoined      = errors.New("already joined this tournament")
	ErrNotAttendee        = errors.New("user is not an attendee of this tournament")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrPredictionClosed   = errors.New("predictions are closed for this fixture")
	ErrUnknownFixture     = errors.New("fixture is not part of this tournament")
	ErrInvalidScore       = errors.New("scores must be non-negative integers")
)
