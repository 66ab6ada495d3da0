package engine

import (
	"errors"
	"fmt"
)

// The engine surfaces distinct error types so callers can tell a reviewer
// acting out of turn apart from a duplicate decision or a dead request.
// The HTTP layer maps each to its own error code.

var (
	// ErrVersionConflict is returned when a concurrent writer advanced the
	// request between read and write. Mutations retry internally; callers
	// only see it after retries are exhausted.
	ErrVersionConflict = errors.New("request was modified concurrently")
)

// NotYourTurnError means the participant exists but their tier is not the
// tier currently under review.
type NotYourTurnError struct {
	ParticipantTier int
	CurrentTier     int
}

func (e NotYourTurnError) Error() string {
	return fmt.Sprintf("participant is at tier %d but the request is at tier %d", e.ParticipantTier, e.CurrentTier)
}

// DecisionAlreadySubmittedError means the participant already decided and the
// decision is immutable.
type DecisionAlreadySubmittedError struct {
	ParticipantID string
	Status        string
}

func (e DecisionAlreadySubmittedError) Error() string {
	return fmt.Sprintf("participant %s already submitted %q", e.ParticipantID, e.Status)
}

// InvalidTransitionError means the requested action is not legal from the
// request's current status.
type InvalidTransitionError struct {
	Status string
	Action string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a request in status %q", e.Action, e.Status)
}

// ExpiredRequestError means the request's review window lapsed before the
// action arrived. The request is already, or is now, marked expired.
type ExpiredRequestError struct {
	RequestID string
	ExpiresAt string
}

func (e ExpiredRequestError) Error() string {
	return fmt.Sprintf("request %s expired at %s", e.RequestID, e.ExpiresAt)
}

// ValidationError rejects malformed input before any state changes.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}
