package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, the services and the HTTP edge.
// Every failing operation leaves the entity untouched.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrLocked              = errors.New("signal is confined")
	ErrInvalidDuration     = errors.New("invalid phase duration")
	ErrInvalidPhase        = errors.New("invalid phase")
	ErrRouteConflict       = errors.New("route conflict")
	ErrAlreadyActive       = errors.New("route already active")
	ErrEmptyRoute          = errors.New("route has no signals")
	ErrInvalidRoute        = errors.New("invalid route")
	ErrInvalidSpeed        = errors.New("target speed must be positive")
	ErrSignalInRoute       = errors.New("signal is a member of an active route")
	ErrInvalidTransition   = errors.New("invalid incident transition")
	ErrInvalidSeverity     = errors.New("severity must be between 1 and 5")
	ErrInvalidIncidentType = errors.New("invalid incident type")
	ErrVersionConflict     = errors.New("version conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// TransitionError describes a rejected incident lifecycle edge
type TransitionError struct {
	IncidentID string
	From       IncidentStatus
	To         IncidentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("incident %s: cannot move from %s to %s", e.IncidentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// RouteConflictError names the signal that is already held by another active route
type RouteConflictError struct {
	RouteID  string
	SignalID string
	HeldBy   string
}

func (e *RouteConflictError) Error() string {
	return fmt.Sprintf("route %s: signal %s already belongs to active route %s", e.RouteID, e.SignalID, e.HeldBy)
}

func (e *RouteConflictError) Unwrap() error {
	return ErrRouteConflict
}
