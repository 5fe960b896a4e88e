package domain

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the lamp currently shown by a signal
type Phase string

const (
	PhaseRed    Phase = "RED"
	PhaseYellow Phase = "YELLOW"
	PhaseGreen  Phase = "GREEN"
	PhaseOff    Phase = "OFF"
)

// ParsePhase accepts any letter case ("green", "Green", "GREEN")
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

// Valid reports whether p is one of the four known phases
func (p Phase) Valid() bool {
	switch p {
	case PhaseRed, PhaseYellow, PhaseGreen, PhaseOff:
		return true
	}
	return false
}

// Status is derived from a signal's fields on every read and never stored
type Status string

const (
	StatusOperational Status = "OPERATIONAL"
	// StatusMalfunction is reserved for an external diagnostics feed.
	// DeriveStatus never returns it.
	StatusMalfunction Status = "MALFUNCTION"
	StatusMaintenance Status = "MAINTENANCE"
	StatusOffline     Status = "OFFLINE"
)

// DeriveStatus is the single status derivation used everywhere
func DeriveStatus(online, confined bool, phase Phase) Status {
	switch {
	case !online:
		return StatusOffline
	case confined:
		return StatusMaintenance
	case phase == PhaseOff:
		return StatusOffline
	default:
		return StatusOperational
	}
}

// Signal is a single traffic light.
// ID and Location never change after provisioning.
type Signal struct {
	ID            string    `json:"id"`
	Location      GeoPoint  `json:"location"`
	Phase         Phase     `json:"phase"`
	PhaseDuration int       `json:"phase_duration"`
	Confined      bool      `json:"confined"`
	Online        bool      `json:"online"`
	RouteID       string    `json:"route_id,omitempty"`
	WaveToken     uint64    `json:"-"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultPhaseDuration is the red time a freshly provisioned signal starts with
const DefaultPhaseDuration = 30

// NewSignal creates an online signal showing RED
func NewSignal(id string, location GeoPoint, at time.Time) Signal {
	return Signal{
		ID:            id,
		Location:      location,
		Phase:         PhaseRed,
		PhaseDuration: DefaultPhaseDuration,
		Online:        true,
		UpdatedAt:     at,
	}
}

// Status derives the operational status from the current fields
func (s Signal) Status() Status {
	return DeriveStatus(s.Online, s.Confined, s.Phase)
}

// SetPhase applies a phase transition.
// Any phase may follow any phase; only the lock and duration are guarded.
func (s *Signal) SetPhase(phase Phase, duration int, at time.Time) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	if s.Confined {
		return fmt.Errorf("signal %s: %w", s.ID, ErrLocked)
	}
	if duration < 0 || (duration == 0 && phase != PhaseOff) {
		return fmt.Errorf("signal %s: %w: %d", s.ID, ErrInvalidDuration, duration)
	}
	s.Phase = phase
	s.PhaseDuration = duration
	s.UpdatedAt = at
	return nil
}

// Confine toggles the maintenance lock. The current phase is kept.
// Confining a route member drops its pending wave offset.
func (s *Signal) Confine(on bool, at time.Time) {
	if s.Confined == on {
		return
	}
	s.Confined = on
	if on {
		s.WaveToken = 0
	}
	s.UpdatedAt = at
}

// SetOnline toggles the connectivity flag
func (s *Signal) SetOnline(on bool, at time.Time) {
	if s.Online == on {
		return
	}
	s.Online = on
	s.UpdatedAt = at
}

// JoinRoute reserves the signal for a green-wave route
func (s *Signal) JoinRoute(routeID string, token uint64) error {
	if s.RouteID != "" {
		return &RouteConflictError{RouteID: routeID, SignalID: s.ID, HeldBy: s.RouteID}
	}
	s.RouteID = routeID
	s.WaveToken = token
	return nil
}

// LeaveRoute releases the reservation if it is held by routeID
func (s *Signal) LeaveRoute(routeID string) bool {
	if s.RouteID != routeID {
		return false
	}
	s.RouteID = ""
	s.WaveToken = 0
	return true
}

// SignalView is the read model handed to callers: a snapshot plus derived status
type SignalView struct {
	Signal
	Status  Status `json:"status"`
	Version uint64 `json:"version"`
}

// ViewOf builds the read model of a signal snapshot
func ViewOf(s Signal, version uint64) SignalView {
	return SignalView{Signal: s, Status: s.Status(), Version: version}
}
