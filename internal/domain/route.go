package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
)

// SpeedUnit tells the coordinator how to read a route's target speed
type SpeedUnit string

const (
	// SpeedPerSecond is distance units per second
	SpeedPerSecond SpeedUnit = "mps"
	// SpeedKmh is kilometres per hour over a metre coordinate grid
	SpeedKmh SpeedUnit = "kmh"
)

// ParseSpeedUnit defaults to SpeedPerSecond on empty input
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	switch SpeedUnit(strings.ToLower(strings.TrimSpace(s))) {
	case "", SpeedPerSecond:
		return SpeedPerSecond, nil
	case SpeedKmh:
		return SpeedKmh, nil
	}
	return "", fmt.Errorf("%w: unknown speed unit %q", ErrInvalidArgument, s)
}

// PerSecond converts a speed in unit u to distance units per second
func (u SpeedUnit) PerSecond(speed float64) float64 {
	if u == SpeedKmh {
		return speed * 1000 / 3600
	}
	return speed
}

// Route is a green-wave target: an ordered chain of distinct signals
type Route struct {
	ID            string    `json:"id"`
	SignalIDs     []string  `json:"signal_ids"`
	TargetSpeed   float64   `json:"target_speed"`
	Unit          SpeedUnit `json:"unit"`
	Offsets       []float64 `json:"offsets_sec"`
	Active        bool      `json:"active"`
	ActivatedAt   time.Time `json:"activated_at"`
	DeactivatedAt time.Time `json:"deactivated_at,omitempty"`
}

// ValidateRoute checks the shape of an activation request
func ValidateRoute(routeID string, signalIDs []string, speed float64) error {
	if strings.TrimSpace(routeID) == "" {
		return fmt.Errorf("%w: empty route id", ErrInvalidRoute)
	}
	if len(signalIDs) == 0 {
		return fmt.Errorf("route %s: %w", routeID, ErrEmptyRoute)
	}
	if lo.Contains(signalIDs, "") {
		return fmt.Errorf("route %s: %w: empty signal id", routeID, ErrInvalidRoute)
	}
	if dups := lo.FindDuplicates(signalIDs); len(dups) > 0 {
		return fmt.Errorf("route %s: %w: duplicate signals %v", routeID, ErrInvalidRoute, dups)
	}
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("route %s: %w: %v", routeID, ErrInvalidSpeed, speed)
	}
	return nil
}

// Clone returns a copy that shares no slices with r
func (r Route) Clone() Route {
	r.SignalIDs = append([]string(nil), r.SignalIDs...)
	r.Offsets = append([]float64(nil), r.Offsets...)
	return r
}
