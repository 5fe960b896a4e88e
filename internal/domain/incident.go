package domain

import (
	"fmt"
	"strings"
	"time"
)

// IncidentType classifies a road event
type IncidentType string

const (
	IncidentAccident     IncidentType = "ACCIDENT"
	IncidentCongestion   IncidentType = "CONGESTION"
	IncidentRoadClosure  IncidentType = "ROAD_CLOSURE"
	IncidentConstruction IncidentType = "CONSTRUCTION"
	IncidentOther        IncidentType = "OTHER"
)

// ParseIncidentType accepts any letter case
func ParseIncidentType(s string) (IncidentType, error) {
	t := IncidentType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case IncidentAccident, IncidentCongestion, IncidentRoadClosure, IncidentConstruction, IncidentOther:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIncidentType, s)
}

// IncidentStatus is the confirmation lifecycle state
type IncidentStatus string

const (
	IncidentReported   IncidentStatus = "REPORTED"
	IncidentConfirmed  IncidentStatus = "CONFIRMED"
	IncidentResolved   IncidentStatus = "RESOLVED"
	IncidentFalseAlarm IncidentStatus = "FALSE_ALARM"
)

// ParseIncidentStatus accepts any letter case
func ParseIncidentStatus(s string) (IncidentStatus, error) {
	st := IncidentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case IncidentReported, IncidentConfirmed, IncidentResolved, IncidentFalseAlarm:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown incident status %q", ErrInvalidArgument, s)
}

var incidentEdges = map[IncidentStatus][]IncidentStatus{
	IncidentReported:  {IncidentConfirmed, IncidentFalseAlarm},
	IncidentConfirmed: {IncidentResolved},
}

// Terminal reports whether no edge leaves st
func (st IncidentStatus) Terminal() bool {
	return len(incidentEdges[st]) == 0
}

// CanTransition reports whether from -> to is a lifecycle edge
func CanTransition(from, to IncidentStatus) bool {
	for _, next := range incidentEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	MinSeverity = 1
	MaxSeverity = 5
)

// Incident is a reported road event. Only Status changes after creation.
type Incident struct {
	ID        string         `json:"id"`
	Type      IncidentType   `json:"type"`
	Location  GeoPoint       `json:"location"`
	Severity  int            `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Status    IncidentStatus `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewIncident validates the report and creates it in REPORTED
func NewIncident(id string, typ IncidentType, location GeoPoint, severity int, at time.Time) (Incident, error) {
	if _, err := ParseIncidentType(string(typ)); err != nil {
		return Incident{}, err
	}
	if severity < MinSeverity || severity > MaxSeverity {
		return Incident{}, fmt.Errorf("%w: got %d", ErrInvalidSeverity, severity)
	}
	return Incident{
		ID:        id,
		Type:      typ,
		Location:  location,
		Severity:  severity,
		Timestamp: at,
		Status:    IncidentReported,
		UpdatedAt: at,
	}, nil
}

// Transition moves the incident along one lifecycle edge
func (i *Incident) Transition(to IncidentStatus, at time.Time) error {
	if !CanTransition(i.Status, to) {
		return &TransitionError{IncidentID: i.ID, From: i.Status, To: to}
	}
	i.Status = to
	i.UpdatedAt = at
	return nil
}

// Active reports whether the incident still needs attention
func (i Incident) Active() bool {
	return !i.Status.Terminal()
}

// IncidentView is the read model of an incident snapshot
type IncidentView struct {
	Incident
	Version uint64 `json:"version"`
}

// IncidentStatistics summarises the incident collection
type IncidentStatistics struct {
	Total           int                    `json:"total_incidents"`
	Active          int                    `json:"active_incidents"`
	ByType          map[IncidentType]int   `json:"by_type"`
	ByStatus        map[IncidentStatus]int `json:"by_status"`
	AverageSeverity float64                `json:"average_severity"`
	GeneratedAt     time.Time              `json:"generated_at"`
}
