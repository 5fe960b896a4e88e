package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventKind names a notification
type EventKind string

const (
	EventPhaseChanged          EventKind = "PhaseChanged"
	EventRouteActivated        EventKind = "RouteActivated"
	EventRouteDeactivated      EventKind = "RouteDeactivated"
	EventIncidentStatusChanged EventKind = "IncidentStatusChanged"
	EventIncidentReported      EventKind = "IncidentReported"
	EventSignalProvisioned     EventKind = "SignalProvisioned"
	EventSignalRemoved         EventKind = "SignalRemoved"
	EventConfinementChanged    EventKind = "SignalConfinementChanged"
	EventOnlineChanged         EventKind = "SignalOnlineChanged"
)

// Event is one completed state change. Payloads carry enough data for a
// consumer to update its view without re-querying.
type Event interface {
	Kind() EventKind
	EntityID() string
	OccurredAt() time.Time
	Record() EventRecord
}

// EventRecord is the flat, persisted form of an event
type EventRecord struct {
	Kind      EventKind `json:"kind" bson:"kind"`
	EntityID  string    `json:"entity_id" bson:"entity_id"`
	OldValue  string    `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty" bson:"new_value,omitempty"`
	Detail    string    `json:"detail,omitempty" bson:"detail,omitempty"`
	Version   uint64    `json:"version,omitempty" bson:"version,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// PhaseChanged is emitted for every committed phase transition.
// Source is "manual", "optimizer" or "greenwave:<route id>".
type PhaseChanged struct {
	SignalID  string    `json:"signal_id"`
	OldPhase  Phase     `json:"old_phase"`
	NewPhase  Phase     `json:"new_phase"`
	Duration  int       `json:"duration"`
	Source    string    `json:"source"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (e PhaseChanged) Kind() EventKind       { return EventPhaseChanged }
func (e PhaseChanged) EntityID() string      { return e.SignalID }
func (e PhaseChanged) OccurredAt() time.Time { return e.Timestamp }
func (e PhaseChanged) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.SignalID,
		OldValue:  string(e.OldPhase),
		NewValue:  string(e.NewPhase),
		Detail:    fmt.Sprintf("duration=%d source=%s", e.Duration, e.Source),
		Version:   e.Version,
		Timestamp: e.Timestamp,
	}
}

// RouteActivated is emitted once all members of a route are reserved
type RouteActivated struct {
	RouteID     string    `json:"route_id"`
	SignalIDs   []string  `json:"signal_ids"`
	Offsets     []float64 `json:"offsets_sec"`
	TargetSpeed float64   `json:"target_speed"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e RouteActivated) Kind() EventKind       { return EventRouteActivated }
func (e RouteActivated) EntityID() string      { return e.RouteID }
func (e RouteActivated) OccurredAt() time.Time { return e.Timestamp }
func (e RouteActivated) Record() EventRecord {
	offsets := make([]string, len(e.Offsets))
	for i, o := range e.Offsets {
		offsets[i] = strconv.FormatFloat(o, 'f', -1, 64)
	}
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.RouteID,
		OldValue:  "inactive",
		NewValue:  "active",
		Detail:    fmt.Sprintf("signals=%s offsets=%s speed=%v", strings.Join(e.SignalIDs, ","), strings.Join(offsets, ","), e.TargetSpeed),
		Timestamp: e.Timestamp,
	}
}

// RouteDeactivated is emitted when a route releases its members
type RouteDeactivated struct {
	RouteID   string    `json:"route_id"`
	SignalIDs []string  `json:"signal_ids"`
	Cancelled int       `json:"cancelled_transitions"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RouteDeactivated) Kind() EventKind       { return EventRouteDeactivated }
func (e RouteDeactivated) EntityID() string      { return e.RouteID }
func (e RouteDeactivated) OccurredAt() time.Time { return e.Timestamp }
func (e RouteDeactivated) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.RouteID,
		OldValue:  "active",
		NewValue:  "inactive",
		Detail:    fmt.Sprintf("signals=%s cancelled=%d", strings.Join(e.SignalIDs, ","), e.Cancelled),
		Timestamp: e.Timestamp,
	}
}

// IncidentStatusChanged is emitted for every lifecycle transition
type IncidentStatusChanged struct {
	IncidentID string         `json:"incident_id"`
	OldStatus  IncidentStatus `json:"old_status"`
	NewStatus  IncidentStatus `json:"new_status"`
	Version    uint64         `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e IncidentStatusChanged) Kind() EventKind       { return EventIncidentStatusChanged }
func (e IncidentStatusChanged) EntityID() string      { return e.IncidentID }
func (e IncidentStatusChanged) OccurredAt() time.Time { return e.Timestamp }
func (e IncidentStatusChanged) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.IncidentID,
		OldValue:  string(e.OldStatus),
		NewValue:  string(e.NewStatus),
		Version:   e.Version,
		Timestamp: e.Timestamp,
	}
}

// IncidentCreated is emitted when a new incident enters the store
type IncidentCreated struct {
	IncidentID string       `json:"incident_id"`
	Type       IncidentType `json:"type"`
	Location   GeoPoint     `json:"location"`
	Severity   int          `json:"severity"`
	Timestamp  time.Time    `json:"timestamp"`
}

func (e IncidentCreated) Kind() EventKind       { return EventIncidentReported }
func (e IncidentCreated) EntityID() string      { return e.IncidentID }
func (e IncidentCreated) OccurredAt() time.Time { return e.Timestamp }
func (e IncidentCreated) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.IncidentID,
		NewValue:  string(IncidentReported),
		Detail:    fmt.Sprintf("type=%s severity=%d at=(%v,%v)", e.Type, e.Severity, e.Location.X, e.Location.Y),
		Version:   1,
		Timestamp: e.Timestamp,
	}
}

// SignalProvisioned is emitted when a signal is created
type SignalProvisioned struct {
	SignalID  string    `json:"signal_id"`
	Location  GeoPoint  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

func (e SignalProvisioned) Kind() EventKind       { return EventSignalProvisioned }
func (e SignalProvisioned) EntityID() string      { return e.SignalID }
func (e SignalProvisioned) OccurredAt() time.Time { return e.Timestamp }
func (e SignalProvisioned) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.SignalID,
		NewValue:  string(PhaseRed),
		Detail:    fmt.Sprintf("at=(%v,%v)", e.Location.X, e.Location.Y),
		Version:   1,
		Timestamp: e.Timestamp,
	}
}

// SignalRemoved is emitted when a signal is deleted
type SignalRemoved struct {
	SignalID  string    `json:"signal_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e SignalRemoved) Kind() EventKind       { return EventSignalRemoved }
func (e SignalRemoved) EntityID() string      { return e.SignalID }
func (e SignalRemoved) OccurredAt() time.Time { return e.Timestamp }
func (e SignalRemoved) Record() EventRecord {
	return EventRecord{Kind: e.Kind(), EntityID: e.SignalID, Timestamp: e.Timestamp}
}

// ConfinementChanged is emitted when the maintenance lock flips
type ConfinementChanged struct {
	SignalID  string    `json:"signal_id"`
	Confined  bool      `json:"confined"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ConfinementChanged) Kind() EventKind       { return EventConfinementChanged }
func (e ConfinementChanged) EntityID() string      { return e.SignalID }
func (e ConfinementChanged) OccurredAt() time.Time { return e.Timestamp }
func (e ConfinementChanged) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.SignalID,
		OldValue:  strconv.FormatBool(!e.Confined),
		NewValue:  strconv.FormatBool(e.Confined),
		Version:   e.Version,
		Timestamp: e.Timestamp,
	}
}

// OnlineChanged is emitted when a signal goes on or off line
type OnlineChanged struct {
	SignalID  string    `json:"signal_id"`
	Online    bool      `json:"online"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (e OnlineChanged) Kind() EventKind       { return EventOnlineChanged }
func (e OnlineChanged) EntityID() string      { return e.SignalID }
func (e OnlineChanged) OccurredAt() time.Time { return e.Timestamp }
func (e OnlineChanged) Record() EventRecord {
	return EventRecord{
		Kind:      e.Kind(),
		EntityID:  e.SignalID,
		OldValue:  strconv.FormatBool(!e.Online),
		NewValue:  strconv.FormatBool(e.Online),
		Version:   e.Version,
		Timestamp: e.Timestamp,
	}
}
