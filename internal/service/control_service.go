package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
)

// ControlConfig carries the tunables of the control surface
type ControlConfig struct {
	GreenWaveDuration int
	PeakGreen         int
	OffPeakGreen      int
	SpeedUnit         domain.SpeedUnit
	Scheduler         Scheduler
	Now               func() time.Time
	NewIncidentID     func() string
}

// ControlService is the operation surface for signals, green waves and
// incidents. Every operation either commits (version bump plus one event)
// or leaves state untouched.
type ControlService struct {
	signals   *memory.Store[domain.Signal]
	incidents *memory.Store[domain.Incident]
	greenWave *GreenWaveCoordinator
	optimizer *PhaseOptimizer
	bus       *EventBus
	now       func() time.Time
	newID     func() string
}

// NewControlService wires the coordinator and optimizer over the given stores
func NewControlService(
	signals *memory.Store[domain.Signal],
	incidents *memory.Store[domain.Incident],
	bus *EventBus,
	cfg ControlConfig,
) *ControlService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewIncidentID == nil {
		cfg.NewIncidentID = func() string { return "INC-" + uuid.NewString() }
	}
	return &ControlService{
		signals:   signals,
		incidents: incidents,
		bus:       bus,
		now:       cfg.Now,
		newID:     cfg.NewIncidentID,
		greenWave: NewGreenWaveCoordinator(signals, bus, GreenWaveOptions{
			GreenDuration: cfg.GreenWaveDuration,
			Unit:          cfg.SpeedUnit,
			Scheduler:     cfg.Scheduler,
			Now:           cfg.Now,
		}),
		optimizer: NewPhaseOptimizer(signals, bus, OptimizerOptions{
			PeakGreen:    cfg.PeakGreen,
			OffPeakGreen: cfg.OffPeakGreen,
			Now:          cfg.Now,
		}),
	}
}

// Subscribe registers an event consumer
func (s *ControlService) Subscribe(fn Subscriber) func() {
	return s.bus.Subscribe(fn)
}

// GreenWave exposes the coordinator for inspection
func (s *ControlService) GreenWave() *GreenWaveCoordinator {
	return s.greenWave
}

// Shutdown cancels pending green-wave timers
func (s *ControlService) Shutdown() {
	s.greenWave.Stop()
}

// --- signals ---

// CreateSignal provisions a RED, online signal
func (s *ControlService) CreateSignal(id string, location domain.GeoPoint) (domain.SignalView, error) {
	if strings.TrimSpace(id) == "" {
		return domain.SignalView{}, fmt.Errorf("%w: empty signal id", domain.ErrInvalidArgument)
	}
	at := s.now()
	v, err := s.signals.CreateThen(id, domain.NewSignal(id, location, at), func(memory.Versioned[domain.Signal]) {
		s.bus.Publish(domain.SignalProvisioned{SignalID: id, Location: location, Timestamp: at})
	})
	if err != nil {
		return domain.SignalView{}, err
	}
	log.WithField("signal", id).Debug("signal provisioned")
	return domain.ViewOf(v.Value, v.Version), nil
}

// GetSignal returns a consistent snapshot with derived status
func (s *ControlService) GetSignal(id string) (domain.SignalView, error) {
	v, err := s.signals.Get(id)
	if err != nil {
		return domain.SignalView{}, err
	}
	return domain.ViewOf(v.Value, v.Version), nil
}

func signalViews(vs []memory.Versioned[domain.Signal]) []domain.SignalView {
	return lo.Map(vs, func(v memory.Versioned[domain.Signal], _ int) domain.SignalView {
		return domain.ViewOf(v.Value, v.Version)
	})
}

// ListSignals is the status report of every signal
func (s *ControlService) ListSignals() []domain.SignalView {
	return signalViews(s.signals.List())
}

// SignalsAtJunction lists the signals whose ID carries the junction prefix
func (s *ControlService) SignalsAtJunction(prefix string) []domain.SignalView {
	return signalViews(s.signals.Filter(func(sig domain.Signal) bool {
		return strings.HasPrefix(sig.ID, prefix)
	}))
}

// SignalsInArea lists the signals within radius of center
func (s *ControlService) SignalsInArea(center domain.GeoPoint, radius float64) []domain.SignalView {
	return signalViews(s.signals.Filter(func(sig domain.Signal) bool {
		return center.Within(sig.Location, radius)
	}))
}

// SetPhase is the manual override
func (s *ControlService) SetPhase(id string, phase domain.Phase, duration int) (domain.SignalView, error) {
	at := s.now()
	_, after, err := s.signals.UpdateThen(id, func(sig *domain.Signal) error {
		return sig.SetPhase(phase, duration, at)
	}, phaseHook(s.bus, "manual"))
	if err != nil {
		return domain.SignalView{}, err
	}
	return domain.ViewOf(after.Value, after.Version), nil
}

// SetPhaseIfVersion is SetPhase guarded by the caller's last seen version
func (s *ControlService) SetPhaseIfVersion(id string, phase domain.Phase, duration int, expected uint64) (domain.SignalView, error) {
	at := s.now()
	_, after, err := s.signals.UpdateIfVersionThen(id, expected, func(sig *domain.Signal) error {
		return sig.SetPhase(phase, duration, at)
	}, phaseHook(s.bus, "manual"))
	if err != nil {
		return domain.SignalView{}, err
	}
	return domain.ViewOf(after.Value, after.Version), nil
}

// Confine sets or releases the maintenance lock
func (s *ControlService) Confine(id string, confined bool) (domain.SignalView, error) {
	at := s.now()
	before, after, err := s.signals.UpdateThen(id, func(sig *domain.Signal) error {
		if sig.Confined == confined {
			return memory.ErrUnchanged
		}
		sig.Confine(confined, at)
		return nil
	}, func(_, after memory.Versioned[domain.Signal]) {
		s.bus.Publish(domain.ConfinementChanged{
			SignalID:  after.ID,
			Confined:  confined,
			Version:   after.Version,
			Timestamp: at,
		})
	})
	if err != nil {
		return domain.SignalView{}, err
	}
	if after.Version != before.Version {
		log.WithFields(logrus.Fields{"signal": id, "confined": confined}).Info("confinement changed")
	}
	return domain.ViewOf(after.Value, after.Version), nil
}

// SetOnline records connectivity of a signal
func (s *ControlService) SetOnline(id string, online bool) (domain.SignalView, error) {
	at := s.now()
	_, after, err := s.signals.UpdateThen(id, func(sig *domain.Signal) error {
		if sig.Online == online {
			return memory.ErrUnchanged
		}
		sig.SetOnline(online, at)
		return nil
	}, func(_, after memory.Versioned[domain.Signal]) {
		s.bus.Publish(domain.OnlineChanged{
			SignalID:  after.ID,
			Online:    online,
			Version:   after.Version,
			Timestamp: at,
		})
	})
	if err != nil {
		return domain.SignalView{}, err
	}
	return domain.ViewOf(after.Value, after.Version), nil
}

// DeleteSignal removes a signal that is not reserved by an active route
func (s *ControlService) DeleteSignal(id string) error {
	_, err := s.signals.Delete(id, func(sig domain.Signal) error {
		if sig.RouteID != "" {
			return fmt.Errorf("signal %s held by route %s: %w", id, sig.RouteID, domain.ErrSignalInRoute)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bus.Publish(domain.SignalRemoved{SignalID: id, Timestamp: s.now()})
	return nil
}

// OptimizeJunction applies the time-of-day rule to one junction
func (s *ControlService) OptimizeJunction(prefix string) (map[string]int, error) {
	return s.optimizer.Optimize(prefix)
}

// --- green waves ---

// ActivateGreenWave reserves the route and schedules its offsets
func (s *ControlService) ActivateGreenWave(routeID string, signalIDs []string, targetSpeed float64) (domain.Route, error) {
	return s.greenWave.Activate(routeID, signalIDs, targetSpeed)
}

// DeactivateGreenWave cancels the route; idempotent for known routes
func (s *ControlService) DeactivateGreenWave(routeID string) error {
	return s.greenWave.Deactivate(routeID)
}

// GreenWaves lists every known route
func (s *ControlService) GreenWaves() []domain.Route {
	return s.greenWave.Routes()
}

// --- incidents ---

// ReportIncident records a new incident in REPORTED
func (s *ControlService) ReportIncident(typ domain.IncidentType, location domain.GeoPoint, severity int) (domain.IncidentView, error) {
	at := s.now()
	inc, err := domain.NewIncident(s.newID(), typ, location, severity, at)
	if err != nil {
		return domain.IncidentView{}, err
	}
	v, err := s.incidents.CreateThen(inc.ID, inc, func(memory.Versioned[domain.Incident]) {
		s.bus.Publish(domain.IncidentCreated{
			IncidentID: inc.ID,
			Type:       inc.Type,
			Location:   inc.Location,
			Severity:   inc.Severity,
			Timestamp:  at,
		})
	})
	if err != nil {
		return domain.IncidentView{}, err
	}
	log.WithFields(logrus.Fields{"incident": inc.ID, "type": typ, "severity": severity}).Info("incident reported")
	return domain.IncidentView{Incident: v.Value, Version: v.Version}, nil
}

// TransitionIncident moves an incident along one lifecycle edge
func (s *ControlService) TransitionIncident(id string, target domain.IncidentStatus) (domain.IncidentView, error) {
	at := s.now()
	before, after, err := s.incidents.UpdateThen(id, func(inc *domain.Incident) error {
		return inc.Transition(target, at)
	}, func(before, after memory.Versioned[domain.Incident]) {
		s.bus.Publish(domain.IncidentStatusChanged{
			IncidentID: after.ID,
			OldStatus:  before.Value.Status,
			NewStatus:  after.Value.Status,
			Version:    after.Version,
			Timestamp:  at,
		})
	})
	if err != nil {
		return domain.IncidentView{}, err
	}
	log.WithFields(logrus.Fields{"incident": id, "from": before.Value.Status, "to": after.Value.Status}).Info("incident status changed")
	return domain.IncidentView{Incident: after.Value, Version: after.Version}, nil
}

// ConfirmIncident is REPORTED -> CONFIRMED
func (s *ControlService) ConfirmIncident(id string) (domain.IncidentView, error) {
	return s.TransitionIncident(id, domain.IncidentConfirmed)
}

// ResolveIncident is CONFIRMED -> RESOLVED
func (s *ControlService) ResolveIncident(id string) (domain.IncidentView, error) {
	return s.TransitionIncident(id, domain.IncidentResolved)
}

// DismissIncident is REPORTED -> FALSE_ALARM
func (s *ControlService) DismissIncident(id string) (domain.IncidentView, error) {
	return s.TransitionIncident(id, domain.IncidentFalseAlarm)
}

// GetIncident returns one incident snapshot
func (s *ControlService) GetIncident(id string) (domain.IncidentView, error) {
	v, err := s.incidents.Get(id)
	if err != nil {
		return domain.IncidentView{}, err
	}
	return domain.IncidentView{Incident: v.Value, Version: v.Version}, nil
}

func incidentViews(vs []memory.Versioned[domain.Incident]) []domain.IncidentView {
	return lo.Map(vs, func(v memory.Versioned[domain.Incident], _ int) domain.IncidentView {
		return domain.IncidentView{Incident: v.Value, Version: v.Version}
	})
}

// ListIncidents returns all incidents, or only non-terminal ones
func (s *ControlService) ListIncidents(activeOnly bool) []domain.IncidentView {
	if !activeOnly {
		return incidentViews(s.incidents.List())
	}
	return incidentViews(s.incidents.Filter(domain.Incident.Active))
}

// IncidentsNear lists incidents within radius of location
func (s *ControlService) IncidentsNear(location domain.GeoPoint, radius float64) []domain.IncidentView {
	return incidentViews(s.incidents.Filter(func(inc domain.Incident) bool {
		return location.Within(inc.Location, radius)
	}))
}

// IncidentStatistics summarises the incident collection
func (s *ControlService) IncidentStatistics() domain.IncidentStatistics {
	all := lo.Map(s.incidents.List(), func(v memory.Versioned[domain.Incident], _ int) domain.Incident {
		return v.Value
	})
	stats := domain.IncidentStatistics{
		Total: len(all),
		Active: lo.CountBy(all, func(inc domain.Incident) bool {
			return inc.Active()
		}),
		ByType: lo.MapValues(lo.GroupBy(all, func(inc domain.Incident) domain.IncidentType {
			return inc.Type
		}), func(group []domain.Incident, _ domain.IncidentType) int {
			return len(group)
		}),
		ByStatus: lo.MapValues(lo.GroupBy(all, func(inc domain.Incident) domain.IncidentStatus {
			return inc.Status
		}), func(group []domain.Incident, _ domain.IncidentStatus) int {
			return len(group)
		}),
		GeneratedAt: s.now(),
	}
	if len(all) > 0 {
		total := lo.SumBy(all, func(inc domain.Incident) int { return inc.Severity })
		stats.AverageSeverity = roundSeverity(float64(total) / float64(len(all)))
	}
	return stats
}

// roundSeverity keeps two decimals
func roundSeverity(v float64) float64 {
	return math.Round(v*100) / 100
}
