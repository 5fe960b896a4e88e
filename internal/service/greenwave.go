package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
)

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler schedules on the wall clock
var SystemScheduler Scheduler = clockScheduler{}

// errStaleOffset marks a fire whose reservation was released or invalidated
var errStaleOffset = errors.New("stale green-wave offset")

// CumulativeDistances returns the distance from the first point to each
// point, summed over consecutive straight-line hops
func CumulativeDistances(points []domain.GeoPoint) []float64 {
	out := make([]float64, len(points))
	for k := 1; k < len(points); k++ {
		out[k] = out[k-1] + points[k-1].DistanceTo(points[k])
	}
	return out
}

// ComputeOffsets returns, in seconds, when each node's green must start so a
// vehicle leaving node 0 at speed arrives as the light turns
func ComputeOffsets(points []domain.GeoPoint, speed float64, unit domain.SpeedUnit) []float64 {
	v := unit.PerSecond(speed)
	return lo.Map(CumulativeDistances(points), func(d float64, _ int) float64 {
		return d / v
	})
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type waveRoute struct {
	route   domain.Route
	token   uint64
	pending map[string]Timer
}

// GreenWaveOptions configures a coordinator; zero values fall back to defaults
type GreenWaveOptions struct {
	GreenDuration int
	Unit          domain.SpeedUnit
	Scheduler     Scheduler
	Now           func() time.Time
}

// GreenWaveCoordinator owns route lifecycle: reservation of member signals,
// offset computation and the delayed GREEN transitions.
//
// Route membership lives on the signal itself (RouteID + WaveToken), so the
// conflict check and the cancellation check both run under the signal's own
// lock. A scheduled transition commits only if the signal still carries the
// token it was scheduled with; Deactivate clears the token under the same
// lock, which makes cancellation win whenever it commits first.
type GreenWaveCoordinator struct {
	signals       *memory.Store[domain.Signal]
	bus           *EventBus
	sched         Scheduler
	now           func() time.Time
	greenDuration int
	unit          domain.SpeedUnit

	mu        sync.Mutex
	routes    map[string]*waveRoute
	lastToken uint64
}

// NewGreenWaveCoordinator creates a coordinator over the signal store
func NewGreenWaveCoordinator(signals *memory.Store[domain.Signal], bus *EventBus, opts GreenWaveOptions) *GreenWaveCoordinator {
	if opts.GreenDuration <= 0 {
		opts.GreenDuration = domain.DefaultPhaseDuration
	}
	if opts.Unit == "" {
		opts.Unit = domain.SpeedPerSecond
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GreenWaveCoordinator{
		signals:       signals,
		bus:           bus,
		sched:         opts.Scheduler,
		now:           opts.Now,
		greenDuration: opts.GreenDuration,
		unit:          opts.Unit,
		routes:        make(map[string]*waveRoute),
	}
}

// Activate reserves every member of the route atomically and schedules each
// member's GREEN at its offset. Nothing is reserved if any member fails.
func (c *GreenWaveCoordinator) Activate(routeID string, signalIDs []string, speed float64) (domain.Route, error) {
	if err := domain.ValidateRoute(routeID, signalIDs, speed); err != nil {
		return domain.Route{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if wr, ok := c.routes[routeID]; ok && wr.route.Active {
		return domain.Route{}, fmt.Errorf("route %s: %w", routeID, domain.ErrAlreadyActive)
	}

	c.lastToken++
	token := c.lastToken
	snaps, err := c.signals.UpdateMany(signalIDs, func(m map[string]*domain.Signal) error {
		for _, id := range signalIDs {
			if err := m[id].JoinRoute(routeID, token); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Route{}, fmt.Errorf("greenwave: activate %s: %w", routeID, err)
	}

	points := lo.Map(signalIDs, func(id string, _ int) domain.GeoPoint {
		return snaps[id].Value.Location
	})
	offsets := ComputeOffsets(points, speed, c.unit)
	wr := &waveRoute{
		route: domain.Route{
			ID:          routeID,
			SignalIDs:   append([]string(nil), signalIDs...),
			TargetSpeed: speed,
			Unit:        c.unit,
			Offsets:     offsets,
			Active:      true,
			ActivatedAt: c.now(),
		},
		token:   token,
		pending: make(map[string]Timer, len(signalIDs)),
	}
	c.routes[routeID] = wr

	// published before any timer exists so it precedes the route's PhaseChanged events
	c.bus.Publish(domain.RouteActivated{
		RouteID:     routeID,
		SignalIDs:   wr.route.Clone().SignalIDs,
		Offsets:     wr.route.Clone().Offsets,
		TargetSpeed: speed,
		Timestamp:   wr.route.ActivatedAt,
	})

	for k, id := range signalIDs {
		signalID := id
		wr.pending[signalID] = c.sched.AfterFunc(secondsToDuration(offsets[k]), func() {
			c.fire(routeID, signalID, token)
		})
	}

	log.WithFields(logrus.Fields{
		"route":   routeID,
		"signals": len(signalIDs),
		"speed":   speed,
	}).Info("green wave activated")
	return wr.route.Clone(), nil
}

func (c *GreenWaveCoordinator) fire(routeID, signalID string, token uint64) {
	_, _, err := c.signals.UpdateThen(signalID, func(s *domain.Signal) error {
		if s.RouteID != routeID || s.WaveToken != token {
			return errStaleOffset
		}
		return s.SetPhase(domain.PhaseGreen, c.greenDuration, c.now())
	}, phaseHook(c.bus, "greenwave:"+routeID))

	c.mu.Lock()
	if wr, ok := c.routes[routeID]; ok && wr.token == token {
		delete(wr.pending, signalID)
	}
	c.mu.Unlock()

	entry := log.WithFields(logrus.Fields{"route": routeID, "signal": signalID})
	switch {
	case errors.Is(err, errStaleOffset):
		entry.Debug("skipping stale green-wave offset")
		return
	case err != nil:
		entry.Warnf("green-wave transition failed: %v", err)
	}
}

// Deactivate cancels pending transitions and releases the members.
// Signals keep their last applied phase. Deactivating an inactive route is a no-op.
func (c *GreenWaveCoordinator) Deactivate(routeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wr, ok := c.routes[routeID]
	if !ok {
		return fmt.Errorf("route %q: %w", routeID, domain.ErrNotFound)
	}
	if !wr.route.Active {
		return nil
	}

	cancelled := 0
	for id, t := range wr.pending {
		if t.Stop() {
			cancelled++
		}
		delete(wr.pending, id)
	}

	members := lo.Filter(wr.route.SignalIDs, func(id string, _ int) bool {
		return c.signals.Exists(id)
	})
	_, err := c.signals.UpdateMany(members, func(m map[string]*domain.Signal) error {
		for _, s := range m {
			s.LeaveRoute(routeID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("greenwave: deactivate %s: %w", routeID, err)
	}

	wr.route.Active = false
	wr.route.DeactivatedAt = c.now()
	c.bus.Publish(domain.RouteDeactivated{
		RouteID:   routeID,
		SignalIDs: wr.route.Clone().SignalIDs,
		Cancelled: cancelled,
		Timestamp: wr.route.DeactivatedAt,
	})

	log.WithFields(logrus.Fields{"route": routeID, "cancelled": cancelled}).Info("green wave deactivated")
	return nil
}

// Route returns a snapshot of one known route
func (c *GreenWaveCoordinator) Route(routeID string) (domain.Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wr, ok := c.routes[routeID]
	if !ok {
		return domain.Route{}, fmt.Errorf("route %q: %w", routeID, domain.ErrNotFound)
	}
	return wr.route.Clone(), nil
}

// Routes returns snapshots of every known route, ordered by ID
func (c *GreenWaveCoordinator) Routes() []domain.Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := lo.MapToSlice(c.routes, func(_ string, wr *waveRoute) domain.Route {
		return wr.route.Clone()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending returns how many member transitions of a route have not fired yet
func (c *GreenWaveCoordinator) Pending(routeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wr, ok := c.routes[routeID]; ok {
		return len(wr.pending)
	}
	return 0
}

// Stop cancels every pending timer without touching route membership.
// Used on shutdown.
func (c *GreenWaveCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, wr := range c.routes {
		for id, t := range wr.pending {
			t.Stop()
			delete(wr.pending, id)
		}
	}
}
