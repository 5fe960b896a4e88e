package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
)

const (
	DefaultPeakGreen    = 45
	DefaultOffPeakGreen = 30
)

var errNotOperational = errors.New("signal not operational")

// IsPeakHour reports whether hour falls in the 7-9 or 16-18 load bands, inclusive
func IsPeakHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18)
}

// OptimizerOptions configures a PhaseOptimizer; zero values fall back to defaults
type OptimizerOptions struct {
	PeakGreen    int
	OffPeakGreen int
	Now          func() time.Time
}

// PhaseOptimizer is the rule-based, on-request junction controller
type PhaseOptimizer struct {
	signals      *memory.Store[domain.Signal]
	bus          *EventBus
	now          func() time.Time
	peakGreen    int
	offPeakGreen int
}

// NewPhaseOptimizer creates an optimizer over the signal store
func NewPhaseOptimizer(signals *memory.Store[domain.Signal], bus *EventBus, opts OptimizerOptions) *PhaseOptimizer {
	if opts.PeakGreen <= 0 {
		opts.PeakGreen = DefaultPeakGreen
	}
	if opts.OffPeakGreen <= 0 {
		opts.OffPeakGreen = DefaultOffPeakGreen
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PhaseOptimizer{
		signals:      signals,
		bus:          bus,
		now:          opts.Now,
		peakGreen:    opts.PeakGreen,
		offPeakGreen: opts.OffPeakGreen,
	}
}

// GreenDurationAt returns the green time the load rule picks for t
func (o *PhaseOptimizer) GreenDurationAt(t time.Time) int {
	if IsPeakHour(t.Hour()) {
		return o.peakGreen
	}
	return o.offPeakGreen
}

// Optimize turns every OPERATIONAL signal of the junction GREEN with the
// band's duration. Signals that are not OPERATIONAL when their lock is taken
// are skipped. The result holds only the signals actually changed.
func (o *PhaseOptimizer) Optimize(junctionPrefix string) (map[string]int, error) {
	if strings.TrimSpace(junctionPrefix) == "" {
		return nil, fmt.Errorf("%w: empty junction prefix", domain.ErrInvalidArgument)
	}

	at := o.now()
	duration := o.GreenDurationAt(at)
	applied := make(map[string]int)

	members := o.signals.Filter(func(s domain.Signal) bool {
		return strings.HasPrefix(s.ID, junctionPrefix)
	})
	for _, m := range members {
		_, _, err := o.signals.UpdateThen(m.ID, func(s *domain.Signal) error {
			if s.Status() != domain.StatusOperational {
				return errNotOperational
			}
			return s.SetPhase(domain.PhaseGreen, duration, at)
		}, phaseHook(o.bus, "optimizer"))
		switch {
		case errors.Is(err, errNotOperational), errors.Is(err, domain.ErrNotFound):
			continue
		case err != nil:
			return applied, fmt.Errorf("optimizer: junction %s: %w", junctionPrefix, err)
		}

		applied[m.ID] = duration
	}

	log.WithFields(logrus.Fields{
		"junction": junctionPrefix,
		"members":  len(members),
		"changed":  len(applied),
		"green":    duration,
	}).Info("junction optimized")
	return applied, nil
}
