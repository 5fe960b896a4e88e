package service

import (
	"fmt"

	"github.com/smartcity/signalctl/internal/config"
	"github.com/smartcity/signalctl/internal/domain"
)

// Provision applies a seed through the regular operations, so every seeded
// entity passes the same validation and emits the same events as a live
// request would
func (s *ControlService) Provision(seed *config.Seed) error {
	for _, sig := range seed.Signals {
		if _, err := s.CreateSignal(sig.ID, domain.GeoPoint{X: sig.X, Y: sig.Y}); err != nil {
			return fmt.Errorf("provision: signal %s: %w", sig.ID, err)
		}
		if sig.Phase != "" {
			phase, err := domain.ParsePhase(sig.Phase)
			if err != nil {
				return fmt.Errorf("provision: signal %s: %w", sig.ID, err)
			}
			duration := sig.Duration
			if duration == 0 && phase != domain.PhaseOff {
				duration = domain.DefaultPhaseDuration
			}
			if _, err := s.SetPhase(sig.ID, phase, duration); err != nil {
				return fmt.Errorf("provision: signal %s: %w", sig.ID, err)
			}
		}
		if sig.Online != nil && !*sig.Online {
			if _, err := s.SetOnline(sig.ID, false); err != nil {
				return fmt.Errorf("provision: signal %s: %w", sig.ID, err)
			}
		}
		if sig.Confined {
			if _, err := s.Confine(sig.ID, true); err != nil {
				return fmt.Errorf("provision: signal %s: %w", sig.ID, err)
			}
		}
	}

	for k, inc := range seed.Incidents {
		typ, err := domain.ParseIncidentType(inc.Type)
		if err != nil {
			return fmt.Errorf("provision: incident %d: %w", k, err)
		}
		if _, err := s.ReportIncident(typ, domain.GeoPoint{X: inc.X, Y: inc.Y}, inc.Severity); err != nil {
			return fmt.Errorf("provision: incident %d: %w", k, err)
		}
	}

	log.Infof("provisioned %d signals and %d incidents", len(seed.Signals), len(seed.Incidents))
	return nil
}
