package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/signalctl/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestDeriveStatus(t *testing.T) {
	phases := []domain.Phase{domain.PhaseRed, domain.PhaseYellow, domain.PhaseGreen, domain.PhaseOff}
	for _, online := range []bool{true, false} {
		for _, confined := range []bool{true, false} {
			for _, p := range phases {
				got := domain.DeriveStatus(online, confined, p)
				var want domain.Status
				switch {
				case !online:
					want = domain.StatusOffline
				case confined:
					want = domain.StatusMaintenance
				case p == domain.PhaseOff:
					want = domain.StatusOffline
				default:
					want = domain.StatusOperational
				}
				assert.Equal(t, want, got, "online=%v confined=%v phase=%s", online, confined, p)
				assert.NotEqual(t, domain.StatusMalfunction, got)
			}
		}
	}
}

func TestNewSignal(t *testing.T) {
	s := domain.NewSignal("J1-N", domain.GeoPoint{X: 1, Y: 2}, t0)
	assert.Equal(t, domain.PhaseRed, s.Phase)
	assert.Positive(t, s.PhaseDuration)
	assert.True(t, s.Online)
	assert.Equal(t, domain.StatusOperational, s.Status())
}

func TestSignalSetPhase(t *testing.T) {
	s := domain.NewSignal("J1-N", domain.GeoPoint{}, t0)

	require.NoError(t, s.SetPhase(domain.PhaseGreen, 40, t0))
	assert.Equal(t, domain.PhaseGreen, s.Phase)
	assert.Equal(t, 40, s.PhaseDuration)

	// any phase may follow any phase
	require.NoError(t, s.SetPhase(domain.PhaseRed, 10, t0))
	require.NoError(t, s.SetPhase(domain.PhaseYellow, 3, t0))

	// OFF permits zero duration
	require.NoError(t, s.SetPhase(domain.PhaseOff, 0, t0))
	assert.Equal(t, domain.StatusOffline, s.Status())

	err := s.SetPhase(domain.PhaseGreen, 0, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	err = s.SetPhase(domain.PhaseOff, -1, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	err = s.SetPhase(domain.Phase("BLUE"), 10, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	assert.Equal(t, domain.PhaseOff, s.Phase)
}

func TestSignalConfinedRejectsPhase(t *testing.T) {
	s := domain.NewSignal("J1-N", domain.GeoPoint{}, t0)
	s.Confine(true, t0)
	before := s

	err := s.SetPhase(domain.PhaseGreen, 30, t0.Add(time.Second))
	assert.True(t, errors.Is(err, domain.ErrLocked))
	assert.Equal(t, before, s)
	assert.Equal(t, domain.StatusMaintenance, s.Status())

	s.Confine(false, t0)
	assert.Equal(t, domain.PhaseRed, s.Phase, "release keeps the frozen phase")
	require.NoError(t, s.SetPhase(domain.PhaseGreen, 30, t0))
}

func TestSignalConfineDropsWaveToken(t *testing.T) {
	s := domain.NewSignal("J1-N", domain.GeoPoint{}, t0)
	require.NoError(t, s.JoinRoute("R1", 7))
	s.Confine(true, t0)
	assert.Equal(t, "R1", s.RouteID)
	assert.Zero(t, s.WaveToken)
}

func TestSignalRouteMembership(t *testing.T) {
	s := domain.NewSignal("J1-N", domain.GeoPoint{}, t0)
	require.NoError(t, s.JoinRoute("R1", 1))

	err := s.JoinRoute("R2", 2)
	var conflict *domain.RouteConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "R1", conflict.HeldBy)
	assert.ErrorIs(t, err, domain.ErrRouteConflict)

	assert.False(t, s.LeaveRoute("R2"))
	assert.True(t, s.LeaveRoute("R1"))
	assert.Empty(t, s.RouteID)
}

func TestParsePhase(t *testing.T) {
	p, err := domain.ParsePhase(" green ")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGreen, p)

	_, err = domain.ParsePhase("purple")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestGeoPointDistance(t *testing.T) {
	a := domain.GeoPoint{X: 0, Y: 0}
	b := domain.GeoPoint{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-9)
	assert.InDelta(t, 5.0, b.DistanceTo(a), 1e-9)
	assert.True(t, a.Within(b, 5))
	assert.False(t, a.Within(b, 4.99))
}
