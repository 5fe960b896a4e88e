package service_test

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/service"
)

func at(hour int) time.Time {
	return time.Date(2024, 3, 4, hour, 30, 0, 0, time.UTC)
}

func TestIsPeakHour(t *testing.T) {
	peak := []int{7, 8, 9, 16, 17, 18}
	for h := 0; h < 24; h++ {
		assert.Equal(t, lo.Contains(peak, h), service.IsPeakHour(h), "hour %d", h)
	}
}

func TestOptimizeUsesLoadBand(t *testing.T) {
	cases := []struct {
		hour int
		want int
	}{
		{8, service.DefaultPeakGreen},
		{17, service.DefaultPeakGreen},
		{12, service.DefaultOffPeakGreen},
		{23, service.DefaultOffPeakGreen},
	}
	for _, c := range cases {
		f := newFixture(at(c.hour))
		_, err := f.svc.CreateSignal("J1-N", domain.GeoPoint{})
		require.NoError(t, err)
		_, err = f.svc.CreateSignal("J1-S", domain.GeoPoint{X: 1})
		require.NoError(t, err)
		_, err = f.svc.CreateSignal("J2-N", domain.GeoPoint{X: 50})
		require.NoError(t, err)

		applied, err := f.svc.OptimizeJunction("J1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"J1-N": c.want, "J1-S": c.want}, applied, "hour %d", c.hour)

		n, _ := f.svc.GetSignal("J1-N")
		assert.Equal(t, domain.PhaseGreen, n.Phase)
		assert.Equal(t, c.want, n.PhaseDuration)
		other, _ := f.svc.GetSignal("J2-N")
		assert.Equal(t, domain.PhaseRed, other.Phase)

		for _, pc := range f.rec.phaseChanges() {
			assert.Equal(t, "optimizer", pc.Source)
		}
	}
}

func TestOptimizeSkipsNonOperational(t *testing.T) {
	f := newFixture(at(8))
	for _, id := range []string{"J1-a", "J1-b", "J1-c", "J1-d"} {
		_, err := f.svc.CreateSignal(id, domain.GeoPoint{})
		require.NoError(t, err)
	}
	_, err := f.svc.Confine("J1-b", true)
	require.NoError(t, err)
	_, err = f.svc.SetOnline("J1-c", false)
	require.NoError(t, err)
	_, err = f.svc.SetPhase("J1-d", domain.PhaseOff, 0)
	require.NoError(t, err)

	applied, err := f.svc.OptimizeJunction("J1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"J1-a": 45}, applied)

	b, _ := f.svc.GetSignal("J1-b")
	assert.Equal(t, domain.PhaseRed, b.Phase)
	assert.Equal(t, uint64(2), b.Version)
	d, _ := f.svc.GetSignal("J1-d")
	assert.Equal(t, domain.PhaseOff, d.Phase)
}

func TestOptimizeRejectsEmptyPrefix(t *testing.T) {
	f := newFixture(t0)
	_, err := f.svc.OptimizeJunction("  ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestOptimizerCustomDurations(t *testing.T) {
	o := service.NewPhaseOptimizer(nil, nil, service.OptimizerOptions{PeakGreen: 60, OffPeakGreen: 20})
	assert.Equal(t, 60, o.GreenDurationAt(at(7)))
	assert.Equal(t, 20, o.GreenDurationAt(at(10)))
}
