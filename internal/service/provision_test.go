package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/signalctl/internal/config"
	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/postgres"
	"github.com/smartcity/signalctl/internal/service"
)

func TestProvisionAppliesSeed(t *testing.T) {
	f := newFixture(t0)
	offline := false
	seed := &config.Seed{
		Signals: []config.SignalSeed{
			{ID: "J1-N", X: 0, Y: 10, Phase: "green", Duration: 40},
			{ID: "J1-S", X: 0, Y: -10, Confined: true},
			{ID: "J1-E", X: 10, Y: 0, Online: &offline},
			{ID: "J1-W", X: -10, Y: 0, Phase: "off"},
		},
		Incidents: []config.IncidentSeed{{Type: "congestion", X: 1, Y: 1, Severity: 2}},
	}
	require.NoError(t, f.svc.Provision(seed))

	n, _ := f.svc.GetSignal("J1-N")
	assert.Equal(t, domain.PhaseGreen, n.Phase)
	assert.Equal(t, 40, n.PhaseDuration)
	s, _ := f.svc.GetSignal("J1-S")
	assert.Equal(t, domain.StatusMaintenance, s.Status)
	e, _ := f.svc.GetSignal("J1-E")
	assert.Equal(t, domain.StatusOffline, e.Status)
	w, _ := f.svc.GetSignal("J1-W")
	assert.Equal(t, domain.PhaseOff, w.Phase)

	incs := f.svc.ListIncidents(false)
	require.Len(t, incs, 1)
	assert.Equal(t, domain.IncidentCongestion, incs[0].Type)
}

func TestProvisionStopsOnInvalidEntry(t *testing.T) {
	f := newFixture(t0)
	err := f.svc.Provision(&config.Seed{
		Incidents: []config.IncidentSeed{{Type: "ACCIDENT", Severity: 7}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSeverity)

	err = f.svc.Provision(&config.Seed{
		Signals: []config.SignalSeed{{ID: "A", Phase: "BLUE"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestDashboardAggregates(t *testing.T) {
	f := newFixture(t0)
	repo := postgres.NewMockRepository()
	journal := service.NewEventJournal(repo)
	f.bus.Subscribe(journal.Handle)

	_, _ = f.svc.CreateSignal("A", domain.GeoPoint{})
	_, _ = f.svc.CreateSignal("B", domain.GeoPoint{X: 10})
	_, _ = f.svc.Confine("B", true)
	_, _ = f.svc.ActivateGreenWave("R1", []string{"A"}, 10)
	_, _ = f.svc.ReportIncident(domain.IncidentAccident, domain.GeoPoint{}, 3)
	_, _ = f.svc.ReportIncident(domain.IncidentAccident, domain.GeoPoint{}, 4)
	journal.Close()

	dash := service.NewDashboardService(f.svc, journal, repo).GetDashboard(context.Background())
	assert.Equal(t, 1, dash.SignalsByStatus[domain.StatusOperational])
	assert.Equal(t, 1, dash.SignalsByStatus[domain.StatusMaintenance])
	assert.Equal(t, 2, dash.SignalsByPhase[domain.PhaseRed])
	assert.Equal(t, []string{"R1"}, dash.ActiveRoutes)
	assert.Equal(t, 2, dash.Incidents.Total)
	assert.InDelta(t, 3.5, dash.Incidents.AverageSeverity, 1e-9)
	assert.True(t, dash.JournalHealthy)
	assert.Len(t, dash.RecentEvents, 6)
	assert.Equal(t, t0, dash.Timestamp)
}

type unreachableRepo struct{}

func (unreachableRepo) SaveEvent(context.Context, domain.EventRecord) error {
	return errors.New("unreachable")
}

func (unreachableRepo) GetEvents(context.Context, time.Time, time.Time) ([]domain.EventRecord, error) {
	return nil, errors.New("unreachable")
}

func (unreachableRepo) Health(context.Context) error { return errors.New("unreachable") }

func TestDashboardDegradesWhenJournalFails(t *testing.T) {
	f := newFixture(t0)
	repo := unreachableRepo{}
	journal := service.NewEventJournal(repo)
	f.bus.Subscribe(journal.Handle)
	t.Cleanup(journal.Close)

	_, _ = f.svc.CreateSignal("A", domain.GeoPoint{})
	_, _ = f.svc.ReportIncident(domain.IncidentOther, domain.GeoPoint{}, 2)

	dash := service.NewDashboardService(f.svc, journal, repo).GetDashboard(context.Background())
	assert.False(t, dash.JournalHealthy)
	assert.Empty(t, dash.RecentEvents)
	assert.Equal(t, 1, dash.SignalsByStatus[domain.StatusOperational])
	assert.Equal(t, 1, dash.Incidents.Total)
}
