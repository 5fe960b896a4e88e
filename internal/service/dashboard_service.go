package service

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/smartcity/signalctl/internal/domain"
)

const dashboardHistory = time.Hour

// Dashboard is the operator overview of the control plane
type Dashboard struct {
	SignalsByStatus map[domain.Status]int     `json:"signals_by_status"`
	SignalsByPhase  map[domain.Phase]int      `json:"signals_by_phase"`
	ActiveRoutes    []string                  `json:"active_routes"`
	Incidents       domain.IncidentStatistics `json:"incidents"`
	RecentEvents    []domain.EventRecord      `json:"recent_events"`
	JournalHealthy  bool                      `json:"journal_healthy"`
	DroppedEvents   uint64                    `json:"dropped_events"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// DashboardService aggregates live control state with journal history
type DashboardService struct {
	control *ControlService
	journal *EventJournal
	repo    EventRepository
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(control *ControlService, journal *EventJournal, repo EventRepository) *DashboardService {
	return &DashboardService{
		control: control,
		journal: journal,
		repo:    repo,
	}
}

// GetDashboard builds the overview. Journal reads run concurrently; a failing
// journal shows up as JournalHealthy=false and no recent events.
func (s *DashboardService) GetDashboard(ctx context.Context) Dashboard {
	now := s.control.now()

	var (
		recent  []domain.EventRecord
		healthy bool
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		events, err := s.journal.History(ctx, now.Add(-dashboardHistory), now)
		mu.Lock()
		if err != nil {
			errs = append(errs, err)
		} else {
			recent = events
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.repo.Health(ctx)
		mu.Lock()
		if err != nil {
			errs = append(errs, err)
		} else {
			healthy = true
		}
		mu.Unlock()
	}()

	views := s.control.ListSignals()
	stats := s.control.IncidentStatistics()

	active := lo.FilterMap(s.control.GreenWaves(), func(r domain.Route, _ int) (string, bool) {
		return r.ID, r.Active
	})

	wg.Wait()

	for _, err := range errs {
		log.Warnf("Dashboard journal read error: %v", err)
	}

	return Dashboard{
		SignalsByStatus: lo.CountValuesBy(views, func(v domain.SignalView) domain.Status { return v.Status }),
		SignalsByPhase:  lo.CountValuesBy(views, func(v domain.SignalView) domain.Phase { return v.Phase }),
		ActiveRoutes:    active,
		Incidents:       stats,
		RecentEvents:    recent,
		JournalHealthy:  healthy,
		DroppedEvents:   s.journal.Dropped(),
		Timestamp:       now,
	}
}
