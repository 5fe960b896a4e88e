package service_test

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
	"github.com/smartcity/signalctl/internal/service"
)

var t0 = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

// manualScheduler records scheduled calls; nothing runs until Fire/FireAll
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	sched   *manualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) service.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{sched: s, delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Delays returns the delay of every scheduled timer in scheduling order
func (s *manualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for k, t := range s.timers {
		out[k] = t.delay
	}
	return out
}

// Fire runs timer k if it is still armed
func (s *manualScheduler) Fire(k int) bool {
	s.mu.Lock()
	t := s.timers[k]
	if t.stopped || t.fired {
		s.mu.Unlock()
		return false
	}
	t.fired = true
	s.mu.Unlock()
	t.f()
	return true
}

// RunLate invokes timer k's callback even if it was stopped, like a runtime
// timer that had already expired when Stop was called
func (s *manualScheduler) RunLate(k int) {
	s.mu.Lock()
	t := s.timers[k]
	t.fired = true
	s.mu.Unlock()
	t.f()
}

// FireAll runs every armed timer in delay order
func (s *manualScheduler) FireAll() int {
	s.mu.Lock()
	order := make([]int, len(s.timers))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(i, j int) bool { return s.timers[order[i]].delay < s.timers[order[j]].delay })
	s.mu.Unlock()

	n := 0
	for _, k := range order {
		if s.Fire(k) {
			n++
		}
	}
	return n
}

// recorder collects bus events
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) kinds() []domain.EventKind {
	evs := r.all()
	out := make([]domain.EventKind, len(evs))
	for k, ev := range evs {
		out[k] = ev.Kind()
	}
	return out
}

func (r *recorder) phaseChanges() []domain.PhaseChanged {
	var out []domain.PhaseChanged
	for _, ev := range r.all() {
		if pc, ok := ev.(domain.PhaseChanged); ok {
			out = append(out, pc)
		}
	}
	return out
}

type fixture struct {
	signals   *memory.Store[domain.Signal]
	incidents *memory.Store[domain.Incident]
	bus       *service.EventBus
	sched     *manualScheduler
	rec       *recorder
	svc       *service.ControlService
	now       time.Time
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		signals:   memory.NewStore[domain.Signal]("signal"),
		incidents: memory.NewStore[domain.Incident]("incident"),
		bus:       service.NewEventBus(),
		sched:     &manualScheduler{},
		rec:       &recorder{},
		now:       now,
	}
	seq := 0
	f.svc = service.NewControlService(f.signals, f.incidents, f.bus, service.ControlConfig{
		GreenWaveDuration: 25,
		Scheduler:         f.sched,
		Now:               func() time.Time { return f.now },
		NewIncidentID: func() string {
			seq++
			return fmt.Sprintf("INC-%d", seq)
		},
	})
	f.bus.Subscribe(f.rec.handle)
	return f
}
