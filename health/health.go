// Package health probes registered tool servers on a schedule. Each
// tick issues a bounded tools/list against every server; a handler
// receives one event per probe so callers can surface liveness in a UI
// or log.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/traceworks/boardpilot/registry"
)

const (
	// DefaultSchedule probes twice a minute.
	DefaultSchedule = "@every 30s"
	// probeTimeout bounds a single tools/list round trip.
	probeTimeout = 5 * time.Second
)

// Event is the outcome of one probe.
type Event struct {
	Server              string
	Healthy             bool
	Latency             time.Duration
	ToolCount           int
	Err                 error
	ConsecutiveFailures int
}

// Handler receives probe outcomes. Called sequentially per scheduler.
type Handler func(Event)

// Registry is the part of the tool registry the scheduler needs.
type Registry interface {
	Servers() []string
	Connection(serverName string) (registry.Conn, bool)
}

// Scheduler runs periodic liveness probes.
type Scheduler struct {
	registry Registry
	handler  Handler
	logger   *slog.Logger
	schedule string

	mu       sync.Mutex
	cron     *cron.Cron
	failures map[string]int
}

// Config configures the scheduler.
type Config struct {
	Registry Registry
	Handler  Handler
	Logger   *slog.Logger
	Schedule string
}

// NewScheduler builds a scheduler; Start must be called to begin
// probing.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("health: registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		registry: cfg.Registry,
		handler:  cfg.Handler,
		logger:   logger,
		schedule: schedule,
		failures: map[string]int{},
	}, nil
}

// Start begins scheduled probing. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Probe(context.Background()) }); err != nil {
		return fmt.Errorf("health: invalid schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("health probes started", "schedule", s.schedule)
	return nil
}

// Stop halts probing and waits for an in-flight tick. Safe to call
// multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("health probes stopped")
}

// Probe checks every registered server once and returns the events. The
// scheduler calls this on each tick; callers may also invoke it directly
// for an on-demand snapshot.
func (s *Scheduler) Probe(ctx context.Context) []Event {
	servers := s.registry.Servers()
	events := make([]Event, 0, len(servers))
	for _, name := range servers {
		event := s.probeOne(ctx, name)
		events = append(events, event)
		if s.handler != nil {
			s.handler(event)
		}
	}
	return events
}

func (s *Scheduler) probeOne(ctx context.Context, name string) Event {
	conn, ok := s.registry.Connection(name)
	if !ok {
		return s.record(name, Event{Server: name, Err: fmt.Errorf("health: server %q no longer registered", name)})
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	result, err := conn.ListTools(probeCtx)
	latency := time.Since(start)
	if err != nil {
		s.logger.Warn("health probe failed", "server", name, "error", err)
		return s.record(name, Event{Server: name, Latency: latency, Err: err})
	}
	return s.record(name, Event{Server: name, Healthy: true, Latency: latency, ToolCount: len(result.Tools)})
}

// Snapshot returns the current consecutive-failure counts by server.
func (s *Scheduler) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.failures))
	for name, n := range s.failures {
		out[name] = n
	}
	return out
}

// record updates the consecutive-failure count under the lock and
// stamps it on the event.
func (s *Scheduler) record(name string, event Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Healthy {
		s.failures[name] = 0
	} else {
		s.failures[name]++
	}
	event.ConsecutiveFailures = s.failures[name]
	return event
}
