package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"refinery/internal/catalog"
	"refinery/internal/operative"
)

// EventStore is the part of Service the scheduler drives.
type EventStore interface {
	StartEvent(ctx context.Context, ev catalog.Event, start time.Time) (ActiveEvent, error)
	RefreshBoosts(ctx context.Context) (*operative.Snapshot, error)
	PurgeExpiredEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

const (
	purgeSpec      = "@every 1h"
	purgeRetention = 24 * time.Hour
)

// EventScheduler starts catalog events on their cron schedules and keeps
// the boost snapshot in step with them.
type EventScheduler struct {
	Cron  *cron.Cron
	Store EventStore
	Ctx   context.Context

	log    *slog.Logger
	events map[string]catalog.Event
	now    func() time.Time
}

func NewEventScheduler(ctx context.Context, store EventStore, logger *slog.Logger) *EventScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventScheduler{
		Cron:   cron.New(cron.WithParser(catalog.CronParser)),
		Store:  store,
		Ctx:    ctx,
		log:    logger,
		events: map[string]catalog.Event{},
		now:    time.Now,
	}
}

// RegisterAll schedules every event plus the hourly purge of expired rows.
func (s *EventScheduler) RegisterAll(events []catalog.Event) error {
	for _, ev := range events {
		if _, dup := s.events[ev.Name]; dup {
			return fmt.Errorf("register event %q: duplicate name", ev.Name)
		}
		s.events[ev.Name] = ev
		name := ev.Name
		s.Cron.Schedule(ev.Schedule, cron.FuncJob(func() {
			if err := s.RunNow(name); err != nil {
				s.log.Error("scheduled event failed", "event", name, "error", err)
			}
		}))
	}
	if _, err := s.Cron.AddFunc(purgeSpec, s.purge); err != nil {
		return fmt.Errorf("register purge task: %w", err)
	}
	return nil
}

func (s *EventScheduler) Start() {
	s.Cron.Start()
	s.log.Info("event scheduler started", "events", len(s.events))
}

// Stop stops the scheduler and waits for running jobs.
func (s *EventScheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("event scheduler stopped")
}

// RunNow starts the named event immediately and refreshes boosts.
func (s *EventScheduler) RunNow(name string) error {
	ev, ok := s.events[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	started, err := s.Store.StartEvent(s.Ctx, ev, s.now())
	if err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	if _, err := s.Store.RefreshBoosts(s.Ctx); err != nil {
		return fmt.Errorf("refresh after %s: %w", name, err)
	}
	s.log.Info("event running", "event", name, "id", started.ID, "ends_at", started.EndsAt)
	return nil
}

func (s *EventScheduler) purge() {
	n, err := s.Store.PurgeExpiredEvents(s.Ctx, s.now().Add(-purgeRetention))
	if err != nil {
		s.log.Error("purge expired events", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("purged expired events", "count", n)
	}
}
