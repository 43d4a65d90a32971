package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// EventPublisher receives domain events once the change that raised them is committed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...models.TimeTableEvent) error
}

// TimetableEventDispatcher fans domain events out to a worker queue that refreshes read models.
type TimetableEventDispatcher struct {
	queue   *jobs.Queue[models.TimeTableEvent]
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTimetableEventDispatcher builds the dispatcher and its queue.
func NewTimetableEventDispatcher(cache *CacheService, metrics *MetricsService, cfg jobs.QueueConfig) *TimetableEventDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &TimetableEventDispatcher{cache: cache, metrics: metrics, logger: cfg.Logger}
	d.queue = jobs.NewQueue[models.TimeTableEvent]("timetable-events", d.handle, cfg)
	return d
}

// Start launches the workers.
func (d *TimetableEventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains buffered events and waits for the workers.
func (d *TimetableEventDispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues events in order. Events that cannot be queued are handled inline.
func (d *TimetableEventDispatcher) Publish(ctx context.Context, events ...models.TimeTableEvent) error {
	var errs []error
	for _, event := range events {
		job := jobs.Job[models.TimeTableEvent]{ID: event.ID, Type: string(event.Type), Payload: event}
		err := d.queue.Enqueue(ctx, job)
		if err == nil {
			continue
		}
		d.logger.Warn("event queue unavailable, handling inline", zap.String("event_id", event.ID), zap.Error(err))
		if err := d.handle(context.WithoutCancel(ctx), job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *TimetableEventDispatcher) handle(ctx context.Context, job jobs.Job[models.TimeTableEvent]) error {
	event := job.Payload
	d.logger.Info("timetable event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("section_id", event.SectionID),
		zap.String("entry_id", event.EntryID),
		zap.Strings("teachers", event.AffectedTeacherIDs),
		zap.Int("attempt", job.Attempt),
	)
	if err := d.cache.InvalidateTimetable(ctx, event.SectionID, event.AffectedTeacherIDs...); err != nil {
		d.metrics.RecordEvent(event.Type, "failed")
		return err
	}
	d.metrics.RecordEvent(event.Type, "handled")
	return nil
}
