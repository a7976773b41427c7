package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studygrouphq/enrollment-api/internal/models"
	"github.com/studygrouphq/enrollment-api/pkg/jobs"
)

// PromotionEvent is the payload handed to the notification collaborator
// when a waiting-list entry is promoted. Delivery (email, push, ...)
// happens outside this service.
type PromotionEvent struct {
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	GroupID      string    `json:"group_id"`
	PromotedAt   time.Time `json:"promoted_at"`
}

// PromotionSink consumes promotion events.
type PromotionSink interface {
	Deliver(ctx context.Context, event PromotionEvent) error
}

// LogSink is the default sink: it records the event and nothing else.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the promotion event.
func (s *LogSink) Deliver(_ context.Context, event PromotionEvent) error {
	s.logger.Info("promotion notification",
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("student_id", event.StudentID),
		zap.String("group_id", event.GroupID),
		zap.Time("promoted_at", event.PromotedAt))
	return nil
}

// PromotionDispatcher pushes promotion events through a background
// worker queue so the enrollment state machine never blocks on the
// notification collaborator.
type PromotionDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewPromotionDispatcher builds a dispatcher feeding the given sink.
func NewPromotionDispatcher(sink PromotionSink, cfg jobs.QueueConfig, logger *zap.Logger) *PromotionDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(PromotionEvent)
		if !ok {
			logger.Error("unexpected promotion job payload", zap.String("job_id", job.ID))
			return nil
		}
		return sink.Deliver(ctx, event)
	}
	return &PromotionDispatcher{queue: jobs.NewQueue("promotions", handler, cfg), logger: logger}
}

// Start launches the queue workers.
func (d *PromotionDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the queue workers.
func (d *PromotionDispatcher) Stop() {
	d.queue.Stop()
}

// NotifyPromoted enqueues a promotion event. Errors are logged, never
// surfaced: the promotion itself has already committed.
func (d *PromotionDispatcher) NotifyPromoted(_ context.Context, enrollment models.Enrollment) {
	promotedAt := time.Now().UTC()
	if enrollment.PromotedAt != nil {
		promotedAt = *enrollment.PromotedAt
	}
	event := PromotionEvent{
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		GroupID:      enrollment.GroupID,
		PromotedAt:   promotedAt,
	}
	if err := d.queue.Enqueue(jobs.Job{ID: enrollment.ID, Type: "promotion", Payload: event}); err != nil {
		d.logger.Warn("failed to enqueue promotion notification",
			zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
}
