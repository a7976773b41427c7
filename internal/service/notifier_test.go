package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studygrouphq/enrollment-api/internal/models"
	"github.com/studygrouphq/enrollment-api/pkg/jobs"
)

type channelSink struct {
	events chan PromotionEvent
}

func (s *channelSink) Deliver(_ context.Context, event PromotionEvent) error {
	s.events <- event
	return nil
}

func TestPromotionDispatcherDeliversEvent(t *testing.T) {
	sink := &channelSink{events: make(chan PromotionEvent, 1)}
	dispatcher := NewPromotionDispatcher(sink, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	promotedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	dispatcher.NotifyPromoted(context.Background(), models.Enrollment{
		ID:         "enr-1",
		StudentID:  "sA",
		GroupID:    "g1",
		Status:     models.EnrollmentStatusActive,
		PromotedAt: &promotedAt,
	})

	select {
	case event := <-sink.events:
		assert.Equal(t, "enr-1", event.EnrollmentID)
		assert.Equal(t, "sA", event.StudentID)
		assert.Equal(t, "g1", event.GroupID)
		assert.Equal(t, promotedAt, event.PromotedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("promotion event never delivered")
	}
}

func TestPromotionDispatcherNotStarted(t *testing.T) {
	sink := &channelSink{events: make(chan PromotionEvent, 1)}
	dispatcher := NewPromotionDispatcher(sink, jobs.QueueConfig{}, nil)

	// Enqueue failure is swallowed; the promotion already committed.
	dispatcher.NotifyPromoted(context.Background(), models.Enrollment{ID: "enr-1"})

	require.Empty(t, sink.events)
}
