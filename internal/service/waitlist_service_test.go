package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

// recordingSink collects promotion notifications for assertion.
type recordingSink struct {
	mu     sync.Mutex
	events []models.Enrollment
}

func (r *recordingSink) NotifyPromoted(ctx context.Context, enrollment models.Enrollment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, enrollment)
}

func seedWaitlist(t *testing.T, svc *EnrollmentService, groupID string, students ...string) []*models.Enrollment {
	t.Helper()
	out := make([]*models.Enrollment, 0, len(students))
	for _, s := range students {
		e, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: s, GroupID: groupID})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestLeaveClosesPositionGapPreservingOrder(t *testing.T) {
	enrollments, waitlist, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	// One active seat holder, three waiters at positions 1..3.
	seeded := seedWaitlist(t, enrollments, "g1", "sA", "sB", "sC", "sD")

	middle := seeded[2] // sC at position 2
	require.Equal(t, 2, *middle.WaitingPosition)

	left, err := waitlist.Leave(ctx, middle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, left.Status)
	assert.Nil(t, left.WaitingPosition)
	require.NotNil(t, left.WithdrawnAt)

	assert.Equal(t, map[string]int{"sB": 1, "sD": 2}, store.positions("g1"))

	list, err := waitlist.ListByGroup(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sB", list[0].StudentID)
	assert.Equal(t, "sD", list[1].StudentID)
}

func TestLeaveRejectsNonWaitingEnrollment(t *testing.T) {
	enrollments, waitlist, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})

	seeded := seedWaitlist(t, enrollments, "g1", "sA")
	_, err := waitlist.Leave(context.Background(), seeded[0].ID)
	assert.Equal(t, appErrors.ErrInvalidState.Code, errCode(t, err))
}

func TestLeaveUnknownEnrollment(t *testing.T) {
	_, waitlist, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})

	_, err := waitlist.Leave(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestGetQueuePosition(t *testing.T) {
	enrollments, waitlist, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	seeded := seedWaitlist(t, enrollments, "g1", "sA", "sB", "sC")

	pos, err := waitlist.GetQueuePosition(ctx, seeded[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = waitlist.GetQueuePosition(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, -1, pos, "active enrollments report -1")

	_, err = waitlist.GetQueuePosition(ctx, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestPromoteNextEmptyListReturnsNil(t *testing.T) {
	_, waitlist, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})

	promoted, err := waitlist.PromoteNext(context.Background(), "g1")
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestPromoteNextTakesHeadAndRenumbers(t *testing.T) {
	enrollments, waitlist, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	seedWaitlist(t, enrollments, "g1", "sA", "sB", "sC")

	promoted, err := waitlist.PromoteNext(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "sB", promoted.StudentID)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Nil(t, promoted.WaitingPosition)
	require.NotNil(t, promoted.PromotedAt)

	assert.Equal(t, map[string]int{"sC": 1}, store.positions("g1"))
}

func TestPromoteNextUnknownGroup(t *testing.T) {
	_, waitlist, _ := newTestServices(nil)

	_, err := waitlist.PromoteNext(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestDrainQueueFillsFreedCapacity(t *testing.T) {
	groups := map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}}
	enrollments, waitlist, store := newTestServices(groups)
	ctx := context.Background()

	seedWaitlist(t, enrollments, "g1", "sA", "sB", "sC", "sD")

	// Capacity raised from 1 to 3: two seats open up.
	groups["g1"].Capacity = 3

	promoted, err := waitlist.DrainQueue(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	active, err := store.CountByGroupAndStatus(ctx, "g1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 3, active)
	assert.Equal(t, map[string]int{"sD": 1}, store.positions("g1"))
}

func TestDrainQueueStopsWhenListEmpties(t *testing.T) {
	groups := map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}}
	enrollments, waitlist, store := newTestServices(groups)
	ctx := context.Background()

	seedWaitlist(t, enrollments, "g1", "sA", "sB")
	groups["g1"].Capacity = 10

	promoted, err := waitlist.DrainQueue(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	active, err := store.CountByGroupAndStatus(ctx, "g1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 2, active)
	assert.Empty(t, store.positions("g1"))
}

func TestDrainQueueNoFreeSeats(t *testing.T) {
	enrollments, waitlist, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})

	seedWaitlist(t, enrollments, "g1", "sA", "sB")

	promoted, err := waitlist.DrainQueue(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, promoted)
}

func TestListByGroupUnknownGroup(t *testing.T) {
	_, waitlist, _ := newTestServices(nil)

	_, err := waitlist.ListByGroup(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestListByStudentSpansGroups(t *testing.T) {
	enrollments, waitlist, _ := newTestServices(map[string]*models.Group{
		"g1": {ID: "g1", Capacity: 0},
		"g2": {ID: "g2", Capacity: 0},
	})
	ctx := context.Background()

	seedWaitlist(t, enrollments, "g1", "sA")
	seedWaitlist(t, enrollments, "g2", "sA")

	entries, err := waitlist.ListByStudent(ctx, "sA")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.EnrollmentStatusWaitingList, e.Status)
	}
}

func TestPromotionNotifierReceivesEvent(t *testing.T) {
	store := newMemStore()
	reader := &mockGroupReader{groups: map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}}}
	locks := NewGroupLocks()
	sink := &recordingSink{}
	waitlist := NewWaitlistService(store, reader, locks, nil, nil, sink, nil)
	gate := NewCapacityGate(reader, store)
	enrollments := NewEnrollmentService(store, reader, gate, waitlist, locks, nil, nil, nil, nil)

	ctx := context.Background()
	seeded := seedWaitlist(t, enrollments, "g1", "sA", "sB")

	_, err := enrollments.Withdraw(ctx, seeded[0].ID)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, seeded[1].ID, sink.events[0].ID)
	assert.Equal(t, models.EnrollmentStatusActive, sink.events[0].Status)
}
