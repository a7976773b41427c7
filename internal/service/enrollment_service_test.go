package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

// memStore is an in-memory enrollmentStore honouring the same contracts
// as the Postgres repository.
type memStore struct {
	mu          sync.Mutex
	seq         int
	enrollments map[string]*models.Enrollment
}

func newMemStore() *memStore {
	return &memStore{enrollments: make(map[string]*models.Enrollment)}
}

func (m *memStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	return &copy, nil
}

func (m *memStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enrollment.ID == "" {
		m.seq++
		enrollment.ID = fmt.Sprintf("enr-%d", m.seq)
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	copy := *enrollment
	m.enrollments[enrollment.ID] = &copy
	return nil
}

func (m *memStore) ExistsActiveOrWaiting(ctx context.Context, studentID, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.GroupID == groupID && !e.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountByGroupAndStatus(ctx context.Context, groupID string, status models.EnrollmentStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.enrollments {
		if e.GroupID == groupID && e.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memStore) FindWaitingList(ctx context.Context, groupID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.GroupID == groupID && e.Status == models.EnrollmentStatusWaitingList {
			list = append(list, *e)
		}
	}
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			if *list[j].WaitingPosition < *list[i].WaitingPosition {
				list[i], list[j] = list[j], list[i]
			}
		}
	}
	return list, nil
}

func (m *memStore) FindFirstWaiting(ctx context.Context, groupID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first *models.Enrollment
	for _, e := range m.enrollments {
		if e.GroupID != groupID || e.Status != models.EnrollmentStatusWaitingList {
			continue
		}
		if first == nil || *e.WaitingPosition < *first.WaitingPosition {
			first = e
		}
	}
	if first == nil {
		return nil, sql.ErrNoRows
	}
	copy := *first
	return &copy, nil
}

func (m *memStore) FindByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == status {
			list = append(list, *e)
		}
	}
	return list, nil
}

func (m *memStore) MarkWithdrawn(ctx context.Context, id string, withdrawnAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = models.EnrollmentStatusWithdrawn
	e.WaitingPosition = nil
	e.WithdrawnAt = &withdrawnAt
	return nil
}

func (m *memStore) MarkPromoted(ctx context.Context, id string, promotedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = models.EnrollmentStatusActive
	e.WaitingPosition = nil
	e.PromotedAt = &promotedAt
	return nil
}

func (m *memStore) RenumberPositionsAfter(ctx context.Context, groupID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.GroupID == groupID && e.Status == models.EnrollmentStatusWaitingList && *e.WaitingPosition > position {
			next := *e.WaitingPosition - 1
			e.WaitingPosition = &next
		}
	}
	return nil
}

// positions returns the waiting positions of a group keyed by student.
func (m *memStore) positions(groupID string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, e := range m.enrollments {
		if e.GroupID == groupID && e.Status == models.EnrollmentStatusWaitingList {
			out[e.StudentID] = *e.WaitingPosition
		}
	}
	return out
}

func newTestServices(groups map[string]*models.Group) (*EnrollmentService, *WaitlistService, *memStore) {
	store := newMemStore()
	reader := &mockGroupReader{groups: groups}
	locks := NewGroupLocks()
	waitlist := NewWaitlistService(store, reader, locks, nil, nil, nil, zap.NewNop())
	gate := NewCapacityGate(reader, store)
	enrollments := NewEnrollmentService(store, reader, gate, waitlist, locks, nil, nil, validator.New(), zap.NewNop())
	return enrollments, waitlist, store
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestEnrollAdmitsUntilCapacityThenQueues(t *testing.T) {
	svc, _, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 2}})
	ctx := context.Background()

	first, err := svc.Enroll(ctx, EnrollRequest{StudentID: "s1", GroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, first.Status)
	assert.Nil(t, first.WaitingPosition)
	assert.False(t, first.EnrolledAt.IsZero())

	second, err := svc.Enroll(ctx, EnrollRequest{StudentID: "s2", GroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, second.Status)

	third, err := svc.Enroll(ctx, EnrollRequest{StudentID: "s3", GroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitingList, third.Status)
	require.NotNil(t, third.WaitingPosition)
	assert.Equal(t, 1, *third.WaitingPosition)

	fourth, err := svc.Enroll(ctx, EnrollRequest{StudentID: "s4", GroupID: "g1"})
	require.NoError(t, err)
	require.NotNil(t, fourth.WaitingPosition)
	assert.Equal(t, 2, *fourth.WaitingPosition)
}

func TestEnrollUnknownGroup(t *testing.T) {
	svc, _, _ := newTestServices(nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", GroupID: "missing"})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	svc, _, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 5}})
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{StudentID: "s1", GroupID: "g1"})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "s1", GroupID: "g1"})
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, errCode(t, err))
	assert.Len(t, store.enrollments, 1)
}

func TestWithdrawActivePromotesHeadOfQueue(t *testing.T) {
	svc, _, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	a, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, a.Status)

	b, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sB", GroupID: "g1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitingList, b.Status)
	require.Equal(t, 1, *b.WaitingPosition)

	withdrawn, err := svc.Withdraw(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, withdrawn.Status)
	require.NotNil(t, withdrawn.WithdrawnAt)

	promoted, err := svc.repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Nil(t, promoted.WaitingPosition)
	require.NotNil(t, promoted.PromotedAt)
}

func TestWithdrawWaitingRenumbersWithoutPromotion(t *testing.T) {
	svc, _, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	w1, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sB", GroupID: "g1"})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "sC", GroupID: "g1"})
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, w1.ID)
	require.NoError(t, err)

	positions := store.positions("g1")
	assert.Equal(t, map[string]int{"sC": 1}, positions)

	active, err := store.CountByGroupAndStatus(ctx, "g1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestWithdrawTerminalFailsAndLeavesStateUnchanged(t *testing.T) {
	svc, _, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})
	ctx := context.Background()

	a, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, a.ID)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, a.ID)
	assert.Equal(t, appErrors.ErrInvalidState.Code, errCode(t, err))

	stored, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, stored.Status)
}

func TestWithdrawUnknownEnrollment(t *testing.T) {
	svc, _, _ := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: 1}})

	_, err := svc.Withdraw(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestChangeGroupRejectsFullTarget(t *testing.T) {
	svc, _, store := newTestServices(map[string]*models.Group{
		"g1": {ID: "g1", Capacity: 1},
		"g2": {ID: "g2", Capacity: 1},
	})
	ctx := context.Background()

	e, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "sB", GroupID: "g2"})
	require.NoError(t, err)

	_, err = svc.ChangeGroup(ctx, e.ID, ChangeGroupRequest{TargetGroupID: "g2"})
	assert.Equal(t, appErrors.ErrGroupFull.Code, errCode(t, err))

	stored, err := store.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
	assert.Equal(t, "g1", stored.GroupID)
}

func TestChangeGroupMovesAndCascadesPromotion(t *testing.T) {
	svc, _, store := newTestServices(map[string]*models.Group{
		"g1": {ID: "g1", Capacity: 1},
		"g2": {ID: "g2", Capacity: 1},
	})
	ctx := context.Background()

	e, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	waiter, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sW", GroupID: "g1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitingList, waiter.Status)

	replacement, err := svc.ChangeGroup(ctx, e.ID, ChangeGroupRequest{TargetGroupID: "g2"})
	require.NoError(t, err)
	assert.Equal(t, "g2", replacement.GroupID)
	assert.Equal(t, models.EnrollmentStatusActive, replacement.Status)
	assert.Equal(t, "sA", replacement.StudentID)

	old, err := store.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, old.Status)

	promoted, err := store.FindByID(ctx, waiter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Nil(t, promoted.WaitingPosition)
}

func TestChangeGroupRequiresActiveState(t *testing.T) {
	svc, _, _ := newTestServices(map[string]*models.Group{
		"g1": {ID: "g1", Capacity: 1},
		"g2": {ID: "g2", Capacity: 1},
	})
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	waiter, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sB", GroupID: "g1"})
	require.NoError(t, err)

	_, err = svc.ChangeGroup(ctx, waiter.ID, ChangeGroupRequest{TargetGroupID: "g2"})
	assert.Equal(t, appErrors.ErrInvalidState.Code, errCode(t, err))
}

func TestChangeGroupRejectsDuplicateInTarget(t *testing.T) {
	svc, _, _ := newTestServices(map[string]*models.Group{
		"g1": {ID: "g1", Capacity: 2},
		"g2": {ID: "g2", Capacity: 2},
	})
	ctx := context.Background()

	e, err := svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g1"})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "sA", GroupID: "g2"})
	require.NoError(t, err)

	_, err = svc.ChangeGroup(ctx, e.ID, ChangeGroupRequest{TargetGroupID: "g2"})
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, errCode(t, err))
}

func TestConcurrentEnrollmentsNeverExceedCapacity(t *testing.T) {
	const capacity = 3
	svc, _, store := newTestServices(map[string]*models.Group{"g1": {ID: "g1", Capacity: capacity}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Enroll(ctx, EnrollRequest{StudentID: fmt.Sprintf("s%d", n), GroupID: "g1"})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	active, err := store.CountByGroupAndStatus(ctx, "g1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, capacity, active)

	waiting, err := store.FindWaitingList(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, waiting, 20-capacity)
	for i, e := range waiting {
		assert.Equal(t, i+1, *e.WaitingPosition)
	}
}
