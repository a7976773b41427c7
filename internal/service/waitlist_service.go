package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ExistsActiveOrWaiting(ctx context.Context, studentID, groupID string) (bool, error)
	CountByGroupAndStatus(ctx context.Context, groupID string, status models.EnrollmentStatus) (int, error)
	FindWaitingList(ctx context.Context, groupID string) ([]models.Enrollment, error)
	FindFirstWaiting(ctx context.Context, groupID string) (*models.Enrollment, error)
	FindByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.Enrollment, error)
	MarkWithdrawn(ctx context.Context, id string, withdrawnAt time.Time) error
	MarkPromoted(ctx context.Context, id string, promotedAt time.Time) error
	RenumberPositionsAfter(ctx context.Context, groupID string, position int) error
}

// PromotionNotifier receives promotion events for delivery by an
// external collaborator. Delivery failures never fail the promotion.
type PromotionNotifier interface {
	NotifyPromoted(ctx context.Context, enrollment models.Enrollment)
}

// WaitlistService owns the FIFO ordering contract of each group's
// waiting list: listing, voluntary departure, promotion and position
// renumbering.
type WaitlistService struct {
	repo     enrollmentStore
	groups   groupReader
	locks    *GroupLocks
	cache    *CacheService
	metrics  *MetricsService
	notifier PromotionNotifier
	logger   *zap.Logger
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(repo enrollmentStore, groups groupReader, locks *GroupLocks, cache *CacheService, metrics *MetricsService, notifier PromotionNotifier, logger *zap.Logger) *WaitlistService {
	if locks == nil {
		locks = NewGroupLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{repo: repo, groups: groups, locks: locks, cache: cache, metrics: metrics, notifier: notifier, logger: logger}
}

func waitlistCacheKey(groupID string) string {
	return fmt.Sprintf("waitlist:%s", groupID)
}

func occupancyCacheKey(groupID string) string {
	return fmt.Sprintf("occupancy:%s", groupID)
}

// invalidateGroup drops cached snapshots for the group. It runs inside
// the same locked section as the mutation that made them stale.
func (s *WaitlistService) invalidateGroup(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, waitlistCacheKey(groupID))
	_ = s.cache.Invalidate(ctx, occupancyCacheKey(groupID))
}

// ListByGroup returns the group's waiting list ascending by position.
func (s *WaitlistService) ListByGroup(ctx context.Context, groupID string) ([]models.Enrollment, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	key := waitlistCacheKey(groupID)
	if s.cache != nil {
		var cached []models.Enrollment
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	enrollments, err := s.repo.FindWaitingList(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waiting enrollments")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, enrollments, 0)
	}
	return enrollments, nil
}

// ListByStudent returns every waiting-list entry the student currently
// holds across groups.
func (s *WaitlistService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.FindByStudentAndStatus(ctx, studentID, models.EnrollmentStatusWaitingList)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student waiting entries")
	}
	return enrollments, nil
}

// GetQueuePosition returns the waiting position for the enrollment, or
// -1 when the enrollment is not on a waiting list.
func (s *WaitlistService) GetQueuePosition(ctx context.Context, enrollmentID string) (int, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusWaitingList {
		return -1, nil
	}
	if enrollment.WaitingPosition == nil {
		return 0, s.missingPosition(enrollment)
	}
	return *enrollment.WaitingPosition, nil
}

// Leave removes a waiting enrollment from the queue and closes the
// position gap. Active enrollments must go through withdraw instead.
func (s *WaitlistService) Leave(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	unlock := s.locks.Lock(enrollment.GroupID)
	defer unlock()

	// Re-read under the lock: the entry may have been promoted or
	// withdrawn while we waited.
	enrollment, err = s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusWaitingList {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not on the waiting list")
	}
	if enrollment.WaitingPosition == nil {
		return nil, s.missingPosition(enrollment)
	}

	removedPosition := *enrollment.WaitingPosition
	now := time.Now().UTC()
	if err := s.repo.MarkWithdrawn(ctx, enrollment.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	if err := s.repo.RenumberPositionsAfter(ctx, enrollment.GroupID, removedPosition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber waiting positions")
	}
	s.invalidateGroup(ctx, enrollment.GroupID)
	if s.metrics != nil {
		s.metrics.RecordQueueLeave()
	}

	enrollment.Status = models.EnrollmentStatusWithdrawn
	enrollment.WaitingPosition = nil
	enrollment.WithdrawnAt = &now
	s.logger.Info("left waiting list",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("group_id", enrollment.GroupID),
		zap.Int("position", removedPosition))
	return enrollment, nil
}

// PromoteNext promotes the head of the group's waiting list. It
// performs no capacity check of its own: callers invoke it only after a
// seat has genuinely been freed. Returns nil when the list is empty.
func (s *WaitlistService) PromoteNext(ctx context.Context, groupID string) (*models.Enrollment, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()
	promoted, err := s.promoteNextLocked(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.invalidateGroup(ctx, groupID)
	return promoted, nil
}

// DrainQueue promotes waiters while seats remain, typically after an
// administrative capacity increase. Unlike the single-promotion cascade
// inside withdraw, this loops until the group is full or the list is
// empty, and returns the number of promotions applied.
func (s *WaitlistService) DrainQueue(ctx context.Context, groupID string) (int, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	promoted := 0
	for {
		active, err := s.repo.CountByGroupAndStatus(ctx, groupID, models.EnrollmentStatusActive)
		if err != nil {
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
		}
		if active >= group.Capacity {
			break
		}
		next, err := s.promoteNextLocked(ctx, groupID)
		if err != nil {
			return promoted, err
		}
		if next == nil {
			break
		}
		promoted++
	}
	if promoted > 0 {
		s.invalidateGroup(ctx, groupID)
	}
	s.logger.Info("waiting list drained", zap.String("group_id", groupID), zap.Int("promoted", promoted))
	return promoted, nil
}

// promoteNextLocked moves the minimum-position waiter to ACTIVE and
// renumbers the remainder. The caller must hold the group lock. Returns
// nil when the waiting list is empty.
func (s *WaitlistService) promoteNextLocked(ctx context.Context, groupID string) (*models.Enrollment, error) {
	next, err := s.repo.FindFirstWaiting(ctx, groupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waiting list head")
	}
	if next.WaitingPosition == nil {
		return nil, s.missingPosition(next)
	}

	promotedPosition := *next.WaitingPosition
	now := time.Now().UTC()
	if err := s.repo.MarkPromoted(ctx, next.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
	}
	if err := s.repo.RenumberPositionsAfter(ctx, groupID, promotedPosition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber waiting positions")
	}

	next.Status = models.EnrollmentStatusActive
	next.WaitingPosition = nil
	next.PromotedAt = &now
	if s.metrics != nil {
		s.metrics.RecordPromotion()
	}
	if s.notifier != nil {
		s.notifier.NotifyPromoted(ctx, *next)
	}
	s.logger.Info("promoted from waiting list",
		zap.String("enrollment_id", next.ID),
		zap.String("group_id", groupID),
		zap.Int("position", promotedPosition))
	return next, nil
}

// missingPosition reports a waiting enrollment without a position. This
// is unreachable under correct concurrency control and is treated as an
// internal-consistency failure rather than silently repaired.
func (s *WaitlistService) missingPosition(enrollment *models.Enrollment) error {
	s.logger.Error("waiting enrollment has no position",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("group_id", enrollment.GroupID))
	return appErrors.Clone(appErrors.ErrInternal, "waiting enrollment missing position")
}
