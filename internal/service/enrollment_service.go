package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	GroupID   string `json:"group_id" validate:"required"`
}

// ChangeGroupRequest describes a group change payload.
type ChangeGroupRequest struct {
	TargetGroupID string `json:"target_group_id" validate:"required"`
}

// EnrollmentService is the entry point of the admission state machine.
// It gates new admissions on capacity, cascades a single promotion per
// freed seat, and keeps per-(student,group) uniqueness among
// non-terminal enrollments. Every compound operation runs under the
// owning group's lock.
type EnrollmentService struct {
	repo      enrollmentStore
	groups    groupReader
	gate      *CapacityGate
	waitlist  *WaitlistService
	locks     *GroupLocks
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The lock registry
// must be the same instance the waitlist service uses so that admission
// and waiting-list bookkeeping serialise against each other.
func NewEnrollmentService(repo enrollmentStore, groups groupReader, gate *CapacityGate, waitlist *WaitlistService, locks *GroupLocks, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewGroupLocks()
	}
	return &EnrollmentService{repo: repo, groups: groups, gate: gate, waitlist: waitlist, locks: locks, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

func (s *EnrollmentService) invalidateGroup(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, waitlistCacheKey(groupID))
	_ = s.cache.Invalidate(ctx, occupancyCacheKey(groupID))
}

// Enroll admits a student into a group, either onto a free seat or onto
// the back of the waiting list. The capacity read and the enrollment
// write happen under the group lock so two concurrent admissions cannot
// both take the last seat.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.groups.FindByID(ctx, req.GroupID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	unlock := s.locks.Lock(req.GroupID)
	defer unlock()

	exists, err := s.repo.ExistsActiveOrWaiting(ctx, req.StudentID, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}

	decision, err := s.gate.Decide(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:       req.StudentID,
		GroupID:         req.GroupID,
		Status:          decision.Status,
		WaitingPosition: decision.Position,
		EnrolledAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.invalidateGroup(ctx, req.GroupID)
	if s.metrics != nil {
		s.metrics.RecordAdmission(string(decision.Status))
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("group_id", req.GroupID),
		zap.String("status", string(decision.Status)))
	return enrollment, nil
}

// Withdraw ends an enrollment. Withdrawing an ACTIVE enrollment frees
// one seat and cascades exactly one promotion; withdrawing a waiting
// enrollment closes its position gap and frees no seat. Terminal
// enrollments cannot be withdrawn again.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	unlock := s.locks.Lock(enrollment.GroupID)
	defer unlock()

	enrollment, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot withdraw an enrollment in a terminal state")
	}

	now := time.Now().UTC()
	wasActive := enrollment.Status == models.EnrollmentStatusActive
	var removedPosition int
	if !wasActive {
		if enrollment.WaitingPosition == nil {
			return nil, s.waitlist.missingPosition(enrollment)
		}
		removedPosition = *enrollment.WaitingPosition
	}

	if err := s.repo.MarkWithdrawn(ctx, enrollment.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}

	if wasActive {
		// One withdrawal frees exactly one seat: cascade at most one
		// promotion, inside the same locked section.
		if _, err := s.waitlist.promoteNextLocked(ctx, enrollment.GroupID); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.RenumberPositionsAfter(ctx, enrollment.GroupID, removedPosition); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber waiting positions")
		}
	}

	s.invalidateGroup(ctx, enrollment.GroupID)
	if s.metrics != nil {
		s.metrics.RecordWithdrawal()
	}

	enrollment.Status = models.EnrollmentStatusWithdrawn
	enrollment.WaitingPosition = nil
	enrollment.WithdrawnAt = &now
	s.logger.Info("enrollment withdrawn",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("group_id", enrollment.GroupID),
		zap.Bool("was_active", wasActive))
	return enrollment, nil
}

// ChangeGroup moves an ACTIVE enrollment to a group with a free seat.
// It never enqueues: a full target is rejected with GroupFull. The new
// enrollment is created before the old one is withdrawn so a mid-flight
// failure cannot leave the student without any active enrollment; the
// freed seat in the old group then cascades one promotion.
func (s *EnrollmentService) ChangeGroup(ctx context.Context, id string, req ChangeGroupRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group change payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	target, err := s.groups.FindByID(ctx, req.TargetGroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target group")
	}
	if enrollment.GroupID == req.TargetGroupID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already in target group")
	}

	unlock := s.locks.LockPair(enrollment.GroupID, req.TargetGroupID)
	defer unlock()

	enrollment, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only active enrollments may change group")
	}

	exists, err := s.repo.ExistsActiveOrWaiting(ctx, enrollment.StudentID, req.TargetGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already enrolled in target group")
	}

	active, err := s.repo.CountByGroupAndStatus(ctx, req.TargetGroupID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count target enrollments")
	}
	if active >= target.Capacity {
		return nil, appErrors.Clone(appErrors.ErrGroupFull, "")
	}

	now := time.Now().UTC()
	replacement := &models.Enrollment{
		StudentID:  enrollment.StudentID,
		GroupID:    req.TargetGroupID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: now,
	}
	if err := s.repo.Create(ctx, replacement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment in target group")
	}
	if err := s.repo.MarkWithdrawn(ctx, enrollment.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw previous enrollment")
	}
	if _, err := s.waitlist.promoteNextLocked(ctx, enrollment.GroupID); err != nil {
		return nil, err
	}

	s.invalidateGroup(ctx, enrollment.GroupID)
	s.invalidateGroup(ctx, req.TargetGroupID)
	if s.metrics != nil {
		s.metrics.RecordAdmission(string(models.EnrollmentStatusActive))
		s.metrics.RecordWithdrawal()
	}
	s.logger.Info("enrollment changed group",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("replacement_id", replacement.ID),
		zap.String("from_group", enrollment.GroupID),
		zap.String("to_group", req.TargetGroupID))
	return replacement, nil
}
