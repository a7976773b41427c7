package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

// GroupService exposes read-only group inspection. Occupancy is always
// derived from the enrollment set; there is no stored counter to drift.
type GroupService struct {
	groups       groupReader
	enrollments  admissionCounter
	cache        *CacheService
	metrics      *MetricsService
	occupancyTTL time.Duration
}

// NewGroupService constructs GroupService. occupancyTTL bounds how
// stale a cached occupancy snapshot may get; zero falls back to the
// cache default.
func NewGroupService(groups groupReader, enrollments admissionCounter, cache *CacheService, metrics *MetricsService, occupancyTTL time.Duration) *GroupService {
	return &GroupService{groups: groups, enrollments: enrollments, cache: cache, metrics: metrics, occupancyTTL: occupancyTTL}
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Occupancy returns the derived seat usage for a group.
func (s *GroupService) Occupancy(ctx context.Context, id string) (*models.GroupOccupancy, error) {
	key := occupancyCacheKey(id)
	if s.cache != nil {
		var cached models.GroupOccupancy
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.enrollments.CountByGroupAndStatus(ctx, id, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
	}
	waiting, err := s.enrollments.CountByGroupAndStatus(ctx, id, models.EnrollmentStatusWaitingList)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waiting enrollments")
	}

	available := group.Capacity - active
	if available < 0 {
		available = 0
	}
	occupancy := &models.GroupOccupancy{
		GroupID:   group.ID,
		Capacity:  group.Capacity,
		Active:    active,
		Waiting:   waiting,
		Available: available,
	}
	if s.metrics != nil {
		s.metrics.SetWaitlistDepth(group.ID, waiting)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, occupancy, s.occupancyTTL)
	}
	return occupancy, nil
}
