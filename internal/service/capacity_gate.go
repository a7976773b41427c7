package service

import (
	"context"
	"database/sql"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type admissionCounter interface {
	CountByGroupAndStatus(ctx context.Context, groupID string, status models.EnrollmentStatus) (int, error)
}

// CapacityGate decides whether a new admission becomes ACTIVE or joins
// the waiting list. The decision is purely advisory: callers must hold
// the group lock from the read through the commit of the resulting
// enrollment, otherwise two admissions can both observe a free seat.
type CapacityGate struct {
	groups      groupReader
	enrollments admissionCounter
}

// NewCapacityGate constructs the gate.
func NewCapacityGate(groups groupReader, enrollments admissionCounter) *CapacityGate {
	return &CapacityGate{groups: groups, enrollments: enrollments}
}

// Decide computes the admission outcome for the group. Waiting-list
// admissions receive position = current waiting count + 1.
func (g *CapacityGate) Decide(ctx context.Context, groupID string) (*models.AdmissionDecision, error) {
	group, err := g.groups.FindByID(ctx, groupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	active, err := g.enrollments.CountByGroupAndStatus(ctx, groupID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
	}
	if active < group.Capacity {
		return &models.AdmissionDecision{Status: models.EnrollmentStatusActive}, nil
	}

	waiting, err := g.enrollments.CountByGroupAndStatus(ctx, groupID, models.EnrollmentStatusWaitingList)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waiting enrollments")
	}
	position := waiting + 1
	return &models.AdmissionDecision{Status: models.EnrollmentStatusWaitingList, Position: &position}, nil
}
