package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studygrouphq/enrollment-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, group_id, status, waiting_position, enrolled_at, withdrawn_at, promoted_at`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, group_id, status, waiting_position, enrolled_at, withdrawn_at, promoted_at)
        VALUES (:id, :student_id, :group_id, :status, :waiting_position, :enrolled_at, :withdrawn_at, :promoted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// ExistsActiveOrWaiting checks whether a non-terminal enrollment exists
// for the (student, group) pair.
func (r *EnrollmentRepository) ExistsActiveOrWaiting(ctx context.Context, studentID, groupID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, groupID, models.EnrollmentStatusActive, models.EnrollmentStatusWaitingList)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check non-terminal enrollment: %w", err)
	}
	return true, nil
}

// CountByGroupAndStatus returns how many enrollments a group holds in
// the given status. Occupancy is always derived through this query,
// never stored as a separate counter.
func (r *EnrollmentRepository) CountByGroupAndStatus(ctx context.Context, groupID string, status models.EnrollmentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE group_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID, status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// FindWaitingList returns a group's waiting list ordered by position.
func (r *EnrollmentRepository) FindWaitingList(ctx context.Context, groupID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE group_id = $1 AND status = $2 ORDER BY waiting_position ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, groupID, models.EnrollmentStatusWaitingList); err != nil {
		return nil, fmt.Errorf("list waiting enrollments: %w", err)
	}
	return enrollments, nil
}

// FindFirstWaiting returns the waiting enrollment with the minimum
// position for the group, or sql.ErrNoRows when the list is empty.
func (r *EnrollmentRepository) FindFirstWaiting(ctx context.Context, groupID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE group_id = $1 AND status = $2 ORDER BY waiting_position ASC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, groupID, models.EnrollmentStatusWaitingList); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndStatus returns a student's enrollments in the given
// status across all groups.
func (r *EnrollmentRepository) FindByStudentAndStatus(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND status = $2 ORDER BY enrolled_at ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, status); err != nil {
		return nil, fmt.Errorf("find student enrollments: %w", err)
	}
	return enrollments, nil
}

// MarkWithdrawn transitions an enrollment to WITHDRAWN, clearing any
// waiting position.
func (r *EnrollmentRepository) MarkWithdrawn(ctx context.Context, id string, withdrawnAt time.Time) error {
	const query = `UPDATE enrollments SET status = $2, waiting_position = NULL, withdrawn_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusWithdrawn, withdrawnAt); err != nil {
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	return nil
}

// MarkPromoted transitions a waiting enrollment to ACTIVE, clearing its
// position and stamping the promotion time.
func (r *EnrollmentRepository) MarkPromoted(ctx context.Context, id string, promotedAt time.Time) error {
	const query = `UPDATE enrollments SET status = $2, waiting_position = NULL, promoted_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusActive, promotedAt); err != nil {
		return fmt.Errorf("promote enrollment: %w", err)
	}
	return nil
}

// RenumberPositionsAfter closes the gap left by a removal or promotion:
// every waiting enrollment of the group with a position greater than
// the removed one is decremented by 1 in a single bulk update.
func (r *EnrollmentRepository) RenumberPositionsAfter(ctx context.Context, groupID string, position int) error {
	const query = `UPDATE enrollments SET waiting_position = waiting_position - 1
        WHERE group_id = $1 AND status = $2 AND waiting_position > $3`
	if _, err := r.db.ExecContext(ctx, query, groupID, models.EnrollmentStatusWaitingList, position); err != nil {
		return fmt.Errorf("renumber waiting positions: %w", err)
	}
	return nil
}
