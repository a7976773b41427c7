package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaitingList EnrollmentStatus = "WAITING_LIST"
	EnrollmentStatusWithdrawn   EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusCompleted   EnrollmentStatus = "COMPLETED"
)

// Terminal reports whether the status permits no further transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusWithdrawn || s == EnrollmentStatusCompleted
}

// Enrollment captures a student's relationship to a group over time.
// WaitingPosition is set iff the enrollment sits on the waiting list;
// positions within a group are contiguous starting at 1.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	GroupID         string           `db:"group_id" json:"group_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	WaitingPosition *int             `db:"waiting_position" json:"waiting_position,omitempty"`
	EnrolledAt      time.Time        `db:"enrolled_at" json:"enrolled_at"`
	WithdrawnAt     *time.Time       `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	PromotedAt      *time.Time       `db:"promoted_at" json:"promoted_at,omitempty"`
}

// AdmissionDecision is the capacity gate's verdict for a new enrollment.
// Position is populated only for waiting-list admissions.
type AdmissionDecision struct {
	Status   EnrollmentStatus `json:"status"`
	Position *int             `json:"position,omitempty"`
}
