package models

import "time"

// Group is the capacity-bounded unit students enroll into. Group
// records are owned by an external catalog service; this API reads
// them and derives occupancy from the enrollment set.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GroupOccupancy is a derived snapshot of a group's seat usage. The
// counts are always recomputed from non-terminal enrollments, never
// stored independently.
type GroupOccupancy struct {
	GroupID   string `json:"group_id"`
	Capacity  int    `json:"capacity"`
	Active    int    `json:"active"`
	Waiting   int    `json:"waiting"`
	Available int    `json:"available"`
}
