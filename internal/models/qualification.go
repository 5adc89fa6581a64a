package models

import "time"

// Qualification is one discrete grading event tied to an enrollment.
// EnrollmentID is nullable: orphaned records are tolerated but cannot be
// deleted through the teacher endpoints.
type Qualification struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Grade        *string   `db:"grade" json:"grade,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// Eagerly loaded relation; nil when not requested.
	Teacher *Teacher `db:"-" json:"teacher,omitempty"`
}
