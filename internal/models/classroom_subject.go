package models

import "time"

// ClassroomSubject is the offering of one subject within one classroom,
// taught by a primary teacher with an optional substitute. Both anchor
// grading authorization.
type ClassroomSubject struct {
	ID                  string    `db:"id" json:"id"`
	ClassroomID         string    `db:"classroom_id" json:"classroom_id"`
	SubjectID           string    `db:"subject_id" json:"subject_id"`
	TeacherID           *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	SubstituteTeacherID *string   `db:"substitute_teacher_id" json:"substitute_teacher_id,omitempty"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`

	// Eagerly loaded relations; nil when not requested.
	Subject           *Subject     `db:"-" json:"subject,omitempty"`
	Classroom         *Classroom   `db:"-" json:"classroom,omitempty"`
	Teacher           *Teacher     `db:"-" json:"teacher,omitempty"`
	SubstituteTeacher *Teacher     `db:"-" json:"substitute_teacher,omitempty"`
	Enrollments       []Enrollment `db:"-" json:"enrollments,omitempty"`
}

// AuthorizesTeacher reports whether the given teacher may record or delete
// grades for enrollments under this offering: only the primary or the
// substitute teacher qualifies.
func (cs *ClassroomSubject) AuthorizesTeacher(teacherID string) bool {
	if cs == nil || teacherID == "" {
		return false
	}
	if cs.TeacherID != nil && *cs.TeacherID == teacherID {
		return true
	}
	return cs.SubstituteTeacherID != nil && *cs.SubstituteTeacherID == teacherID
}

// ClassroomSubjectFilter scopes offering queries.
type ClassroomSubjectFilter struct {
	ClassroomID string
	SubjectID   string
	TeacherID   string
	OnlyActive  bool
}
