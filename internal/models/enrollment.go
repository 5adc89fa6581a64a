package models

import (
	"sort"
	"time"
)

// Enrollment is one student's participation in one classroom-subject
// offering. Qualification caches the letter grade of the most recently
// created qualification record; the application keeps it consistent with
// the record history, not the database.
type Enrollment struct {
	ID                 string    `db:"id" json:"id"`
	ClassroomSubjectID string    `db:"classroom_subject_id" json:"classroom_subject_id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	Qualification      *string   `db:"qualification" json:"qualification,omitempty"`
	Status             *string   `db:"status" json:"status,omitempty"`
	Description        *string   `db:"description" json:"description,omitempty"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`

	// Eagerly loaded relations; nil when not requested.
	ClassroomSubject *ClassroomSubject `db:"-" json:"classroom_subject,omitempty"`
	Student          *Student          `db:"-" json:"student,omitempty"`
	Qualifications   []Qualification   `db:"-" json:"qualifications,omitempty"`
}

// RecomputeCurrentGrade derives the denormalized current grade from a record
// history: the grade of the latest record by creation time wins, records
// with a zero timestamp sort oldest, and an empty history yields nil.
func (e *Enrollment) RecomputeCurrentGrade(history []Qualification) *string {
	if len(history) == 0 {
		return nil
	}
	sorted := make([]Qualification, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[len(sorted)-1].Grade
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ClassroomSubjectID string
	StudentID          string
	OnlyActive         bool
	Page               int
	PageSize           int
}
