package models

import "time"

// Classroom represents a section of students with an optional tutor teacher.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Degree    string    `db:"degree" json:"degree"`
	TutorID   *string   `db:"tutor_id" json:"tutor_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomDetail extends Classroom with the tutor's display name.
type ClassroomDetail struct {
	Classroom
	TutorName *string `db:"tutor_name" json:"tutor_name,omitempty"`
}

// ClassroomFilter defines filter criteria for listing classrooms.
type ClassroomFilter struct {
	Level     string
	Degree    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
