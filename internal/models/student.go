package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Names          string    `db:"names" json:"names"`
	FatherLastName string    `db:"father_last_name" json:"father_last_name"`
	MotherLastName string    `db:"mother_last_name" json:"mother_last_name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins given names and both surnames, skipping empty parts.
func (s *Student) FullName() string {
	return joinNameParts(s.Names, s.FatherLastName, s.MotherLastName)
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
