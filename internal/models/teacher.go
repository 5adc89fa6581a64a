package models

import (
	"strings"
	"time"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Names          string    `db:"names" json:"names"`
	FatherLastName string    `db:"father_last_name" json:"father_last_name"`
	MotherLastName string    `db:"mother_last_name" json:"mother_last_name"`
	Email          string    `db:"email" json:"email"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins given names and both surnames, skipping empty parts.
func (t *Teacher) FullName() string {
	return joinNameParts(t.Names, t.FatherLastName, t.MotherLastName)
}

// ShortName joins given names and the paternal surname only, the form the
// roster uses for display.
func (t *Teacher) ShortName() string {
	return joinNameParts(t.Names, t.FatherLastName)
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func joinNameParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}
