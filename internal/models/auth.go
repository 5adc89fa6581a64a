package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        UserRole `json:"role"`
	TeacherID   *string  `json:"teacher_id,omitempty"`
	StudentID   *string  `json:"student_id,omitempty"`
	Permissions []string `json:"permissions"`
}

// JWTClaims represents the JWT payload for access tokens. TeacherID and
// StudentID are populated when the user is linked to one of those entities.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	TeacherID   *string  `json:"teacher_id,omitempty"`
	StudentID   *string  `json:"student_id,omitempty"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the claims carry the named permission.
func (c *JWTClaims) HasPermission(name string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// IsTeacher reports whether the claims belong to the given teacher.
func (c *JWTClaims) IsTeacher(teacherID string) bool {
	return c != nil && c.TeacherID != nil && *c.TeacherID == teacherID
}

// IsStudent reports whether the claims belong to the given student.
func (c *JWTClaims) IsStudent(studentID string) bool {
	return c != nil && c.StudentID != nil && *c.StudentID == studentID
}
