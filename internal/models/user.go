package models

import "time"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// Permission names granted through roles and embedded in access tokens.
const (
	PermManageUsers          = "manage_users"
	PermManageQualifications = "manage_qualifications"
	PermManageClassrooms     = "manage_classrooms"
	PermViewTeachers         = "view_teachers"
	PermViewStudents         = "view_students"
)

// RolePermissions maps each role onto its permission set.
var RolePermissions = map[UserRole][]string{
	RoleSuperAdmin: {PermManageUsers, PermManageQualifications, PermManageClassrooms, PermViewTeachers, PermViewStudents},
	RoleAdmin:      {PermManageUsers, PermManageQualifications, PermManageClassrooms, PermViewTeachers, PermViewStudents},
	RoleTeacher:    {PermViewStudents},
	RoleStudent:    {},
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
