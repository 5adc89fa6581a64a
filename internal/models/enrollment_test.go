package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRecomputeCurrentGradeEmptyHistory(t *testing.T) {
	e := &Enrollment{ID: "e1"}
	assert.Nil(t, e.RecomputeCurrentGrade(nil))
	assert.Nil(t, e.RecomputeCurrentGrade([]Qualification{}))
}

func TestRecomputeCurrentGradeLatestWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []Qualification{
		{ID: "q2", Grade: strPtr("B"), CreatedAt: base.Add(time.Hour)},
		{ID: "q1", Grade: strPtr("A"), CreatedAt: base},
		{ID: "q3", Grade: strPtr("AD"), CreatedAt: base.Add(2 * time.Hour)},
	}

	e := &Enrollment{ID: "e1"}
	grade := e.RecomputeCurrentGrade(history)
	require.NotNil(t, grade)
	assert.Equal(t, "AD", *grade)
}

func TestRecomputeCurrentGradeZeroTimestampSortsOldest(t *testing.T) {
	history := []Qualification{
		{ID: "q-old", Grade: strPtr("D"), CreatedAt: time.Time{}},
		{ID: "q-new", Grade: strPtr("B"), CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	e := &Enrollment{ID: "e1"}
	grade := e.RecomputeCurrentGrade(history)
	require.NotNil(t, grade)
	assert.Equal(t, "B", *grade)
}

func TestRecomputeCurrentGradeDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	history := []Qualification{
		{ID: "q2", Grade: strPtr("C"), CreatedAt: base.Add(time.Hour)},
		{ID: "q1", Grade: strPtr("A"), CreatedAt: base},
	}

	e := &Enrollment{ID: "e1"}
	_ = e.RecomputeCurrentGrade(history)
	assert.Equal(t, "q2", history[0].ID)
	assert.Equal(t, "q1", history[1].ID)
}

func TestTeacherNames(t *testing.T) {
	teacher := Teacher{Names: "Maria Elena", FatherLastName: "Quispe", MotherLastName: "Huaman"}
	assert.Equal(t, "Maria Elena Quispe Huaman", teacher.FullName())
	assert.Equal(t, "Maria Elena Quispe", teacher.ShortName())

	sparse := Teacher{Names: "Jorge", FatherLastName: "", MotherLastName: "Rojas"}
	assert.Equal(t, "Jorge Rojas", sparse.FullName())
	assert.Equal(t, "Jorge", sparse.ShortName())
}

func TestClassroomSubjectAuthorizesTeacher(t *testing.T) {
	primary := "t1"
	substitute := "t2"
	offering := &ClassroomSubject{TeacherID: &primary, SubstituteTeacherID: &substitute}

	assert.True(t, offering.AuthorizesTeacher("t1"))
	assert.True(t, offering.AuthorizesTeacher("t2"))
	assert.False(t, offering.AuthorizesTeacher("t3"))

	var none *ClassroomSubject
	assert.False(t, none.AuthorizesTeacher("t1"))
	assert.False(t, (&ClassroomSubject{}).AuthorizesTeacher("t1"))
}

func TestJWTClaimsHelpers(t *testing.T) {
	teacherID := "t1"
	studentID := "s1"
	claims := &JWTClaims{TeacherID: &teacherID, StudentID: &studentID, Permissions: []string{PermViewStudents}}

	assert.True(t, claims.IsTeacher("t1"))
	assert.False(t, claims.IsTeacher("t2"))
	assert.True(t, claims.IsStudent("s1"))
	assert.False(t, claims.IsStudent("s2"))
	assert.True(t, claims.HasPermission(PermViewStudents))
	assert.False(t, claims.HasPermission(PermManageQualifications))

	var nilClaims *JWTClaims
	assert.False(t, nilClaims.HasPermission(PermViewStudents))
	assert.False(t, nilClaims.IsTeacher("t1"))
	assert.False(t, nilClaims.IsStudent("s1"))
}
