package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type stubStudentRepo struct {
	students map[string]*models.Student
}

func (m *stubStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *stubStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubStudentRepo) Create(ctx context.Context, student *models.Student) error { return nil }
func (m *stubStudentRepo) Update(ctx context.Context, student *models.Student) error { return nil }
func (m *stubStudentRepo) Deactivate(ctx context.Context, id string) error           { return nil }

type stubStudentEnrollments struct {
	byStudent  map[string][]models.Enrollment
	onlyActive bool
}

func (m *stubStudentEnrollments) ListByStudentWithHistory(ctx context.Context, studentID string, onlyActive bool) ([]models.Enrollment, error) {
	m.onlyActive = onlyActive
	return m.byStudent[studentID], nil
}

func studentSubjectsFixture() (*stubStudentRepo, *stubStudentEnrollments) {
	repo := &stubStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", Code: "S001", Names: "Ana", FatherLastName: "Lopez", Active: true},
	}}

	teacherID := "t1"
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	enrollments := &stubStudentEnrollments{byStudent: map[string][]models.Enrollment{
		"s1": {
			{
				ID:                 "e1",
				ClassroomSubjectID: "cs-math",
				StudentID:          "s1",
				Qualification:      ptrStr("A"),
				Status:             ptrStr("approved"),
				Active:             true,
				ClassroomSubject: &models.ClassroomSubject{
					ID:        "cs-math",
					Subject:   &models.Subject{ID: "sub-math", Code: "MAT", Name: "Mathematics"},
					Teacher:   &models.Teacher{ID: "t1", Names: "Rosa", FatherLastName: "Flores", MotherLastName: "Diaz"},
					Classroom: &models.Classroom{ID: "room1", Name: "3A", Level: "primary", Degree: "3"},
				},
				Qualifications: []models.Qualification{
					{ID: "q-new", Grade: ptrStr("A"), TeacherID: &teacherID, CreatedAt: base.Add(time.Hour)},
					{ID: "q-old", Grade: ptrStr("B"), CreatedAt: base, Teacher: &models.Teacher{Names: "Rosa", FatherLastName: "Flores", MotherLastName: "Diaz"}},
				},
			},
			{
				ID:                 "e2",
				ClassroomSubjectID: "cs-hist",
				StudentID:          "s1",
				Active:             true,
			},
		},
	}}
	return repo, enrollments
}

func TestStudentSubjectsMapping(t *testing.T) {
	repo, enrollments := studentSubjectsFixture()
	svc := NewStudentService(repo, enrollments, nil, nil)

	subjects, err := svc.Subjects(context.Background(), "s1", false)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.True(t, enrollments.onlyActive)

	math := subjects[0]
	assert.Equal(t, "e1", math.EnrollmentID)
	require.NotNil(t, math.SubjectName)
	assert.Equal(t, "Mathematics", *math.SubjectName)
	require.NotNil(t, math.SubjectCode)
	assert.Equal(t, "MAT", *math.SubjectCode)
	require.NotNil(t, math.TeacherFullName)
	assert.Equal(t, "Rosa Flores Diaz", *math.TeacherFullName)
	require.NotNil(t, math.ClassroomLevel)
	assert.Equal(t, "primary", *math.ClassroomLevel)
	require.NotNil(t, math.Status)
	assert.Equal(t, "approved", *math.Status)

	// enrollments without a loaded offering stay listed with bare fields
	bare := subjects[1]
	assert.Equal(t, "e2", bare.EnrollmentID)
	assert.Nil(t, bare.SubjectName)
	assert.Nil(t, bare.TeacherFullName)
}

func TestStudentSubjectsIncludeInactive(t *testing.T) {
	repo, enrollments := studentSubjectsFixture()
	svc := NewStudentService(repo, enrollments, nil, nil)

	_, err := svc.Subjects(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.False(t, enrollments.onlyActive)
}

func TestStudentSubjectQualifications(t *testing.T) {
	repo, enrollments := studentSubjectsFixture()
	svc := NewStudentService(repo, enrollments, nil, nil)

	subjects, err := svc.SubjectQualifications(context.Background(), "s1", false)
	require.NoError(t, err)
	require.Len(t, subjects, 2)

	math := subjects[0]
	require.NotNil(t, math.CurrentQualification)
	assert.Equal(t, "A", *math.CurrentQualification)
	require.NotNil(t, math.SubjectName)
	assert.Equal(t, "Mathematics", *math.SubjectName)

	// records come back oldest first even though the store returned them
	// newest first
	require.Len(t, math.Records, 2)
	assert.Equal(t, "q-old", math.Records[0].ID)
	assert.Equal(t, "q-new", math.Records[1].ID)
	require.NotNil(t, math.Records[0].TeacherFullName)
	assert.Equal(t, "Rosa Flores Diaz", *math.Records[0].TeacherFullName)
	require.NotNil(t, math.Records[1].Grade)
	assert.Equal(t, "A", *math.Records[1].Grade)

	bare := subjects[1]
	assert.Nil(t, bare.SubjectName)
	assert.Empty(t, bare.Records)
	assert.NotNil(t, bare.Records)
}

func TestStudentSubjectsUnknownStudent(t *testing.T) {
	repo, enrollments := studentSubjectsFixture()
	svc := NewStudentService(repo, enrollments, nil, nil)

	_, err := svc.Subjects(context.Background(), "missing", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
