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

type stubTeacherReader struct {
	teachers map[string]*models.Teacher
}

func (m *stubTeacherReader) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type stubClassroomReader struct {
	classrooms map[string]*models.Classroom
	tutored    map[string][]models.Classroom
}

func (m *stubClassroomReader) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := m.classrooms[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubClassroomReader) ListForTutor(ctx context.Context, teacherID string) ([]models.Classroom, error) {
	return m.tutored[teacherID], nil
}

type stubOfferingStore struct {
	byTeacher   map[string][]models.ClassroomSubject
	byClassroom map[string][]models.ClassroomSubject
}

func (m *stubOfferingStore) ListForTeacher(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	return m.byTeacher[teacherID], nil
}

func (m *stubOfferingStore) ListForTeacherWithRelations(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	return m.byTeacher[teacherID], nil
}

func (m *stubOfferingStore) ListForClassroomWithRosters(ctx context.Context, classroomID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	return m.byClassroom[classroomID], nil
}

func rosterFixture() (*stubTeacherReader, *stubClassroomReader, *stubOfferingStore) {
	userID := "u1"
	teachers := &stubTeacherReader{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", Names: "Rosa", FatherLastName: "Flores", MotherLastName: "Diaz", UserID: &userID},
	}}
	classrooms := &stubClassroomReader{classrooms: map[string]*models.Classroom{
		"room1": {ID: "room1", Name: "3A"},
	}}

	teacherID := "t1"
	otherTeacher := "t5"
	math := models.ClassroomSubject{
		ID:          "cs-math",
		ClassroomID: "room1",
		SubjectID:   "sub-math",
		TeacherID:   &teacherID,
		Active:      true,
		Subject:     &models.Subject{ID: "sub-math", Name: "Mathematics"},
		Classroom:   &models.Classroom{ID: "room1", Name: "3A"},
		Teacher:     &models.Teacher{ID: "t1", Names: "Rosa", FatherLastName: "Flores", MotherLastName: "Diaz"},
	}
	history := models.ClassroomSubject{
		ID:          "cs-hist",
		ClassroomID: "room1",
		SubjectID:   "sub-hist",
		TeacherID:   &otherTeacher,
		Active:      true,
		Subject:     &models.Subject{ID: "sub-hist", Name: "History"},
		Classroom:   &models.Classroom{ID: "room1", Name: "3A"},
	}

	student := &models.Student{ID: "s1", Code: "S001", Names: "Ana", FatherLastName: "Lopez"}
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	math.Enrollments = []models.Enrollment{{
		ID:                 "e-math",
		ClassroomSubjectID: "cs-math",
		StudentID:          "s1",
		Qualification:      ptrStr("A"),
		Active:             true,
		Student:            student,
		Qualifications: []models.Qualification{
			{ID: "q1", Grade: ptrStr("A"), CreatedAt: base, Teacher: &models.Teacher{Names: "Rosa", FatherLastName: "Flores", MotherLastName: "Diaz"}},
			{ID: "q2", Grade: ptrStr("B"), CreatedAt: base.Add(time.Hour)},
		},
	}}
	history.Enrollments = []models.Enrollment{{
		ID:                 "e-hist",
		ClassroomSubjectID: "cs-hist",
		StudentID:          "s1",
		Qualification:      ptrStr("B"),
		Active:             true,
		Student:            student,
	}}

	offerings := &stubOfferingStore{
		byTeacher:   map[string][]models.ClassroomSubject{"t1": {math}},
		byClassroom: map[string][]models.ClassroomSubject{"room1": {math, history}},
	}
	return teachers, classrooms, offerings
}

func rosterRequest() ClassroomRosterRequest {
	return ClassroomRosterRequest{
		TeacherID:        "t1",
		ClassroomID:      "room1",
		RequestingUserID: "u1",
	}
}

func TestClassroomStudentsAggregates(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)

	student := resp.Students[0]
	assert.Equal(t, "s1", student.StudentID)
	assert.Equal(t, "Ana Lopez", student.FullName)
	require.Len(t, student.Subjects, 2)

	var mathEntry, histEntry RosterSubjectEntry
	for _, subject := range student.Subjects {
		switch subject.SubjectID {
		case "sub-math":
			mathEntry = subject
		case "sub-hist":
			histEntry = subject
		}
	}

	// letter history A (17) and B (14) averages to 15.5, which maps back to A
	require.NotNil(t, mathEntry.AverageScore)
	assert.Equal(t, 15.5, *mathEntry.AverageScore)
	require.NotNil(t, mathEntry.AverageGrade)
	assert.Equal(t, "A", *mathEntry.AverageGrade)
	assert.True(t, mathEntry.CanManage)
	require.NotNil(t, mathEntry.TeacherName)
	assert.Equal(t, "Rosa Flores", *mathEntry.TeacherName)
	require.Len(t, mathEntry.History, 2)
	require.NotNil(t, mathEntry.History[0].TeacherFullName)
	assert.Equal(t, "Rosa Flores", *mathEntry.History[0].TeacherFullName)

	// no history: the current letter seeds the average
	require.NotNil(t, histEntry.AverageScore)
	assert.Equal(t, 14.0, *histEntry.AverageScore)
	assert.False(t, histEntry.CanManage)

	// letter qualifications are not numeric strings, so no cross-subject average
	assert.Nil(t, student.AverageQualification)
}

func TestClassroomStudentsNumericAverage(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	roster := offerings.byClassroom["room1"]
	roster[0].Enrollments[0].Qualification = ptrStr("15")
	roster[0].Enrollments[0].Qualifications = nil
	roster[1].Enrollments[0].Qualification = ptrStr("17")
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)

	require.NotNil(t, resp.Students[0].AverageQualification)
	assert.Equal(t, 16.0, *resp.Students[0].AverageQualification)
}

func TestClassroomStudentsSortedByName(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	roster := offerings.byClassroom["room1"]
	zoe := &models.Student{ID: "s2", Code: "S002", Names: "Zoe", FatherLastName: "Alva"}
	roster[0].Enrollments = append(roster[0].Enrollments, models.Enrollment{
		ID:                 "e-zoe",
		ClassroomSubjectID: "cs-math",
		StudentID:          "s2",
		Active:             true,
		Student:            zoe,
	})
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	require.Len(t, resp.Students, 2)
	assert.Equal(t, "Ana Lopez", resp.Students[0].FullName)
	assert.Equal(t, "Zoe Alva", resp.Students[1].FullName)
}

func TestClassroomStudentsForeignUserForbidden(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	req := rosterRequest()
	req.RequestingUserID = "u-other"
	_, err := svc.ClassroomStudents(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClassroomStudentsManagerBypassesOwnership(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	req := rosterRequest()
	req.RequestingUserID = "u-admin"
	req.CanManageAny = true
	resp, err := svc.ClassroomStudents(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)
	for _, subject := range resp.Students[0].Subjects {
		assert.True(t, subject.CanManage)
	}
}

func TestClassroomStudentsNoAssignmentForbidden(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	offerings.byTeacher = map[string][]models.ClassroomSubject{}
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	_, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClassroomStudentsTutorWithoutOfferingsAllowed(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	tutorID := "t1"
	classrooms.classrooms["room1"].TutorID = &tutorID
	offerings.byTeacher = map[string][]models.ClassroomSubject{}
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)
}

func TestClassroomStudentsSkipsInactiveAndBrokenRows(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	roster := offerings.byClassroom["room1"]
	roster[0].Enrollments[0].Active = false
	roster[1].Subject = nil
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Students)
}

func TestClassroomStudentsHistoryOrderedByCreation(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	roster := offerings.byClassroom["room1"]
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	// out-of-order input must still come back oldest first
	roster[0].Enrollments[0].Qualifications = []models.Qualification{
		{ID: "q-late", Grade: ptrStr("B"), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "q-early", Grade: ptrStr("AD"), CreatedAt: base},
		{ID: "q-mid", Grade: ptrStr("A"), CreatedAt: base.Add(time.Hour)},
	}
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.ClassroomStudents(context.Background(), rosterRequest())
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)

	var mathEntry RosterSubjectEntry
	for _, subject := range resp.Students[0].Subjects {
		if subject.SubjectID == "sub-math" {
			mathEntry = subject
		}
	}
	require.Len(t, mathEntry.History, 3)
	assert.Equal(t, "q-early", mathEntry.History[0].ID)
	assert.Equal(t, "q-mid", mathEntry.History[1].ID)
	assert.Equal(t, "q-late", mathEntry.History[2].ID)
}

func TestTeacherClassroomsOverview(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	teacherID := "t1"
	offerings.byTeacher["t1"] = append(offerings.byTeacher["t1"], models.ClassroomSubject{
		ID:                  "cs-art",
		ClassroomID:         "room2",
		SubjectID:           "sub-art",
		SubstituteTeacherID: &teacherID,
		Active:              true,
		Subject:             &models.Subject{ID: "sub-art", Name: "Art"},
		Classroom:           &models.Classroom{ID: "room2", Name: "4B", Level: "secondary", Degree: "4"},
	})
	classrooms.tutored = map[string][]models.Classroom{
		"t1": {{ID: "room1", Name: "3A"}, {ID: "room3", Name: "1C", Level: "primary", Degree: "1"}},
	}
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	resp, err := svc.TeacherClassrooms(context.Background(), "t1", false)
	require.NoError(t, err)
	require.Len(t, resp.Classrooms, 3)

	// sorted by classroom name
	assert.Equal(t, "1C", resp.Classrooms[0].Name)
	assert.Equal(t, "3A", resp.Classrooms[1].Name)
	assert.Equal(t, "4B", resp.Classrooms[2].Name)

	// room3 is tutored with no offerings
	tutorOnly := resp.Classrooms[0]
	assert.True(t, tutorOnly.IsTutor)
	assert.Empty(t, tutorOnly.Subjects)
	assert.NotNil(t, tutorOnly.Subjects)

	primary := resp.Classrooms[1]
	assert.True(t, primary.IsTutor)
	require.Len(t, primary.Subjects, 1)
	assert.Equal(t, "Mathematics", primary.Subjects[0].SubjectName)
	assert.False(t, primary.Subjects[0].IsSubstitute)

	substitute := resp.Classrooms[2]
	assert.False(t, substitute.IsTutor)
	require.Len(t, substitute.Subjects, 1)
	assert.Equal(t, "Art", substitute.Subjects[0].SubjectName)
	assert.True(t, substitute.Subjects[0].IsSubstitute)
}

func TestTeacherClassroomsUnknownTeacher(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	_, err := svc.TeacherClassrooms(context.Background(), "t-missing", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassroomStudentsIncludeInactive(t *testing.T) {
	teachers, classrooms, offerings := rosterFixture()
	roster := offerings.byClassroom["room1"]
	roster[0].Enrollments[0].Active = false
	svc := NewRosterService(teachers, classrooms, offerings, nil, nil, nil)

	req := rosterRequest()
	req.IncludeInactive = true
	resp, err := svc.ClassroomStudents(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Students, 1)
}
