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

func ptrStr(s string) *string { return &s }
func ptrBool(b bool) *bool    { return &b }

type stubEnrollmentStore struct {
	enrollments  map[string]*models.Enrollment
	updates      int
	gradeWrites  []*string
	failOnUpdate error
}

func (m *stubEnrollmentStore) FindByIDWithRelations(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubEnrollmentStore) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if m.failOnUpdate != nil {
		return m.failOnUpdate
	}
	m.updates++
	m.enrollments[enrollment.ID] = enrollment
	return nil
}

func (m *stubEnrollmentStore) UpdateCurrentGrade(ctx context.Context, id string, grade *string) error {
	m.gradeWrites = append(m.gradeWrites, grade)
	if e, ok := m.enrollments[id]; ok {
		e.Qualification = grade
	}
	return nil
}

type stubQualificationStore struct {
	records map[string]*models.Qualification
	history map[string][]models.Qualification
	created []*models.Qualification
	updated []*models.Qualification
	deleted []string
}

func (m *stubQualificationStore) FindByID(ctx context.Context, id string) (*models.Qualification, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubQualificationStore) Create(ctx context.Context, record *models.Qualification) error {
	if record.ID == "" {
		record.ID = "generated"
	}
	record.CreatedAt = time.Now().UTC()
	if m.records == nil {
		m.records = make(map[string]*models.Qualification)
	}
	m.records[record.ID] = record
	m.created = append(m.created, record)
	return nil
}

func (m *stubQualificationStore) Update(ctx context.Context, record *models.Qualification) error {
	m.records[record.ID] = record
	m.updated = append(m.updated, record)
	return nil
}

func (m *stubQualificationStore) Delete(ctx context.Context, id string) error {
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *stubQualificationStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Qualification, error) {
	return m.history[enrollmentID], nil
}

func newTestEnrollment() *models.Enrollment {
	primary := "t1"
	substitute := "t2"
	return &models.Enrollment{
		ID:                 "e1",
		ClassroomSubjectID: "cs1",
		StudentID:          "s1",
		Active:             true,
		ClassroomSubject: &models.ClassroomSubject{
			ID:                  "cs1",
			ClassroomID:         "room1",
			SubjectID:           "sub1",
			TeacherID:           &primary,
			SubstituteTeacherID: &substitute,
			Active:              true,
			Classroom:           &models.Classroom{ID: "room1", Name: "3A"},
			Subject:             &models.Subject{ID: "sub1", Name: "Mathematics"},
		},
	}
}

func TestManageCreatesRecordForNewGrade(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	resp, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "e1",
		TeacherID:     "t1",
		Qualification: ptrStr(" a "),
		Description:   ptrStr("  good progress  "),
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Qualification)
	assert.Equal(t, "A", *resp.Qualification)
	assert.Equal(t, 1, enrollments.updates)

	require.Len(t, qualifications.created, 1)
	record := qualifications.created[0]
	assert.Equal(t, "A", *record.Grade)
	assert.Equal(t, "t1", *record.TeacherID)
	assert.Equal(t, "e1", *record.EnrollmentID)
	require.NotNil(t, record.Description)
	assert.Equal(t, "good progress", *record.Description)
}

func TestManageSubstituteTeacherAuthorized(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "e1",
		TeacherID:     "t2",
		Qualification: ptrStr("B"),
	})
	require.NoError(t, err)
	require.Len(t, qualifications.created, 1)
	assert.Equal(t, "t2", *qualifications.created[0].TeacherID)
}

func TestManageUnassignedTeacherForbidden(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "e1",
		TeacherID:     "t9",
		Qualification: ptrStr("A"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, qualifications.created)
	assert.Zero(t, enrollments.updates)
}

func TestManageInvalidGradeRejectedWithoutSideEffects(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "e1",
		TeacherID:     "t1",
		Qualification: ptrStr("Z"),
		Status:        ptrStr("observed"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, enrollments.updates)
	assert.Empty(t, qualifications.created)
}

func TestManageStatusOnlySkipsRecordKeeping(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	resp, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID: "e1",
		TeacherID:    "t1",
		Status:       ptrStr("retired"),
		Active:       ptrBool(false),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, enrollments.updates)
	assert.Empty(t, qualifications.created)
	assert.False(t, resp.Active)
	require.NotNil(t, resp.Status)
	assert.Equal(t, "retired", *resp.Status)
}

func TestManageUpdatesRecordInPlace(t *testing.T) {
	enrollment := newTestEnrollment()
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": enrollment}}
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q1": {ID: "q1", EnrollmentID: ptrStr("e1"), TeacherID: ptrStr("t1"), Grade: ptrStr("C")},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:      "e1",
		TeacherID:         "t2",
		Qualification:     ptrStr("AD"),
		RecordID:          ptrStr("q1"),
		RecordDescription: ptrStr("revised"),
	})
	require.NoError(t, err)

	assert.Empty(t, qualifications.created)
	require.Len(t, qualifications.updated, 1)
	record := qualifications.updated[0]
	assert.Equal(t, "AD", *record.Grade)
	assert.Equal(t, "t2", *record.TeacherID)
	assert.Equal(t, "revised", *record.Description)
}

func TestManageRejectsForeignRecord(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q-other": {ID: "q-other", EnrollmentID: ptrStr("e2"), Grade: ptrStr("B")},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "e1",
		TeacherID:     "t1",
		Qualification: ptrStr("A"),
		RecordID:      ptrStr("q-other"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, qualifications.updated)
}

func TestManageMissingEnrollment(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{}}
	svc := NewQualificationService(enrollments, &stubQualificationStore{}, nil, nil, nil)

	_, err := svc.Manage(context.Background(), ManageQualificationRequest{
		EnrollmentID:  "ghost",
		TeacherID:     "t1",
		Qualification: ptrStr("A"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteRecomputesLatestGrade(t *testing.T) {
	enrollment := newTestEnrollment()
	enrollment.Qualification = ptrStr("A")
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": enrollment}}

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q2": {ID: "q2", EnrollmentID: ptrStr("e1"), Grade: ptrStr("A"), CreatedAt: base.Add(time.Hour)},
		},
		history: map[string][]models.Qualification{
			"e1": {
				{ID: "q1", EnrollmentID: ptrStr("e1"), Grade: ptrStr("B"), CreatedAt: base},
			},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	resp, err := svc.Delete(context.Background(), "t1", "q2")
	require.NoError(t, err)
	assert.True(t, resp.Deleted)

	assert.Equal(t, []string{"q2"}, qualifications.deleted)
	require.Len(t, enrollments.gradeWrites, 1)
	require.NotNil(t, enrollments.gradeWrites[0])
	assert.Equal(t, "B", *enrollments.gradeWrites[0])
}

func TestDeleteLastRecordClearsGrade(t *testing.T) {
	enrollment := newTestEnrollment()
	enrollment.Qualification = ptrStr("A")
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": enrollment}}
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q1": {ID: "q1", EnrollmentID: ptrStr("e1"), Grade: ptrStr("A")},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Delete(context.Background(), "t1", "q1")
	require.NoError(t, err)

	require.Len(t, enrollments.gradeWrites, 1)
	assert.Nil(t, enrollments.gradeWrites[0])
}

func TestDeleteDanglingRecordRejected(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{}}
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q1": {ID: "q1", Grade: ptrStr("A")},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Delete(context.Background(), "t1", "q1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, qualifications.deleted)
}

func TestDeleteUnauthorizedTeacher(t *testing.T) {
	enrollments := &stubEnrollmentStore{enrollments: map[string]*models.Enrollment{"e1": newTestEnrollment()}}
	qualifications := &stubQualificationStore{
		records: map[string]*models.Qualification{
			"q1": {ID: "q1", EnrollmentID: ptrStr("e1"), Grade: ptrStr("A")},
		},
	}
	svc := NewQualificationService(enrollments, qualifications, nil, nil, nil)

	_, err := svc.Delete(context.Background(), "t9", "q1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, qualifications.deleted)
}
