package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-app/colegio-api/internal/models"
)

func TestQualificationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQualificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "teacher_id", "grade", "description", "created_at"}).
		AddRow("q1", "e1", "t1", "A", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, enrollment_id, teacher_id, grade, description, created_at FROM qualifications WHERE id = $1")).
		WithArgs("q1").
		WillReturnRows(rows)

	record, err := repo.FindByID(context.Background(), "q1")
	require.NoError(t, err)
	require.NotNil(t, record.Grade)
	assert.Equal(t, "A", *record.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQualificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM qualifications WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQualificationRepository(db)

	mock.ExpectExec("INSERT INTO qualifications").
		WithArgs(sqlmock.AnyArg(), "e1", "t1", "A", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollmentID, teacherID, grade := "e1", "t1", "A"
	record := &models.Qualification{EnrollmentID: &enrollmentID, TeacherID: &teacherID, Grade: &grade}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepositoryUpdateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQualificationRepository(db)

	mock.ExpectExec("UPDATE qualifications SET grade").
		WithArgs("AD", sqlmock.AnyArg(), "t2", "q1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	teacherID, grade := "t2", "AD"
	record := &models.Qualification{ID: "q1", TeacherID: &teacherID, Grade: &grade}
	require.NoError(t, repo.Update(context.Background(), record))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM qualifications WHERE id = $1")).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "q1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQualificationRepository(db)

	columns := []string{"id", "enrollment_id", "teacher_id", "grade", "description", "created_at",
		"teacher_names", "teacher_father_last_name", "teacher_mother_last_name"}
	rows := sqlmock.NewRows(columns).
		AddRow("q1", "e1", "t1", "B", nil, time.Now().Add(-time.Hour), "Rosa", "Flores", "Diaz").
		AddRow("q2", "e1", nil, "A", "revised", time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE q.enrollment_id IN ($1)")).
		WithArgs("e1").
		WillReturnRows(rows)

	records, err := repo.ListByEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].Teacher)
	assert.Equal(t, "t1", records[0].Teacher.ID)
	assert.Equal(t, "Rosa Flores Diaz", records[0].Teacher.FullName())
	assert.Nil(t, records[1].Teacher)
	require.NotNil(t, records[1].Grade)
	assert.Equal(t, "A", *records[1].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}
