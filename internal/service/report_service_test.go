package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type stubReportStudents struct {
	students map[string]*models.Student
}

func (s *stubReportStudents) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type stubReportEnrollments struct {
	byStudent map[string][]models.Enrollment
}

func (s *stubReportEnrollments) ListByStudentWithSubjects(_ context.Context, studentID string) ([]models.Enrollment, error) {
	return s.byStudent[studentID], nil
}

func newReportFixture() *ReportService {
	students := &stubReportStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", Code: "S001", Names: "Ana", FatherLastName: "Lopez", Active: true},
	}}
	enrollments := &stubReportEnrollments{byStudent: map[string][]models.Enrollment{
		"s1": {
			{
				ID:            "e1",
				Qualification: ptrStr("A"),
				Status:        ptrStr("approved"),
				Active:        true,
				ClassroomSubject: &models.ClassroomSubject{
					Subject:   &models.Subject{ID: "sub1", Code: "MAT", Name: "Mathematics"},
					Classroom: &models.Classroom{ID: "room1", Name: "1A"},
				},
			},
			{
				ID:     "e2",
				Active: true,
				ClassroomSubject: &models.ClassroomSubject{
					Subject:   &models.Subject{ID: "sub2", Code: "HIS", Name: "History"},
					Classroom: &models.Classroom{ID: "room1", Name: "1A"},
				},
			},
		},
	}}
	return NewReportService(students, enrollments, nil)
}

func TestReportServiceRendersCSV(t *testing.T) {
	svc := newReportFixture()

	report, err := svc.StudentGradeReport(context.Background(), "s1", ReportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", report.ContentType)
	stamp := time.Now().UTC().Format("20060102")
	assert.Equal(t, fmt.Sprintf("grade-report-S001-%s.csv", stamp), report.Filename)

	lines := strings.Split(strings.TrimSpace(string(report.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Subject,Classroom,Grade,Score,Status", lines[0])
	assert.Equal(t, "Mathematics,1A,A,17,approved", lines[1])
	assert.Equal(t, "History,1A,,,", lines[2])
}

func TestReportServiceRendersPDF(t *testing.T) {
	svc := newReportFixture()

	report, err := svc.StudentGradeReport(context.Background(), "s1", ReportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, strings.HasSuffix(report.Filename, ".pdf"))
	require.NotEmpty(t, report.Content)
	assert.True(t, strings.HasPrefix(string(report.Content), "%PDF"))
}

func TestReportServiceUnknownFormatFallsBackToPDF(t *testing.T) {
	svc := newReportFixture()

	report, err := svc.StudentGradeReport(context.Background(), "s1", ReportFormat("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, strings.HasSuffix(report.Filename, ".pdf"))
}

func TestReportServiceStudentNotFound(t *testing.T) {
	svc := newReportFixture()

	_, err := svc.StudentGradeReport(context.Background(), "missing", ReportFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
