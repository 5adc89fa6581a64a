package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colegio-app/colegio-api/internal/grading"
	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/export"
)

type gradeReportLister interface {
	ListByStudentWithSubjects(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type reportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ReportFormat selects the rendered output type.
type ReportFormat string

const (
	ReportFormatPDF ReportFormat = "pdf"
	ReportFormatCSV ReportFormat = "csv"
)

// GradeReport is a rendered grade summary ready to be served.
type GradeReport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReportService renders per-student grade summaries.
type ReportService struct {
	students    reportStudentReader
	enrollments gradeReportLister
	pdf         *export.PDFExporter
	csv         *export.CSVExporter
	logger      *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(students reportStudentReader, enrollments gradeReportLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		students:    students,
		enrollments: enrollments,
		pdf:         export.NewPDFExporter(),
		csv:         export.NewCSVExporter(),
		logger:      logger,
	}
}

// StudentGradeReport renders the student's per-subject grade summary in the
// requested format. Unknown formats fall back to PDF.
func (s *ReportService) StudentGradeReport(ctx context.Context, studentID string, format ReportFormat) (*GradeReport, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrollments, err := s.enrollments.ListByStudentWithSubjects(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	dataset := buildGradeDataset(enrollments)
	title := fmt.Sprintf("Grade report - %s", student.FullName())

	var content []byte
	switch format {
	case ReportFormatCSV:
		content, err = s.csv.Render(dataset)
	default:
		format = ReportFormatPDF
		content, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade report")
	}

	return &GradeReport{
		Filename:    reportFilename(student, format),
		ContentType: contentTypeFor(format),
		Content:     content,
	}, nil
}

func buildGradeDataset(enrollments []models.Enrollment) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Subject", "Classroom", "Grade", "Score", "Status"},
	}
	for _, enrollment := range enrollments {
		subjectName := ""
		classroomName := ""
		if offering := enrollment.ClassroomSubject; offering != nil {
			if offering.Subject != nil {
				subjectName = offering.Subject.Name
			}
			if offering.Classroom != nil {
				classroomName = offering.Classroom.Name
			}
		}

		grade := ""
		score := ""
		if enrollment.Qualification != nil {
			grade = strings.TrimSpace(*enrollment.Qualification)
			if value, ok := grading.ScoreOf(grade); ok {
				score = strconv.FormatFloat(value, 'f', -1, 64)
			}
		}

		status := ""
		if enrollment.Status != nil {
			status = *enrollment.Status
		}

		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject":   subjectName,
			"Classroom": classroomName,
			"Grade":     grade,
			"Score":     score,
			"Status":    status,
		})
	}
	return dataset
}

func reportFilename(student *models.Student, format ReportFormat) string {
	stamp := time.Now().UTC().Format("20060102")
	code := strings.TrimSpace(student.Code)
	if code == "" {
		code = student.ID
	}
	return fmt.Sprintf("grade-report-%s-%s.%s", code, stamp, format)
}

func contentTypeFor(format ReportFormat) string {
	if format == ReportFormatCSV {
		return "text/csv"
	}
	return "application/pdf"
}
