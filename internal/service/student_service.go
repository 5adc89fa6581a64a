package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentEnrollmentLister interface {
	ListByStudentWithHistory(ctx context.Context, studentID string, onlyActive bool) ([]models.Enrollment, error)
}

// CreateStudentRequest represents payload for creating students.
type CreateStudentRequest struct {
	Code           string  `json:"code" validate:"required,max=50"`
	Names          string  `json:"names" validate:"required,max=150"`
	FatherLastName string  `json:"father_last_name" validate:"required,max=100"`
	MotherLastName string  `json:"mother_last_name" validate:"omitempty,max=100"`
	Email          *string `json:"email" validate:"omitempty,email"`
	UserID         *string `json:"user_id" validate:"omitempty,uuid"`
}

// UpdateStudentRequest represents payload for updating students.
type UpdateStudentRequest struct {
	Code           string  `json:"code" validate:"required,max=50"`
	Names          string  `json:"names" validate:"required,max=150"`
	FatherLastName string  `json:"father_last_name" validate:"required,max=100"`
	MotherLastName string  `json:"mother_last_name" validate:"omitempty,max=100"`
	Email          *string `json:"email" validate:"omitempty,email"`
	UserID         *string `json:"user_id" validate:"omitempty,uuid"`
	Active         *bool   `json:"active"`
}

// StudentService orchestrates student operations.
type StudentService struct {
	repo        studentRepository
	enrollments studentEnrollmentLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, enrollments studentEnrollmentLister, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns students plus pagination data.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student record.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		Code:           strings.TrimSpace(req.Code),
		Names:          strings.TrimSpace(req.Names),
		FatherLastName: strings.TrimSpace(req.FatherLastName),
		MotherLastName: strings.TrimSpace(req.MotherLastName),
		Email:          normalizeOptional(req.Email),
		UserID:         normalizeOptional(req.UserID),
		Active:         true,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.Code = strings.TrimSpace(req.Code)
	student.Names = strings.TrimSpace(req.Names)
	student.FatherLastName = strings.TrimSpace(req.FatherLastName)
	student.MotherLastName = strings.TrimSpace(req.MotherLastName)
	student.Email = normalizeOptional(req.Email)
	student.UserID = normalizeOptional(req.UserID)
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// StudentSubjectSummary is one enrollment in the student's subject list.
type StudentSubjectSummary struct {
	EnrollmentID       string  `json:"classroom_subject_student_id"`
	ClassroomSubjectID string  `json:"classroom_subject_id"`
	SubjectID          *string `json:"subject_id,omitempty"`
	SubjectCode        *string `json:"subject_code,omitempty"`
	SubjectName        *string `json:"subject_name,omitempty"`
	TeacherID          *string `json:"teacher_id,omitempty"`
	TeacherFullName    *string `json:"teacher_full_name,omitempty"`
	ClassroomID        *string `json:"classroom_id,omitempty"`
	ClassroomLevel     *string `json:"classroom_level,omitempty"`
	ClassroomDegree    *string `json:"classroom_degree,omitempty"`
	Status             *string `json:"status,omitempty"`
	Active             bool    `json:"is_active"`
}

// StudentSubjectQualification is one enrollment's grade standing with the
// full record history.
type StudentSubjectQualification struct {
	EnrollmentID         string                       `json:"classroom_subject_student_id"`
	ClassroomSubjectID   string                       `json:"classroom_subject_id"`
	SubjectID            *string                      `json:"subject_id,omitempty"`
	SubjectName          *string                      `json:"subject_name,omitempty"`
	CurrentQualification *string                      `json:"current_qualification,omitempty"`
	Status               *string                      `json:"status,omitempty"`
	Description          *string                      `json:"description,omitempty"`
	Active               bool                         `json:"is_active"`
	Records              []QualificationRecordSummary `json:"records"`
}

// Subjects returns the student's enrolled subjects with teacher and
// classroom context.
func (s *StudentService) Subjects(ctx context.Context, studentID string, includeInactive bool) ([]StudentSubjectSummary, error) {
	enrollments, err := s.listEnrollments(ctx, studentID, includeInactive)
	if err != nil {
		return nil, err
	}

	subjects := make([]StudentSubjectSummary, 0, len(enrollments))
	for _, enrollment := range enrollments {
		summary := StudentSubjectSummary{
			EnrollmentID:       enrollment.ID,
			ClassroomSubjectID: enrollment.ClassroomSubjectID,
			Status:             enrollment.Status,
			Active:             enrollment.Active,
		}
		if offering := enrollment.ClassroomSubject; offering != nil {
			if subject := offering.Subject; subject != nil {
				id, code, name := subject.ID, subject.Code, subject.Name
				summary.SubjectID = &id
				summary.SubjectCode = &code
				summary.SubjectName = &name
			}
			if teacher := offering.Teacher; teacher != nil {
				id := teacher.ID
				name := teacher.FullName()
				summary.TeacherID = &id
				summary.TeacherFullName = &name
			}
			if classroom := offering.Classroom; classroom != nil {
				id, level, degree := classroom.ID, classroom.Level, classroom.Degree
				summary.ClassroomID = &id
				summary.ClassroomLevel = &level
				summary.ClassroomDegree = &degree
			}
		}
		subjects = append(subjects, summary)
	}
	return subjects, nil
}

// SubjectQualifications returns the student's per-subject grade standing
// with the ordered record history, teacher names included.
func (s *StudentService) SubjectQualifications(ctx context.Context, studentID string, includeInactive bool) ([]StudentSubjectQualification, error) {
	enrollments, err := s.listEnrollments(ctx, studentID, includeInactive)
	if err != nil {
		return nil, err
	}

	subjects := make([]StudentSubjectQualification, 0, len(enrollments))
	for _, enrollment := range enrollments {
		entry := StudentSubjectQualification{
			EnrollmentID:         enrollment.ID,
			ClassroomSubjectID:   enrollment.ClassroomSubjectID,
			CurrentQualification: enrollment.Qualification,
			Status:               enrollment.Status,
			Description:          enrollment.Description,
			Active:               enrollment.Active,
			Records:              make([]QualificationRecordSummary, 0, len(enrollment.Qualifications)),
		}
		if offering := enrollment.ClassroomSubject; offering != nil && offering.Subject != nil {
			id, name := offering.Subject.ID, offering.Subject.Name
			entry.SubjectID = &id
			entry.SubjectName = &name
		}
		for _, record := range sortRecordsByCreation(enrollment.Qualifications) {
			entry.Records = append(entry.Records, summarizeRecord(record))
		}
		subjects = append(subjects, entry)
	}
	return subjects, nil
}

func (s *StudentService) listEnrollments(ctx context.Context, studentID string, includeInactive bool) ([]models.Enrollment, error) {
	if _, err := s.repo.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.enrollments.ListByStudentWithHistory(ctx, studentID, !includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}
	return enrollments, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
