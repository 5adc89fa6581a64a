package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByIDWithRelations(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
}

type offeringRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassroomSubject, error)
	Create(ctx context.Context, offering *models.ClassroomSubject) error
	Update(ctx context.Context, offering *models.ClassroomSubject) error
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollRequest represents payload for enrolling a student in an offering.
type EnrollRequest struct {
	ClassroomSubjectID string  `json:"classroom_subject_id" validate:"required,uuid"`
	StudentID          string  `json:"student_id" validate:"required,uuid"`
	Status             *string `json:"status" validate:"omitempty,max=50"`
	Description        *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateEnrollmentRequest represents payload for updating an enrollment.
// The cached qualification is managed by the grading flow, not here.
type UpdateEnrollmentRequest struct {
	Status      *string `json:"status" validate:"omitempty,max=50"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Active      *bool   `json:"active"`
}

// OfferingRequest represents payload for creating or updating a
// classroom-subject offering.
type OfferingRequest struct {
	ClassroomID         string  `json:"classroom_id" validate:"required,uuid"`
	SubjectID           string  `json:"subject_id" validate:"required,uuid"`
	TeacherID           *string `json:"teacher_id" validate:"omitempty,uuid"`
	SubstituteTeacherID *string `json:"substitute_teacher_id" validate:"omitempty,uuid"`
	Active              *bool   `json:"active"`
}

// EnrollmentService orchestrates enrollments and their offerings.
type EnrollmentService struct {
	enrollments enrollmentRepository
	offerings   offeringRepository
	students    enrollmentStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepository, offerings offeringRepository, students enrollmentStudentReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, offerings: offerings, students: students, validator: validate, logger: logger}
}

// List returns enrollments plus pagination data.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with its offering, student and record history.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByIDWithRelations(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student in a classroom-subject offering.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.offerings.FindByID(ctx, req.ClassroomSubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "classroom subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify classroom subject")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify student")
	}

	enrollment := &models.Enrollment{
		ClassroomSubjectID: req.ClassroomSubjectID,
		StudentID:          req.StudentID,
		Status:             normalizeOptional(req.Status),
		Description:        normalizeOptional(req.Description),
		Active:             true,
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Update modifies the mutable fields of an enrollment.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if req.Status != nil {
		enrollment.Status = normalizeOptional(req.Status)
	}
	if req.Description != nil {
		enrollment.Description = normalizeOptional(req.Description)
	}
	if req.Active != nil {
		enrollment.Active = *req.Active
	}

	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return enrollment, nil
}

// CreateOffering registers a subject taught in a classroom.
func (s *EnrollmentService) CreateOffering(ctx context.Context, req OfferingRequest) (*models.ClassroomSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	offering := &models.ClassroomSubject{
		ClassroomID:         req.ClassroomID,
		SubjectID:           req.SubjectID,
		TeacherID:           normalizeOptional(req.TeacherID),
		SubstituteTeacherID: normalizeOptional(req.SubstituteTeacherID),
		Active:              true,
	}
	if req.Active != nil {
		offering.Active = *req.Active
	}

	if err := s.offerings.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	return offering, nil
}

// UpdateOffering modifies an existing classroom-subject offering.
func (s *EnrollmentService) UpdateOffering(ctx context.Context, id string, req OfferingRequest) (*models.ClassroomSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	offering.ClassroomID = req.ClassroomID
	offering.SubjectID = req.SubjectID
	offering.TeacherID = normalizeOptional(req.TeacherID)
	offering.SubstituteTeacherID = normalizeOptional(req.SubstituteTeacherID)
	if req.Active != nil {
		offering.Active = *req.Active
	}

	if err := s.offerings.Update(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering")
	}
	return offering, nil
}
