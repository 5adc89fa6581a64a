package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/colegio-app/colegio-api/internal/grading"
	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type enrollmentStore interface {
	FindByIDWithRelations(ctx context.Context, id string) (*models.Enrollment, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	UpdateCurrentGrade(ctx context.Context, id string, grade *string) error
}

type qualificationStore interface {
	FindByID(ctx context.Context, id string) (*models.Qualification, error)
	Create(ctx context.Context, record *models.Qualification) error
	Update(ctx context.Context, record *models.Qualification) error
	Delete(ctx context.Context, id string) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Qualification, error)
}

// ManageQualificationRequest carries a teacher's grade submission for one
// enrollment. TeacherID comes from the route, not the body. A nil
// Qualification means no grade was supplied, which skips record-keeping;
// an invalid letter is rejected instead.
type ManageQualificationRequest struct {
	EnrollmentID      string  `json:"classroom_subject_student_id" validate:"required"`
	TeacherID         string  `json:"-" validate:"required"`
	Qualification     *string `json:"qualification"`
	Status            *string `json:"status"`
	Description       *string `json:"description"`
	Active            *bool   `json:"is_active"`
	RecordID          *string `json:"qualification_record_id"`
	RecordDescription *string `json:"qualification_record_description"`
}

// QualificationRecordSummary is one history entry in responses.
type QualificationRecordSummary struct {
	ID              string     `json:"id"`
	Grade           *string    `json:"grade,omitempty"`
	Description     *string    `json:"description,omitempty"`
	TeacherID       *string    `json:"teacher_id,omitempty"`
	TeacherFullName *string    `json:"teacher_full_name,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// ManageQualificationResponse returns the enrollment state plus its full
// ordered record history.
type ManageQualificationResponse struct {
	EnrollmentID  string                       `json:"classroom_subject_student_id"`
	Qualification *string                      `json:"qualification,omitempty"`
	Status        *string                      `json:"status,omitempty"`
	Description   *string                      `json:"description,omitempty"`
	Active        bool                         `json:"is_active"`
	Records       []QualificationRecordSummary `json:"records"`
}

// DeleteQualificationResponse confirms a record deletion.
type DeleteQualificationResponse struct {
	Deleted bool `json:"deleted"`
}

// QualificationService orchestrates grade submission and deletion for
// enrollments, including the denormalized current-grade bookkeeping.
type QualificationService struct {
	enrollments    enrollmentStore
	qualifications qualificationStore
	cache          *CacheService
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewQualificationService constructs a QualificationService.
func NewQualificationService(enrollments enrollmentStore, qualifications qualificationStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *QualificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualificationService{
		enrollments:    enrollments,
		qualifications: qualifications,
		cache:          cache,
		validator:      validate,
		logger:         logger,
	}
}

// Manage records or edits a grade for an enrollment. Status and active flags
// are applied unconditionally when present; a qualification record is
// created or updated only when a grade was supplied.
func (s *QualificationService) Manage(ctx context.Context, req ManageQualificationRequest) (*ManageQualificationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid qualification payload")
	}

	enrollment, err := s.enrollments.FindByIDWithRelations(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	relation := enrollment.ClassroomSubject
	if relation == nil || relation.Classroom == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom subject relation not found")
	}

	if !relation.AuthorizesTeacher(req.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher not authorized")
	}

	updated := false
	var newGrade *string
	if req.Qualification != nil {
		grade, ok := grading.Normalize(*req.Qualification)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid qualification value")
		}
		letter := string(grade)
		enrollment.Qualification = &letter
		newGrade = &letter
		updated = true
	}

	recordDescription := req.RecordDescription
	if recordDescription == nil && req.Description != nil {
		if trimmed := strings.TrimSpace(*req.Description); trimmed != "" {
			recordDescription = &trimmed
		}
	}

	if req.Status != nil {
		enrollment.Status = req.Status
		updated = true
	}
	if req.Active != nil {
		enrollment.Active = *req.Active
		updated = true
	}

	if updated {
		if err := s.enrollments.Update(ctx, enrollment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
		}
	}

	if newGrade != nil {
		if req.RecordID != nil {
			record, err := s.qualifications.FindByID(ctx, *req.RecordID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification record")
			}
			if record == nil || err != nil || record.EnrollmentID == nil || *record.EnrollmentID != enrollment.ID {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "qualification record not found")
			}
			if recordDescription != nil {
				record.Description = recordDescription
			}
			record.TeacherID = &req.TeacherID
			record.Grade = newGrade
			if err := s.qualifications.Update(ctx, record); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update qualification record")
			}
		} else {
			record := &models.Qualification{
				EnrollmentID: &enrollment.ID,
				TeacherID:    &req.TeacherID,
				Description:  recordDescription,
				Grade:        newGrade,
			}
			if err := s.qualifications.Create(ctx, record); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create qualification record")
			}
		}

		enrollment, err = s.enrollments.FindByIDWithRelations(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment")
		}
	}

	s.invalidateRoster(ctx, relation.ClassroomID)

	records := make([]QualificationRecordSummary, 0, len(enrollment.Qualifications))
	for _, record := range enrollment.Qualifications {
		records = append(records, summarizeRecord(record))
	}

	return &ManageQualificationResponse{
		EnrollmentID:  enrollment.ID,
		Qualification: enrollment.Qualification,
		Status:        enrollment.Status,
		Description:   enrollment.Description,
		Active:        enrollment.Active,
		Records:       records,
	}, nil
}

// Delete removes a qualification record and recomputes the owning
// enrollment's current grade from the remaining history: latest record by
// creation time wins, none left means no grade.
func (s *QualificationService) Delete(ctx context.Context, teacherID, qualificationID string) (*DeleteQualificationResponse, error) {
	record, err := s.qualifications.FindByID(ctx, qualificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "qualification record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification record")
	}
	if record.EnrollmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record is not linked to an enrollment")
	}
	enrollmentID := *record.EnrollmentID

	enrollment, err := s.enrollments.FindByIDWithRelations(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if !enrollment.ClassroomSubject.AuthorizesTeacher(teacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher not authorized")
	}

	if err := s.qualifications.Delete(ctx, record.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete qualification record")
	}

	remaining, err := s.qualifications.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload qualification history")
	}
	latest := enrollment.RecomputeCurrentGrade(remaining)

	if err := s.enrollments.UpdateCurrentGrade(ctx, enrollmentID, latest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment grade")
	}

	if enrollment.ClassroomSubject != nil {
		s.invalidateRoster(ctx, enrollment.ClassroomSubject.ClassroomID)
	}

	return &DeleteQualificationResponse{Deleted: true}, nil
}

func (s *QualificationService) invalidateRoster(ctx context.Context, classroomID string) {
	if s.cache == nil || classroomID == "" {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, rosterCachePattern(classroomID)); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.String("classroom_id", classroomID), zap.Error(err))
	}
}

func summarizeRecord(record models.Qualification) QualificationRecordSummary {
	summary := QualificationRecordSummary{
		ID:          record.ID,
		Description: record.Description,
		TeacherID:   record.TeacherID,
	}
	if record.Grade != nil {
		if grade, ok := grading.Normalize(*record.Grade); ok {
			letter := string(grade)
			summary.Grade = &letter
		}
	}
	if record.Teacher != nil {
		name := record.Teacher.FullName()
		summary.TeacherFullName = &name
	}
	if !record.CreatedAt.IsZero() {
		createdAt := record.CreatedAt
		summary.CreatedAt = &createdAt
	}
	return summary
}
