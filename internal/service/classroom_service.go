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

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Update(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
}

// ClassroomRequest represents payload for creating or updating classrooms.
type ClassroomRequest struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Level   string  `json:"level" validate:"required,max=50"`
	Degree  string  `json:"degree" validate:"required,max=50"`
	TutorID *string `json:"tutor_id" validate:"omitempty,uuid"`
}

// ClassroomService orchestrates classroom operations.
type ClassroomService struct {
	repo      classroomRepository
	teachers  teacherLinkFinder
	validator *validator.Validate
	logger    *zap.Logger
}

type teacherLinkFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// NewClassroomService constructs a ClassroomService.
func NewClassroomService(repo classroomRepository, teachers teacherLinkFinder, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns classrooms with tutor names plus pagination data.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, *models.Pagination, error) {
	classrooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a classroom by id.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// Create registers a new classroom.
func (s *ClassroomService) Create(ctx context.Context, req ClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	tutorID, err := s.resolveTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	classroom := &models.Classroom{
		Name:    strings.TrimSpace(req.Name),
		Level:   strings.TrimSpace(req.Level),
		Degree:  strings.TrimSpace(req.Degree),
		TutorID: tutorID,
	}

	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return classroom, nil
}

// Update modifies an existing classroom.
func (s *ClassroomService) Update(ctx context.Context, id string, req ClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	tutorID, err := s.resolveTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	classroom.Name = strings.TrimSpace(req.Name)
	classroom.Level = strings.TrimSpace(req.Level)
	classroom.Degree = strings.TrimSpace(req.Degree)
	classroom.TutorID = tutorID

	if err := s.repo.Update(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return classroom, nil
}

// Delete removes a classroom.
func (s *ClassroomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	return nil
}

// resolveTutor verifies the referenced tutor exists before linking it.
func (s *ClassroomService) resolveTutor(ctx context.Context, tutorID *string) (*string, error) {
	normalized := normalizeOptional(tutorID)
	if normalized == nil || s.teachers == nil {
		return normalized, nil
	}
	if _, err := s.teachers.FindByID(ctx, *normalized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "tutor teacher does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify tutor")
	}
	return normalized, nil
}
