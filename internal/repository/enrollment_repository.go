package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/colegio-app/colegio-api/internal/models"
)

// EnrollmentRepository handles classroom-subject-student persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, classroom_subject_id, student_id, qualification, status, description, active, created_at, updated_at"

// FindByID returns the bare enrollment row.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := fmt.Sprintf("SELECT %s FROM classroom_subject_students WHERE id = $1", enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDWithRelations returns the enrollment with its offering (subject,
// classroom, both teachers), its student, and its full qualification history
// ordered by creation time ascending. The grading use cases depend on this
// graph being loaded in one call.
func (r *EnrollmentRepository) FindByIDWithRelations(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	offering, err := loadOffering(ctx, r.db, enrollment.ClassroomSubjectID)
	if err != nil {
		return nil, err
	}
	enrollment.ClassroomSubject = offering

	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	switch err := r.db.GetContext(ctx, &student, query, enrollment.StudentID); {
	case err == nil:
		enrollment.Student = &student
	case errors.Is(err, sql.ErrNoRows):
		// dangling student reference; tolerated, callers skip
	default:
		return nil, fmt.Errorf("load enrollment student: %w", err)
	}

	histories, err := loadQualificationsByEnrollments(ctx, r.db, []string{enrollment.ID})
	if err != nil {
		return nil, err
	}
	enrollment.Qualifications = histories[enrollment.ID]

	return enrollment, nil
}

// List returns enrollments matching the filter plus the total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if filter.ClassroomSubjectID != "" {
		where += fmt.Sprintf(" AND classroom_subject_id = $%d", len(args)+1)
		args = append(args, filter.ClassroomSubjectID)
	}
	if filter.StudentID != "" {
		where += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.OnlyActive {
		where += " AND active = TRUE"
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM classroom_subject_students %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		enrollmentColumns, where, pageSize, (page-1)*pageSize)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classroom_subject_students "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByStudentWithSubjects returns a student's enrollments with offering and
// subject loaded, for the grade report.
func (r *EnrollmentRepository) ListByStudentWithSubjects(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM classroom_subject_students WHERE student_id = $1 ORDER BY created_at ASC", enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	for i := range enrollments {
		offering, err := loadOffering(ctx, r.db, enrollments[i].ClassroomSubjectID)
		if err != nil {
			return nil, err
		}
		enrollments[i].ClassroomSubject = offering
	}
	return enrollments, nil
}

// ListByStudentWithHistory returns a student's enrollments with offering
// relations and the ordered qualification history loaded, for the student
// subjects and qualifications views.
func (r *EnrollmentRepository) ListByStudentWithHistory(ctx context.Context, studentID string, onlyActive bool) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM classroom_subject_students WHERE student_id = $1", enrollmentColumns)
	if onlyActive {
		query += " AND active = TRUE"
	}
	query += " ORDER BY created_at ASC"
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return enrollments, nil
	}

	ids := make([]string, 0, len(enrollments))
	for i := range enrollments {
		offering, err := loadOffering(ctx, r.db, enrollments[i].ClassroomSubjectID)
		if err != nil {
			return nil, err
		}
		enrollments[i].ClassroomSubject = offering
		ids = append(ids, enrollments[i].ID)
	}

	histories, err := loadQualificationsByEnrollments(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range enrollments {
		enrollments[i].Qualifications = histories[enrollments[i].ID]
	}
	return enrollments, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO classroom_subject_students (id, classroom_subject_id, student_id, qualification, status, description, active, created_at, updated_at)
        VALUES (:id, :classroom_subject_id, :student_id, :qualification, :status, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update persists the enrollment's mutable fields.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classroom_subject_students SET qualification = :qualification, status = :status,
        description = :description, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// UpdateCurrentGrade writes only the denormalized current grade.
func (r *EnrollmentRepository) UpdateCurrentGrade(ctx context.Context, id string, grade *string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE classroom_subject_students SET qualification = $2, updated_at = $3 WHERE id = $1",
		id, grade, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment grade: %w", err)
	}
	return nil
}
