package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/colegio-app/colegio-api/internal/models"
)

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, code, names, father_last_name, mother_last_name, email, user_id, active, created_at, updated_at"

// List returns students matching the filter plus the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (names ILIKE $%d OR father_last_name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		where += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{"names": "names", "code": "code", "created_at": "created_at"}, "created_at DESC")

	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY %s LIMIT %d OFFSET %d",
		studentColumns, where, order, pageSize, (page-1)*pageSize)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns the student with the given id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student linked to the given user, if any.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE user_id = $1", studentColumns)
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, code, names, father_last_name, mother_last_name, email, user_id, active, created_at, updated_at)
        VALUES (:id, :code, :names, :father_last_name, :mother_last_name, :email, :user_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET code = :code, names = :names, father_last_name = :father_last_name,
        mother_last_name = :mother_last_name, email = :email, user_id = :user_id, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a student.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1", id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
