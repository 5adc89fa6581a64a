package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/colegio-app/colegio-api/internal/models"
)

// ClassroomRepository handles classroom persistence.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

const classroomColumns = "id, name, level, degree, tutor_id, created_at, updated_at"

// List returns classrooms matching the filter plus the total count.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if filter.Level != "" {
		where += fmt.Sprintf(" AND c.level = $%d", len(args)+1)
		args = append(args, filter.Level)
	}
	if filter.Degree != "" {
		where += fmt.Sprintf(" AND c.degree = $%d", len(args)+1)
		args = append(args, filter.Degree)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND c.name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{"name": "c.name", "created_at": "c.created_at"}, "c.name ASC")

	query := fmt.Sprintf(`SELECT c.id, c.name, c.level, c.degree, c.tutor_id, c.created_at, c.updated_at,
        NULLIF(TRIM(CONCAT(t.names, ' ', t.father_last_name)), '') AS tutor_name
        FROM classrooms c
        LEFT JOIN teachers t ON t.id = c.tutor_id
        %s ORDER BY %s LIMIT %d OFFSET %d`, where, order, pageSize, (page-1)*pageSize)
	var classrooms []models.ClassroomDetail
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classrooms c "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return classrooms, total, nil
}

// FindByID returns the classroom with the given id.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var classroom models.Classroom
	query := fmt.Sprintf("SELECT %s FROM classrooms WHERE id = $1", classroomColumns)
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// ListForTutor returns the classrooms the teacher tutors.
func (r *ClassroomRepository) ListForTutor(ctx context.Context, teacherID string) ([]models.Classroom, error) {
	query := fmt.Sprintf("SELECT %s FROM classrooms WHERE tutor_id = $1 ORDER BY name ASC", classroomColumns)
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, teacherID); err != nil {
		return nil, fmt.Errorf("list tutor classrooms: %w", err)
	}
	return classrooms, nil
}

// Create inserts a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	classroom.CreatedAt = now
	classroom.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, name, level, degree, tutor_id, created_at, updated_at)
        VALUES (:id, :name, :level, :degree, :tutor_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update persists mutable classroom fields.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET name = :name, level = :level, degree = :degree, tutor_id = :tutor_id, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM classrooms WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}
