package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/colegio-app/colegio-api/internal/models"
)

// QualificationRepository handles qualification record persistence.
type QualificationRepository struct {
	db *sqlx.DB
}

// NewQualificationRepository creates a new qualification repository.
func NewQualificationRepository(db *sqlx.DB) *QualificationRepository {
	return &QualificationRepository{db: db}
}

const qualificationColumns = "id, enrollment_id, teacher_id, grade, description, created_at"

// FindByID returns the qualification record with the given id.
func (r *QualificationRepository) FindByID(ctx context.Context, id string) (*models.Qualification, error) {
	var record models.Qualification
	query := fmt.Sprintf("SELECT %s FROM qualifications WHERE id = $1", qualificationColumns)
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new qualification record, timestamped at creation.
func (r *QualificationRepository) Create(ctx context.Context, record *models.Qualification) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO qualifications (id, enrollment_id, teacher_id, grade, description, created_at)
        VALUES (:id, :enrollment_id, :teacher_id, :grade, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create qualification: %w", err)
	}
	return nil
}

// Update persists the record's grade, description and issuing teacher.
func (r *QualificationRepository) Update(ctx context.Context, record *models.Qualification) error {
	const query = `UPDATE qualifications SET grade = :grade, description = :description, teacher_id = :teacher_id
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update qualification: %w", err)
	}
	return nil
}

// Delete removes a qualification record.
func (r *QualificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM qualifications WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete qualification: %w", err)
	}
	return nil
}

// ListByEnrollment returns the enrollment's records ordered by creation time
// ascending, with the issuing teacher loaded for display names.
func (r *QualificationRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Qualification, error) {
	grouped, err := loadQualificationsByEnrollments(ctx, r.db, []string{enrollmentID})
	if err != nil {
		return nil, err
	}
	return grouped[enrollmentID], nil
}

// qualificationRow flattens a record and its joined teacher columns.
type qualificationRow struct {
	models.Qualification
	TeacherNames  *string `db:"teacher_names"`
	TeacherFather *string `db:"teacher_father_last_name"`
	TeacherMother *string `db:"teacher_mother_last_name"`
}

// loadQualificationsByEnrollments fetches record histories for a batch of
// enrollments in one query, grouped by enrollment id and ordered by creation
// time ascending. Shared by the qualification and enrollment repositories.
func loadQualificationsByEnrollments(ctx context.Context, db *sqlx.DB, enrollmentIDs []string) (map[string][]models.Qualification, error) {
	if len(enrollmentIDs) == 0 {
		return map[string][]models.Qualification{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT q.id, q.enrollment_id, q.teacher_id, q.grade, q.description, q.created_at,
        t.names AS teacher_names, t.father_last_name AS teacher_father_last_name, t.mother_last_name AS teacher_mother_last_name
        FROM qualifications q
        LEFT JOIN teachers t ON t.id = q.teacher_id
        WHERE q.enrollment_id IN (%s)
        ORDER BY q.created_at ASC`, strings.Join(placeholders, ","))
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch qualifications: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Qualification, len(enrollmentIDs))
	for rows.Next() {
		var row qualificationRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan qualification: %w", err)
		}
		record := row.Qualification
		if record.TeacherID != nil && row.TeacherNames != nil {
			record.Teacher = &models.Teacher{
				ID:             *record.TeacherID,
				Names:          *row.TeacherNames,
				FatherLastName: derefString(row.TeacherFather),
				MotherLastName: derefString(row.TeacherMother),
			}
		}
		if record.EnrollmentID != nil {
			result[*record.EnrollmentID] = append(result[*record.EnrollmentID], record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qualifications: %w", err)
	}
	return result, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
