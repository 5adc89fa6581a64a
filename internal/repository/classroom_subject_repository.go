package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/colegio-app/colegio-api/internal/models"
)

// ClassroomSubjectRepository handles classroom-subject offering persistence.
type ClassroomSubjectRepository struct {
	db *sqlx.DB
}

// NewClassroomSubjectRepository creates a new offering repository.
func NewClassroomSubjectRepository(db *sqlx.DB) *ClassroomSubjectRepository {
	return &ClassroomSubjectRepository{db: db}
}

const classroomSubjectColumns = "id, classroom_id, subject_id, teacher_id, substitute_teacher_id, active, created_at, updated_at"

// FindByID returns the bare offering row.
func (r *ClassroomSubjectRepository) FindByID(ctx context.Context, id string) (*models.ClassroomSubject, error) {
	var offering models.ClassroomSubject
	query := fmt.Sprintf("SELECT %s FROM classroom_subjects WHERE id = $1", classroomSubjectColumns)
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// ListForTeacher returns offerings where the teacher is primary or
// substitute, optionally restricted to active ones.
func (r *ClassroomSubjectRepository) ListForTeacher(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM classroom_subjects WHERE (teacher_id = $1 OR substitute_teacher_id = $1)", classroomSubjectColumns)
	if onlyActive {
		query += " AND active = TRUE"
	}
	query += " ORDER BY created_at ASC"
	var offerings []models.ClassroomSubject
	if err := r.db.SelectContext(ctx, &offerings, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher offerings: %w", err)
	}
	return offerings, nil
}

// ListForTeacherWithRelations returns the teacher's offerings (primary or
// substitute assignment) with subject and classroom loaded, for the
// per-teacher classroom overview.
func (r *ClassroomSubjectRepository) ListForTeacherWithRelations(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	offerings, err := r.ListForTeacher(ctx, teacherID, onlyActive)
	if err != nil || len(offerings) == 0 {
		return offerings, err
	}

	subjectIDs := make([]string, 0, len(offerings))
	classroomIDs := make([]string, 0, len(offerings))
	for _, offering := range offerings {
		subjectIDs = append(subjectIDs, offering.SubjectID)
		classroomIDs = append(classroomIDs, offering.ClassroomID)
	}
	subjects, err := loadSubjectsByIDs(ctx, r.db, subjectIDs)
	if err != nil {
		return nil, err
	}
	classrooms, err := loadClassroomsByIDs(ctx, r.db, classroomIDs)
	if err != nil {
		return nil, err
	}

	for i := range offerings {
		offering := &offerings[i]
		if subject, ok := subjects[offering.SubjectID]; ok {
			s := subject
			offering.Subject = &s
		}
		if classroom, ok := classrooms[offering.ClassroomID]; ok {
			c := classroom
			offering.Classroom = &c
		}
	}
	return offerings, nil
}

// ListForClassroomWithRosters returns all of a classroom's offerings with the
// full roster graph loaded: subject, classroom, both teachers, enrollments,
// each enrollment's student and ordered qualification history. This is the
// eager fetch behind the classroom roster aggregation.
func (r *ClassroomSubjectRepository) ListForClassroomWithRosters(ctx context.Context, classroomID string, onlyActive bool) ([]models.ClassroomSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM classroom_subjects WHERE classroom_id = $1", classroomSubjectColumns)
	if onlyActive {
		query += " AND active = TRUE"
	}
	query += " ORDER BY created_at ASC"
	var offerings []models.ClassroomSubject
	if err := r.db.SelectContext(ctx, &offerings, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom offerings: %w", err)
	}
	if len(offerings) == 0 {
		return offerings, nil
	}

	if err := r.attachRelations(ctx, offerings, classroomID); err != nil {
		return nil, err
	}
	return offerings, nil
}

func (r *ClassroomSubjectRepository) attachRelations(ctx context.Context, offerings []models.ClassroomSubject, classroomID string) error {
	subjectIDs := make([]string, 0, len(offerings))
	teacherIDs := make([]string, 0, len(offerings)*2)
	offeringIDs := make([]string, 0, len(offerings))
	for _, offering := range offerings {
		subjectIDs = append(subjectIDs, offering.SubjectID)
		offeringIDs = append(offeringIDs, offering.ID)
		if offering.TeacherID != nil {
			teacherIDs = append(teacherIDs, *offering.TeacherID)
		}
		if offering.SubstituteTeacherID != nil {
			teacherIDs = append(teacherIDs, *offering.SubstituteTeacherID)
		}
	}

	subjects, err := loadSubjectsByIDs(ctx, r.db, subjectIDs)
	if err != nil {
		return err
	}
	teachers, err := loadTeachersByIDs(ctx, r.db, teacherIDs)
	if err != nil {
		return err
	}

	var classroom *models.Classroom
	var room models.Classroom
	switch err := r.db.GetContext(ctx, &room, fmt.Sprintf("SELECT %s FROM classrooms WHERE id = $1", classroomColumns), classroomID); {
	case err == nil:
		classroom = &room
	case errors.Is(err, sql.ErrNoRows):
		// offerings pointing at a deleted classroom are skipped upstream
	default:
		return fmt.Errorf("load classroom: %w", err)
	}

	enrollmentsByOffering, enrollmentIDs, err := r.loadEnrollments(ctx, offeringIDs)
	if err != nil {
		return err
	}
	histories, err := loadQualificationsByEnrollments(ctx, r.db, enrollmentIDs)
	if err != nil {
		return err
	}

	for i := range offerings {
		offering := &offerings[i]
		if subject, ok := subjects[offering.SubjectID]; ok {
			s := subject
			offering.Subject = &s
		}
		offering.Classroom = classroom
		if offering.TeacherID != nil {
			if teacher, ok := teachers[*offering.TeacherID]; ok {
				t := teacher
				offering.Teacher = &t
			}
		}
		if offering.SubstituteTeacherID != nil {
			if teacher, ok := teachers[*offering.SubstituteTeacherID]; ok {
				t := teacher
				offering.SubstituteTeacher = &t
			}
		}
		enrollments := enrollmentsByOffering[offering.ID]
		for j := range enrollments {
			enrollments[j].Qualifications = histories[enrollments[j].ID]
		}
		offering.Enrollments = enrollments
	}
	return nil
}

func (r *ClassroomSubjectRepository) loadEnrollments(ctx context.Context, offeringIDs []string) (map[string][]models.Enrollment, []string, error) {
	if len(offeringIDs) == 0 {
		return map[string][]models.Enrollment{}, nil, nil
	}
	placeholders := make([]string, len(offeringIDs))
	args := make([]interface{}, len(offeringIDs))
	for i, id := range offeringIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT e.id, e.classroom_subject_id, e.student_id, e.qualification, e.status, e.description,
        e.active, e.created_at, e.updated_at,
        s.id AS s_id, s.code AS s_code, s.names AS s_names, s.father_last_name AS s_father_last_name,
        s.mother_last_name AS s_mother_last_name, s.email AS s_email, s.active AS s_active
        FROM classroom_subject_students e
        LEFT JOIN students s ON s.id = e.student_id
        WHERE e.classroom_subject_id IN (%s)
        ORDER BY e.created_at ASC`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch enrollments: %w", err)
	}
	defer rows.Close()

	byOffering := make(map[string][]models.Enrollment)
	var enrollmentIDs []string
	for rows.Next() {
		var row enrollmentRosterRow
		if err := rows.StructScan(&row); err != nil {
			return nil, nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollment := row.Enrollment
		if row.SID != nil {
			enrollment.Student = &models.Student{
				ID:             *row.SID,
				Code:           derefString(row.SCode),
				Names:          derefString(row.SNames),
				FatherLastName: derefString(row.SFather),
				MotherLastName: derefString(row.SMother),
				Email:          row.SEmail,
				Active:         row.SActive != nil && *row.SActive,
			}
		}
		byOffering[enrollment.ClassroomSubjectID] = append(byOffering[enrollment.ClassroomSubjectID], enrollment)
		enrollmentIDs = append(enrollmentIDs, enrollment.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return byOffering, enrollmentIDs, nil
}

// enrollmentRosterRow flattens an enrollment and its joined student columns.
type enrollmentRosterRow struct {
	models.Enrollment
	SID     *string `db:"s_id"`
	SCode   *string `db:"s_code"`
	SNames  *string `db:"s_names"`
	SFather *string `db:"s_father_last_name"`
	SMother *string `db:"s_mother_last_name"`
	SEmail  *string `db:"s_email"`
	SActive *bool   `db:"s_active"`
}

// Create inserts a new offering.
func (r *ClassroomSubjectRepository) Create(ctx context.Context, offering *models.ClassroomSubject) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offering.CreatedAt = now
	offering.UpdatedAt = now
	const query = `INSERT INTO classroom_subjects (id, classroom_id, subject_id, teacher_id, substitute_teacher_id, active, created_at, updated_at)
        VALUES (:id, :classroom_id, :subject_id, :teacher_id, :substitute_teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create classroom subject: %w", err)
	}
	return nil
}

// Update persists mutable offering fields.
func (r *ClassroomSubjectRepository) Update(ctx context.Context, offering *models.ClassroomSubject) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classroom_subjects SET teacher_id = :teacher_id, substitute_teacher_id = :substitute_teacher_id,
        active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("update classroom subject: %w", err)
	}
	return nil
}

// loadOffering fetches one offering with subject, classroom and teacher
// relations, the graph authorization and display need.
func loadOffering(ctx context.Context, db *sqlx.DB, id string) (*models.ClassroomSubject, error) {
	var offering models.ClassroomSubject
	query := fmt.Sprintf("SELECT %s FROM classroom_subjects WHERE id = $1", classroomSubjectColumns)
	switch err := db.GetContext(ctx, &offering, query, id); {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("load classroom subject: %w", err)
	}

	subjects, err := loadSubjectsByIDs(ctx, db, []string{offering.SubjectID})
	if err != nil {
		return nil, err
	}
	if subject, ok := subjects[offering.SubjectID]; ok {
		s := subject
		offering.Subject = &s
	}

	var classroom models.Classroom
	switch err := db.GetContext(ctx, &classroom, fmt.Sprintf("SELECT %s FROM classrooms WHERE id = $1", classroomColumns), offering.ClassroomID); {
	case err == nil:
		offering.Classroom = &classroom
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("load classroom: %w", err)
	}

	var teacherIDs []string
	if offering.TeacherID != nil {
		teacherIDs = append(teacherIDs, *offering.TeacherID)
	}
	if offering.SubstituteTeacherID != nil {
		teacherIDs = append(teacherIDs, *offering.SubstituteTeacherID)
	}
	teachers, err := loadTeachersByIDs(ctx, db, teacherIDs)
	if err != nil {
		return nil, err
	}
	if offering.TeacherID != nil {
		if teacher, ok := teachers[*offering.TeacherID]; ok {
			t := teacher
			offering.Teacher = &t
		}
	}
	if offering.SubstituteTeacherID != nil {
		if teacher, ok := teachers[*offering.SubstituteTeacherID]; ok {
			t := teacher
			offering.SubstituteTeacher = &t
		}
	}
	return &offering, nil
}

func loadSubjectsByIDs(ctx context.Context, db *sqlx.DB, ids []string) (map[string]models.Subject, error) {
	result := make(map[string]models.Subject, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM subjects WHERE id IN (?)", subjectColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build subject query: %w", err)
	}
	var subjects []models.Subject
	if err := db.SelectContext(ctx, &subjects, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch subjects: %w", err)
	}
	for _, subject := range subjects {
		result[subject.ID] = subject
	}
	return result, nil
}

func loadClassroomsByIDs(ctx context.Context, db *sqlx.DB, ids []string) (map[string]models.Classroom, error) {
	result := make(map[string]models.Classroom, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM classrooms WHERE id IN (?)", classroomColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build classroom query: %w", err)
	}
	var classrooms []models.Classroom
	if err := db.SelectContext(ctx, &classrooms, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch classrooms: %w", err)
	}
	for _, classroom := range classrooms {
		result[classroom.ID] = classroom
	}
	return result, nil
}

func loadTeachersByIDs(ctx context.Context, db *sqlx.DB, ids []string) (map[string]models.Teacher, error) {
	result := make(map[string]models.Teacher, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM teachers WHERE id IN (?)", teacherColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build teacher query: %w", err)
	}
	var teachers []models.Teacher
	if err := db.SelectContext(ctx, &teachers, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch teachers: %w", err)
	}
	for _, teacher := range teachers {
		result[teacher.ID] = teacher
	}
	return result, nil
}
