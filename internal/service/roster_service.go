package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/colegio-app/colegio-api/internal/grading"
	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	ListForTutor(ctx context.Context, teacherID string) ([]models.Classroom, error)
}

type offeringStore interface {
	ListForTeacher(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error)
	ListForTeacherWithRelations(ctx context.Context, teacherID string, onlyActive bool) ([]models.ClassroomSubject, error)
	ListForClassroomWithRosters(ctx context.Context, classroomID string, onlyActive bool) ([]models.ClassroomSubject, error)
}

// ClassroomRosterRequest identifies the teacher, the classroom, and the
// authenticated caller asking for the roster.
type ClassroomRosterRequest struct {
	TeacherID        string `validate:"required"`
	ClassroomID      string `validate:"required"`
	RequestingUserID string `validate:"required"`
	CanManageAny     bool
	IncludeInactive  bool
}

// RosterSubjectEntry is one student's standing in one offering, including
// the full grading history and the per-subject rolling average.
type RosterSubjectEntry struct {
	EnrollmentID       string                       `json:"classroom_subject_student_id"`
	ClassroomSubjectID string                       `json:"classroom_subject_id"`
	SubjectID          string                       `json:"subject_id"`
	SubjectName        string                       `json:"subject_name"`
	TeacherID          *string                      `json:"teacher_id,omitempty"`
	TeacherName        *string                      `json:"teacher_name,omitempty"`
	Qualification      *string                      `json:"qualification,omitempty"`
	Status             *string                      `json:"status,omitempty"`
	Active             bool                         `json:"is_active"`
	CanManage          bool                         `json:"can_manage"`
	AverageGrade       *string                      `json:"average_grade,omitempty"`
	AverageScore       *float64                     `json:"average_score,omitempty"`
	History            []QualificationRecordSummary `json:"history"`
}

// RosterStudentSummary groups a student's subject entries and carries the
// cross-subject numeric average of their raw qualification strings.
type RosterStudentSummary struct {
	StudentID            string               `json:"student_id"`
	StudentCode          string               `json:"student_code"`
	FullName             string               `json:"full_name"`
	Email                *string              `json:"email,omitempty"`
	AverageQualification *float64             `json:"average_qualification,omitempty"`
	Subjects             []RosterSubjectEntry `json:"subjects"`
}

// ClassroomRosterResponse is the per-student, per-subject grade view for a
// classroom.
type ClassroomRosterResponse struct {
	Students []RosterStudentSummary `json:"students"`
}

// TeacherClassroomSubject is one offering the teacher covers in a classroom.
type TeacherClassroomSubject struct {
	ClassroomSubjectID string `json:"classroom_subject_id"`
	SubjectID          string `json:"subject_id"`
	SubjectName        string `json:"subject_name"`
	IsSubstitute       bool   `json:"is_substitute"`
}

// TeacherClassroomSummary is one classroom in the teacher's overview, with
// the subjects taught there and the tutor flag.
type TeacherClassroomSummary struct {
	ClassroomID string                    `json:"classroom_id"`
	Name        string                    `json:"name"`
	Level       string                    `json:"level"`
	Degree      string                    `json:"degree"`
	IsTutor     bool                      `json:"is_tutor"`
	Subjects    []TeacherClassroomSubject `json:"subjects"`
}

// TeacherClassroomsResponse lists the classrooms a teacher works in.
type TeacherClassroomsResponse struct {
	Classrooms []TeacherClassroomSummary `json:"classrooms"`
}

// RosterService aggregates classroom grade rosters for teachers.
type RosterService struct {
	teachers   teacherReader
	classrooms classroomReader
	offerings  offeringStore
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(teachers teacherReader, classrooms classroomReader, offerings offeringStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		teachers:   teachers,
		classrooms: classrooms,
		offerings:  offerings,
		cache:      cache,
		validator:  validate,
		logger:     logger,
	}
}

// ClassroomStudents builds the roster for one classroom as seen by one
// teacher. The caller must be that teacher or hold blanket management
// permission, and the teacher must be the classroom's tutor or teach at
// least one of its offerings.
func (s *RosterService) ClassroomStudents(ctx context.Context, req ClassroomRosterRequest) (*ClassroomRosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster request")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if !req.CanManageAny && (teacher.UserID == nil || *teacher.UserID != req.RequestingUserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}

	classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	isTutor := classroom.TutorID != nil && *classroom.TutorID == teacher.ID

	taught, err := s.offerings.ListForTeacher(ctx, teacher.ID, !req.IncludeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher offerings")
	}
	assigned := make(map[string]struct{})
	for _, offering := range taught {
		if offering.ClassroomID == req.ClassroomID {
			assigned[offering.ID] = struct{}{}
		}
	}

	if !isTutor && len(assigned) == 0 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}

	cacheKey := rosterCacheKey(req)
	var cached ClassroomRosterResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	offerings, err := s.offerings.ListForClassroomWithRosters(ctx, req.ClassroomID, !req.IncludeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom roster")
	}

	response := s.aggregate(offerings, req)

	if err := s.cache.Set(ctx, cacheKey, response, 0); err != nil {
		s.logger.Warn("failed to cache roster", zap.String("key", cacheKey), zap.Error(err))
	}

	return response, nil
}

// TeacherClassrooms returns every classroom the teacher works in: those with
// offerings the teacher covers as primary or substitute, plus classrooms the
// teacher tutors even without a current offering. Sorted by classroom name.
func (s *RosterService) TeacherClassrooms(ctx context.Context, teacherID string, includeInactive bool) (*TeacherClassroomsResponse, error) {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	offerings, err := s.offerings.ListForTeacherWithRelations(ctx, teacherID, !includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher offerings")
	}
	tutored, err := s.classrooms.ListForTutor(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor classrooms")
	}
	tutorIDs := make(map[string]struct{}, len(tutored))
	for _, classroom := range tutored {
		tutorIDs[classroom.ID] = struct{}{}
	}

	summaries := make(map[string]*TeacherClassroomSummary)
	for _, offering := range offerings {
		if offering.Subject == nil || offering.Classroom == nil {
			continue
		}
		classroom := offering.Classroom
		summary, ok := summaries[classroom.ID]
		if !ok {
			_, isTutor := tutorIDs[classroom.ID]
			summary = &TeacherClassroomSummary{
				ClassroomID: classroom.ID,
				Name:        classroom.Name,
				Level:       classroom.Level,
				Degree:      classroom.Degree,
				IsTutor:     isTutor,
			}
			summaries[classroom.ID] = summary
		}
		summary.Subjects = append(summary.Subjects, TeacherClassroomSubject{
			ClassroomSubjectID: offering.ID,
			SubjectID:          offering.SubjectID,
			SubjectName:        offering.Subject.Name,
			IsSubstitute:       offering.SubstituteTeacherID != nil && *offering.SubstituteTeacherID == teacherID,
		})
	}

	// Tutored classrooms with no current offering still appear.
	for _, classroom := range tutored {
		if _, ok := summaries[classroom.ID]; ok {
			continue
		}
		summaries[classroom.ID] = &TeacherClassroomSummary{
			ClassroomID: classroom.ID,
			Name:        classroom.Name,
			Level:       classroom.Level,
			Degree:      classroom.Degree,
			IsTutor:     true,
			Subjects:    []TeacherClassroomSubject{},
		}
	}

	classrooms := make([]TeacherClassroomSummary, 0, len(summaries))
	for _, summary := range summaries {
		classrooms = append(classrooms, *summary)
	}
	sort.Slice(classrooms, func(i, j int) bool {
		if classrooms[i].Name != classrooms[j].Name {
			return classrooms[i].Name < classrooms[j].Name
		}
		return classrooms[i].ClassroomID < classrooms[j].ClassroomID
	})

	return &TeacherClassroomsResponse{Classrooms: classrooms}, nil
}

// rosterAccumulator collects a student's subject entries while walking the
// classroom offerings.
type rosterAccumulator struct {
	student  *models.Student
	subjects []RosterSubjectEntry
}

func (s *RosterService) aggregate(offerings []models.ClassroomSubject, req ClassroomRosterRequest) *ClassroomRosterResponse {
	students := make(map[string]*rosterAccumulator)

	for i := range offerings {
		offering := &offerings[i]
		if offering.Subject == nil || offering.Classroom == nil {
			continue
		}

		primaryTeacherID := offering.TeacherID
		if primaryTeacherID == nil {
			primaryTeacherID = offering.SubstituteTeacherID
		}
		displayTeacher := offering.Teacher
		if displayTeacher == nil || displayTeacher.Names == "" {
			displayTeacher = offering.SubstituteTeacher
		}
		var teacherName *string
		if displayTeacher != nil && displayTeacher.Names != "" {
			name := displayTeacher.ShortName()
			teacherName = &name
		}

		for _, enrollment := range offering.Enrollments {
			if !req.IncludeInactive && !enrollment.Active {
				continue
			}
			if enrollment.Student == nil {
				continue
			}

			canManage := req.CanManageAny || offering.AuthorizesTeacher(req.TeacherID)

			records := sortRecordsByCreation(enrollment.Qualifications)
			history := make([]QualificationRecordSummary, 0, len(records))
			var scores []float64
			for _, record := range records {
				summary := rosterRecordSummary(record)
				if summary.Grade != nil {
					if score, ok := grading.ScoreOf(*summary.Grade); ok {
						scores = append(scores, score)
					}
				}
				history = append(history, summary)
			}

			var currentGrade *string
			if enrollment.Qualification != nil {
				if grade, ok := grading.Normalize(*enrollment.Qualification); ok {
					letter := string(grade)
					currentGrade = &letter
				}
			}
			if len(scores) == 0 && currentGrade != nil {
				if score, ok := grading.ScoreOf(*currentGrade); ok {
					scores = append(scores, score)
				}
			}

			var averageScore *float64
			var averageGrade *string
			if mean, ok := grading.Mean(scores); ok {
				averageScore = &mean
				letter := string(grading.FromScore(mean))
				averageGrade = &letter
			} else {
				averageGrade = currentGrade
			}

			entry := RosterSubjectEntry{
				EnrollmentID:       enrollment.ID,
				ClassroomSubjectID: offering.ID,
				SubjectID:          offering.SubjectID,
				SubjectName:        offering.Subject.Name,
				TeacherID:          primaryTeacherID,
				TeacherName:        teacherName,
				Qualification:      enrollment.Qualification,
				Status:             enrollment.Status,
				Active:             enrollment.Active,
				CanManage:          canManage,
				AverageGrade:       averageGrade,
				AverageScore:       averageScore,
				History:            history,
			}

			acc, ok := students[enrollment.Student.ID]
			if !ok {
				acc = &rosterAccumulator{student: enrollment.Student}
				students[enrollment.Student.ID] = acc
			}
			acc.subjects = append(acc.subjects, entry)
		}
	}

	summaries := make([]RosterStudentSummary, 0, len(students))
	for _, acc := range students {
		var numeric []float64
		for _, subject := range acc.subjects {
			if subject.Qualification == nil {
				continue
			}
			if value, ok := grading.ParseNumeric(*subject.Qualification); ok {
				numeric = append(numeric, value)
			}
		}
		var average *float64
		if mean, ok := grading.Mean(numeric); ok {
			rounded := grading.Round2(mean)
			average = &rounded
		}
		summaries = append(summaries, RosterStudentSummary{
			StudentID:            acc.student.ID,
			StudentCode:          acc.student.Code,
			FullName:             acc.student.FullName(),
			Email:                acc.student.Email,
			AverageQualification: average,
			Subjects:             acc.subjects,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].FullName != summaries[j].FullName {
			return summaries[i].FullName < summaries[j].FullName
		}
		return summaries[i].StudentID < summaries[j].StudentID
	})

	return &ClassroomRosterResponse{Students: summaries}
}

// sortRecordsByCreation orders a record history by creation time ascending
// without trusting the store's ordering. Zero timestamps sort oldest.
func sortRecordsByCreation(records []models.Qualification) []models.Qualification {
	ordered := make([]models.Qualification, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// rosterRecordSummary mirrors summarizeRecord but uses the shorter display
// name the roster shows for issuing teachers.
func rosterRecordSummary(record models.Qualification) QualificationRecordSummary {
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
	if record.Teacher != nil && record.Teacher.Names != "" {
		name := record.Teacher.ShortName()
		summary.TeacherFullName = &name
	}
	if !record.CreatedAt.IsZero() {
		createdAt := record.CreatedAt
		summary.CreatedAt = &createdAt
	}
	return summary
}

func rosterCacheKey(req ClassroomRosterRequest) string {
	return fmt.Sprintf("roster:%s:%s:%t:%t", req.ClassroomID, req.TeacherID, req.CanManageAny, req.IncludeInactive)
}

func rosterCachePattern(classroomID string) string {
	return fmt.Sprintf("roster:%s:*", classroomID)
}
