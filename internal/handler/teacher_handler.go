package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/colegio-app/colegio-api/internal/models"
	"github.com/colegio-app/colegio-api/internal/service"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/response"
)

// TeacherHandler wires teacher and grading services to HTTP routes.
type TeacherHandler struct {
	teachers       *service.TeacherService
	qualifications *service.QualificationService
	roster         *service.RosterService
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService, qualifications *service.QualificationService, roster *service.RosterService) *TeacherHandler {
	return &TeacherHandler{
		teachers:       teachers,
		qualifications: qualifications,
		roster:         roster,
	}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by name/email/code"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (names,email,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if active := c.Query("active"); active != "" {
		switch strings.ToLower(active) {
		case "true":
			val := true
			filter.Active = &val
		case "false":
			val := false
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	teachers, pagination, err := h.teachers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req service.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Deactivate godoc
// @Summary Deactivate teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Deactivate(c *gin.Context) {
	if err := h.teachers.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ManageQualification godoc
// @Summary Create or update a student's qualification in one of the teacher's offerings
// @Tags Qualifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.ManageQualificationRequest true "Qualification payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/{teacherId}/qualifications [post]
func (h *TeacherHandler) ManageQualification(c *gin.Context) {
	var req service.ManageQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid qualification payload"))
		return
	}
	req.TeacherID = c.Param("teacherId")

	result, err := h.qualifications.Manage(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeleteQualification godoc
// @Summary Delete a qualification record and recompute the current grade
// @Tags Qualifications
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param qualificationId path string true "Qualification record ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/{teacherId}/qualifications/{qualificationId} [delete]
func (h *TeacherHandler) DeleteQualification(c *gin.Context) {
	result, err := h.qualifications.Delete(c.Request.Context(), c.Param("teacherId"), c.Param("qualificationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Classrooms godoc
// @Summary List the classrooms a teacher works in
// @Tags Teachers
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param include_inactive query bool false "Include inactive offerings"
// @Success 200 {object} response.Envelope
// @Router /teachers/{teacherId}/classrooms [get]
func (h *TeacherHandler) Classrooms(c *gin.Context) {
	includeInactive := strings.EqualFold(c.Query("include_inactive"), "true")
	result, err := h.roster.TeacherClassrooms(c.Request.Context(), c.Param("teacherId"), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClassroomStudents godoc
// @Summary Aggregate the roster of a classroom for one of the teacher's assignments
// @Tags Qualifications
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param classroomId path string true "Classroom ID"
// @Param include_inactive query bool false "Include inactive enrollments"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/{teacherId}/classrooms/{classroomId}/students [get]
func (h *TeacherHandler) ClassroomStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.ClassroomRosterRequest{
		TeacherID:        c.Param("teacherId"),
		ClassroomID:      c.Param("classroomId"),
		RequestingUserID: claims.UserID,
		CanManageAny:     claims.HasPermission(models.PermManageQualifications),
		IncludeInactive:  strings.EqualFold(c.Query("include_inactive"), "true"),
	}

	result, err := h.roster.ClassroomStudents(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
