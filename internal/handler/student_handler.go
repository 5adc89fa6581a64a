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

// StudentHandler wires student services to HTTP routes.
type StudentHandler struct {
	students *service.StudentService
	reports  *service.ReportService
}

// NewStudentHandler constructs a new StudentHandler.
func NewStudentHandler(students *service.StudentService, reports *service.ReportService) *StudentHandler {
	return &StudentHandler{students: students, reports: reports}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name/email/code"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
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

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Deactivate godoc
// @Summary Deactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Deactivate(c *gin.Context) {
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Subjects godoc
// @Summary List the subjects a student is enrolled in
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param include_inactive query bool false "Include inactive enrollments"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects [get]
func (h *StudentHandler) Subjects(c *gin.Context) {
	includeInactive := strings.EqualFold(c.Query("include_inactive"), "true")
	subjects, err := h.students.Subjects(c.Request.Context(), c.Param("id"), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// SubjectQualifications godoc
// @Summary List a student's per-subject grades with record history
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param include_inactive query bool false "Include inactive enrollments"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects/qualifications [get]
func (h *StudentHandler) SubjectQualifications(c *gin.Context) {
	includeInactive := strings.EqualFold(c.Query("include_inactive"), "true")
	subjects, err := h.students.SubjectQualifications(c.Request.Context(), c.Param("id"), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// GradeReport godoc
// @Summary Download a student's grade summary
// @Tags Students
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param format query string false "Output format (pdf or csv)"
// @Success 200 {file} binary
// @Router /students/{id}/grade-report [get]
func (h *StudentHandler) GradeReport(c *gin.Context) {
	format := service.ReportFormat(strings.ToLower(c.DefaultQuery("format", "pdf")))
	report, err := h.reports.StudentGradeReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+report.Filename)
	c.Data(http.StatusOK, report.ContentType, report.Content)
}
