package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/colegio-app/colegio-api/internal/service"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/response"
)

// ExportHandler exposes the async grade-report export pipeline.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs a new ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create godoc
// @Summary Queue a grade report export
// @Tags Exports
// @Produce json
// @Param id path string true "Student ID"
// @Param format query string false "Report format (pdf or csv)" default(pdf)
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/grade-report/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	format := service.ReportFormat(strings.ToLower(c.DefaultQuery("format", "pdf")))
	job, err := h.exports.RequestStudentGradeReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/jobs/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Job(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download an exported grade report
// @Tags Exports
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.exports.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.DataFromReader(http.StatusOK, download.Size, download.ContentType, download.File, nil)
}
