package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/colegio-app/colegio-api/internal/models"
	"github.com/colegio-app/colegio-api/internal/service"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/response"
)

// AuthHandler wires authentication services to HTTP routes.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Me godoc
// @Summary Return the authenticated user's identity
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info := models.UserInfo{
		ID:          claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		TeacherID:   claims.TeacherID,
		StudentID:   claims.StudentID,
		Permissions: claims.Permissions,
	}
	response.JSON(c, http.StatusOK, info, nil)
}
