package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/response"
)

// RequirePermission allows the request through when the claims carry any of
// the named permissions.
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, permission := range permissions {
			if claims.HasPermission(permission) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireTeacherOrPermission accepts requests whose claims match the teacher
// id in the named path parameter, or carry any of the permissions. This is
// the rule behind the per-teacher grading routes.
func RequireTeacherOrPermission(param string, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if teacherID := c.Param(param); teacherID != "" && claims.IsTeacher(teacherID) {
			c.Next()
			return
		}
		for _, permission := range permissions {
			if claims.HasPermission(permission) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireStudentOrPermission accepts requests whose claims match the student
// id in the named path parameter, or carry any of the permissions. Backs the
// student-facing subject and qualification views.
func RequireStudentOrPermission(param string, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if studentID := c.Param(param); studentID != "" && claims.IsStudent(studentID) {
			c.Next()
			return
		}
		for _, permission := range permissions {
			if claims.HasPermission(permission) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

func claimsFrom(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
