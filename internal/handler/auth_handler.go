package handler

import (
	"errors"
	"net/http"

	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/response"
	"github.com/eduprep/mocktest-backend/internal/service"
	"github.com/eduprep/mocktest-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles student authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, student, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":   token,
		"student": student,
	})
}
