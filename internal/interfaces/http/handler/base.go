package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/interfaces/http/dto"
	"github.com/tresoria/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with an explicit status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BindingError sends a 400 with per-field details for a failed request bind
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// BadRequest sends a 400 for a malformed request
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleError maps a classified domain error onto its HTTP status. The
// error's own code and message are passed through untouched so a caller
// sees exactly what the guard or the backend reported.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.StatusForError(err), domainErr.Code, domainErr.Message)
		return
	}
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
