package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/volunteerhub/services/signup/internal/service"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// statusForError maps service sentinels onto HTTP statuses. A full
// opportunity is a 400, a duplicate registration a 409.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateRegistration):
		return http.StatusConflict
	case errors.Is(err, service.ErrCapacityExhausted),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrIllegalTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func clientMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Not found"
	case errors.Is(err, service.ErrDuplicateRegistration):
		return "Already registered for this opportunity"
	case errors.Is(err, service.ErrCapacityExhausted):
		return "No spots available"
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrIllegalTransition):
		return err.Error()
	default:
		return fallback
	}
}
