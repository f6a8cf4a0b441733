package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"siteops/internal/scheduling"
)

// respondError maps domain errors onto HTTP statuses. Conflicting state
// (capacity, lifecycle, resolved requests) is 409; bad input is 400;
// store trouble is 503 so callers know to retry.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrTaskNotFound),
		errors.Is(err, scheduling.ErrDailyTaskNotFound),
		errors.Is(err, scheduling.ErrRequestNotFound),
		errors.Is(err, scheduling.ErrWorkerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrInvalidTransition),
		errors.Is(err, scheduling.ErrCapacityExceeded),
		errors.Is(err, scheduling.ErrDuplicateAssignment),
		errors.Is(err, scheduling.ErrWorkerNotAssigned),
		errors.Is(err, scheduling.ErrDateOutOfRange),
		errors.Is(err, scheduling.ErrWorkerNotEligible),
		errors.Is(err, scheduling.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduling.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
