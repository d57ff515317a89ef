package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chronicle-server/internal/models"
)

// APIError is the uniform error payload.
type APIError struct {
	Error string `json:"error"`
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Artifact failures never reach this point; they degrade inside the turn.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrBudgetExceeded):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrSceneNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrTurnInProgress),
		errors.Is(err, models.ErrChronicleConcluded):
		status = http.StatusConflict
	case errors.Is(err, models.ErrOracleFailure),
		errors.Is(err, models.ErrOracleMalformed):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrPersistenceFailure):
		status = http.StatusInternalServerError
	}

	c.JSON(status, APIError{Error: err.Error()})
}
