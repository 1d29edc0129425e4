package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/validation"
	"github.com/taskmaster/taskboard/internal/ports"
)

// ServerErrorMessage is the message of every unexpected failure. The server
// replaces it with a redacted one in production.
const ServerErrorMessage = "Server error"

// Error maps a service error to the HTTP error rendered to the client.
// Unknown errors become a 500 carrying the cause as Internal.
func Error(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var ve *validation.Error
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	}

	switch {
	case errors.Is(err, entities.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "User already exists")
	case errors.Is(err, entities.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID")
	case errors.Is(err, entities.ErrAssigneeNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Assignee not found")
	case errors.Is(err, ports.ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid due date")
	case errors.Is(err, entities.ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, "Status must be one of: todo, in-progress, done")
	case errors.Is(err, entities.ErrInvalidPriority):
		return echo.NewHTTPError(http.StatusBadRequest, "Priority must be one of: low, medium, high")
	case errors.Is(err, entities.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, entities.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized to access this route")
	case errors.Is(err, entities.ErrProjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Project not found")
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	case errors.Is(err, entities.ErrSubtaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Subtask not found")
	case errors.Is(err, entities.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, entities.ErrAccessDenied):
		// Ownership failures never reveal that the resource exists.
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	}

	return echo.NewHTTPError(http.StatusInternalServerError, ServerErrorMessage).SetInternal(err)
}
