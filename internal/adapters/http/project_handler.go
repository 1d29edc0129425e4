package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// ProjectHandler handles project-related requests
type ProjectHandler struct {
	projectService ports.ProjectService
	taskService    ports.TaskService
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService ports.ProjectService, taskService ports.TaskService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
		logger:         logger,
	}
}

// ListProjects godoc
// @Summary List the caller's projects
// @Description Projects newest first, each with per-status task counts
// @Tags projects
// @Produce json
// @Success 200 {array} ports.ProjectView
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	projects, err := h.projectService.ListProjects(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, projects)
}

// CreateProject godoc
// @Summary Create a new project
// @Description Create a new project with the provided details
// @Tags projects
// @Accept json
// @Produce json
// @Param request body ports.CreateProjectRequest true "Project data"
// @Success 201 {object} entities.Project
// @Failure 400 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var req ports.CreateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projectService.CreateProject(c.Request().Context(), getUserIDFromContext(c), req)
	if err != nil {
		return Error(err)
	}

	return c.JSON(http.StatusCreated, project)
}

// GetProject godoc
// @Summary Get project by ID
// @Description Get project information by project ID
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} ports.ProjectView
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	project, err := h.projectService.GetProject(c.Request().Context(), getUserIDFromContext(c), c.Param("id"))
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, project)
}

// UpdateProject godoc
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.UpdateProjectRequest true "Fields to change"
// @Success 200 {object} entities.Project
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	var req ports.UpdateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projectService.UpdateProject(c.Request().Context(), getUserIDFromContext(c), c.Param("id"), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete a project and all of its tasks
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	if err := h.projectService.DeleteProject(c.Request().Context(), getUserIDFromContext(c), c.Param("id")); err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Project deleted successfully"})
}

// GetProjectTasks godoc
// @Summary List the tasks of a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Param status query string false "todo, in-progress, done or all"
// @Param priority query string false "low, medium, high or all"
// @Param assignee query string false "User ID or all"
// @Param search query string false "Literal text matched in title or description"
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, 1 to 100"
// @Success 200 {object} ports.TaskListResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks [get]
func (h *ProjectHandler) GetProjectTasks(c echo.Context) error {
	projectID := c.Param("id")
	if projectID == "" {
		projectID = c.Param("projectId")
	}

	var q ports.ListTasksQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	tasks, err := h.taskService.ListProjectTasks(c.Request().Context(), getUserIDFromContext(c), projectID, q)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// GetProjectStatistics godoc
// @Summary Task statistics of a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} entities.TaskStatistics
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/statistics [get]
func (h *ProjectHandler) GetProjectStatistics(c echo.Context) error {
	stats, err := h.projectService.GetStatistics(c.Request().Context(), getUserIDFromContext(c), c.Param("id"))
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, stats)
}
