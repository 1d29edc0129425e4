package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// TaskHandler handles task and subtask requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks godoc
// @Summary List tasks across the caller's projects
// @Tags tasks
// @Produce json
// @Param status query string false "todo, in-progress, done or all"
// @Param priority query string false "low, medium, high or all"
// @Param assignee query string false "User ID or all"
// @Param search query string false "Literal text matched in title or description"
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, 1 to 100"
// @Success 200 {object} ports.TaskListResponse
// @Failure 400 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	var q ports.ListTasksQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), getUserIDFromContext(c), q)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} ports.TaskView
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), getUserIDFromContext(c), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} ports.TaskView
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.taskService.GetTask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"))
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Description The project of a task cannot be changed
// @Tags tasks
// @Accept json
// @Produce json
// @Param taskId path string true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} ports.TaskView
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus godoc
// @Summary Move a task to another status
// @Tags tasks
// @Accept json
// @Produce json
// @Param taskId path string true "Task ID"
// @Param request body ports.UpdateTaskStatusRequest true "New status"
// @Success 200 {object} ports.StatusUpdateResponse
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId}/status [put]
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	var req ports.UpdateTaskStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.taskService.UpdateTaskStatus(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.DeleteTask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId")); err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Task deleted successfully"})
}

// AddSubtask godoc
// @Summary Add a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param taskId path string true "Task ID"
// @Param request body ports.AddSubtaskRequest true "Subtask data"
// @Success 201 {object} entities.Subtask
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId}/subtasks [post]
func (h *TaskHandler) AddSubtask(c echo.Context) error {
	var req ports.AddSubtaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	subtask, err := h.taskService.AddSubtask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusCreated, subtask)
}

// UpdateSubtask godoc
// @Summary Update a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param taskId path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Param request body ports.UpdateSubtaskRequest true "Fields to change"
// @Success 200 {object} entities.Subtask
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId}/subtasks/{subtaskId} [put]
func (h *TaskHandler) UpdateSubtask(c echo.Context) error {
	var req ports.UpdateSubtaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	subtask, err := h.taskService.UpdateSubtask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"), c.Param("subtaskId"), req)
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, subtask)
}

// DeleteSubtask godoc
// @Summary Delete a subtask
// @Tags subtasks
// @Produce json
// @Param taskId path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{taskId}/subtasks/{subtaskId} [delete]
func (h *TaskHandler) DeleteSubtask(c echo.Context) error {
	if err := h.taskService.DeleteSubtask(c.Request().Context(), getUserIDFromContext(c), c.Param("taskId"), c.Param("subtaskId")); err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Subtask deleted successfully"})
}
