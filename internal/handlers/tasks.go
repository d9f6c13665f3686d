package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ytakahashi/taskboard/internal/auth"
	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/services"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
	}
}

// Register mounts the task collection endpoints on g.
func (h *TaskHandler) Register(g *echo.Group) {
	g.GET("/tasks", h.List)
	g.POST("/tasks", h.Create)
	g.PATCH("/tasks", h.Patch)
	g.DELETE("/tasks", h.Delete)
}

type patchRequest struct {
	ID string `json:"id"`
	models.Patch
}

type deleteRequest struct {
	ID string `json:"id"`
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.String(http.StatusUnauthorized, "Unauthorized")
}

func (h *TaskHandler) List(c echo.Context) error {
	userID, ok := auth.UserFrom(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, []models.Task{})
	}

	f, err := filter.ParseQuery(c.QueryParams())
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	tasks, err := h.tasks.List(c.Request().Context(), userID, f)
	if err != nil {
		log.Printf("Failed to list tasks for user %s: %v", userID, err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch tasks")
	}

	return c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Create(c echo.Context) error {
	userID, ok := auth.UserFrom(c.Request().Context())
	if !ok {
		return unauthorized(c)
	}

	var draft models.Draft
	if err := (&echo.DefaultBinder{}).BindBody(c, &draft); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	task, err := h.tasks.Create(c.Request().Context(), userID, draft)
	if err != nil {
		if isValidationError(err) {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		log.Printf("Failed to create task for user %s: %v", userID, err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to add task")
	}

	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) Patch(c echo.Context) error {
	userID, ok := auth.UserFrom(c.Request().Context())
	if !ok {
		return unauthorized(c)
	}

	var req patchRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.ID == "" {
		return errorJSON(c, http.StatusBadRequest, "id is required")
	}

	fields, err := h.tasks.Patch(c.Request().Context(), userID, req.ID, req.Patch)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return c.String(http.StatusNotFound, "Not Found or Unauthorized")
		case isValidationError(err):
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		log.Printf("Failed to update task %s for user %s: %v", req.ID, userID, err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to update task")
	}

	fields["id"] = req.ID
	return c.JSON(http.StatusOK, fields)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	userID, ok := auth.UserFrom(c.Request().Context())
	if !ok {
		return unauthorized(c)
	}

	var req deleteRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.ID == "" {
		return errorJSON(c, http.StatusBadRequest, "id is required")
	}

	if err := h.tasks.Remove(c.Request().Context(), userID, req.ID); err != nil {
		log.Printf("Failed to delete task %s for user %s: %v", req.ID, userID, err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to delete task")
	}

	return c.NoContent(http.StatusNoContent)
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyTitle) ||
		errors.Is(err, models.ErrTitleTooLong) ||
		errors.Is(err, models.ErrInvalidStatus)
}
