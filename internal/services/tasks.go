package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
)

// ErrNoOwner is returned when a call arrives without a user id.
var ErrNoOwner = errors.New("owner is required")

// TaskService scopes every repository call to the calling user.
type TaskService struct {
	repo  TaskRepository
	now   func() time.Time
	newID func() string
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		repo:  repo,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// List returns the user's tasks matching f, newest first.
func (s *TaskService) List(ctx context.Context, userID string, f filter.Filter) ([]models.Task, error) {
	if userID == "" {
		return nil, ErrNoOwner
	}

	tasks, err := s.repo.FindMany(ctx, Where{
		UserID:    userID,
		Status:    f.Status,
		Important: f.Important,
	}, NewestFirst)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Create validates the draft and stores it as a new task owned by userID.
func (s *TaskService) Create(ctx context.Context, userID string, draft models.Draft) (*models.Task, error) {
	if userID == "" {
		return nil, ErrNoOwner
	}

	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	task := draft.NewTask(s.newID(), userID, s.now().UTC())
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Patch updates the fields present in p on the task matching both id and
// userID. A missing task and a task owned by someone else both yield
// ErrNotFound.
func (s *TaskService) Patch(ctx context.Context, userID, id string, p models.Patch) (map[string]any, error) {
	if userID == "" {
		return nil, ErrNoOwner
	}
	if id == "" {
		return nil, ErrNotFound
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	fields := p.Fields()
	matched, err := s.repo.UpdateMany(ctx, Where{ID: id, UserID: userID}, fields)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

// Complete marks the task as Completed.
func (s *TaskService) Complete(ctx context.Context, userID, id string) error {
	_, err := s.Patch(ctx, userID, id, models.StatusPatch(models.StatusCompleted))
	return err
}

// Remove deletes the task matching both id and userID. Deleting a task that
// does not exist is not an error.
func (s *TaskService) Remove(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrNoOwner
	}
	if id == "" {
		return nil
	}
	if _, err := s.repo.DeleteMany(ctx, Where{ID: id, UserID: userID}); err != nil {
		return err
	}
	return nil
}

// RemoveAll deletes every task owned by userID and returns the count.
func (s *TaskService) RemoveAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrNoOwner
	}
	return s.repo.DeleteMany(ctx, Where{UserID: userID})
}
