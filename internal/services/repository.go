package services

import (
	"context"
	"errors"

	"github.com/ytakahashi/taskboard/internal/models"
)

// ErrNotFound is returned when no task owned by the caller matched.
var ErrNotFound = errors.New("task not found")

// Where selects tasks. Empty fields are not constrained.
type Where struct {
	ID        string
	UserID    string
	Status    *models.Status
	Important *bool
}

// OrderBy names a sort field using the stored field name.
type OrderBy struct {
	Field string
	Desc  bool
}

// NewestFirst is the default task ordering.
var NewestFirst = OrderBy{Field: "createdAt", Desc: true}

// TaskRepository is the document store behind the task service.
type TaskRepository interface {
	FindMany(ctx context.Context, where Where, orderBy OrderBy) ([]models.Task, error)
	Create(ctx context.Context, task models.Task) error
	// UpdateMany applies fields to every matching task and returns the match count.
	UpdateMany(ctx context.Context, where Where, fields map[string]any) (int, error)
	// DeleteMany removes every matching task and returns how many were removed.
	DeleteMany(ctx context.Context, where Where) (int, error)
	Close() error
}
