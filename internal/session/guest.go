package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ytakahashi/taskboard/internal/models"
)

// GuestTasksKey is the storage slot holding the guest's task list.
const GuestTasksKey = "guest_tasks"

// ErrCorrupt is returned when the stored value is not a valid task list.
var ErrCorrupt = errors.New("stored guest tasks are unreadable")

// GuestAdapter reads and writes the guest task list as one JSON array.
type GuestAdapter struct {
	storage Storage
	key     string
}

func NewGuestAdapter(storage Storage) *GuestAdapter {
	return &GuestAdapter{
		storage: storage,
		key:     GuestTasksKey,
	}
}

// Load returns the stored tasks in their saved order, or an empty list when
// nothing has been saved yet.
func (g *GuestAdapter) Load(ctx context.Context) ([]models.Task, error) {
	raw, ok, err := g.storage.GetItem(ctx, g.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []models.Task{}, nil
	}

	tasks := []models.Task{}
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tasks, nil
}

// Save replaces the stored list.
func (g *GuestAdapter) Save(ctx context.Context, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode guest tasks: %w", err)
	}
	return g.storage.SetItem(ctx, g.key, string(data))
}
