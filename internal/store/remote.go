package store

import (
	"context"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
)

// TaskAPI is the server side of a signed-in session.
type TaskAPI interface {
	List(ctx context.Context, f filter.Filter) ([]models.Task, error)
	Create(ctx context.Context, draft models.Draft) (*models.Task, error)
	Patch(ctx context.Context, id string, p models.Patch) error
	Remove(ctx context.Context, id string) error
}

// Remote forwards every change to the task API. The server is authoritative
// for ids and timestamps, so the store reloads after each change.
type Remote struct {
	api TaskAPI
}

func NewRemote(api TaskAPI) *Remote {
	return &Remote{api: api}
}

func (r *Remote) Mode() Mode {
	return ModeSignedIn
}

func (r *Remote) Load(ctx context.Context, f filter.Filter) ([]models.Task, error) {
	return r.api.List(ctx, f)
}

func (r *Remote) Add(ctx context.Context, draft models.Draft) error {
	_, err := r.api.Create(ctx, draft)
	return err
}

func (r *Remote) Update(ctx context.Context, id string, p models.Patch) error {
	return r.api.Patch(ctx, id, p)
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	return r.api.Remove(ctx, id)
}
