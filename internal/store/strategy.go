package store

import (
	"context"

	"github.com/ytakahashi/taskboard/internal/client"
	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/session"
)

// Mode says where a store keeps its tasks.
type Mode int

const (
	ModeGuest Mode = iota
	ModeSignedIn
)

func (m Mode) String() string {
	if m == ModeSignedIn {
		return "signed-in"
	}
	return "guest"
}

// Strategy is a backing store for the task collection. Drafts and patches
// reach a Strategy already validated.
type Strategy interface {
	Mode() Mode
	// Load returns the tasks matching f, newest first.
	Load(ctx context.Context, f filter.Filter) ([]models.Task, error)
	Add(ctx context.Context, draft models.Draft) error
	// Update is a no-op for an unknown id in guest mode.
	Update(ctx context.Context, id string, p models.Patch) error
	// Delete never fails because the id is unknown.
	Delete(ctx context.Context, id string) error
}

// ForIdentity picks the strategy for a session: the remote API when the
// client carries an identity, session storage otherwise. Tasks held by a
// guest are not carried over when the user later signs in.
func ForIdentity(c *client.Client, guest *session.GuestAdapter) Strategy {
	if c != nil && c.Authenticated() {
		return NewRemote(c)
	}
	return NewLocal(guest)
}
