package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/session"
)

// Local keeps the guest's tasks in memory and mirrors every change into
// session storage.
type Local struct {
	mu     sync.Mutex
	guest  *session.GuestAdapter
	tasks  []models.Task
	loaded bool
	now    func() time.Time
	newID  func() string
}

func NewLocal(guest *session.GuestAdapter) *Local {
	return &Local{
		guest: guest,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func (l *Local) Mode() Mode {
	return ModeGuest
}

// hydrate reads session storage once. Corrupt content starts the session
// empty and is overwritten by the next change; a storage failure is returned
// and retried on the next call.
func (l *Local) hydrate(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	tasks, err := l.guest.Load(ctx)
	if errors.Is(err, session.ErrCorrupt) {
		log.Printf("Discarding unreadable guest tasks: %v", err)
		tasks = []models.Task{}
	} else if err != nil {
		return err
	}
	l.tasks = tasks
	l.loaded = true
	return nil
}

// persist writes the collection out. A failed write is logged and does not
// undo the in-memory change.
func (l *Local) persist(ctx context.Context) {
	if err := l.guest.Save(ctx, l.tasks); err != nil {
		log.Printf("Failed to save guest tasks: %v", err)
	}
}

func (l *Local) Load(ctx context.Context, f filter.Filter) ([]models.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.hydrate(ctx); err != nil {
		return nil, err
	}
	return f.Apply(l.tasks), nil
}

func (l *Local) Add(ctx context.Context, draft models.Draft) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.hydrate(ctx); err != nil {
		return err
	}

	task := draft.NewTask(l.newID(), models.GuestUserID, l.now().UTC())
	tasks := make([]models.Task, 0, len(l.tasks)+1)
	tasks = append(tasks, task)
	l.tasks = append(tasks, l.tasks...)
	l.persist(ctx)
	return nil
}

func (l *Local) Update(ctx context.Context, id string, p models.Patch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.hydrate(ctx); err != nil {
		return err
	}

	for i := range l.tasks {
		if l.tasks[i].ID == id {
			p.Apply(&l.tasks[i])
			l.persist(ctx)
			return nil
		}
	}
	return nil
}

func (l *Local) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.hydrate(ctx); err != nil {
		return err
	}

	kept := make([]models.Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(l.tasks) {
		return nil
	}
	l.tasks = kept
	l.persist(ctx)
	return nil
}
