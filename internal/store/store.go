// Package store holds the current session's task collection and keeps it in
// sync with either session storage (guests) or the task API (signed-in users).
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ytakahashi/taskboard/internal/client"
	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
)

// NoticeTTL is how long a notice stays visible.
const NoticeTTL = 4 * time.Second

const (
	msgAdded        = "Task added!"
	msgFailed       = "Oops, error."
	msgSignIn       = "Please sign in to see your tasks."
	msgInvalidTitle = "A task needs a title."
)

// Store is the single source of truth for one session's tasks. Create one at
// session start and hand it to every view. It is safe for concurrent use.
type Store struct {
	strategy Strategy

	mu      sync.Mutex
	filter  filter.Filter
	tasks   []models.Task
	loading bool
	gen     uint64
	notice  string
	noticed time.Time
	now     func() time.Time
}

func New(strategy Strategy) *Store {
	return &Store{
		strategy: strategy,
		tasks:    []models.Task{},
		loading:  true,
		now:      time.Now,
	}
}

func (s *Store) Mode() Mode {
	return s.strategy.Mode()
}

// Tasks returns a copy of the visible collection.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Loading reports whether the collection is still being fetched.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Filter() filter.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Notice returns the latest user-facing message while it is still fresh.
func (s *Store) Notice() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == "" || s.now().Sub(s.noticed) >= NoticeTTL {
		return "", false
	}
	return s.notice, true
}

func (s *Store) setNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setNoticeLocked(msg)
}

func (s *Store) setNoticeLocked(msg string) {
	s.notice = msg
	s.noticed = s.now()
}

// Load fetches the collection for the current filter.
func (s *Store) Load(ctx context.Context) error {
	return s.reload(ctx)
}

// SetFilter replaces the active filter and reloads.
func (s *Store) SetFilter(ctx context.Context, f filter.Filter) error {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return s.reload(ctx)
}

// reload fetches the collection. Loads are numbered; a result that arrives
// after a newer load has started is dropped.
func (s *Store) reload(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	f := s.filter
	s.loading = true
	s.mu.Unlock()

	tasks, err := s.strategy.Load(ctx, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false

	if errors.Is(err, client.ErrUnauthorized) {
		s.tasks = []models.Task{}
		s.setNoticeLocked(msgSignIn)
		return err
	}
	if err != nil {
		s.setNoticeLocked(msgFailed)
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	s.tasks = tasks
	return nil
}

// Add validates the draft, stores it and reloads. A draft with no title is
// rejected before anything is sent.
func (s *Store) Add(ctx context.Context, draft models.Draft) error {
	draft, err := draft.Normalize()
	if err != nil {
		s.setNotice(msgInvalidTitle)
		return err
	}

	if err := s.strategy.Add(ctx, draft); err != nil {
		s.fail(err)
		return err
	}
	s.setNotice(msgAdded)
	return s.reload(ctx)
}

// Update applies the fields present in p to the task and reloads. Fields not
// in p are left as they are.
func (s *Store) Update(ctx context.Context, id string, p models.Patch) error {
	if err := p.Validate(); err != nil {
		s.setNotice(msgFailed)
		return err
	}

	if err := s.strategy.Update(ctx, id, p); err != nil {
		s.fail(err)
		return err
	}
	return s.reload(ctx)
}

// Delete removes the task and reloads. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.strategy.Delete(ctx, id); err != nil {
		s.fail(err)
		return err
	}
	return s.reload(ctx)
}

// fail records a failed change. The collection is left as it was.
func (s *Store) fail(err error) {
	if errors.Is(err, client.ErrUnauthorized) {
		s.setNotice(msgSignIn)
		return
	}
	s.setNotice(msgFailed)
}
