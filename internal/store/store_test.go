package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytakahashi/taskboard/internal/apitest"
	"github.com/ytakahashi/taskboard/internal/client"
	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/session"
)

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func statusPtr(s models.Status) *models.Status {
	return &s
}

func newGuestStore(t *testing.T, storage session.Storage) *Store {
	t.Helper()
	s := New(NewLocal(session.NewGuestAdapter(storage)))
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestStore_InitialState(t *testing.T) {
	s := New(NewLocal(session.NewGuestAdapter(session.NewMemoryStorage())))

	assert.True(t, s.Loading())
	assert.Empty(t, s.Tasks())
	assert.Equal(t, ModeGuest, s.Mode())

	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.Loading())
}

func TestStore_GuestAdd(t *testing.T) {
	storage := session.NewMemoryStorage()
	s := newGuestStore(t, storage)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, models.Draft{Title: "  Buy milk "}))

	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, models.StatusPending, tasks[0].Status)
	assert.Equal(t, models.GuestUserID, tasks[0].UserID)
	assert.False(t, tasks[0].Important)
	assert.NotEmpty(t, tasks[0].ID)

	msg, ok := s.Notice()
	assert.True(t, ok)
	assert.Equal(t, msgAdded, msg)

	stored, err := session.NewGuestAdapter(storage).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk"}, titles(stored))
}

func TestStore_GuestNewestFirst(t *testing.T) {
	s := newGuestStore(t, session.NewMemoryStorage())
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, s.Add(ctx, models.Draft{Title: title}))
	}
	assert.Equal(t, []string{"three", "two", "one"}, titles(s.Tasks()))
}

func TestStore_DeleteUnknownID(t *testing.T) {
	s := newGuestStore(t, session.NewMemoryStorage())
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(ctx, models.Draft{Title: title}))
	}
	before := s.Tasks()

	require.NoError(t, s.Delete(ctx, "no-such-id"))
	assert.Equal(t, before, s.Tasks())

	require.NoError(t, s.Delete(ctx, before[1].ID))
	assert.Equal(t, []string{"c", "a"}, titles(s.Tasks()))
}

func TestStore_FilterByStatus(t *testing.T) {
	s := newGuestStore(t, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, models.Draft{Title: "pending"}))
	require.NoError(t, s.Add(ctx, models.Draft{Title: "finished", Status: models.StatusCompleted}))

	require.NoError(t, s.SetFilter(ctx, filter.Filter{Status: statusPtr(models.StatusCompleted)}))
	assert.Equal(t, []string{"finished"}, titles(s.Tasks()))

	require.NoError(t, s.SetFilter(ctx, filter.Filter{Status: statusPtr(models.StatusPending)}))
	assert.Equal(t, []string{"pending"}, titles(s.Tasks()))

	require.NoError(t, s.SetFilter(ctx, filter.Filter{}))
	assert.Len(t, s.Tasks(), 2)
}

func TestStore_CompletedViewIgnoresSelection(t *testing.T) {
	s := newGuestStore(t, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, models.Draft{Title: "pending"}))
	require.NoError(t, s.Add(ctx, models.Draft{Title: "finished", Status: models.StatusCompleted}))

	f := filter.Compose(filter.ViewCompleted, filter.Selection{Status: statusPtr(models.StatusPending)})
	require.NoError(t, s.SetFilter(ctx, f))
	assert.Equal(t, []string{"finished"}, titles(s.Tasks()))
}

func TestStore_ToggleImportantTwice(t *testing.T) {
	s := newGuestStore(t, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, models.Draft{Title: "Buy milk", Description: "2 litres"}))
	id := s.Tasks()[0].ID

	require.NoError(t, s.Update(ctx, id, models.ImportantPatch(true)))
	assert.True(t, s.Tasks()[0].Important)

	require.NoError(t, s.Update(ctx, id, models.ImportantPatch(false)))
	task := s.Tasks()[0]
	assert.False(t, task.Important)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, "2 litres", task.Description)
	assert.Equal(t, models.StatusPending, task.Status)
}

func TestStore_GuestSurvivesReload(t *testing.T) {
	storage := session.NewMemoryStorage()
	ctx := context.Background()

	first := newGuestStore(t, storage)
	require.NoError(t, first.Add(ctx, models.Draft{Title: "Buy milk", Important: true}))
	require.NoError(t, first.Add(ctx, models.Draft{Title: "Walk dog"}))

	second := newGuestStore(t, storage)
	assert.Equal(t, titles(first.Tasks()), titles(second.Tasks()))
	assert.True(t, second.Tasks()[1].Important)
}

func TestStore_RejectsEmptyTitle(t *testing.T) {
	spy := &fakeStrategy{}
	s := New(spy)
	ctx := context.Background()

	err := s.Add(ctx, models.Draft{Title: "   "})
	assert.ErrorIs(t, err, models.ErrEmptyTitle)
	assert.Zero(t, spy.adds)

	msg, ok := s.Notice()
	assert.True(t, ok)
	assert.Equal(t, msgInvalidTitle, msg)
}

func TestStore_RejectsInvalidPatch(t *testing.T) {
	spy := &fakeStrategy{}
	s := New(spy)
	empty := ""

	err := s.Update(context.Background(), "x", models.Patch{Title: &empty})
	assert.ErrorIs(t, err, models.ErrEmptyTitle)
	assert.Zero(t, spy.updates)
}

func TestStore_NoticeExpires(t *testing.T) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := New(&fakeStrategy{})
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	_, ok := s.Notice()
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, models.Draft{Title: "Buy milk"}))
	_, ok = s.Notice()
	assert.True(t, ok)

	clock = clock.Add(NoticeTTL - time.Millisecond)
	_, ok = s.Notice()
	assert.True(t, ok)

	clock = clock.Add(time.Millisecond)
	_, ok = s.Notice()
	assert.False(t, ok)
}

func TestStore_FailedChangeKeepsCollection(t *testing.T) {
	api := newFakeAPI()
	s := New(NewRemote(api))
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, models.Draft{Title: "Buy milk"}))
	before := s.Tasks()
	require.Len(t, before, 1)

	api.fail = &client.StatusError{Method: "POST", Path: "/tasks", Status: 500}
	err := s.Add(ctx, models.Draft{Title: "Walk dog"})
	assert.ErrorIs(t, err, client.ErrRequestFailed)
	assert.Equal(t, before, s.Tasks())
	msg, _ := s.Notice()
	assert.Equal(t, msgFailed, msg)

	err = s.Update(ctx, before[0].ID, models.StatusPatch(models.StatusCompleted))
	assert.Error(t, err)
	assert.Equal(t, before, s.Tasks())

	api.fail = nil
	require.NoError(t, s.Add(ctx, models.Draft{Title: "Walk dog"}))
	assert.Equal(t, []string{"Walk dog", "Buy milk"}, titles(s.Tasks()))
}

func TestStore_FailedLoad(t *testing.T) {
	api := newFakeAPI()
	api.fail = errors.New("connection refused")
	s := New(NewRemote(api))

	assert.Error(t, s.Load(context.Background()))
	assert.False(t, s.Loading())
	assert.Empty(t, s.Tasks())
	msg, _ := s.Notice()
	assert.Equal(t, msgFailed, msg)
}

func TestStore_Unauthorized(t *testing.T) {
	srv, _ := apitest.NewServer(t)
	s := New(NewRemote(client.New(srv.URL)))

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, s.Tasks())
	assert.False(t, s.Loading())

	msg, ok := s.Notice()
	assert.True(t, ok)
	assert.Equal(t, msgSignIn, msg)
}

func TestStore_SignedInEndToEnd(t *testing.T) {
	srv, _ := apitest.NewServer(t)
	ctx := context.Background()

	token, err := client.New(srv.URL).SignIn(ctx, "alice")
	require.NoError(t, err)

	strategy := ForIdentity(client.New(srv.URL, client.WithToken(token)), nil)
	s := New(strategy)
	assert.Equal(t, ModeSignedIn, s.Mode())
	require.NoError(t, s.Load(ctx))
	assert.Empty(t, s.Tasks())

	require.NoError(t, s.Add(ctx, models.Draft{Title: "Buy milk"}))
	require.NoError(t, s.Add(ctx, models.Draft{Title: "File taxes", Important: true}))
	assert.Equal(t, []string{"File taxes", "Buy milk"}, titles(s.Tasks()))
	for _, task := range s.Tasks() {
		assert.Equal(t, "alice", task.UserID)
	}

	milk := s.Tasks()[1]
	require.NoError(t, s.Update(ctx, milk.ID, models.StatusPatch(models.StatusCompleted)))
	require.NoError(t, s.SetFilter(ctx, filter.Compose(filter.ViewCompleted, filter.Selection{})))
	assert.Equal(t, []string{"Buy milk"}, titles(s.Tasks()))

	require.NoError(t, s.SetFilter(ctx, filter.Compose(filter.ViewImportant, filter.Selection{})))
	assert.Equal(t, []string{"File taxes"}, titles(s.Tasks()))

	require.NoError(t, s.SetFilter(ctx, filter.Filter{}))
	require.NoError(t, s.Delete(ctx, milk.ID))
	require.NoError(t, s.Delete(ctx, milk.ID))
	assert.Equal(t, []string{"File taxes"}, titles(s.Tasks()))
}

func TestForIdentity_Guest(t *testing.T) {
	guest := session.NewGuestAdapter(session.NewMemoryStorage())

	assert.Equal(t, ModeGuest, ForIdentity(nil, guest).Mode())
	assert.Equal(t, ModeGuest, ForIdentity(client.New("http://localhost"), guest).Mode())
}

func TestStore_StaleLoadDropped(t *testing.T) {
	gated := &gatedStrategy{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(gated)
	ctx := context.Background()

	slow := filter.Filter{Status: statusPtr(models.StatusPending)}
	done := make(chan error, 1)
	go func() { done <- s.SetFilter(ctx, slow) }()
	<-gated.entered

	require.NoError(t, s.SetFilter(ctx, filter.Filter{}))
	assert.Equal(t, []string{"fresh"}, titles(s.Tasks()))

	close(gated.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"fresh"}, titles(s.Tasks()))
	assert.False(t, s.Loading())
}

func TestLocal_PersistFailureKeepsChange(t *testing.T) {
	storage := &brokenStorage{Storage: session.NewMemoryStorage(), setErr: errors.New("disk full")}
	s := newGuestStore(t, storage)

	require.NoError(t, s.Add(context.Background(), models.Draft{Title: "Buy milk"}))
	assert.Equal(t, []string{"Buy milk"}, titles(s.Tasks()))
}

func TestLocal_CorruptStorageStartsEmpty(t *testing.T) {
	storage := session.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.SetItem(ctx, session.GuestTasksKey, "{not json"))

	s := newGuestStore(t, storage)
	assert.Empty(t, s.Tasks())

	require.NoError(t, s.Add(ctx, models.Draft{Title: "Buy milk"}))
	stored, err := session.NewGuestAdapter(storage).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk"}, titles(stored))
}

func TestLocal_StorageErrorIsReturned(t *testing.T) {
	storage := &brokenStorage{Storage: session.NewMemoryStorage(), getErr: errors.New("permission denied")}
	ctx := context.Background()
	require.NoError(t, storage.Storage.SetItem(ctx, session.GuestTasksKey, `[{"id":"a","title":"kept","status":"Pending"}]`))

	s := New(NewLocal(session.NewGuestAdapter(storage)))
	assert.Error(t, s.Load(ctx))
	assert.Error(t, s.Add(ctx, models.Draft{Title: "Buy milk"}))

	storage.getErr = nil
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, []string{"kept"}, titles(s.Tasks()))
}

// fakeStrategy counts calls and keeps nothing.
type fakeStrategy struct {
	adds, updates int
}

func (f *fakeStrategy) Mode() Mode { return ModeGuest }

func (f *fakeStrategy) Load(context.Context, filter.Filter) ([]models.Task, error) {
	return nil, nil
}

func (f *fakeStrategy) Add(context.Context, models.Draft) error {
	f.adds++
	return nil
}

func (f *fakeStrategy) Update(context.Context, string, models.Patch) error {
	f.updates++
	return nil
}

func (f *fakeStrategy) Delete(context.Context, string) error { return nil }

// gatedStrategy blocks the first filtered load until released.
type gatedStrategy struct {
	fakeStrategy
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStrategy) Load(_ context.Context, f filter.Filter) ([]models.Task, error) {
	if f.Status != nil {
		close(g.entered)
		<-g.release
		return []models.Task{{ID: "old", Title: "stale"}}, nil
	}
	return []models.Task{{ID: "new", Title: "fresh"}}, nil
}

// fakeAPI is an in-memory TaskAPI that can be told to fail.
type fakeAPI struct {
	mu    sync.Mutex
	tasks []models.Task
	seq   int
	fail  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{}
}

func (a *fakeAPI) List(_ context.Context, f filter.Filter) ([]models.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return nil, a.fail
	}
	return f.Apply(a.tasks), nil
}

func (a *fakeAPI) Create(_ context.Context, draft models.Draft) (*models.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return nil, a.fail
	}
	a.seq++
	task := draft.NewTask(fmt.Sprintf("task-%d", a.seq), "alice", time.Now().UTC())
	a.tasks = append([]models.Task{task}, a.tasks...)
	return &task, nil
}

func (a *fakeAPI) Patch(_ context.Context, id string, p models.Patch) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	for i := range a.tasks {
		if a.tasks[i].ID == id {
			p.Apply(&a.tasks[i])
			return nil
		}
	}
	return client.ErrNotFound
}

func (a *fakeAPI) Remove(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	kept := a.tasks[:0]
	for _, t := range a.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	a.tasks = kept
	return nil
}

// brokenStorage wraps a Storage with injectable failures.
type brokenStorage struct {
	session.Storage
	getErr error
	setErr error
}

func (b *brokenStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if b.getErr != nil {
		return "", false, b.getErr
	}
	return b.Storage.GetItem(ctx, key)
}

func (b *brokenStorage) SetItem(ctx context.Context, key, value string) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.Storage.SetItem(ctx, key, value)
}
