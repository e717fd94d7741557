package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"aeriegateway/internal/view/model"
	"aeriegateway/internal/view/repository"
	"aeriegateway/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu     sync.Mutex
	events []socket.ViewEvent
}

func (h *recordingHub) Publish(ev socket.ViewEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService() (*ViewService, *recordingHub, *fakeClock) {
	hub := &recordingHub{}
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := NewViewService(repository.NewMemoryRepository(), hub, "2.3.0")
	s.now = clock.now
	return s, hub, clock
}

func payload(kv map[string]string) model.Payload {
	p := model.Payload{}
	for k, v := range kv {
		p[k] = json.RawMessage(v)
	}
	return p
}

func TestCreateViewStampsMeta(t *testing.T) {
	s, hub, clock := newTestService()
	ctx := context.Background()

	v, err := s.CreateView(ctx, "alice", "Dash1", payload(map[string]string{
		"plan": `{"panels":3}`,
		"meta": `{"owner":"system"}`,
		"id":   `"chosen-by-client"`,
	}))
	require.NoError(t, err)

	assert.Len(t, v.ID, 15)
	assert.NotEqual(t, "chosen-by-client", v.ID)
	assert.Equal(t, "Dash1", v.Name)
	assert.Equal(t, "alice", v.Meta.Owner)
	assert.Equal(t, clock.t.UnixMilli(), v.Meta.TimeCreated)
	assert.Equal(t, v.Meta.TimeCreated, v.Meta.TimeUpdated)
	assert.Equal(t, "2.3.0", v.Meta.Version)
	assert.Equal(t, []string{socket.ViewCreatedType}, hub.types())

	stored, err := s.GetView(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, stored)
}

func TestCreateViewIDFailure(t *testing.T) {
	s, hub, _ := newTestService()
	s.newID = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := s.CreateView(context.Background(), "alice", "Dash1", nil)
	require.Error(t, err)
	assert.Empty(t, hub.types())
}

func TestCreateViewIDCollisionReportsID(t *testing.T) {
	s, hub, _ := newTestService()
	s.newID = func() (string, error) { return "AAAAAAAAAAAAAA1", nil }

	_, err := s.CreateView(context.Background(), "alice", "Dash1", nil)
	require.NoError(t, err)

	v, err := s.CreateView(context.Background(), "bob", "Dash2", nil)
	require.ErrorIs(t, err, repository.ErrViewNotCreated)
	require.NotNil(t, v)
	assert.Equal(t, "AAAAAAAAAAAAAA1", v.ID)
	assert.Equal(t, []string{socket.ViewCreatedType}, hub.types())
}

func TestUpdateViewKeepsOwnerAndCreationTime(t *testing.T) {
	s, hub, clock := newTestService()
	ctx := context.Background()

	created, err := s.CreateView(ctx, "alice", "Dash1", payload(map[string]string{"plan": `1`}))
	require.NoError(t, err)

	clock.advance(5 * time.Second)
	updated, err := s.UpdateView(ctx, "alice", created.ID, payload(map[string]string{
		"name": `"Dash1 v2"`,
		"plan": `2`,
		"meta": `{"owner":"bob","timeCreated":1,"version":"9.9.9"}`,
	}))
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Dash1 v2", updated.Name)
	assert.Equal(t, created.Meta.Owner, updated.Meta.Owner)
	assert.Equal(t, created.Meta.TimeCreated, updated.Meta.TimeCreated)
	assert.Equal(t, created.Meta.Version, updated.Meta.Version)
	assert.Equal(t, clock.t.UnixMilli(), updated.Meta.TimeUpdated)
	assert.GreaterOrEqual(t, updated.Meta.TimeUpdated, created.Meta.TimeUpdated)
	assert.JSONEq(t, `2`, string(updated.Payload["plan"]))
	assert.Equal(t, []string{socket.ViewCreatedType, socket.ViewUpdatedType}, hub.types())
}

func TestUpdateViewTimestampIsMonotonic(t *testing.T) {
	s, _, clock := newTestService()
	ctx := context.Background()

	created, err := s.CreateView(ctx, "alice", "Dash1", nil)
	require.NoError(t, err)

	// Wall clock stepping back must not move timeUpdated below its prior value.
	clock.advance(-time.Minute)
	updated, err := s.UpdateView(ctx, "alice", created.ID, payload(map[string]string{"name": `"x"`}))
	require.NoError(t, err)
	assert.Equal(t, created.Meta.TimeUpdated, updated.Meta.TimeUpdated)
	assert.GreaterOrEqual(t, updated.Meta.TimeUpdated, updated.Meta.TimeCreated)
}

func TestMutationsByNonOwnerFail(t *testing.T) {
	s, hub, _ := newTestService()
	ctx := context.Background()

	created, err := s.CreateView(ctx, "alice", "Dash1", payload(map[string]string{"plan": `1`}))
	require.NoError(t, err)

	_, err = s.UpdateView(ctx, "bob", created.ID, payload(map[string]string{"plan": `666`}))
	assert.ErrorIs(t, err, repository.ErrViewNotFound)

	_, err = s.DeleteView(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, repository.ErrViewNotFound)

	stored, err := s.GetView(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)
	assert.Equal(t, []string{socket.ViewCreatedType}, hub.types())
}

func TestMutationsOnMissingViewFail(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	_, err := s.UpdateView(ctx, "alice", "nope", nil)
	assert.ErrorIs(t, err, repository.ErrViewNotFound)
	_, err = s.DeleteView(ctx, "alice", "nope")
	assert.ErrorIs(t, err, repository.ErrViewNotFound)
	_, err = s.GetView(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrViewNotFound)
}

func TestSystemViewsAreNotMutableByUsers(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()
	sys := &model.View{ID: "sys", Name: "Default", Meta: model.Meta{Owner: model.SystemOwner, TimeCreated: 1, TimeUpdated: 1}}
	require.NoError(t, s.Repo.Create(ctx, sys))

	_, err := s.UpdateView(ctx, "alice", "sys", payload(map[string]string{"name": `"mine"`}))
	assert.ErrorIs(t, err, repository.ErrViewNotFound)
	_, err = s.DeleteView(ctx, "alice", "sys")
	assert.ErrorIs(t, err, repository.ErrViewNotFound)
}

func TestLatestView(t *testing.T) {
	s, _, clock := newTestService()
	ctx := context.Background()

	latest, err := s.LatestView(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Repo.Create(ctx, &model.View{ID: "sys-old", Meta: model.Meta{Owner: model.SystemOwner, TimeUpdated: 1}}))
	require.NoError(t, s.Repo.Create(ctx, &model.View{ID: "sys-new", Meta: model.Meta{Owner: model.SystemOwner, TimeUpdated: 2}}))

	latest, err = s.LatestView(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "sys-new", latest.ID)

	clock.advance(time.Hour)
	_, err = s.CreateView(ctx, "bob", "Bob's", nil)
	require.NoError(t, err)
	mine, err := s.CreateView(ctx, "alice", "Mine", nil)
	require.NoError(t, err)

	latest, err = s.LatestView(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, mine.ID, latest.ID)
}

func TestListViewsIsCollectionWide(t *testing.T) {
	s, _, clock := newTestService()
	ctx := context.Background()

	a, err := s.CreateView(ctx, "alice", "A", payload(map[string]string{"plan": `1`}))
	require.NoError(t, err)
	clock.advance(time.Second)
	b, err := s.CreateView(ctx, "bob", "B", nil)
	require.NoError(t, err)

	list, err := s.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.Summary(), list[0])
	assert.Equal(t, a.Summary(), list[1])
}

// Alice creates two dashboards, deletes the newer one and gets the older one
// back as her next view; Bob cannot delete hers.
func TestViewLifecycleScenario(t *testing.T) {
	s, hub, clock := newTestService()
	ctx := context.Background()

	dash1, err := s.CreateView(ctx, "alice", "Dash1", payload(map[string]string{"plan": `{"panels":1}`}))
	require.NoError(t, err)
	assert.Len(t, dash1.ID, 15)
	assert.Equal(t, "alice", dash1.Meta.Owner)
	assert.Equal(t, dash1.Meta.TimeCreated, dash1.Meta.TimeUpdated)

	clock.advance(time.Minute)
	dash2, err := s.CreateView(ctx, "alice", "Dash2", payload(map[string]string{"plan": `{"panels":2}`}))
	require.NoError(t, err)

	latest, err := s.LatestView(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, dash2.ID, latest.ID)

	next, err := s.DeleteView(ctx, "alice", dash2.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, dash1.ID, next.ID)

	_, err = s.DeleteView(ctx, "bob", dash1.ID)
	assert.ErrorIs(t, err, repository.ErrViewNotFound)

	still, err := s.GetView(ctx, dash1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dash1", still.Name)

	assert.Equal(t, []string{socket.ViewCreatedType, socket.ViewCreatedType, socket.ViewDeletedType}, hub.types())
}

type failingRepo struct {
	*repository.MemoryRepository
	listErr error
}

func (f *failingRepo) ListForOwner(ctx context.Context, username string) ([]model.View, error) {
	return nil, f.listErr
}

func TestDeleteStillSucceedsWhenNextViewLookupFails(t *testing.T) {
	repo := &failingRepo{MemoryRepository: repository.NewMemoryRepository(), listErr: errors.New("connection reset")}
	s := NewViewService(repo, nil, "1")
	ctx := context.Background()

	v, err := s.CreateView(ctx, "alice", "Dash1", nil)
	require.NoError(t, err)

	next, err := s.DeleteView(ctx, "alice", v.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	_, err = s.LatestView(ctx, "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrViewNotFound)
}
