package service

import (
	"context"
	"errors"
	"time"

	"aeriegateway/internal/view/model"
	"aeriegateway/internal/view/repository"
	"aeriegateway/pkg/logger"
	"aeriegateway/pkg/metrics"
	"aeriegateway/socket"
)

// Repository is the storage contract the service needs. Implemented by
// repository.ViewRepository and repository.MemoryRepository.
type Repository interface {
	List(ctx context.Context) ([]model.Summary, error)
	Get(ctx context.Context, id string) (*model.View, error)
	ListForOwner(ctx context.Context, username string) ([]model.View, error)
	Create(ctx context.Context, v *model.View) error
	Update(ctx context.Context, id, owner string, payload model.Payload, now int64) (*model.View, error)
	Delete(ctx context.Context, id, owner string) error
}

// Publisher receives view change events. socket.Hub implements it.
type Publisher interface {
	Publish(ev socket.ViewEvent)
}

type ViewService struct {
	Repo    Repository
	Hub     Publisher
	Version string

	now   func() time.Time
	newID func() (string, error)
}

func NewViewService(repo Repository, hub Publisher, version string) *ViewService {
	return &ViewService{
		Repo:    repo,
		Hub:     hub,
		Version: version,
		now:     time.Now,
		newID:   NewViewID,
	}
}

func (s *ViewService) ListViews(ctx context.Context) ([]model.Summary, error) {
	views, err := s.Repo.List(ctx)
	observe("list", err)
	return views, err
}

func (s *ViewService) GetView(ctx context.Context, id string) (*model.View, error) {
	v, err := s.Repo.Get(ctx, id)
	observe("get", err)
	return v, err
}

// LatestView returns the view username sees by default, or nil when neither
// the user nor the system owns any view.
func (s *ViewService) LatestView(ctx context.Context, username string) (*model.View, error) {
	v, err := s.latestView(ctx, username)
	observe("latest", err)
	return v, err
}

func (s *ViewService) latestView(ctx context.Context, username string) (*model.View, error) {
	candidates, err := s.Repo.ListForOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	return SelectLatest(username, candidates), nil
}

// CreateView stores a new view owned by username. On
// repository.ErrViewNotCreated the unsaved view is returned with the error so
// callers can report its id.
func (s *ViewService) CreateView(ctx context.Context, username, name string, payload model.Payload) (*model.View, error) {
	id, err := s.newID()
	if err != nil {
		observe("create", err)
		return nil, err
	}

	now := s.now().UnixMilli()
	v := &model.View{
		ID:   id,
		Name: name,
		Meta: model.Meta{
			Owner:       username,
			TimeCreated: now,
			TimeUpdated: now,
			Version:     s.Version,
		},
		Payload: payload.Without("id", "meta", "name"),
	}

	err = s.Repo.Create(ctx, v)
	observe("create", err)
	if errors.Is(err, repository.ErrViewNotCreated) {
		return v, err
	}
	if err != nil {
		return nil, err
	}
	s.publish(socket.ViewCreatedType, v)
	return v, nil
}

// UpdateView replaces the payload of a view owned by username. A view that is
// missing and a view owned by someone else both yield repository.ErrViewNotFound.
func (s *ViewService) UpdateView(ctx context.Context, username, id string, payload model.Payload) (*model.View, error) {
	v, err := s.Repo.Update(ctx, id, username, payload, s.now().UnixMilli())
	observe("update", err)
	if err != nil {
		return nil, err
	}
	s.publish(socket.ViewUpdatedType, v)
	return v, nil
}

// DeleteView removes a view owned by username and returns the user's next
// default view, which may be nil.
func (s *ViewService) DeleteView(ctx context.Context, username, id string) (*model.View, error) {
	err := s.Repo.Delete(ctx, id, username)
	observe("delete", err)
	if err != nil {
		return nil, err
	}
	s.publish(socket.ViewDeletedType, &model.View{ID: id, Meta: model.Meta{Owner: username}})

	next, err := s.latestView(ctx, username)
	if err != nil {
		// The delete already happened; report it and leave the next view empty.
		logger.Sugar.Errorf("Failed to resolve next view for %s after deleting %s: %v", username, id, err)
		return nil, nil
	}
	return next, nil
}

func (s *ViewService) publish(kind string, v *model.View) {
	if s.Hub == nil {
		return
	}
	ev := socket.ViewEvent{Type: kind, ViewID: v.ID, Owner: v.Meta.Owner}
	if kind != socket.ViewDeletedType {
		ev.View = v
	}
	s.Hub.Publish(ev)
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, repository.ErrViewNotFound), errors.Is(err, repository.ErrViewNotCreated):
		result = "negative"
	case err != nil:
		result = "error"
	}
	metrics.ViewOperations.WithLabelValues(op, result).Inc()
}
