package firstaid

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

const Topic = "first_aid_guides"

// Service exposes the first-aid reference. Guides are written only by the
// seed loader and removed by the clear-data maintenance operation.
type Service struct {
	repo   GuideRepository
	broker *observe.Broker
}

func NewService(repo GuideRepository, broker *observe.Broker) *Service {
	return &Service{repo: repo, broker: broker}
}

func (s *Service) Create(ctx context.Context, g *Guide) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return fmt.Errorf("create first aid guide: %w", err)
	}
	s.broker.Notify(Topic)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Guide, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Guide, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ByCategory(ctx context.Context, category string) ([]*Guide, error) {
	return s.repo.List(ctx, Filter{Category: category})
}

// Search matches guides whose title contains term, case-insensitively.
func (s *Service) Search(ctx context.Context, term string) ([]*Guide, error) {
	return s.repo.List(ctx, Filter{Query: term})
}

func (s *Service) Emergency(ctx context.Context) ([]*Guide, error) {
	return s.repo.List(ctx, Filter{EmergencyOnly: true})
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// ClearData removes every guide.
func (s *Service) ClearData(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete first aid guides: %w", err)
	}
	s.broker.Notify(Topic)
	return nil
}

// Watch streams the guides matching f now and after every change.
func (s *Service) Watch(ctx context.Context, f Filter) *observe.Subscription[*Guide] {
	return observe.Watch(ctx, s.broker, Topic, func(ctx context.Context) ([]*Guide, error) {
		return s.repo.List(ctx, f)
	})
}
