package firstaid

import (
	"context"

	"github.com/google/uuid"
)

type GuideRepository interface {
	Create(ctx context.Context, g *Guide) error
	GetByID(ctx context.Context, id uuid.UUID) (*Guide, error)
	// List returns matching guides by display order, then title.
	List(ctx context.Context, f Filter) ([]*Guide, error)
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
