package history

import (
	"context"

	"github.com/google/uuid"
)

// RecordRepository stores symptom records. There is deliberately no update.
type RecordRepository interface {
	Create(ctx context.Context, r *SymptomRecord) error
	// Insert writes r keeping its ID and reports false when a record with
	// that ID already exists.
	Insert(ctx context.Context, r *SymptomRecord) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SymptomRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*SymptomRecord, int, error)
	ListAll(ctx context.Context) ([]*SymptomRecord, error)
	Count(ctx context.Context) (int, error)
}
