package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conectaribas/conectaribas/internal/platform/db"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

// Topic is the change topic published after every mutation.
const Topic = "symptom_records"

type Service struct {
	repo   RecordRepository
	broker *observe.Broker
	tx     db.TxRunner
	now    func() time.Time
}

func NewService(repo RecordRepository, broker *observe.Broker, tx db.TxRunner) *Service {
	return &Service{repo: repo, broker: broker, tx: tx, now: time.Now}
}

// Create validates and stores a new record. A zero timestamp is set to now.
func (s *Service) Create(ctx context.Context, r *SymptomRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now().UTC()
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return fmt.Errorf("create symptom record: %w", err)
	}
	s.broker.Notify(Topic)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SymptomRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.broker.Notify(Topic)
	return nil
}

// DeleteAll removes every record and returns how many were removed.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete symptom records: %w", err)
	}
	s.broker.Notify(Topic)
	return n, nil
}

// ClearData satisfies the settings data clearer.
func (s *Service) ClearData(ctx context.Context) error {
	_, err := s.DeleteAll(ctx)
	return err
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*SymptomRecord, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Watch streams the full history, newest first, now and after every change.
func (s *Service) Watch(ctx context.Context) *observe.Subscription[*SymptomRecord] {
	return observe.Watch(ctx, s.broker, Topic, s.repo.ListAll)
}

// WatchFiltered is Watch restricted to records matching f.
func (s *Service) WatchFiltered(ctx context.Context, f Filter) *observe.Subscription[*SymptomRecord] {
	return observe.Watch(ctx, s.broker, Topic, func(ctx context.Context) ([]*SymptomRecord, error) {
		all, err := s.repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*SymptomRecord, 0, len(all))
		for _, r := range all {
			if f.Match(r) {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

func (s *Service) Export(ctx context.Context) (*Export, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export symptom records: %w", err)
	}
	if records == nil {
		records = []*SymptomRecord{}
	}
	return &Export{Version: ExportVersion, ExportedAt: s.now().UTC(), Records: records}, nil
}

// Import stores every record of exp in one transaction. Records whose ID is
// already present are skipped. It returns the number of records added.
func (s *Service) Import(ctx context.Context, exp *Export) (int, error) {
	if exp == nil {
		return 0, fmt.Errorf("import: %w: empty payload", ErrInvalidRecord)
	}
	if exp.Version > ExportVersion {
		return 0, fmt.Errorf("import: %w: unsupported export version %d", ErrInvalidRecord, exp.Version)
	}
	for i, r := range exp.Records {
		if r == nil {
			return 0, fmt.Errorf("import: %w: record %d is empty", ErrInvalidRecord, i)
		}
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("import: record %d: %w", i, err)
		}
	}

	added := 0
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, r := range exp.Records {
			if r.Timestamp.IsZero() {
				r.Timestamp = s.now().UTC()
			}
			ok, err := s.repo.Insert(ctx, r)
			if err != nil {
				return fmt.Errorf("import record %s: %w", r.ID, err)
			}
			if ok {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if added > 0 {
		s.broker.Notify(Topic)
	}
	return added, nil
}
