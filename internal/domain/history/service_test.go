package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
	"github.com/conectaribas/conectaribas/internal/platform/db"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Mock Repository --

type mockRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*SymptomRecord
	failAll error
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[uuid.UUID]*SymptomRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *SymptomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	r.ID = uuid.New()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) Insert(_ context.Context, r *SymptomRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, ok := m.records[r.ID]; ok {
		return false, nil
	}
	cp := *r
	m.records[r.ID] = &cp
	return true, nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*SymptomRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r, nil
}

func (m *mockRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRecordRepo) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.records))
	m.records = make(map[uuid.UUID]*SymptomRecord)
	return n, nil
}

func (m *mockRecordRepo) sorted(f Filter) []*SymptomRecord {
	var out []*SymptomRecord
	for _, r := range m.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (m *mockRecordRepo) List(_ context.Context, f Filter, limit, offset int) ([]*SymptomRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(f)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRecordRepo) ListAll(_ context.Context) ([]*SymptomRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(Filter{}), nil
}

func (m *mockRecordRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func newTestService() (*Service, *mockRecordRepo) {
	repo := newMockRecordRepo()
	return NewService(repo, observe.NewBroker(zerolog.Nop()), db.PassthroughTx{}), repo
}

func strPtr(s string) *string { return &s }

func recv(t *testing.T, sub *observe.Subscription[*SymptomRecord]) []*SymptomRecord {
	t.Helper()
	select {
	case items, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

// -- Tests --

func TestService_Create(t *testing.T) {
	svc, repo := newTestService()
	r := &SymptomRecord{Symptoms: "Febre", Diagnosis: severity.Mild, Recommendations: "Descanse"}
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if r.Timestamp.IsZero() {
		t.Error("expected timestamp to default to now")
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Create(context.Background(), &SymptomRecord{Diagnosis: severity.Mild}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for empty symptoms, got %v", err)
	}
	if err := svc.Create(context.Background(), &SymptomRecord{Symptoms: "Febre"}); !errors.Is(err, severity.ErrUnknown) {
		t.Errorf("expected severity.ErrUnknown, got %v", err)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestService_List_Filters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.Create(ctx, &SymptomRecord{Timestamp: base, PatientName: strPtr("Maria Souza"), Symptoms: "Febre", Diagnosis: severity.Mild})
	svc.Create(ctx, &SymptomRecord{Timestamp: base.Add(24 * time.Hour), PatientName: strPtr("João"), Symptoms: "Tontura", Diagnosis: severity.Guidance})
	svc.Create(ctx, &SymptomRecord{Timestamp: base.Add(48 * time.Hour), Symptoms: "Dificuldade para respirar", Diagnosis: severity.Emergency})

	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"no filter", Filter{}, 3},
		{"patient substring", Filter{Patient: "maria"}, 1},
		{"diagnosis", Filter{Diagnosis: severity.Emergency}, 1},
		{"from", Filter{From: timePtr(base.Add(time.Hour))}, 2},
		{"range", Filter{From: timePtr(base), To: timePtr(base.Add(time.Hour))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := svc.List(ctx, tt.f, 20, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestService_Watch_DeleteAllEmitsEmpty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, &SymptomRecord{Symptoms: "Febre", Diagnosis: severity.Mild})
	svc.Create(ctx, &SymptomRecord{Symptoms: "Tontura", Diagnosis: severity.Guidance})

	sub := svc.Watch(ctx)
	defer sub.Unsubscribe()

	if got := recv(t, sub); len(got) != 2 {
		t.Fatalf("expected initial snapshot of 2, got %d", len(got))
	}

	if _, err := svc.DeleteAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := recv(t, sub)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil snapshot after delete all, got %v", got)
	}
	if n, _ := svc.Count(ctx); n != 0 {
		t.Errorf("expected count 0, got %d", n)
	}
}

func TestService_WatchFiltered(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sub := svc.WatchFiltered(ctx, Filter{Diagnosis: severity.Emergency})
	defer sub.Unsubscribe()
	if got := recv(t, sub); len(got) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(got))
	}

	svc.Create(ctx, &SymptomRecord{Symptoms: "Dor insuportável", Diagnosis: severity.Emergency})
	if got := recv(t, sub); len(got) != 1 {
		t.Errorf("expected 1 emergency record, got %d", len(got))
	}
}

func TestService_ExportImport(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, &SymptomRecord{Symptoms: "Febre", Diagnosis: severity.Mild})

	exp, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Version != ExportVersion || len(exp.Records) != 1 {
		t.Fatalf("unexpected export %+v", exp)
	}

	other, _ := newTestService()
	n, err := other.Import(ctx, exp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 imported, got %d", n)
	}

	// Re-importing the same blob adds nothing.
	n, err = other.Import(ctx, exp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 imported on second run, got %d", n)
	}
}

func TestService_Import_RejectsInvalid(t *testing.T) {
	svc, repo := newTestService()
	exp := &Export{Version: 1, Records: []*SymptomRecord{
		{Symptoms: "Febre", Diagnosis: severity.Mild},
		{Symptoms: "", Diagnosis: severity.Mild},
	}}
	if _, err := svc.Import(context.Background(), exp); err == nil {
		t.Fatal("expected validation error")
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Errorf("expected nothing imported, got %d", n)
	}

	if _, err := svc.Import(context.Background(), &Export{Version: 99}); err == nil {
		t.Error("expected error for future export version")
	}
}

func TestSymptomRecord_RecommendationLines(t *testing.T) {
	r := &SymptomRecord{Recommendations: "Descanse\n\n  Hidrate-se \n"}
	got := r.RecommendationLines()
	if len(got) != 2 || got[1] != "Hidrate-se" {
		t.Errorf("unexpected lines %q", got)
	}
}
