package diagnosis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/conectaribas/conectaribas/internal/domain/history"
	"github.com/conectaribas/conectaribas/internal/domain/severity"
)

// -- Mock Repositories --

type mockTreeRepo struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*Question
	answers   []*Answer
	seq       int64
	failLoads error
}

func newMockTreeRepo() *mockTreeRepo {
	return &mockTreeRepo{questions: make(map[uuid.UUID]*Question)}
}

func (m *mockTreeRepo) CreateQuestion(_ context.Context, q *Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	m.seq++
	q.Position = m.seq
	m.questions[q.ID] = q
	return nil
}

func (m *mockTreeRepo) CreateAnswer(_ context.Context, a *Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.seq++
	a.Position = m.seq
	m.answers = append(m.answers, a)
	return nil
}

func (m *mockTreeRepo) GetQuestion(_ context.Context, id uuid.UUID) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoads != nil {
		return nil, m.failLoads
	}
	q, ok := m.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return q, nil
}

func (m *mockTreeRepo) sortedQuestions(keep func(*Question) bool) []*Question {
	var out []*Question
	for _, q := range m.questions {
		if keep(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func (m *mockTreeRepo) ListRoots(_ context.Context) ([]*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoads != nil {
		return nil, m.failLoads
	}
	return m.sortedQuestions(func(q *Question) bool { return q.IsRoot() }), nil
}

func (m *mockTreeRepo) ListQuestions(_ context.Context) ([]*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedQuestions(func(*Question) bool { return true }), nil
}

func (m *mockTreeRepo) ListQuestionsByCategory(_ context.Context, category string) ([]*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedQuestions(func(q *Question) bool { return q.Category == category }), nil
}

// ListAnswers returns rows in insertion order so the tests prove that the
// tree sorts them itself.
func (m *mockTreeRepo) ListAnswers(_ context.Context, questionID uuid.UUID) ([]*Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoads != nil {
		return nil, m.failLoads
	}
	var out []*Answer
	for _, a := range m.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockTreeRepo) ListAllAnswers(_ context.Context) ([]*Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Answer(nil), m.answers...), nil
}

func (m *mockTreeRepo) CountQuestions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.questions), nil
}

func (m *mockTreeRepo) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = make(map[uuid.UUID]*Question)
	m.answers = nil
	return nil
}

type mockRecordStore struct {
	mu      sync.Mutex
	records []*history.SymptomRecord
	err     error
}

func (m *mockRecordStore) Create(_ context.Context, r *history.SymptomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.ID = uuid.New()
	m.records = append(m.records, r)
	return nil
}

func (m *mockRecordStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var errStoreDown = errors.New("store unavailable")

// -- Fixture --

// fixture is a two-question tree:
//
//	symptom: "Febre" (4) -> pain, "Dificuldade para respirar" (10) -> Emergency
//	pain:    "Dor leve" (2) -> Mild, "Dor intensa" (7) -> Guidance
type fixture struct {
	repo      *mockTreeRepo
	symptom   *Question
	pain      *Question
	fever     *Answer
	breathing *Answer
	mildPain  *Answer
	hardPain  *Answer
}

func mustAnswer(t *testing.T, repo *mockTreeRepo, q *Question, text string, weight int, r Result) *Answer {
	t.Helper()
	a, err := NewAnswer(q.ID, text, weight, r)
	if err != nil {
		t.Fatalf("NewAnswer(%q): %v", text, err)
	}
	repo.CreateAnswer(context.Background(), a)
	return a
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{repo: newMockTreeRepo()}

	f.symptom = &Question{Text: "Qual é o seu sintoma principal?", Category: "Sintomas", Order: 1}
	f.repo.CreateQuestion(ctx, f.symptom)
	f.pain = &Question{Text: "Como você avalia a intensidade da dor?", Category: "Dor", Order: 2, PreviousID: &f.symptom.ID}
	f.repo.CreateQuestion(ctx, f.pain)

	f.fever = mustAnswer(t, f.repo, f.symptom, "Febre", 4, GoTo{QuestionID: f.pain.ID})
	f.breathing = mustAnswer(t, f.repo, f.symptom, "Dificuldade para respirar", 10,
		Outcome{Severity: severity.Emergency, Recommendations: "Procure ajuda médica imediatamente."})
	f.mildPain = mustAnswer(t, f.repo, f.pain, "Dor leve", 2,
		Outcome{Severity: severity.Mild, Recommendations: "Monitore seus sintomas."})
	f.hardPain = mustAnswer(t, f.repo, f.pain, "Dor intensa", 7,
		Outcome{Severity: severity.Guidance, Recommendations: "Consulte um médico nas próximas 24 horas."})
	return f
}
