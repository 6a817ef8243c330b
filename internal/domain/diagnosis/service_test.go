package diagnosis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestService(t *testing.T) (*Service, *fixture, *mockRecordStore) {
	t.Helper()
	f := newFixture(t)
	store := &mockRecordStore{}
	return NewService(f.repo, store, observe.NewBroker(zerolog.Nop()), zerolog.Nop(), 30*time.Minute), f, store
}

func recvQuestions(t *testing.T, sub *observe.Subscription[*Question]) []*Question {
	t.Helper()
	select {
	case items, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for questions")
	}
	return nil
}

func TestService_SessionRegistry(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := svc.NewSession(nil)

	got, err := svc.Session(sess.ID())
	if err != nil || got != sess {
		t.Fatalf("expected registered session, got %v %v", got, err)
	}
	if err := svc.EndSession(sess.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Session(sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.EndSession(sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second end, got %v", err)
	}
}

func TestService_Sweep(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale := svc.NewSession(nil)
	now = now.Add(20 * time.Minute)
	fresh := svc.NewSession(nil)
	now = now.Add(15 * time.Minute)

	if n := svc.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept session, got %d", n)
	}
	if _, err := svc.Session(stale.ID()); err == nil {
		t.Error("expected stale session to be removed")
	}
	if _, err := svc.Session(fresh.ID()); err != nil {
		t.Error("expected fresh session to survive")
	}
}

func TestService_SaveManual(t *testing.T) {
	svc, _, store := newTestService(t)
	name := "  José "
	rec, res, err := svc.SaveManual(context.Background(), &name,
		[]string{"Febre", "Dor leve", "Mais de 3 dias", "Interfere um pouco"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Severity != severity.Guidance || rec.Diagnosis != severity.Guidance {
		t.Errorf("expected guidance, got %s / %s", res.Severity, rec.Diagnosis)
	}
	if rec.Symptoms != "Febre, Dor leve, Mais de 3 dias, Interfere um pouco" {
		t.Errorf("unexpected symptoms %q", rec.Symptoms)
	}
	if len(strings.Split(rec.Recommendations, "\n")) != 4 {
		t.Errorf("expected 4 newline-separated recommendations, got %q", rec.Recommendations)
	}
	if rec.PatientName == nil || *rec.PatientName != "José" {
		t.Errorf("expected trimmed patient name, got %v", rec.PatientName)
	}
	if store.count() != 1 {
		t.Errorf("expected 1 record, got %d", store.count())
	}
}

func TestService_SaveManual_NoAnswers(t *testing.T) {
	svc, _, store := newTestService(t)
	if _, _, err := svc.SaveManual(context.Background(), nil, []string{" "}); !errors.Is(err, ErrNoAnswers) {
		t.Errorf("expected ErrNoAnswers, got %v", err)
	}
	if store.count() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestService_ClearData(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.NewSession(nil)
	if err := svc.ClearData(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := svc.CountQuestions(context.Background()); n != 0 {
		t.Errorf("expected empty tree, got %d questions", n)
	}
	if svc.SessionCount() != 0 {
		t.Errorf("expected sessions to be dropped, got %d", svc.SessionCount())
	}
}

func TestService_RunSweeper_StopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestService_WatchQuestions_ClearDataEmitsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub := svc.WatchQuestions(ctx, "")
	defer sub.Unsubscribe()

	if got := recvQuestions(t, sub); len(got) != 2 {
		t.Fatalf("expected initial snapshot of 2 questions, got %d", len(got))
	}

	if err := svc.ClearData(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := recvQuestions(t, sub)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil snapshot after clear, got %v", got)
	}
}

func TestService_WatchQuestions_ByCategory(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	sub := svc.WatchQuestions(ctx, "Dor")
	defer sub.Unsubscribe()

	got := recvQuestions(t, sub)
	if len(got) != 1 || got[0].ID != f.pain.ID {
		t.Fatalf("expected only the pain question, got %v", got)
	}
}

func TestService_WatchAnswers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub := svc.WatchAnswers(ctx)
	select {
	case got := <-sub.C:
		if len(got) != 4 {
			t.Errorf("expected 4 answers, got %d", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for answers")
	}

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after cancel")
	}
}
