package diagnosis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/domain/history"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

// Topic is notified whenever the stored decision tree changes.
const Topic = "diagnosis_questions"

// Service owns the decision tree and the in-memory registry of running
// sessions.
type Service struct {
	repo    TreeRepository
	tree    *Tree
	records RecordStore
	broker  *observe.Broker
	logger  zerolog.Logger
	ttl     time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewService(repo TreeRepository, records RecordStore, broker *observe.Broker, logger zerolog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		tree:     NewTree(repo),
		records:  records,
		broker:   broker,
		logger:   logger.With().Str("component", "diagnosis").Logger(),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (s *Service) Tree() *Tree { return s.tree }

// NewSession registers a fresh, not yet started session.
func (s *Service) NewSession(patientName *string) *Session {
	sess := NewSession(s.tree, s.records,
		WithPatientName(patientName),
		WithClock(s.now),
		WithLogger(s.logger),
	)
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return sess
}

func (s *Service) Session(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) EndSession(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the configured TTL and returns
// how many were removed.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	// LastActive takes the session lock, which may be held across a
	// database call, so the registry lock is not held while checking.
	var expired []uuid.UUID
	for _, sess := range all {
		if sess.LastActive().Before(cutoff) {
			expired = append(expired, sess.ID())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range expired {
		if _, ok := s.sessions[id]; ok {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("expired diagnosis sessions swept")
			}
		}
	}
}

// SaveManual classifies a manual questionnaire and stores the result.
func (s *Service) SaveManual(ctx context.Context, patientName *string, answers []string) (*history.SymptomRecord, ManualResult, error) {
	var cleaned []string
	for _, a := range answers {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		return nil, ManualResult{}, ErrNoAnswers
	}

	res := Classify(cleaned)
	rec := &history.SymptomRecord{
		Timestamp:       s.now().UTC(),
		Symptoms:        strings.Join(cleaned, ", "),
		Diagnosis:       res.Severity,
		Recommendations: res.RecommendationText(),
	}
	if patientName != nil && strings.TrimSpace(*patientName) != "" {
		n := strings.TrimSpace(*patientName)
		rec.PatientName = &n
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, res, fmt.Errorf("save manual diagnosis: %w", err)
	}
	return rec, res, nil
}

func (s *Service) ListQuestions(ctx context.Context, category string) ([]*Question, error) {
	if category != "" {
		return s.repo.ListQuestionsByCategory(ctx, category)
	}
	return s.repo.ListQuestions(ctx)
}

// WatchQuestions streams the questions of category (all when empty) now and
// after every change to the tree.
func (s *Service) WatchQuestions(ctx context.Context, category string) *observe.Subscription[*Question] {
	return observe.Watch(ctx, s.broker, Topic, func(ctx context.Context) ([]*Question, error) {
		return s.ListQuestions(ctx, category)
	})
}

// WatchAnswers streams every stored answer now and after every change to
// the tree.
func (s *Service) WatchAnswers(ctx context.Context) *observe.Subscription[*Answer] {
	return observe.Watch[*Answer](ctx, s.broker, Topic, s.repo.ListAllAnswers)
}

func (s *Service) CountQuestions(ctx context.Context) (int, error) {
	return s.repo.CountQuestions(ctx)
}

// ClearData removes the whole decision tree. Running sessions are dropped
// too since they may reference deleted questions.
func (s *Service) ClearData(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete decision tree: %w", err)
	}
	s.mu.Lock()
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()
	s.broker.Notify(Topic)
	return nil
}
