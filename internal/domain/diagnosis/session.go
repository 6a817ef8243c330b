package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/domain/history"
	"github.com/conectaribas/conectaribas/internal/domain/severity"
)

// RecordStore persists the record produced at the end of a walk.
type RecordStore interface {
	Create(ctx context.Context, r *history.SymptomRecord) error
}

type State int

const (
	StateNotStarted State = iota
	StateAwaitingAnswer
	StateTerminal
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateTerminal:
		return "terminal"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Selection is one answered question of the walk so far.
type Selection struct {
	QuestionID uuid.UUID `json:"question_id"`
	Question   string    `json:"question"`
	AnswerID   uuid.UUID `json:"answer_id"`
	Answer     string    `json:"answer"`
}

// Snapshot is the observable state of a session after an operation. Err is
// set when the operation was rejected or failed; unless State is
// StateFailed the session kept its previous state.
type Snapshot struct {
	SessionID       uuid.UUID
	State           State
	Question        *Question
	Answers         []*Answer
	Depth           int
	Selections      []Selection
	Severity        severity.Severity
	Recommendations string
	RecordID        uuid.UUID
	Err             error
}

type snapshotJSON struct {
	SessionID       uuid.UUID   `json:"session_id"`
	State           State       `json:"state"`
	Question        *Question   `json:"question,omitempty"`
	Answers         []*Answer   `json:"answers,omitempty"`
	Depth           int         `json:"depth"`
	Selections      []Selection `json:"selections"`
	Severity        string      `json:"severity,omitempty"`
	Label           string      `json:"label,omitempty"`
	Recommendations string      `json:"recommendations,omitempty"`
	RecordID        *uuid.UUID  `json:"record_id,omitempty"`
	Error           string      `json:"error,omitempty"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		SessionID:       s.SessionID,
		State:           s.State,
		Question:        s.Question,
		Answers:         s.Answers,
		Depth:           s.Depth,
		Selections:      s.Selections,
		Recommendations: s.Recommendations,
	}
	if out.Selections == nil {
		out.Selections = []Selection{}
	}
	if s.Severity.Valid() {
		out.Severity = s.Severity.Code()
		out.Label = s.Severity.Label()
	}
	if s.RecordID != uuid.Nil {
		id := s.RecordID
		out.RecordID = &id
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// Summary renders the selections as "question: answer" pairs.
func Summary(selections []Selection) string {
	parts := make([]string, len(selections))
	for i, sel := range selections {
		parts[i] = sel.Question + ": " + sel.Answer
	}
	return strings.Join(parts, "; ")
}

type SessionOption func(*Session)

// WithPatientName attaches the subject's name to the record the session
// produces. Blank names are ignored.
func WithPatientName(name *string) SessionOption {
	return func(s *Session) {
		if name != nil && strings.TrimSpace(*name) != "" {
			n := strings.TrimSpace(*name)
			s.patientName = &n
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// Session walks the decision tree for one user. All methods are safe for
// concurrent use and return a Snapshot; none of them panic on bad input.
// The only write a session performs is the single record insert when an
// outcome answer is submitted.
type Session struct {
	mu sync.Mutex

	id          uuid.UUID
	tree        *Tree
	records     RecordStore
	logger      zerolog.Logger
	now         func() time.Time
	patientName *string

	state      State
	current    *Question
	answers    []*Answer
	path       []*Question
	selections []Selection
	outcome    Outcome
	recordID   uuid.UUID
	failure    error
	lastActive time.Time
}

func NewSession(tree *Tree, records RecordStore, opts ...SessionOption) *Session {
	s := &Session{
		id:      uuid.New(),
		tree:    tree,
		records: records,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// LastActive is the time of the most recent operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns the current state without changing it.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(nil)
}

// Start loads the root question and its answers.
func (s *Session) Start(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateNotStarted {
		return s.snapshot(ErrAlreadyStarted)
	}

	root, err := s.tree.FirstQuestion(ctx)
	if err != nil {
		return s.fail(err)
	}
	answers, err := s.tree.AnswersFor(ctx, root.ID)
	if err != nil {
		return s.fail(err)
	}

	s.state = StateAwaitingAnswer
	s.current = root
	s.answers = answers
	return s.snapshot(nil)
}

// Submit selects one of the current answers. An outcome answer persists a
// history record and ends the walk; a branch answer moves to the next
// question.
func (s *Session) Submit(ctx context.Context, answerID uuid.UUID) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateAwaitingAnswer {
		return s.snapshot(ErrNotAwaitingAnswer)
	}

	var chosen *Answer
	for _, a := range s.answers {
		if a.ID == answerID {
			chosen = a
			break
		}
	}
	if chosen == nil {
		return s.snapshot(fmt.Errorf("%w: %s", ErrUnknownAnswer, answerID))
	}

	sel := Selection{QuestionID: s.current.ID, Question: s.current.Text, AnswerID: chosen.ID, Answer: chosen.Text}

	switch r := chosen.Result().(type) {
	case Outcome:
		return s.finish(ctx, sel, r)
	case GoTo:
		return s.advance(ctx, sel, r)
	}
	return s.snapshot(fmt.Errorf("answer %s: %w", chosen.ID, ErrMalformedAnswer))
}

func (s *Session) finish(ctx context.Context, sel Selection, out Outcome) Snapshot {
	selections := append(append([]Selection(nil), s.selections...), sel)
	rec := &history.SymptomRecord{
		Timestamp:       s.now().UTC(),
		PatientName:     s.patientName,
		Symptoms:        Summary(selections),
		Diagnosis:       out.Severity,
		Recommendations: out.Recommendations,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to save diagnosis record")
		return s.snapshot(fmt.Errorf("save diagnosis: %w", err))
	}

	s.state = StateTerminal
	s.selections = selections
	s.outcome = out
	s.recordID = rec.ID
	s.answers = nil
	s.logger.Info().
		Str("session_id", s.id.String()).
		Str("severity", out.Severity.Code()).
		Str("record_id", rec.ID.String()).
		Msg("diagnosis completed")
	return s.snapshot(nil)
}

func (s *Session) advance(ctx context.Context, sel Selection, next GoTo) Snapshot {
	q, err := s.tree.QuestionByID(ctx, next.QuestionID)
	if errors.Is(err, ErrQuestionNotFound) {
		return s.fail(fmt.Errorf("%w: %s", ErrDanglingReference, next.QuestionID))
	}
	if err != nil {
		return s.snapshot(err)
	}
	answers, err := s.tree.AnswersFor(ctx, q.ID)
	if err != nil {
		return s.snapshot(err)
	}

	s.path = append(s.path, s.current)
	s.selections = append(s.selections, sel)
	s.current = q
	s.answers = answers
	return s.snapshot(nil)
}

// Back returns to the previous question and reloads its answers. It does
// nothing when there is no previous question.
func (s *Session) Back(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateAwaitingAnswer || len(s.path) == 0 {
		return s.snapshot(nil)
	}

	prev := s.path[len(s.path)-1]
	answers, err := s.tree.AnswersFor(ctx, prev.ID)
	if err != nil {
		return s.snapshot(err)
	}

	s.path = s.path[:len(s.path)-1]
	s.selections = s.selections[:len(s.selections)-1]
	s.current = prev
	s.answers = answers
	return s.snapshot(nil)
}

// Reset discards all progress. A stored record is not affected.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.state = StateNotStarted
	s.current = nil
	s.answers = nil
	s.path = nil
	s.selections = nil
	s.outcome = Outcome{}
	s.recordID = uuid.Nil
	s.failure = nil
	return s.snapshot(nil)
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

func (s *Session) fail(err error) Snapshot {
	s.state = StateFailed
	s.failure = err
	s.current = nil
	s.answers = nil
	s.logger.Warn().Err(err).Str("session_id", s.id.String()).Msg("diagnosis session failed")
	return s.snapshot(err)
}

// snapshot must be called with mu held.
func (s *Session) snapshot(err error) Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		State:      s.state,
		Depth:      len(s.path),
		Selections: append([]Selection(nil), s.selections...),
		Err:        err,
	}
	switch s.state {
	case StateAwaitingAnswer:
		snap.Question = s.current
		snap.Answers = append([]*Answer(nil), s.answers...)
	case StateTerminal:
		snap.Severity = s.outcome.Severity
		snap.Recommendations = s.outcome.Recommendations
		snap.RecordID = s.recordID
	case StateFailed:
		if snap.Err == nil {
			snap.Err = s.failure
		}
	}
	return snap
}
