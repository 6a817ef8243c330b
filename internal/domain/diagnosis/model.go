package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
)

var (
	ErrEmptyTree         = errors.New("no diagnosis data available")
	ErrQuestionNotFound  = errors.New("diagnosis question not found")
	ErrDanglingReference = errors.New("answer points to a question that does not exist")
	ErrMalformedAnswer   = errors.New("answer must have exactly one of next question or final result")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrUnknownAnswer     = errors.New("answer does not belong to the current question")
	ErrNotAwaitingAnswer = errors.New("session is not waiting for an answer")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrSessionNotFound   = errors.New("diagnosis session not found")
	ErrNoAnswers         = errors.New("at least one answer is required")
)

const (
	MinWeight = 1
	MaxWeight = 10
)

// Question maps to the diagnosis_questions table.
type Question struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Text       string     `db:"question_text" json:"question_text"`
	Category   string     `db:"category" json:"category"`
	Order      int        `db:"question_order" json:"question_order"`
	PreviousID *uuid.UUID `db:"previous_question_id" json:"previous_question_id,omitempty"`
	Required   bool       `db:"is_required" json:"is_required"`
	Position   int64      `db:"position" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// IsRoot reports whether q has no predecessor.
func (q *Question) IsRoot() bool { return q.PreviousID == nil }

// Result is what selecting an answer leads to. It is either a GoTo or an
// Outcome; no other implementations exist.
type Result interface {
	isResult()
}

// GoTo continues the walk at another question.
type GoTo struct {
	QuestionID uuid.UUID
}

// Outcome ends the walk with a classification.
type Outcome struct {
	Severity        severity.Severity
	Recommendations string
}

func (GoTo) isResult()    {}
func (Outcome) isResult() {}

// Answer maps to the diagnosis_answers table. Its result is fixed at
// construction; use NewAnswer.
type Answer struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	Weight     int
	Position   int64

	result Result
}

// NewAnswer validates and builds an answer. The ID is assigned by the
// repository on insert.
func NewAnswer(questionID uuid.UUID, text string, weight int, result Result) (*Answer, error) {
	if questionID == uuid.Nil {
		return nil, fmt.Errorf("%w: question id is required", ErrInvalidAnswer)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: answer text is required", ErrInvalidAnswer)
	}
	if weight < MinWeight || weight > MaxWeight {
		return nil, fmt.Errorf("%w: weight %d outside %d..%d", ErrInvalidAnswer, weight, MinWeight, MaxWeight)
	}
	switch r := result.(type) {
	case GoTo:
		if r.QuestionID == uuid.Nil {
			return nil, fmt.Errorf("%w: next question id is required", ErrInvalidAnswer)
		}
	case Outcome:
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, severity.ErrUnknown)
		}
	default:
		return nil, fmt.Errorf("%w: result is required", ErrInvalidAnswer)
	}
	return &Answer{QuestionID: questionID, Text: text, Weight: weight, result: result}, nil
}

// Result returns the answer's GoTo or Outcome.
func (a *Answer) Result() Result { return a.result }

// IsTerminal reports whether selecting a ends the walk.
func (a *Answer) IsTerminal() bool {
	_, ok := a.result.(Outcome)
	return ok
}

// answerFromColumns rebuilds an answer from its stored row.
func answerFromColumns(id, questionID uuid.UUID, text string, weight int, position int64,
	nextQuestionID *uuid.UUID, finalResult, recommendations *string) (*Answer, error) {
	var result Result
	switch {
	case nextQuestionID != nil && finalResult == nil:
		result = GoTo{QuestionID: *nextQuestionID}
	case nextQuestionID == nil && finalResult != nil:
		sev, err := severity.Parse(*finalResult)
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", id, err)
		}
		out := Outcome{Severity: sev}
		if recommendations != nil {
			out.Recommendations = *recommendations
		}
		result = out
	default:
		return nil, fmt.Errorf("answer %s: %w", id, ErrMalformedAnswer)
	}

	a, err := NewAnswer(questionID, text, weight, result)
	if err != nil {
		return nil, fmt.Errorf("answer %s: %w", id, err)
	}
	a.ID = id
	a.Position = position
	return a, nil
}

// columns returns the nullable storage columns for a's result.
func (a *Answer) columns() (nextQuestionID *uuid.UUID, finalResult, recommendations *string) {
	switch r := a.result.(type) {
	case GoTo:
		id := r.QuestionID
		return &id, nil, nil
	case Outcome:
		code := r.Severity.Code()
		recs := r.Recommendations
		return nil, &code, &recs
	}
	return nil, nil, nil
}

type outcomeJSON struct {
	Severity        severity.Severity `json:"severity"`
	Label           string            `json:"label"`
	Recommendations string            `json:"recommendations"`
}

type answerJSON struct {
	ID             uuid.UUID    `json:"id"`
	QuestionID     uuid.UUID    `json:"question_id"`
	Text           string       `json:"answer_text"`
	Weight         int          `json:"severity_score"`
	NextQuestionID *uuid.UUID   `json:"next_question_id,omitempty"`
	Outcome        *outcomeJSON `json:"outcome,omitempty"`
}

func (a *Answer) MarshalJSON() ([]byte, error) {
	out := answerJSON{ID: a.ID, QuestionID: a.QuestionID, Text: a.Text, Weight: a.Weight}
	switch r := a.result.(type) {
	case GoTo:
		id := r.QuestionID
		out.NextQuestionID = &id
	case Outcome:
		out.Outcome = &outcomeJSON{Severity: r.Severity, Label: r.Severity.Label(), Recommendations: r.Recommendations}
	}
	return json.Marshal(out)
}
