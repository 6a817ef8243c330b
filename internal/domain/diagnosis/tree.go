package diagnosis

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Tree is the read side of the decision graph.
type Tree struct {
	repo TreeRepository
}

func NewTree(repo TreeRepository) *Tree {
	return &Tree{repo: repo}
}

// FirstQuestion returns the root question. When storage holds more than one
// root the one with the lowest order wins.
func (t *Tree) FirstQuestion(ctx context.Context) (*Question, error) {
	roots, err := t.repo.ListRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load root question: %w", err)
	}
	if len(roots) == 0 {
		return nil, ErrEmptyTree
	}
	return roots[0], nil
}

// AnswersFor returns the answers of a question, heaviest first. Answers of
// equal weight keep their insertion order.
func (t *Tree) AnswersFor(ctx context.Context, questionID uuid.UUID) ([]*Answer, error) {
	answers, err := t.repo.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load answers for %s: %w", questionID, err)
	}
	sortAnswers(answers)
	return answers, nil
}

func (t *Tree) QuestionByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	q, err := t.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func sortAnswers(answers []*Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		if answers[i].Weight != answers[j].Weight {
			return answers[i].Weight > answers[j].Weight
		}
		return answers[i].Position < answers[j].Position
	})
}

// Edge is an answer's link from one question to the next.
type Edge struct {
	AnswerID uuid.UUID `json:"answer_id"`
	From     uuid.UUID `json:"from_question_id"`
	To       uuid.UUID `json:"to_question_id"`
}

// Report describes the structural health of the stored tree.
type Report struct {
	Questions   int         `json:"questions"`
	Answers     int         `json:"answers"`
	Outcomes    int         `json:"outcomes"`
	Roots       []uuid.UUID `json:"roots"`
	Dangling    []Edge      `json:"dangling"`
	Orphans     []uuid.UUID `json:"orphan_answers"`
	DeadEnds    []uuid.UUID `json:"dead_ends"`
	Unreachable []uuid.UUID `json:"unreachable"`
	Cycles      []Edge      `json:"cycles"`
}

// OK reports whether every walk from the root terminates in an outcome.
func (r *Report) OK() bool {
	return len(r.Roots) == 1 && len(r.Dangling) == 0 && len(r.Orphans) == 0 &&
		len(r.DeadEnds) == 0 && len(r.Cycles) == 0
}

// Problems lists the findings in human-readable form.
func (r *Report) Problems() []string {
	var out []string
	switch len(r.Roots) {
	case 0:
		out = append(out, "no root question")
	case 1:
	default:
		out = append(out, fmt.Sprintf("%d root questions, expected 1", len(r.Roots)))
	}
	for _, e := range r.Dangling {
		out = append(out, fmt.Sprintf("answer %s of question %s points to missing question %s", e.AnswerID, e.From, e.To))
	}
	for _, id := range r.Orphans {
		out = append(out, fmt.Sprintf("answer %s belongs to a missing question", id))
	}
	for _, id := range r.DeadEnds {
		out = append(out, fmt.Sprintf("question %s has no answers", id))
	}
	for _, e := range r.Cycles {
		out = append(out, fmt.Sprintf("answer %s loops from question %s back to %s", e.AnswerID, e.From, e.To))
	}
	for _, id := range r.Unreachable {
		out = append(out, fmt.Sprintf("question %s is unreachable from the root", id))
	}
	return out
}

// Validate loads the whole graph and checks it. It visits every question at
// most once, so a cyclic tree is reported rather than followed.
func (t *Tree) Validate(ctx context.Context) (*Report, error) {
	questions, err := t.repo.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	answers, err := t.repo.ListAllAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	rep := &Report{
		Questions:   len(questions),
		Answers:     len(answers),
		Roots:       []uuid.UUID{},
		Dangling:    []Edge{},
		Orphans:     []uuid.UUID{},
		DeadEnds:    []uuid.UUID{},
		Unreachable: []uuid.UUID{},
		Cycles:      []Edge{},
	}

	known := make(map[uuid.UUID]*Question, len(questions))
	for _, q := range questions {
		known[q.ID] = q
		if q.IsRoot() {
			rep.Roots = append(rep.Roots, q.ID)
		}
	}

	edges := make(map[uuid.UUID][]Edge)
	answered := make(map[uuid.UUID]bool)
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			rep.Orphans = append(rep.Orphans, a.ID)
			continue
		}
		answered[a.QuestionID] = true
		switch r := a.Result().(type) {
		case Outcome:
			rep.Outcomes++
		case GoTo:
			e := Edge{AnswerID: a.ID, From: a.QuestionID, To: r.QuestionID}
			if _, ok := known[r.QuestionID]; !ok {
				rep.Dangling = append(rep.Dangling, e)
				continue
			}
			edges[a.QuestionID] = append(edges[a.QuestionID], e)
		}
	}

	for _, q := range questions {
		if !answered[q.ID] {
			rep.DeadEnds = append(rep.DeadEnds, q.ID)
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[uuid.UUID]int, len(questions))
	var visit func(id uuid.UUID)
	visit = func(id uuid.UUID) {
		state[id] = inProgress
		for _, e := range edges[id] {
			switch state[e.To] {
			case inProgress:
				rep.Cycles = append(rep.Cycles, e)
			case unvisited:
				visit(e.To)
			}
		}
		state[id] = done
	}

	if len(rep.Roots) > 0 {
		first, err := t.FirstQuestion(ctx)
		if err != nil {
			return nil, err
		}
		visit(first.ID)
	}
	for _, q := range questions {
		if state[q.ID] == unvisited {
			rep.Unreachable = append(rep.Unreachable, q.ID)
		}
	}
	for _, id := range rep.Unreachable {
		if state[id] == unvisited {
			visit(id)
		}
	}

	return rep, nil
}
