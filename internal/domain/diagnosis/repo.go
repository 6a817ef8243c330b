package diagnosis

import (
	"context"

	"github.com/google/uuid"
)

type TreeRepository interface {
	CreateQuestion(ctx context.Context, q *Question) error
	CreateAnswer(ctx context.Context, a *Answer) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error)
	// ListRoots returns questions without a predecessor, lowest order first.
	ListRoots(ctx context.Context) ([]*Question, error)
	ListQuestions(ctx context.Context) ([]*Question, error)
	ListQuestionsByCategory(ctx context.Context, category string) ([]*Question, error)
	ListAnswers(ctx context.Context, questionID uuid.UUID) ([]*Answer, error)
	ListAllAnswers(ctx context.Context) ([]*Answer, error)
	CountQuestions(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
