package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conectaribas/conectaribas/internal/platform/db"
)

type treeRepoPG struct{ pool *pgxpool.Pool }

func NewTreeRepoPG(pool *pgxpool.Pool) TreeRepository {
	return &treeRepoPG{pool: pool}
}

func (r *treeRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const questionCols = `id, question_text, category, question_order, previous_question_id,
	is_required, position, created_at`

const answerCols = `id, question_id, answer_text, severity_score, position,
	next_question_id, final_result, recommendations`

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.Text, &q.Category, &q.Order, &q.PreviousID,
		&q.Required, &q.Position, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanAnswer(row pgx.Row) (*Answer, error) {
	var (
		id, questionID uuid.UUID
		text           string
		weight         int
		position       int64
		next           *uuid.UUID
		final, recs    *string
	)
	if err := row.Scan(&id, &questionID, &text, &weight, &position, &next, &final, &recs); err != nil {
		return nil, err
	}
	return answerFromColumns(id, questionID, text, weight, position, next, final, recs)
}

func (r *treeRepoPG) CreateQuestion(ctx context.Context, q *Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnosis_questions (id, question_text, category, question_order,
			previous_question_id, is_required)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING position, created_at`,
		q.ID, q.Text, q.Category, q.Order, q.PreviousID, q.Required,
	).Scan(&q.Position, &q.CreatedAt)
}

func (r *treeRepoPG) CreateAnswer(ctx context.Context, a *Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	next, final, recs := a.columns()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnosis_answers (id, question_id, answer_text, next_question_id,
			final_result, recommendations, severity_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING position`,
		a.ID, a.QuestionID, a.Text, next, final, recs, a.Weight,
	).Scan(&a.Position)
}

func (r *treeRepoPG) GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error) {
	return scanQuestion(r.conn(ctx).QueryRow(ctx,
		`SELECT `+questionCols+` FROM diagnosis_questions WHERE id = $1`, id))
}

func (r *treeRepoPG) ListRoots(ctx context.Context) ([]*Question, error) {
	return r.listQuestions(ctx, `SELECT `+questionCols+` FROM diagnosis_questions
		WHERE previous_question_id IS NULL ORDER BY question_order, position`)
}

func (r *treeRepoPG) ListQuestions(ctx context.Context) ([]*Question, error) {
	return r.listQuestions(ctx, `SELECT `+questionCols+` FROM diagnosis_questions
		ORDER BY question_order, position`)
}

func (r *treeRepoPG) ListQuestionsByCategory(ctx context.Context, category string) ([]*Question, error) {
	return r.listQuestions(ctx, `SELECT `+questionCols+` FROM diagnosis_questions
		WHERE category = $1 ORDER BY question_order, position`, category)
}

func (r *treeRepoPG) listQuestions(ctx context.Context, sql string, args ...interface{}) ([]*Question, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *treeRepoPG) ListAnswers(ctx context.Context, questionID uuid.UUID) ([]*Answer, error) {
	return r.listAnswers(ctx, `SELECT `+answerCols+` FROM diagnosis_answers
		WHERE question_id = $1 ORDER BY severity_score DESC, position`, questionID)
}

func (r *treeRepoPG) ListAllAnswers(ctx context.Context) ([]*Answer, error) {
	return r.listAnswers(ctx, `SELECT `+answerCols+` FROM diagnosis_answers
		ORDER BY question_id, severity_score DESC, position`)
}

func (r *treeRepoPG) listAnswers(ctx context.Context, sql string, args ...interface{}) ([]*Answer, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *treeRepoPG) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnosis_questions`).Scan(&n)
	return n, err
}

// DeleteAll removes every question; answers go with them through the
// cascading foreign key.
func (r *treeRepoPG) DeleteAll(ctx context.Context) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnosis_questions`); err != nil {
		return fmt.Errorf("delete diagnosis tree: %w", err)
	}
	return nil
}
