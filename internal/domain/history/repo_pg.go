package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
	"github.com/conectaribas/conectaribas/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recCols = `id, timestamp, patient_name, symptoms, diagnosis, recommendations`

func (r *recordRepoPG) scanRow(row pgx.Row) (*SymptomRecord, error) {
	var (
		rec  SymptomRecord
		diag string
	)
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.PatientName, &rec.Symptoms, &diag, &rec.Recommendations)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Diagnosis, err = severity.Parse(diag); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *SymptomRecord) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO symptom_records (id, timestamp, patient_name, symptoms, diagnosis, recommendations)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.Timestamp, rec.PatientName, rec.Symptoms, rec.Diagnosis.Code(), rec.Recommendations)
	return err
}

func (r *recordRepoPG) Insert(ctx context.Context, rec *SymptomRecord) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO symptom_records (id, timestamp, patient_name, symptoms, diagnosis, recommendations)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Timestamp, rec.PatientName, rec.Symptoms, rec.Diagnosis.Code(), rec.Recommendations)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SymptomRecord, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+recCols+` FROM symptom_records WHERE id = $1`, id))
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM symptom_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *recordRepoPG) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM symptom_records`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// whereClause renders f as SQL conditions with positional arguments.
func whereClause(f Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}
	if f.Patient != "" {
		add(`patient_name ILIKE $%d ESCAPE '\'`, containsPattern(f.Patient))
	}
	if f.Diagnosis != 0 {
		add("diagnosis = $%d", f.Diagnosis.Code())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *recordRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*SymptomRecord, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM symptom_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	items, err := r.query(ctx, `SELECT `+recCols+` FROM symptom_records`+where+
		fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *recordRepoPG) ListAll(ctx context.Context) ([]*SymptomRecord, error) {
	return r.query(ctx, `SELECT `+recCols+` FROM symptom_records ORDER BY timestamp DESC`)
}

func (r *recordRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*SymptomRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SymptomRecord
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM symptom_records`).Scan(&n)
	return n, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s literally anywhere in
// the column, the same way Filter.Match does.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
