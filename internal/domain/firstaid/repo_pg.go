package firstaid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conectaribas/conectaribas/internal/platform/db"
)

type guideRepoPG struct{ pool *pgxpool.Pool }

func NewGuideRepoPG(pool *pgxpool.Pool) GuideRepository {
	return &guideRepoPG{pool: pool}
}

func (r *guideRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const guideCols = `id, title, category, description, content, warning_signs,
	image_file_name, display_order, is_emergency`

func (r *guideRepoPG) scanRow(row pgx.Row) (*Guide, error) {
	var g Guide
	err := row.Scan(&g.ID, &g.Title, &g.Category, &g.Description, &g.Content, &g.WarningSigns,
		&g.ImageFileName, &g.DisplayOrder, &g.IsEmergency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGuideNotFound
	}
	return &g, err
}

func (r *guideRepoPG) Create(ctx context.Context, g *Guide) error {
	g.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO first_aid_guides (id, title, category, description, content, warning_signs,
			image_file_name, display_order, is_emergency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		g.ID, g.Title, g.Category, g.Description, g.Content, g.WarningSigns,
		g.ImageFileName, g.DisplayOrder, g.IsEmergency)
	return err
}

func (r *guideRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Guide, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+guideCols+` FROM first_aid_guides WHERE id = $1`, id))
}

func (r *guideRepoPG) List(ctx context.Context, f Filter) ([]*Guide, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if f.Query != "" {
		args = append(args, f.Query)
		conds = append(conds, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if f.EmergencyOnly {
		conds = append(conds, "is_emergency")
	}
	sql := `SELECT ` + guideCols + ` FROM first_aid_guides`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY display_order, title"

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Guide
	for rows.Next() {
		g, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *guideRepoPG) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT category FROM first_aid_guides ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *guideRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM first_aid_guides`).Scan(&n)
	return n, err
}

func (r *guideRepoPG) DeleteAll(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM first_aid_guides`)
	return err
}
