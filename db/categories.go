package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Category mirrors the categories table. Rows are never physically removed;
// is_active=false marks them deleted.
type Category struct {
	ID           int64
	Name         string
	Type         string
	Color        pgtype.Text
	Icon         pgtype.Text
	DisplayOrder int32
	IsActive     bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const categoryColumns = `id, name, type, color, icon, display_order, is_active, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Color, &c.Icon, &c.DisplayOrder,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns active categories ordered by display_order then id.
// An empty typeFilter returns both income and expense categories.
func (q *Queries) ListCategories(ctx context.Context, typeFilter string) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE is_active = true`
	args := []any{}
	if typeFilter != "" {
		query += ` AND type = $1`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY display_order ASC, id ASC`

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// GetCategoryByID returns the active category with the given id, or nil when
// it is absent or logically deleted.
func (q *Queries) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND is_active = true`, id)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

// NextDisplayOrder returns max(display_order)+1 among active categories of
// the given type, starting at 1 when there are none.
func (q *Queries) NextDisplayOrder(ctx context.Context, categoryType string) (int32, error) {
	var next int32
	err := q.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_order), 0) + 1 FROM categories WHERE type = $1 AND is_active = true`,
		categoryType).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next display order: %w", err)
	}
	return next, nil
}

type CreateCategoryParams struct {
	Name         string
	Type         string
	Color        pgtype.Text
	Icon         pgtype.Text
	DisplayOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, p CreateCategoryParams) (*Category, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO categories (name, type, color, icon, display_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+categoryColumns,
		p.Name, p.Type, p.Color, p.Icon, p.DisplayOrder)
	c, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// UpdateCategoryParams carries the full mutable field set. Type and
// is_active are immutable through updates.
type UpdateCategoryParams struct {
	ID           int64
	Name         string
	Color        pgtype.Text
	Icon         pgtype.Text
	DisplayOrder int32
}

func (q *Queries) UpdateCategory(ctx context.Context, p UpdateCategoryParams) (*Category, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE categories
		SET name = $2, color = $3, icon = $4, display_order = $5, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING `+categoryColumns,
		p.ID, p.Name, p.Color, p.Icon, p.DisplayOrder)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeactivateCategory performs the logical delete. It reports whether an
// active row was actually flipped.
func (q *Queries) DeactivateCategory(ctx context.Context, id int64) (bool, error) {
	tag, err := q.pool.Exec(ctx,
		`UPDATE categories SET is_active = false, updated_at = now() WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate category: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type ReorderPair struct {
	ID           int64
	DisplayOrder int32
}

// ReorderCategories applies every (id, display_order) pair inside a single
// transaction and returns how many rows were actually updated. Callers are
// expected to have rejected duplicate ids already.
func (q *Queries) ReorderCategories(ctx context.Context, pairs []ReorderPair) (int64, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	var updated int64
	for _, p := range pairs {
		tag, err := tx.Exec(ctx,
			`UPDATE categories SET display_order = $2, updated_at = now() WHERE id = $1 AND is_active = true`,
			p.ID, p.DisplayOrder)
		if err != nil {
			return 0, fmt.Errorf("reorder category %d: %w", p.ID, err)
		}
		updated += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reorder: %w", err)
	}
	return updated, nil
}
