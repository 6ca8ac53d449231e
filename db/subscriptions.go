package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Subscription mirrors the subscriptions table plus joined category data.
// Like categories, subscriptions are logically deleted via is_active.
type Subscription struct {
	ID              int64
	Name            string
	Amount          int64
	CategoryID      pgtype.Int8
	Frequency       string
	NextPaymentDate pgtype.Date
	Description     pgtype.Text
	IsActive        bool
	AutoGenerate    bool
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
	CategoryName    pgtype.Text
	CategoryType    pgtype.Text
	CategoryColor   pgtype.Text
	CategoryIcon    pgtype.Text
}

const subscriptionSelect = `
	SELECT s.id, s.name, s.amount, s.category_id, s.frequency, s.next_payment_date,
	       s.description, s.is_active, s.auto_generate, s.created_at, s.updated_at,
	       c.name, c.type, c.color, c.icon
	FROM subscriptions s
	LEFT JOIN categories c ON c.id = s.category_id`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.Name, &s.Amount, &s.CategoryID, &s.Frequency,
		&s.NextPaymentDate, &s.Description, &s.IsActive, &s.AutoGenerate,
		&s.CreatedAt, &s.UpdatedAt,
		&s.CategoryName, &s.CategoryType, &s.CategoryColor, &s.CategoryIcon)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubscriptions returns subscriptions newest-first. A nil active filter
// returns both active and logically deleted rows.
func (q *Queries) ListSubscriptions(ctx context.Context, active *bool) ([]Subscription, error) {
	query := subscriptionSelect
	args := []any{}
	if active != nil {
		query += ` WHERE s.is_active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, *s)
	}
	return subscriptions, rows.Err()
}

// GetSubscriptionByID returns the active subscription with the given id, or
// nil when it is absent or logically deleted.
func (q *Queries) GetSubscriptionByID(ctx context.Context, id int64) (*Subscription, error) {
	row := q.pool.QueryRow(ctx, subscriptionSelect+` WHERE s.id = $1 AND s.is_active = true`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}
	return s, nil
}

type CreateSubscriptionParams struct {
	Name            string
	Amount          int64
	CategoryID      pgtype.Int8
	Frequency       string
	NextPaymentDate pgtype.Date
	Description     pgtype.Text
	AutoGenerate    bool
}

func (q *Queries) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (name, amount, category_id, frequency, next_payment_date,
		                           description, auto_generate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Name, p.Amount, p.CategoryID, p.Frequency, p.NextPaymentDate,
		p.Description, p.AutoGenerate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}
	return id, nil
}

type UpdateSubscriptionParams struct {
	ID              int64
	Name            string
	Amount          int64
	CategoryID      pgtype.Int8
	Frequency       string
	NextPaymentDate pgtype.Date
	Description     pgtype.Text
	AutoGenerate    bool
}

func (q *Queries) UpdateSubscription(ctx context.Context, p UpdateSubscriptionParams) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE subscriptions
		SET name = $2, amount = $3, category_id = $4, frequency = $5, next_payment_date = $6,
		    description = $7, auto_generate = $8, updated_at = now()
		WHERE id = $1 AND is_active = true`,
		p.ID, p.Name, p.Amount, p.CategoryID, p.Frequency, p.NextPaymentDate,
		p.Description, p.AutoGenerate)
	if err != nil {
		return false, fmt.Errorf("update subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateSubscription performs the logical delete.
func (q *Queries) DeactivateSubscription(ctx context.Context, id int64) (bool, error) {
	tag, err := q.pool.Exec(ctx,
		`UPDATE subscriptions SET is_active = false, updated_at = now() WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListDueSubscriptions returns active, auto-generating subscriptions whose
// next payment date is on or before the given date.
func (q *Queries) ListDueSubscriptions(ctx context.Context, date pgtype.Date) ([]Subscription, error) {
	rows, err := q.pool.Query(ctx, subscriptionSelect+`
		WHERE s.is_active = true AND s.auto_generate = true AND s.next_payment_date <= $1
		ORDER BY s.next_payment_date ASC, s.id ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due subscription: %w", err)
		}
		subscriptions = append(subscriptions, *s)
	}
	return subscriptions, rows.Err()
}

// UpdateNextPaymentDate advances a subscription's schedule after a
// transaction has been generated for it.
func (q *Queries) UpdateNextPaymentDate(ctx context.Context, id int64, date pgtype.Date) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE subscriptions SET next_payment_date = $2, updated_at = now() WHERE id = $1`, id, date)
	if err != nil {
		return fmt.Errorf("update next payment date: %w", err)
	}
	return nil
}
