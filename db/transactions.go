package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transaction mirrors the transactions table plus the category columns
// denormalized by the LEFT JOIN every read uses. Transactions are the one
// entity that is physically deleted.
type Transaction struct {
	ID              int64
	Amount          int64
	Type            string
	CategoryID      pgtype.Int8
	Description     pgtype.Text
	TransactionDate pgtype.Date
	PaymentMethod   pgtype.Text
	Tags            pgtype.Text
	ReceiptURL      pgtype.Text
	IsRecurring     bool
	RecurringID     pgtype.Int8
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
	CategoryName    pgtype.Text
	CategoryType    pgtype.Text
	CategoryColor   pgtype.Text
	CategoryIcon    pgtype.Text
}

const transactionSelect = `
	SELECT t.id, t.amount, t.type, t.category_id, t.description, t.transaction_date,
	       t.payment_method, t.tags, t.receipt_url, t.is_recurring, t.recurring_id,
	       t.created_at, t.updated_at,
	       c.name, c.type, c.color, c.icon
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Amount, &t.Type, &t.CategoryID, &t.Description,
		&t.TransactionDate, &t.PaymentMethod, &t.Tags, &t.ReceiptURL,
		&t.IsRecurring, &t.RecurringID, &t.CreatedAt, &t.UpdatedAt,
		&t.CategoryName, &t.CategoryType, &t.CategoryColor, &t.CategoryIcon)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactionsParams carries the filter, sort, and page window for a
// transaction listing. SortBy must already be restricted to a column from
// the handler's allow-list; it is interpolated into the ORDER BY clause.
type ListTransactionsParams struct {
	From       pgtype.Date
	To         pgtype.Date
	Type       string
	CategoryID pgtype.Int8
	Search     string
	SortBy     string
	SortOrder  string
	Limit      int32
	Offset     int64
}

func transactionFilters(p ListTransactionsParams) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if p.From.Valid {
		add("t.transaction_date >= ?", p.From)
	}
	if p.To.Valid {
		add("t.transaction_date <= ?", p.To)
	}
	if p.Type != "" {
		add("t.type = ?", p.Type)
	}
	if p.CategoryID.Valid {
		add("t.category_id = ?", p.CategoryID)
	}
	if p.Search != "" {
		add("t.description ILIKE ?", "%"+p.Search+"%")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (q *Queries) CountTransactions(ctx context.Context, p ListTransactionsParams) (int64, error) {
	where, args := transactionFilters(p)
	var total int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

func (q *Queries) ListTransactions(ctx context.Context, p ListTransactionsParams) ([]Transaction, error) {
	where, args := transactionFilters(p)

	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(p.SortOrder, "asc") {
		direction = "ASC"
	}
	order := fmt.Sprintf(" ORDER BY t.%s %s, t.id %s", sortBy, direction, direction)

	args = append(args, p.Limit)
	limitClause := " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, p.Offset)
	offsetClause := " OFFSET $" + strconv.Itoa(len(args))

	rows, err := q.pool.Query(ctx, transactionSelect+where+order+limitClause+offsetClause, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// GetTransactionByID returns the transaction with joined category data, or
// nil when the row does not exist.
func (q *Queries) GetTransactionByID(ctx context.Context, id int64) (*Transaction, error) {
	row := q.pool.QueryRow(ctx, transactionSelect+` WHERE t.id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

type CreateTransactionParams struct {
	Amount          int64
	Type            string
	CategoryID      pgtype.Int8
	Description     pgtype.Text
	TransactionDate pgtype.Date
	PaymentMethod   pgtype.Text
	Tags            pgtype.Text
	ReceiptURL      pgtype.Text
	IsRecurring     bool
	RecurringID     pgtype.Int8
}

func (q *Queries) CreateTransaction(ctx context.Context, p CreateTransactionParams) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx, `
		INSERT INTO transactions (amount, type, category_id, description, transaction_date,
		                          payment_method, tags, receipt_url, is_recurring, recurring_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		p.Amount, p.Type, p.CategoryID, p.Description, p.TransactionDate,
		p.PaymentMethod, p.Tags, p.ReceiptURL, p.IsRecurring, p.RecurringID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// UpdateTransactionParams carries the full mutable field set; the handler
// merges the patch into the existing row before calling this.
type UpdateTransactionParams struct {
	ID              int64
	Amount          int64
	Type            string
	CategoryID      pgtype.Int8
	Description     pgtype.Text
	TransactionDate pgtype.Date
	PaymentMethod   pgtype.Text
	Tags            pgtype.Text
	ReceiptURL      pgtype.Text
}

func (q *Queries) UpdateTransaction(ctx context.Context, p UpdateTransactionParams) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE transactions
		SET amount = $2, type = $3, category_id = $4, description = $5, transaction_date = $6,
		    payment_method = $7, tags = $8, receipt_url = $9, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Amount, p.Type, p.CategoryID, p.Description, p.TransactionDate,
		p.PaymentMethod, p.Tags, p.ReceiptURL)
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteTransaction removes the row for good. Transactions are not
// logically deleted like categories and subscriptions are.
func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type FindDuplicateTransactionParams struct {
	Amount          int64
	Type            string
	TransactionDate pgtype.Date
	Description     pgtype.Text
}

// FindDuplicateTransaction counts rows matching the identity columns the
// CSV importer uses for its duplicate skip.
func (q *Queries) FindDuplicateTransaction(ctx context.Context, p FindDuplicateTransactionParams) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE amount = $1 AND type = $2
		  AND transaction_date IS NOT DISTINCT FROM $3
		  AND description IS NOT DISTINCT FROM $4`,
		p.Amount, p.Type, p.TransactionDate, p.Description).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("find duplicate transaction: %w", err)
	}
	return count, nil
}

type TypeTotal struct {
	Type  string
	Total int64
}

type CategoryTotal struct {
	CategoryID   pgtype.Int8
	CategoryName pgtype.Text
	Type         string
	Total        int64
}

func summaryFilters(from, to pgtype.Date) (string, []any) {
	var clauses []string
	var args []any
	if from.Valid {
		args = append(args, from)
		clauses = append(clauses, "transaction_date >= $"+strconv.Itoa(len(args)))
	}
	if to.Valid {
		args = append(args, to)
		clauses = append(clauses, "transaction_date <= $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// TransactionTotals sums amounts per type over the optional date range.
func (q *Queries) TransactionTotals(ctx context.Context, from, to pgtype.Date) ([]TypeTotal, error) {
	where, args := summaryFilters(from, to)
	rows, err := q.pool.Query(ctx,
		`SELECT type, COALESCE(SUM(amount), 0) FROM transactions`+where+` GROUP BY type`, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction totals: %w", err)
	}
	defer rows.Close()

	var totals []TypeTotal
	for rows.Next() {
		var t TypeTotal
		if err := rows.Scan(&t.Type, &t.Total); err != nil {
			return nil, fmt.Errorf("scan type total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// CategoryTotals sums amounts per (category, type) over the optional date
// range. Uncategorized transactions come back with a null category id.
func (q *Queries) CategoryTotals(ctx context.Context, from, to pgtype.Date) ([]CategoryTotal, error) {
	where, args := summaryFilters(from, to)
	rows, err := q.pool.Query(ctx, `
		SELECT t.category_id, c.name, t.type, COALESCE(SUM(t.amount), 0)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id`+
		strings.Replace(where, "transaction_date", "t.transaction_date", -1)+`
		GROUP BY t.category_id, c.name, t.type
		ORDER BY COALESCE(SUM(t.amount), 0) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.CategoryName, &t.Type, &t.Total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
