package main

import "time"

// Category is a spending or income bucket. Categories are never physically
// removed; deleting one flips IsActive.
type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Color        *string   `json:"color"`
	Icon         *string   `json:"icon"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CategoryRef is the category data embedded into transaction and
// subscription reads.
type CategoryRef struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Color *string `json:"color"`
	Icon  *string `json:"icon"`
}

// Transaction is a single income or expense entry. Amounts are whole yen.
// Tags cross the API as a native array; Tags is null when none are stored
// or the stored JSON is malformed.
type Transaction struct {
	ID              int64        `json:"id"`
	Amount          int64        `json:"amount"`
	Type            string       `json:"type"`
	CategoryID      *int64       `json:"categoryId"`
	Description     *string      `json:"description"`
	TransactionDate string       `json:"transactionDate"`
	PaymentMethod   *string      `json:"paymentMethod"`
	Tags            []string     `json:"tags"`
	ReceiptURL      *string      `json:"receiptUrl"`
	IsRecurring     bool         `json:"isRecurring"`
	RecurringID     *int64       `json:"recurringId"`
	Category        *CategoryRef `json:"category"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Subscription is a recurring payment template. The processing endpoint
// turns due subscriptions into transactions and advances NextPaymentDate.
type Subscription struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Amount          int64        `json:"amount"`
	CategoryID      *int64       `json:"categoryId"`
	Frequency       string       `json:"frequency"`
	NextPaymentDate string       `json:"nextPaymentDate"`
	Description     *string      `json:"description"`
	IsActive        bool         `json:"isActive"`
	AutoGenerate    bool         `json:"autoGenerate"`
	Category        *CategoryRef `json:"category"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Pagination is the page window metadata attached to transaction listings.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// CategorySummary is one row of the per-category breakdown in the
// transactions summary.
type CategorySummary struct {
	CategoryID   *int64  `json:"categoryId"`
	CategoryName *string `json:"categoryName"`
	Type         string  `json:"type"`
	Total        int64   `json:"total"`
}

// TransactionSummary aggregates totals for a date range.
type TransactionSummary struct {
	Income     int64             `json:"income"`
	Expense    int64             `json:"expense"`
	Net        int64             `json:"net"`
	ByCategory []CategorySummary `json:"byCategory"`
}
