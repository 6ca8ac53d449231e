package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Request validation. Every endpoint validates by hand and reports a list
// of per-field errors rather than one opaque message; handlers return the
// whole list with a 400.

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	hexColorRegex = regexp.MustCompile(`^#[0-9A-F]{6}$`)
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var validRecordTypes = map[string]bool{
	"income":  true,
	"expense": true,
}

var validFrequencies = map[string]bool{
	"daily":   true,
	"weekly":  true,
	"monthly": true,
	"yearly":  true,
}

// transactionSortColumns is the sort_by allow-list; the values are the
// column names handed to the query layer.
var transactionSortColumns = map[string]string{
	"transaction_date": "transaction_date",
	"amount":           "amount",
	"created_at":       "created_at",
}

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
	maxReorderItems         = 1000
)

func validateName(name string) *FieldError {
	if strings.TrimSpace(name) == "" {
		return &FieldError{Field: "name", Message: "名前は必須です"}
	}
	return nil
}

func validateHexColor(field, color string) *FieldError {
	if !hexColorRegex.MatchString(color) {
		return &FieldError{Field: field, Message: "カラーコードは#RRGGBB形式で指定してください"}
	}
	return nil
}

func validateDate(field, date string) *FieldError {
	if !dateRegex.MatchString(date) {
		return &FieldError{Field: field, Message: "日付はYYYY-MM-DD形式で指定してください"}
	}
	return nil
}

func validateAmount(amount int64) *FieldError {
	if amount <= 0 {
		return &FieldError{Field: "amount", Message: "金額は正の整数で指定してください"}
	}
	return nil
}

// Category payloads

type CategoryInput struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	DisplayOrder *int    `json:"displayOrder"`
}

func validateCategoryInput(in CategoryInput) []FieldError {
	var errs []FieldError
	if in.Name == nil {
		errs = append(errs, FieldError{Field: "name", Message: "名前は必須です"})
	} else if fe := validateName(*in.Name); fe != nil {
		errs = append(errs, *fe)
	}
	if in.Type == nil {
		errs = append(errs, FieldError{Field: "type", Message: "タイプは必須です"})
	} else if !validRecordTypes[*in.Type] {
		errs = append(errs, FieldError{Field: "type", Message: "タイプはincomeまたはexpenseを指定してください"})
	}
	if in.Color != nil {
		if fe := validateHexColor("color", *in.Color); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if in.DisplayOrder != nil && *in.DisplayOrder < 0 {
		errs = append(errs, FieldError{Field: "displayOrder", Message: "表示順は0以上で指定してください"})
	}
	return errs
}

// CategoryPatch lists the mutable category fields. Type and isActive are
// immutable after creation and deliberately absent.
type CategoryPatch struct {
	Name         *string `json:"name"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	DisplayOrder *int    `json:"displayOrder"`
}

func (p CategoryPatch) hasFields() bool {
	return p.Name != nil || p.Color != nil || p.Icon != nil || p.DisplayOrder != nil
}

func validateCategoryPatch(p CategoryPatch) []FieldError {
	var errs []FieldError
	if p.Name != nil {
		if fe := validateName(*p.Name); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.Color != nil {
		if fe := validateHexColor("color", *p.Color); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.DisplayOrder != nil && *p.DisplayOrder < 0 {
		errs = append(errs, FieldError{Field: "displayOrder", Message: "表示順は0以上で指定してください"})
	}
	return errs
}

// Reorder payload

type ReorderItem struct {
	ID           int64 `json:"id"`
	DisplayOrder int   `json:"displayOrder"`
}

type ReorderInput struct {
	Categories []ReorderItem `json:"categories"`
}

// validateReorderInput rejects duplicate ids before anything is written.
func validateReorderInput(in ReorderInput) []FieldError {
	var errs []FieldError
	if len(in.Categories) == 0 {
		return append(errs, FieldError{Field: "categories", Message: "並び替える項目を指定してください"})
	}
	if len(in.Categories) > maxReorderItems {
		return append(errs, FieldError{Field: "categories", Message: fmt.Sprintf("一度に並び替えできるのは%d件までです", maxReorderItems)})
	}
	seen := make(map[int64]bool, len(in.Categories))
	for i, item := range in.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if item.ID <= 0 {
			errs = append(errs, FieldError{Field: field + ".id", Message: "IDは正の整数で指定してください"})
			continue
		}
		if item.DisplayOrder < 0 {
			errs = append(errs, FieldError{Field: field + ".displayOrder", Message: "表示順は0以上で指定してください"})
		}
		if seen[item.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("カテゴリID %d が重複しています", item.ID)})
		}
		seen[item.ID] = true
	}
	return errs
}

// Transaction payloads

type TransactionInput struct {
	Amount          *int64   `json:"amount"`
	Type            *string  `json:"type"`
	CategoryID      *int64   `json:"categoryId"`
	Description     *string  `json:"description"`
	TransactionDate *string  `json:"transactionDate"`
	PaymentMethod   *string  `json:"paymentMethod"`
	Tags            []string `json:"tags"`
	ReceiptURL      *string  `json:"receiptUrl"`
}

func validateTransactionInput(in TransactionInput) []FieldError {
	var errs []FieldError
	if in.Amount == nil {
		errs = append(errs, FieldError{Field: "amount", Message: "金額は必須です"})
	} else if fe := validateAmount(*in.Amount); fe != nil {
		errs = append(errs, *fe)
	}
	if in.Type == nil {
		errs = append(errs, FieldError{Field: "type", Message: "タイプは必須です"})
	} else if !validRecordTypes[*in.Type] {
		errs = append(errs, FieldError{Field: "type", Message: "タイプはincomeまたはexpenseを指定してください"})
	}
	if in.TransactionDate == nil {
		errs = append(errs, FieldError{Field: "transactionDate", Message: "取引日は必須です"})
	} else if fe := validateDate("transactionDate", *in.TransactionDate); fe != nil {
		errs = append(errs, *fe)
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		errs = append(errs, FieldError{Field: "categoryId", Message: "カテゴリIDは正の整数で指定してください"})
	}
	return errs
}

// TransactionPatch lists the mutable transaction fields. isRecurring and
// recurringId are owned by subscription processing and not patchable.
// A categoryId of 0 clears the category reference.
type TransactionPatch struct {
	Amount          *int64   `json:"amount"`
	Type            *string  `json:"type"`
	CategoryID      *int64   `json:"categoryId"`
	Description     *string  `json:"description"`
	TransactionDate *string  `json:"transactionDate"`
	PaymentMethod   *string  `json:"paymentMethod"`
	Tags            []string `json:"tags"`
	ReceiptURL      *string  `json:"receiptUrl"`
}

func (p TransactionPatch) hasFields() bool {
	return p.Amount != nil || p.Type != nil || p.CategoryID != nil || p.Description != nil ||
		p.TransactionDate != nil || p.PaymentMethod != nil || p.Tags != nil || p.ReceiptURL != nil
}

func validateTransactionPatch(p TransactionPatch) []FieldError {
	var errs []FieldError
	if p.Amount != nil {
		if fe := validateAmount(*p.Amount); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.Type != nil && !validRecordTypes[*p.Type] {
		errs = append(errs, FieldError{Field: "type", Message: "タイプはincomeまたはexpenseを指定してください"})
	}
	if p.TransactionDate != nil {
		if fe := validateDate("transactionDate", *p.TransactionDate); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.CategoryID != nil && *p.CategoryID < 0 {
		errs = append(errs, FieldError{Field: "categoryId", Message: "カテゴリIDは0以上で指定してください（0は解除）"})
	}
	return errs
}

// TransactionListQuery is the parsed query string of GET /api/transactions.
type TransactionListQuery struct {
	From       string
	To         string
	Type       string
	CategoryID int64
	Search     string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

type queryValues interface {
	Query(key string) string
}

// parseTransactionListQuery validates and defaults the listing parameters:
// page >= 1, limit 1..100, sort_by/sort_order from allow-lists.
func parseTransactionListQuery(c queryValues) (TransactionListQuery, []FieldError) {
	q := TransactionListQuery{
		Page:      1,
		Limit:     defaultTransactionLimit,
		SortBy:    "created_at",
		SortOrder: "desc",
	}
	var errs []FieldError

	if v := c.Query("from"); v != "" {
		if fe := validateDate("from", v); fe != nil {
			errs = append(errs, *fe)
		} else {
			q.From = v
		}
	}
	if v := c.Query("to"); v != "" {
		if fe := validateDate("to", v); fe != nil {
			errs = append(errs, *fe)
		} else {
			q.To = v
		}
	}
	if v := c.Query("type"); v != "" {
		if !validRecordTypes[v] {
			errs = append(errs, FieldError{Field: "type", Message: "タイプはincomeまたはexpenseを指定してください"})
		} else {
			q.Type = v
		}
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			errs = append(errs, FieldError{Field: "category_id", Message: "カテゴリIDは正の整数で指定してください"})
		} else {
			q.CategoryID = id
		}
	}
	if v := c.Query("search"); v != "" {
		q.Search = strings.TrimSpace(v)
	}
	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			errs = append(errs, FieldError{Field: "page", Message: "ページは1以上で指定してください"})
		} else {
			q.Page = page
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxTransactionLimit {
			errs = append(errs, FieldError{Field: "limit", Message: fmt.Sprintf("取得件数は1〜%dで指定してください", maxTransactionLimit)})
		} else {
			q.Limit = limit
		}
	}
	if v := c.Query("sort_by"); v != "" {
		column, ok := transactionSortColumns[v]
		if !ok {
			errs = append(errs, FieldError{Field: "sort_by", Message: "並び替え項目が不正です"})
		} else {
			q.SortBy = column
		}
	}
	if v := c.Query("sort_order"); v != "" {
		if v != "asc" && v != "desc" {
			errs = append(errs, FieldError{Field: "sort_order", Message: "並び順はascまたはdescを指定してください"})
		} else {
			q.SortOrder = v
		}
	}
	return q, errs
}

// Subscription payloads

type SubscriptionInput struct {
	Name            *string `json:"name"`
	Amount          *int64  `json:"amount"`
	CategoryID      *int64  `json:"categoryId"`
	Frequency       *string `json:"frequency"`
	NextPaymentDate *string `json:"nextPaymentDate"`
	Description     *string `json:"description"`
	AutoGenerate    *bool   `json:"autoGenerate"`
}

func validateSubscriptionInput(in SubscriptionInput) []FieldError {
	var errs []FieldError
	if in.Name == nil {
		errs = append(errs, FieldError{Field: "name", Message: "名前は必須です"})
	} else if fe := validateName(*in.Name); fe != nil {
		errs = append(errs, *fe)
	}
	if in.Amount == nil {
		errs = append(errs, FieldError{Field: "amount", Message: "金額は必須です"})
	} else if fe := validateAmount(*in.Amount); fe != nil {
		errs = append(errs, *fe)
	}
	if in.Frequency == nil {
		errs = append(errs, FieldError{Field: "frequency", Message: "頻度は必須です"})
	} else if !validFrequencies[*in.Frequency] {
		errs = append(errs, FieldError{Field: "frequency", Message: "頻度はdaily/weekly/monthly/yearlyのいずれかを指定してください"})
	}
	if in.NextPaymentDate == nil {
		errs = append(errs, FieldError{Field: "nextPaymentDate", Message: "次回支払日は必須です"})
	} else if fe := validateDate("nextPaymentDate", *in.NextPaymentDate); fe != nil {
		errs = append(errs, *fe)
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		errs = append(errs, FieldError{Field: "categoryId", Message: "カテゴリIDは正の整数で指定してください"})
	}
	return errs
}

// SubscriptionPatch lists the mutable subscription fields; isActive is
// only changed through delete. A categoryId of 0 clears the category
// reference.
type SubscriptionPatch struct {
	Name            *string `json:"name"`
	Amount          *int64  `json:"amount"`
	CategoryID      *int64  `json:"categoryId"`
	Frequency       *string `json:"frequency"`
	NextPaymentDate *string `json:"nextPaymentDate"`
	Description     *string `json:"description"`
	AutoGenerate    *bool   `json:"autoGenerate"`
}

func (p SubscriptionPatch) hasFields() bool {
	return p.Name != nil || p.Amount != nil || p.CategoryID != nil || p.Frequency != nil ||
		p.NextPaymentDate != nil || p.Description != nil || p.AutoGenerate != nil
}

func validateSubscriptionPatch(p SubscriptionPatch) []FieldError {
	var errs []FieldError
	if p.Name != nil {
		if fe := validateName(*p.Name); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.Amount != nil {
		if fe := validateAmount(*p.Amount); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.Frequency != nil && !validFrequencies[*p.Frequency] {
		errs = append(errs, FieldError{Field: "frequency", Message: "頻度はdaily/weekly/monthly/yearlyのいずれかを指定してください"})
	}
	if p.NextPaymentDate != nil {
		if fe := validateDate("nextPaymentDate", *p.NextPaymentDate); fe != nil {
			errs = append(errs, *fe)
		}
	}
	if p.CategoryID != nil && *p.CategoryID < 0 {
		errs = append(errs, FieldError{Field: "categoryId", Message: "カテゴリIDは0以上で指定してください（0は解除）"})
	}
	return errs
}

// parsePathID parses a positive integer path parameter.
func parsePathID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
