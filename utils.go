package main

import (
	"encoding/json"
	"log"

	"kakeibo/db"

	"github.com/jackc/pgx/v5/pgtype"
)

// Conversion helpers between the query layer's pgtype rows and the API
// structs.

func textOrNil(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func int8OrNil(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func toInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

// toDate converts a validated YYYY-MM-DD string. Invalid input yields an
// unset date, so validation must run first.
func toDate(s string) pgtype.Date {
	var d pgtype.Date
	if err := d.Scan(s); err != nil {
		return pgtype.Date{}
	}
	return d
}

func dateString(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

func convertCategory(c db.Category) Category {
	return Category{
		ID:           c.ID,
		Name:         c.Name,
		Type:         c.Type,
		Color:        textOrNil(c.Color),
		Icon:         textOrNil(c.Icon),
		DisplayOrder: int(c.DisplayOrder),
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt.Time,
		UpdatedAt:    c.UpdatedAt.Time,
	}
}

// categoryRef builds the embedded category block from joined columns, or
// nil when the row has no category.
func categoryRef(id pgtype.Int8, name, ctype, color, icon pgtype.Text) *CategoryRef {
	if !id.Valid || !name.Valid {
		return nil
	}
	return &CategoryRef{
		ID:    id.Int64,
		Name:  name.String,
		Type:  ctype.String,
		Color: textOrNil(color),
		Icon:  textOrNil(icon),
	}
}

// decodeTags parses the stored JSON array. Malformed JSON degrades to nil
// with a warning instead of failing the read.
func decodeTags(id int64, tags pgtype.Text) []string {
	if !tags.Valid || tags.String == "" {
		return nil
	}
	var decoded []string
	if err := json.Unmarshal([]byte(tags.String), &decoded); err != nil {
		log.Printf("Warning: transaction %d has malformed tags JSON, returning null: %v", id, err)
		return nil
	}
	return decoded
}

// encodeTags serializes a native tag array for storage. nil stays NULL.
func encodeTags(tags []string) pgtype.Text {
	if tags == nil {
		return pgtype.Text{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(encoded), Valid: true}
}

func convertTransaction(t db.Transaction) Transaction {
	return Transaction{
		ID:              t.ID,
		Amount:          t.Amount,
		Type:            t.Type,
		CategoryID:      int8OrNil(t.CategoryID),
		Description:     textOrNil(t.Description),
		TransactionDate: dateString(t.TransactionDate),
		PaymentMethod:   textOrNil(t.PaymentMethod),
		Tags:            decodeTags(t.ID, t.Tags),
		ReceiptURL:      textOrNil(t.ReceiptURL),
		IsRecurring:     t.IsRecurring,
		RecurringID:     int8OrNil(t.RecurringID),
		Category:        categoryRef(t.CategoryID, t.CategoryName, t.CategoryType, t.CategoryColor, t.CategoryIcon),
		CreatedAt:       t.CreatedAt.Time,
		UpdatedAt:       t.UpdatedAt.Time,
	}
}

func convertSubscription(s db.Subscription) Subscription {
	return Subscription{
		ID:              s.ID,
		Name:            s.Name,
		Amount:          s.Amount,
		CategoryID:      int8OrNil(s.CategoryID),
		Frequency:       s.Frequency,
		NextPaymentDate: dateString(s.NextPaymentDate),
		Description:     textOrNil(s.Description),
		IsActive:        s.IsActive,
		AutoGenerate:    s.AutoGenerate,
		Category:        categoryRef(s.CategoryID, s.CategoryName, s.CategoryType, s.CategoryColor, s.CategoryIcon),
		CreatedAt:       s.CreatedAt.Time,
		UpdatedAt:       s.UpdatedAt.Time,
	}
}

// buildPagination computes the page metadata for a listing.
func buildPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && total > 0,
	}
}
