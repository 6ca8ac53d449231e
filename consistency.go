package main

import (
	"fmt"

	"kakeibo/db"
)

// Category/record type consistency rules. A transaction may only reference
// a category of its own type; a subscription may only reference an expense
// category. Update paths validate the effective pair (patch value when
// present, stored value otherwise), not just the fields in the payload.

// consistencyError carries the user-facing rejection plus the detail line
// naming the category and what it is for.
type consistencyError struct {
	Message string
	Details string
}

func (e *consistencyError) Error() string { return e.Message }

// categoryUseLabel renders what a category type is for: 収入用 (for
// income) or 支出用 (for expense).
func categoryUseLabel(categoryType string) string {
	if categoryType == "income" {
		return "収入用"
	}
	return "支出用"
}

// checkTransactionCategory rejects a (category, transaction type) pair
// whose types differ.
func checkTransactionCategory(cat *db.Category, recordType string) *consistencyError {
	if cat == nil || cat.Type == recordType {
		return nil
	}
	return &consistencyError{
		Message: "カテゴリタイプが不適切です",
		Details: fmt.Sprintf("カテゴリ「%s」は%sです。%sのカテゴリを指定してください",
			cat.Name, categoryUseLabel(cat.Type), categoryUseLabel(recordType)),
	}
}

// checkSubscriptionCategory rejects non-expense categories. Subscriptions
// carry no type field; they are always expenses.
func checkSubscriptionCategory(cat *db.Category) *consistencyError {
	if cat == nil {
		return nil
	}
	return checkTransactionCategory(cat, "expense")
}

// effectiveTransactionType resolves the type an update leaves in place.
func effectiveTransactionType(existing *db.Transaction, patch TransactionPatch) string {
	if patch.Type != nil {
		return *patch.Type
	}
	return existing.Type
}

// effectiveCategoryID resolves the category an update leaves in place. A
// patch value of 0 clears the reference; absent means keep the stored one.
func effectiveCategoryID(storedValid bool, storedID int64, patchID *int64) (int64, bool) {
	if patchID != nil {
		if *patchID == 0 {
			return 0, false
		}
		return *patchID, true
	}
	return storedID, storedValid
}
