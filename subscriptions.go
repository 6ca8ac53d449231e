package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"kakeibo/db"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
)

// Subscription handler functions

// @Summary Get subscriptions
// @Description Retrieve subscriptions, optionally filtered by active state
// @Tags subscriptions
// @Produce json
// @Param active query bool false "Filter by active state"
// @Success 200 {object} map[string]interface{} "List of subscriptions"
// @Failure 400 {object} map[string]interface{} "Invalid active filter"
// @Router /api/subscriptions [get]
func getSubscriptions(c *gin.Context) {
	var active *bool
	switch c.Query("active") {
	case "":
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	default:
		respondValidationErrors(c, []FieldError{{Field: "active", Message: "activeはtrueまたはfalseを指定してください"}})
		return
	}

	dbSubscriptions, err := queries.ListSubscriptions(c.Request.Context(), active)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	subscriptions := make([]Subscription, 0, len(dbSubscriptions))
	for _, dbSubscription := range dbSubscriptions {
		subscriptions = append(subscriptions, convertSubscription(dbSubscription))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": subscriptions, "count": len(subscriptions)})
}

// @Summary Get subscription
// @Description Retrieve a single active subscription by ID
// @Tags subscriptions
// @Produce json
// @Param id path int true "Subscription ID"
// @Success 200 {object} map[string]interface{} "Subscription"
// @Failure 404 {object} map[string]interface{} "Subscription not found"
// @Router /api/subscriptions/{id} [get]
func getSubscription(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "サブスクリプションIDが不正です")
		return
	}

	dbSubscription, err := queries.GetSubscriptionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if dbSubscription == nil {
		respondNotFound(c, "サブスクリプションが見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": convertSubscription(*dbSubscription)})
}

// @Summary Create subscription
// @Description Create a new subscription. The category must be an expense category.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body SubscriptionInput true "Subscription data"
// @Success 201 {object} map[string]interface{} "Created subscription"
// @Failure 400 {object} map[string]interface{} "Validation or consistency error"
// @Router /api/subscriptions [post]
func createSubscription(c *gin.Context) {
	var input SubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}

	if errs := validateSubscriptionInput(input); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	params := db.CreateSubscriptionParams{
		Name:            *input.Name,
		Amount:          *input.Amount,
		Frequency:       *input.Frequency,
		NextPaymentDate: toDate(*input.NextPaymentDate),
		Description:     toText(input.Description),
		AutoGenerate:    true,
	}
	if input.AutoGenerate != nil {
		params.AutoGenerate = *input.AutoGenerate
	}

	if input.CategoryID != nil {
		category, err := queries.GetCategoryByID(c.Request.Context(), *input.CategoryID)
		if err != nil {
			respondDatabaseError(c, err)
			return
		}
		if category == nil {
			respondBadRequest(c, "カテゴリが見つかりません")
			return
		}
		if consErr := checkSubscriptionCategory(category); consErr != nil {
			respondConsistencyError(c, consErr)
			return
		}
		params.CategoryID = toInt8(input.CategoryID)
	}

	id, err := queries.CreateSubscription(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	created, err := queries.GetSubscriptionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    convertSubscription(*created),
		"message": "サブスクリプションを登録しました",
	})
}

// @Summary Update subscription
// @Description Partially update a subscription. The category must stay an expense category.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path int true "Subscription ID"
// @Param subscription body SubscriptionPatch true "Fields to update"
// @Success 200 {object} map[string]interface{} "Updated subscription"
// @Failure 400 {object} map[string]interface{} "Validation or consistency error"
// @Failure 404 {object} map[string]interface{} "Subscription not found"
// @Router /api/subscriptions/{id} [put]
func updateSubscription(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "サブスクリプションIDが不正です")
		return
	}

	var patch SubscriptionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}
	if !patch.hasFields() {
		respondBadRequest(c, "更新する項目がありません")
		return
	}
	if errs := validateSubscriptionPatch(patch); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	existing, err := queries.GetSubscriptionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if existing == nil {
		respondNotFound(c, "サブスクリプションが見つかりません")
		return
	}

	categoryID, hasCategory := effectiveCategoryID(existing.CategoryID.Valid, existing.CategoryID.Int64, patch.CategoryID)
	if hasCategory {
		category, err := queries.GetCategoryByID(c.Request.Context(), categoryID)
		if err != nil {
			respondDatabaseError(c, err)
			return
		}
		if category == nil {
			respondBadRequest(c, "カテゴリが見つかりません")
			return
		}
		if consErr := checkSubscriptionCategory(category); consErr != nil {
			respondConsistencyError(c, consErr)
			return
		}
	}

	params := db.UpdateSubscriptionParams{
		ID:              id,
		Name:            existing.Name,
		Amount:          existing.Amount,
		Frequency:       existing.Frequency,
		NextPaymentDate: existing.NextPaymentDate,
		Description:     existing.Description,
		AutoGenerate:    existing.AutoGenerate,
	}
	if hasCategory {
		params.CategoryID = pgtype.Int8{Int64: categoryID, Valid: true}
	}
	if patch.Name != nil {
		params.Name = *patch.Name
	}
	if patch.Amount != nil {
		params.Amount = *patch.Amount
	}
	if patch.Frequency != nil {
		params.Frequency = *patch.Frequency
	}
	if patch.NextPaymentDate != nil {
		params.NextPaymentDate = toDate(*patch.NextPaymentDate)
	}
	if patch.Description != nil {
		params.Description = toText(patch.Description)
	}
	if patch.AutoGenerate != nil {
		params.AutoGenerate = *patch.AutoGenerate
	}

	updated, err := queries.UpdateSubscription(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if !updated {
		respondNotFound(c, "サブスクリプションが見つかりません")
		return
	}

	result, err := queries.GetSubscriptionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    convertSubscription(*result),
		"message": "サブスクリプションを更新しました",
	})
}

// @Summary Delete subscription
// @Description Logically delete a subscription (sets isActive to false)
// @Tags subscriptions
// @Produce json
// @Param id path int true "Subscription ID"
// @Success 200 {object} map[string]interface{} "Subscription deleted"
// @Failure 404 {object} map[string]interface{} "Subscription not found"
// @Router /api/subscriptions/{id} [delete]
func deleteSubscription(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "サブスクリプションIDが不正です")
		return
	}

	deleted, err := queries.DeactivateSubscription(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "サブスクリプションが見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "サブスクリプションを削除しました"})
}

// generateSubscriptionTransactions creates a transaction for each due payment
// of one subscription and advances its schedule past today. A subscription
// that has fallen several periods behind catches up in a single run.
func generateSubscriptionTransactions(c *gin.Context, sub db.Subscription, today string) (int, error) {
	ctx := c.Request.Context()
	generated := 0
	dueDate := dateString(sub.NextPaymentDate)
	for dueDate != "" && dueDate <= today {
		description := fmt.Sprintf("%s (定期支払い)", sub.Name)
		params := db.CreateTransactionParams{
			Amount:          sub.Amount,
			Type:            "expense",
			CategoryID:      sub.CategoryID,
			Description:     toText(&description),
			TransactionDate: toDate(dueDate),
			IsRecurring:     true,
			RecurringID:     pgtype.Int8{Int64: sub.ID, Valid: true},
		}
		if _, err := queries.CreateTransaction(ctx, params); err != nil {
			return generated, err
		}
		generated++

		next, err := nextPaymentDate(dueDate, sub.Frequency)
		if err != nil {
			return generated, err
		}
		if err := queries.UpdateNextPaymentDate(ctx, sub.ID, toDate(next)); err != nil {
			return generated, err
		}
		dueDate = next
	}
	return generated, nil
}

// @Summary Process due subscriptions
// @Description Generate expense transactions for all subscriptions due today or earlier
// @Tags subscriptions
// @Produce json
// @Success 200 {object} map[string]interface{} "Processing result"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/subscriptions/process [post]
func processSubscriptions(c *gin.Context) {
	today := time.Now().Format(dateLayout)

	due, err := queries.ListDueSubscriptions(c.Request.Context(), toDate(today))
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	processed := 0
	generated := 0
	failed := 0
	for _, sub := range due {
		count, err := generateSubscriptionTransactions(c, sub, today)
		generated += count
		if err != nil {
			failed++
			log.Printf("[%s] failed to process subscription %d (%s): %v", requestID(c), sub.ID, sub.Name, err)
			continue
		}
		processed++
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d件のサブスクリプションを処理しました", processed),
		"data": gin.H{
			"processed":    processed,
			"generated":    generated,
			"failed":       failed,
			"processed_at": today,
		},
	})
}
