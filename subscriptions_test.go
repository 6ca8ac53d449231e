package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// TestCreateSubscriptionEndpoint tests the POST /api/subscriptions endpoint
func TestCreateSubscriptionEndpoint(t *testing.T) {
	if err := cleanupTestData(); err != nil {
		t.Fatalf("Failed to cleanup test data: %v", err)
	}

	t.Run("should create subscription with expense category", func(t *testing.T) {
		categoryID, err := createTestCategory("娯楽", "expense", "#FF33E6")
		assertNoError(t, err)

		resp := makeJSONRequest("POST", "/api/subscriptions", map[string]interface{}{
			"name":            "Netflix",
			"amount":          1490,
			"categoryId":      categoryID,
			"frequency":       "monthly",
			"nextPaymentDate": "2024-07-01",
		})
		assertStatusCode(t, http.StatusCreated, resp.Code)

		var envelope subscriptionEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))

		if envelope.Data.Name != "Netflix" {
			t.Errorf("Expected name Netflix, got %s", envelope.Data.Name)
		}
		if envelope.Data.Amount != 1490 {
			t.Errorf("Expected amount 1490, got %d", envelope.Data.Amount)
		}
		if envelope.Data.NextPaymentDate != "2024-07-01" {
			t.Errorf("Expected next payment 2024-07-01, got %s", envelope.Data.NextPaymentDate)
		}
		if envelope.Data.Category == nil || envelope.Data.Category.Type != "expense" {
			t.Errorf("Expected embedded expense category, got %v", envelope.Data.Category)
		}
		if !envelope.Data.IsActive || !envelope.Data.AutoGenerate {
			t.Error("Expected new subscription to be active with autoGenerate on")
		}
	})

	t.Run("should reject income category", func(t *testing.T) {
		incomeID, err := createTestCategory("給料", "income", "")
		assertNoError(t, err)

		resp := makeJSONRequest("POST", "/api/subscriptions", map[string]interface{}{
			"name":            "なにかの配当",
			"amount":          1000,
			"categoryId":      incomeID,
			"frequency":       "monthly",
			"nextPaymentDate": "2024-07-01",
		})
		assertStatusCode(t, http.StatusBadRequest, resp.Code)

		var envelope errorEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))
		if envelope.Error != "カテゴリタイプが不適切です" {
			t.Errorf("Unexpected error message: %s", envelope.Error)
		}
	})

	t.Run("should reject bad frequency", func(t *testing.T) {
		resp := makeJSONRequest("POST", "/api/subscriptions", map[string]interface{}{
			"name":            "Spotify",
			"amount":          980,
			"frequency":       "biweekly",
			"nextPaymentDate": "2024-07-01",
		})
		assertStatusCode(t, http.StatusBadRequest, resp.Code)
	})
}

// TestGetSubscriptionsEndpoint tests the GET /api/subscriptions endpoint
func TestGetSubscriptionsEndpoint(t *testing.T) {
	if err := cleanupTestData(); err != nil {
		t.Fatalf("Failed to cleanup test data: %v", err)
	}

	activeID, err := createTestSubscription("Netflix", 1490, 0, "monthly", "2024-07-01")
	assertNoError(t, err)
	inactiveID, err := createTestSubscription("解約済みジム", 7000, 0, "monthly", "2024-07-01")
	assertNoError(t, err)
	_, err = testDB.Exec(context.Background(),
		"UPDATE subscriptions SET is_active = false WHERE id = $1", inactiveID)
	assertNoError(t, err)

	t.Run("no filter returns both active and inactive", func(t *testing.T) {
		resp := makeRequest("GET", "/api/subscriptions", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var envelope subscriptionsEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))
		if envelope.Count != 2 {
			t.Errorf("Expected 2 subscriptions, got %d", envelope.Count)
		}
	})

	t.Run("active=true filters to active only", func(t *testing.T) {
		resp := makeRequest("GET", "/api/subscriptions?active=true", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var envelope subscriptionsEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))
		if envelope.Count != 1 || envelope.Data[0].ID != activeID {
			t.Errorf("Expected only the active subscription, got %+v", envelope.Data)
		}
	})

	t.Run("active filter must be boolean", func(t *testing.T) {
		resp := makeRequest("GET", "/api/subscriptions?active=yes", nil)
		assertStatusCode(t, http.StatusBadRequest, resp.Code)
	})
}

// TestUpdateSubscriptionEndpoint tests the PUT /api/subscriptions/:id endpoint
func TestUpdateSubscriptionEndpoint(t *testing.T) {
	if err := cleanupTestData(); err != nil {
		t.Fatalf("Failed to cleanup test data: %v", err)
	}

	t.Run("should update provided fields", func(t *testing.T) {
		id, err := createTestSubscription("Netflix", 1490, 0, "monthly", "2024-07-01")
		assertNoError(t, err)

		resp := makeJSONRequest("PUT", fmt.Sprintf("/api/subscriptions/%d", id), map[string]interface{}{
			"amount": 1980,
		})
		assertStatusCode(t, http.StatusOK, resp.Code)

		var envelope subscriptionEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))
		if envelope.Data.Amount != 1980 {
			t.Errorf("Expected amount 1980, got %d", envelope.Data.Amount)
		}
		if envelope.Data.Frequency != "monthly" {
			t.Errorf("Expected frequency preserved, got %s", envelope.Data.Frequency)
		}
	})

	t.Run("should reject switching to income category", func(t *testing.T) {
		incomeID, err := createTestCategory("給料", "income", "")
		assertNoError(t, err)
		id, err := createTestSubscription("Spotify", 980, 0, "monthly", "2024-07-01")
		assertNoError(t, err)

		resp := makeJSONRequest("PUT", fmt.Sprintf("/api/subscriptions/%d", id), map[string]interface{}{
			"categoryId": incomeID,
		})
		assertStatusCode(t, http.StatusBadRequest, resp.Code)

		var envelope errorEnvelope
		assertNoError(t, parseJSONResponse(resp, &envelope))
		if envelope.Error != "カテゴリタイプが不適切です" {
			t.Errorf("Unexpected error message: %s", envelope.Error)
		}
	})

	t.Run("should return 404 for logically deleted subscription", func(t *testing.T) {
		id, err := createTestSubscription("解約済み", 500, 0, "monthly", "2024-07-01")
		assertNoError(t, err)
		_, err = testDB.Exec(context.Background(),
			"UPDATE subscriptions SET is_active = false WHERE id = $1", id)
		assertNoError(t, err)

		resp := makeJSONRequest("PUT", fmt.Sprintf("/api/subscriptions/%d", id), map[string]interface{}{
			"amount": 600,
		})
		assertStatusCode(t, http.StatusNotFound, resp.Code)
	})
}

// TestDeleteSubscriptionEndpoint tests the DELETE /api/subscriptions/:id endpoint
func TestDeleteSubscriptionEndpoint(t *testing.T) {
	if err := cleanupTestData(); err != nil {
		t.Fatalf("Failed to cleanup test data: %v", err)
	}

	t.Run("should logically delete the subscription", func(t *testing.T) {
		id, err := createTestSubscription("Netflix", 1490, 0, "monthly", "2024-07-01")
		assertNoError(t, err)

		resp := makeRequest("DELETE", fmt.Sprintf("/api/subscriptions/%d", id), nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		getResp := makeRequest("GET", fmt.Sprintf("/api/subscriptions/%d", id), nil)
		assertStatusCode(t, http.StatusNotFound, getResp.Code)

		var isActive bool
		err = testDB.QueryRow(context.Background(),
			"SELECT is_active FROM subscriptions WHERE id = $1", id).Scan(&isActive)
		assertNoError(t, err)
		if isActive {
			t.Error("Expected the row to survive with is_active = false")
		}
	})

	t.Run("deleting twice returns 404", func(t *testing.T) {
		id, err := createTestSubscription("Spotify", 980, 0, "monthly", "2024-07-01")
		assertNoError(t, err)

		first := makeRequest("DELETE", fmt.Sprintf("/api/subscriptions/%d", id), nil)
		assertStatusCode(t, http.StatusOK, first.Code)

		second := makeRequest("DELETE", fmt.Sprintf("/api/subscriptions/%d", id), nil)
		assertStatusCode(t, http.StatusNotFound, second.Code)
	})
}

// TestProcessSubscriptionsEndpoint tests the POST /api/subscriptions/process endpoint
func TestProcessSubscriptionsEndpoint(t *testing.T) {
	if err := cleanupTestData(); err != nil {
		t.Fatalf("Failed to cleanup test data: %v", err)
	}

	type processResult struct {
		Success bool `json:"success"`
		Data    struct {
			Processed int `json:"processed"`
			Generated int `json:"generated"`
			Failed    int `json:"failed"`
		} `json:"data"`
	}

	t.Run("should generate a transaction and advance the schedule", func(t *testing.T) {
		categoryID, err := createTestCategory("娯楽", "expense", "")
		assertNoError(t, err)

		yesterday := time.Now().AddDate(0, 0, -1).Format(dateLayout)
		id, err := createTestSubscription("Netflix", 1490, categoryID, "yearly", yesterday)
		assertNoError(t, err)

		resp := makeRequest("POST", "/api/subscriptions/process", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var result processResult
		assertNoError(t, parseJSONResponse(resp, &result))
		if result.Data.Processed != 1 || result.Data.Generated != 1 {
			t.Errorf("Expected 1 processed / 1 generated, got %+v", result.Data)
		}

		var amount int64
		var transactionType string
		var isRecurring bool
		var recurringID int64
		err = testDB.QueryRow(context.Background(), `
			SELECT amount, type, is_recurring, recurring_id
			FROM transactions WHERE recurring_id = $1`, id).
			Scan(&amount, &transactionType, &isRecurring, &recurringID)
		assertNoError(t, err)

		if amount != 1490 || transactionType != "expense" {
			t.Errorf("Expected 1490 expense, got %d %s", amount, transactionType)
		}
		if !isRecurring || recurringID != id {
			t.Errorf("Expected is_recurring with recurring_id %d, got %v/%d", id, isRecurring, recurringID)
		}

		// Schedule advanced past today
		var nextDate time.Time
		err = testDB.QueryRow(context.Background(),
			"SELECT next_payment_date FROM subscriptions WHERE id = $1", id).Scan(&nextDate)
		assertNoError(t, err)
		if !nextDate.After(time.Now()) {
			t.Errorf("Expected next payment date in the future, got %s", nextDate.Format(dateLayout))
		}
	})

	t.Run("a lapsed subscription catches up in one run", func(t *testing.T) {
		if err := cleanupTestData(); err != nil {
			t.Fatalf("Failed to cleanup test data: %v", err)
		}

		start := time.Now().AddDate(0, 0, -15).Format(dateLayout)
		id, err := createTestSubscription("ジム", 7000, 0, "weekly", start)
		assertNoError(t, err)

		resp := makeRequest("POST", "/api/subscriptions/process", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var result processResult
		assertNoError(t, parseJSONResponse(resp, &result))
		if result.Data.Generated != 3 {
			t.Errorf("Expected 3 generated transactions for 15 days of weekly payments, got %d", result.Data.Generated)
		}

		var count int64
		assertNoError(t, testDB.QueryRow(context.Background(),
			"SELECT COUNT(*) FROM transactions WHERE recurring_id = $1", id).Scan(&count))
		if count != 3 {
			t.Errorf("Expected 3 rows, got %d", count)
		}
	})

	t.Run("subscriptions with autoGenerate off are skipped", func(t *testing.T) {
		if err := cleanupTestData(); err != nil {
			t.Fatalf("Failed to cleanup test data: %v", err)
		}

		yesterday := time.Now().AddDate(0, 0, -1).Format(dateLayout)
		id, err := createTestSubscription("手動記録", 3000, 0, "monthly", yesterday)
		assertNoError(t, err)
		_, err = testDB.Exec(context.Background(),
			"UPDATE subscriptions SET auto_generate = false WHERE id = $1", id)
		assertNoError(t, err)

		resp := makeRequest("POST", "/api/subscriptions/process", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var result processResult
		assertNoError(t, parseJSONResponse(resp, &result))
		if result.Data.Processed != 0 {
			t.Errorf("Expected nothing processed, got %d", result.Data.Processed)
		}
	})

	t.Run("nothing due is a no-op", func(t *testing.T) {
		if err := cleanupTestData(); err != nil {
			t.Fatalf("Failed to cleanup test data: %v", err)
		}

		nextYear := time.Now().AddDate(1, 0, 0).Format(dateLayout)
		_, err := createTestSubscription("Netflix", 1490, 0, "monthly", nextYear)
		assertNoError(t, err)

		resp := makeRequest("POST", "/api/subscriptions/process", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		var result processResult
		assertNoError(t, parseJSONResponse(resp, &result))
		if result.Data.Processed != 0 || result.Data.Generated != 0 {
			t.Errorf("Expected no-op, got %+v", result.Data)
		}
	})
}
