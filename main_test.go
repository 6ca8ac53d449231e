package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"kakeibo/db"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

var (
	testDB      *pgxpool.Pool
	testQueries *db.Queries
	testRouter  *gin.Engine
)

// TestMain sets up the test environment
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if err := setupTestDB(); err != nil {
		log.Fatalf("Failed to setup test database: %v", err)
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

// setupTestDB creates a throwaway test database and runs migrations
func setupTestDB() error {
	dbHost := getEnvOrDefault("TEST_DB_HOST", "localhost")
	dbPort := getEnvOrDefault("TEST_DB_PORT", "5433")
	dbUser := getEnvOrDefault("TEST_DB_USER", "postgres")
	dbPassword := getEnvOrDefault("TEST_DB_PASSWORD", "password")
	dbName := getEnvOrDefault("TEST_DB_NAME", "kakeibo_test")

	adminConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword)

	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to admin database: %w", err)
	}
	defer adminDB.Close()

	// Drop and recreate for a clean state
	if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("failed to drop test database: %w", err)
	}
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		return fmt.Errorf("failed to create test database: %w", err)
	}

	testConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	testDB, err = pgxpool.New(context.Background(), testConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to test database: %w", err)
	}

	testSQLDB, err := sql.Open("postgres", testConnStr)
	if err != nil {
		return fmt.Errorf("failed to create SQL connection for migrations: %w", err)
	}
	defer testSQLDB.Close()

	if err := runMigrations(testSQLDB, "db/migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	testQueries = db.New(testDB)

	// Point the handler globals at the test database and build the router
	// from the same routing table main uses.
	dbPool = testDB
	queries = testQueries
	testRouter = gin.New()
	testRouter.Use(requestIDMiddleware())
	registerRoutes(testRouter)

	return nil
}

// cleanupTestData removes all data from test tables in dependency order
func cleanupTestData() error {
	ctx := context.Background()

	if _, err := testDB.Exec(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("failed to clean transactions: %w", err)
	}
	if _, err := testDB.Exec(ctx, "DELETE FROM subscriptions"); err != nil {
		return fmt.Errorf("failed to clean subscriptions: %w", err)
	}
	if _, err := testDB.Exec(ctx, "DELETE FROM categories"); err != nil {
		return fmt.Errorf("failed to clean categories: %w", err)
	}
	return nil
}

// createTestCategory creates a category directly and returns its ID
func createTestCategory(name, categoryType, color string) (int64, error) {
	var colorText pgtype.Text
	if color != "" {
		colorText = pgtype.Text{String: color, Valid: true}
	}

	displayOrder, err := testQueries.NextDisplayOrder(context.Background(), categoryType)
	if err != nil {
		return 0, err
	}

	category, err := testQueries.CreateCategory(context.Background(), db.CreateCategoryParams{
		Name:         name,
		Type:         categoryType,
		Color:        colorText,
		DisplayOrder: displayOrder,
	})
	if err != nil {
		return 0, err
	}
	return category.ID, nil
}

// createTestSubscription creates a subscription directly and returns its ID
func createTestSubscription(name string, amount int64, categoryID int64, frequency, nextPaymentDate string) (int64, error) {
	var category pgtype.Int8
	if categoryID > 0 {
		category = pgtype.Int8{Int64: categoryID, Valid: true}
	}
	var date pgtype.Date
	if err := date.Scan(nextPaymentDate); err != nil {
		return 0, err
	}

	return testQueries.CreateSubscription(context.Background(), db.CreateSubscriptionParams{
		Name:            name,
		Amount:          amount,
		CategoryID:      category,
		Frequency:       frequency,
		NextPaymentDate: date,
		AutoGenerate:    true,
	})
}

// Response envelopes used across the handler tests.

type errorEnvelope struct {
	Error     string          `json:"error"`
	Details   json.RawMessage `json:"details"`
	ErrorType string          `json:"errorType"`
}

type categoryEnvelope struct {
	Success bool     `json:"success"`
	Data    Category `json:"data"`
	Message string   `json:"message"`
}

type categoriesEnvelope struct {
	Success bool       `json:"success"`
	Data    []Category `json:"data"`
	Count   int        `json:"count"`
}

type transactionEnvelope struct {
	Success bool        `json:"success"`
	Data    Transaction `json:"data"`
	Message string      `json:"message"`
}

type transactionsEnvelope struct {
	Success    bool          `json:"success"`
	Data       []Transaction `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

type subscriptionEnvelope struct {
	Success bool         `json:"success"`
	Data    Subscription `json:"data"`
	Message string       `json:"message"`
}

type subscriptionsEnvelope struct {
	Success bool           `json:"success"`
	Data    []Subscription `json:"data"`
	Count   int            `json:"count"`
}

// makeRequest helper function for making HTTP requests
func makeRequest(method, url string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	testRouter.ServeHTTP(recorder, req)
	return recorder
}

// makeJSONRequest marshals the payload and issues the request
func makeJSONRequest(method, url string, payload interface{}) *httptest.ResponseRecorder {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return makeRequest(method, url, bytes.NewReader(data))
}

// makeMultipartRequest helper function for file uploads
func makeMultipartRequest(url string, fieldName, fileName string, fileContent []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		panic(err)
	}
	part.Write(fileContent)
	writer.Close()

	req := httptest.NewRequest("POST", url, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := httptest.NewRecorder()
	testRouter.ServeHTTP(recorder, req)
	return recorder
}

// parseJSONResponse helper function to parse JSON response
func parseJSONResponse(recorder *httptest.ResponseRecorder, target interface{}) error {
	return json.Unmarshal(recorder.Body.Bytes(), target)
}

// assertStatusCode helper function to assert HTTP status code
func assertStatusCode(t *testing.T, expected, actual int) {
	t.Helper()
	if expected != actual {
		t.Errorf("Expected status code %d, got %d", expected, actual)
	}
}

// assertNoError helper function to assert no error occurred
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Run("assigns a request id when the client sends none", func(t *testing.T) {
		resp := makeRequest("GET", "/api/health", nil)
		assertStatusCode(t, http.StatusOK, resp.Code)

		if resp.Header().Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID header on response, got none")
		}
	})

	t.Run("echoes a client-supplied request id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.Header.Set("X-Request-ID", "trace-12345")

		recorder := httptest.NewRecorder()
		testRouter.ServeHTTP(recorder, req)

		assertStatusCode(t, http.StatusOK, recorder.Code)
		if got := recorder.Header().Get("X-Request-ID"); got != "trace-12345" {
			t.Errorf("Expected X-Request-ID 'trace-12345', got %q", got)
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	resp := makeRequest("PATCH", "/api/categories", nil)
	assertStatusCode(t, http.StatusMethodNotAllowed, resp.Code)

	var envelope errorEnvelope
	assertNoError(t, parseJSONResponse(resp, &envelope))
	if envelope.ErrorType != errTypeMethodNotAllowed {
		t.Errorf("Expected errorType %q, got %q", errTypeMethodNotAllowed, envelope.ErrorType)
	}
	if envelope.Error != "許可されていないメソッドです" {
		t.Errorf("Unexpected error message: %q", envelope.Error)
	}
}
