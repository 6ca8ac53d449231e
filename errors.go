package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Error taxonomy. Database errors carry no structured codes by the time
// they reach the handlers, so classification works by substring, the same
// way the raw driver messages are matched everywhere else in this codebase.

const (
	errTypeValidation       = "validation-error"
	errTypeNotFound         = "not-found"
	errTypeMethodNotAllowed = "method-not-allowed"
	errTypeConflict         = "conflict"
	errTypeConstraint       = "constraint-violation"
	errTypeUnavailable      = "persistence-unavailable"
	errTypeMigration        = "migration-failed"
	errTypeUnknown          = "unknown"
)

type classifiedError struct {
	Status     int
	Type       string
	Message    string
	Suggestion string
}

// classifyDatabaseError maps a persistence error to a user-facing kind and
// HTTP status. Unrecognized errors fall through to unknown/500.
func classifyDatabaseError(err error) classifiedError {
	msg := err.Error()
	has := func(substrings ...string) bool {
		for _, s := range substrings {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("connection refused", "connection reset", "failed to connect", "dial tcp", "broken pipe"):
		return classifiedError{
			Status:     http.StatusServiceUnavailable,
			Type:       errTypeUnavailable,
			Message:    "データベースに接続できません",
			Suggestion: "Check that PostgreSQL is running and DB_HOST/DB_PORT point at it",
		}
	case has("closed pool", "pool closed", "conn closed"):
		return classifiedError{
			Status:     http.StatusServiceUnavailable,
			Type:       errTypeUnavailable,
			Message:    "データベース接続が初期化されていません",
			Suggestion: "The connection pool was never created or has been closed; check startup logs",
		}
	case has("database is locked", "deadlock detected", "lock timeout"):
		return classifiedError{
			Status:     http.StatusServiceUnavailable,
			Type:       errTypeUnavailable,
			Message:    "データベースがロックされています。しばらくしてから再試行してください",
			Suggestion: "Another statement holds a conflicting lock; retry after it finishes",
		}
	case has("does not exist") && has("relation", "table", "column"):
		return classifiedError{
			Status:     http.StatusInternalServerError,
			Type:       errTypeMigration,
			Message:    "データベースの初期化が完了していません",
			Suggestion: "Run the migrations in db/migrations against this database",
		}
	case has("violates foreign key constraint"):
		return classifiedError{
			Status:     http.StatusBadRequest,
			Type:       errTypeConstraint,
			Message:    "参照先のデータが存在しません",
			Suggestion: "A referenced row (category or subscription) is missing",
		}
	case has("violates not-null constraint", "null value in column"):
		return classifiedError{
			Status:     http.StatusBadRequest,
			Type:       errTypeConstraint,
			Message:    "必須項目が不足しています",
			Suggestion: "A NOT NULL column was given no value",
		}
	case has("violates check constraint"):
		return classifiedError{
			Status:     http.StatusBadRequest,
			Type:       errTypeConstraint,
			Message:    "入力値が許可された範囲外です",
			Suggestion: "A CHECK constraint rejected the value (amount > 0, enum columns)",
		}
	case has("duplicate key value violates unique constraint"):
		return classifiedError{
			Status:  http.StatusConflict,
			Type:    errTypeConflict,
			Message: "同じデータが既に存在します",
		}
	case has("no rows in result set"):
		return classifiedError{
			Status:  http.StatusNotFound,
			Type:    errTypeNotFound,
			Message: "データが見つかりません",
		}
	default:
		return classifiedError{
			Status:  http.StatusInternalServerError,
			Type:    errTypeUnknown,
			Message: "サーバーエラーが発生しました",
		}
	}
}

// respondDatabaseError classifies err and writes the error envelope. 5xx
// failures are always logged; outside production the body also carries the
// raw error, a suggestion, and (for 5xx) a database health report.
func respondDatabaseError(c *gin.Context, err error) {
	ce := classifyDatabaseError(err)

	if ce.Status >= http.StatusInternalServerError || !isProduction() {
		log.Printf("[%s] %s %s: database error (%s): %v",
			requestID(c), c.Request.Method, c.Request.URL.Path, ce.Type, err)
	}

	body := gin.H{"error": ce.Message, "errorType": ce.Type}
	if !isProduction() {
		body["details"] = err.Error()
		if ce.Suggestion != "" {
			body["suggestion"] = ce.Suggestion
		}
		if ce.Status >= http.StatusInternalServerError && queries != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			body["health"] = queries.CheckHealth(ctx)
		}
	}
	c.JSON(ce.Status, body)
}

// respondValidationErrors writes the 400 envelope for a per-field error
// list. Logged outside production only.
func respondValidationErrors(c *gin.Context, errs []FieldError) {
	if !isProduction() {
		log.Printf("[%s] %s %s: validation failed: %v",
			requestID(c), c.Request.Method, c.Request.URL.Path, errs)
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     "入力内容に誤りがあります",
		"details":   errs,
		"errorType": errTypeValidation,
	})
}

func respondNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": message, "errorType": errTypeNotFound})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "errorType": errTypeValidation})
}

// respondConsistencyError writes the 400 for a category/type mismatch.
func respondConsistencyError(c *gin.Context, ce *consistencyError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     ce.Message,
		"details":   ce.Details,
		"errorType": errTypeValidation,
	})
}
