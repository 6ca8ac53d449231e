package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDatabaseError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			"connection refused",
			errors.New(`failed to connect to host=localhost: dial tcp 127.0.0.1:5432: connect: connection refused`),
			http.StatusServiceUnavailable, errTypeUnavailable,
		},
		{
			"connection reset",
			errors.New("read tcp 127.0.0.1:53412: connection reset by peer"),
			http.StatusServiceUnavailable, errTypeUnavailable,
		},
		{
			"closed pool",
			errors.New("closed pool"),
			http.StatusServiceUnavailable, errTypeUnavailable,
		},
		{
			"deadlock",
			errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"),
			http.StatusServiceUnavailable, errTypeUnavailable,
		},
		{
			"missing relation",
			errors.New(`ERROR: relation "transactions" does not exist (SQLSTATE 42P01)`),
			http.StatusInternalServerError, errTypeMigration,
		},
		{
			"missing column",
			errors.New(`ERROR: column "tags" of relation "transactions" does not exist (SQLSTATE 42703)`),
			http.StatusInternalServerError, errTypeMigration,
		},
		{
			"foreign key violation",
			errors.New(`ERROR: insert or update on table "transactions" violates foreign key constraint "transactions_category_id_fkey" (SQLSTATE 23503)`),
			http.StatusBadRequest, errTypeConstraint,
		},
		{
			"not null violation",
			errors.New(`ERROR: null value in column "name" violates not-null constraint (SQLSTATE 23502)`),
			http.StatusBadRequest, errTypeConstraint,
		},
		{
			"check constraint violation",
			errors.New(`ERROR: new row for relation "transactions" violates check constraint "transactions_amount_check" (SQLSTATE 23514)`),
			http.StatusBadRequest, errTypeConstraint,
		},
		{
			"unique violation",
			errors.New(`ERROR: duplicate key value violates unique constraint "categories_pkey" (SQLSTATE 23505)`),
			http.StatusConflict, errTypeConflict,
		},
		{
			"no rows",
			errors.New("no rows in result set"),
			http.StatusNotFound, errTypeNotFound,
		},
		{
			"anything else",
			errors.New("some novel failure"),
			http.StatusInternalServerError, errTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := classifyDatabaseError(tt.err)
			assert.Equal(t, tt.wantStatus, ce.Status)
			assert.Equal(t, tt.wantType, ce.Type)
			assert.NotEmpty(t, ce.Message)
		})
	}
}

func TestClassifyDatabaseErrorWrapped(t *testing.T) {
	// Classification works on the rendered message, so wrapping with query
	// context must not change the outcome.
	wrapped := errors.New(`list transactions: failed to connect to host=localhost user=postgres database=kakeibo: dial tcp: connection refused`)
	ce := classifyDatabaseError(wrapped)
	assert.Equal(t, http.StatusServiceUnavailable, ce.Status)
	assert.Equal(t, errTypeUnavailable, ce.Type)
}
