package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"kakeibo/db"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transaction handler functions

// @Summary Get transactions
// @Description Retrieve transactions with filtering, sorting and pagination
// @Tags transactions
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param type query string false "Transaction type (income or expense)"
// @Param category_id query int false "Category ID"
// @Param search query string false "Substring match against description"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (1-100, default 20)"
// @Param sort_by query string false "Sort column (transaction_date, amount, created_at)"
// @Param sort_order query string false "Sort direction (asc or desc)"
// @Success 200 {object} map[string]interface{} "Paginated transactions"
// @Failure 400 {object} map[string]interface{} "Invalid query parameters"
// @Router /api/transactions [get]
func getTransactions(c *gin.Context) {
	query, errs := parseTransactionListQuery(c)
	if len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	params := db.ListTransactionsParams{
		From:      toDate(query.From),
		To:        toDate(query.To),
		Type:      query.Type,
		Search:    query.Search,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
		Limit:     int32(query.Limit),
		Offset:    int64(query.Page-1) * int64(query.Limit),
	}
	if query.CategoryID > 0 {
		params.CategoryID = pgtype.Int8{Int64: query.CategoryID, Valid: true}
	}

	total, err := queries.CountTransactions(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	dbTransactions, err := queries.ListTransactions(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	transactions := make([]Transaction, 0, len(dbTransactions))
	for _, dbTransaction := range dbTransactions {
		transactions = append(transactions, convertTransaction(dbTransaction))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       transactions,
		"pagination": buildPagination(query.Page, query.Limit, total),
	})
}

// @Summary Get transaction
// @Description Retrieve a single transaction by ID
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} map[string]interface{} "Transaction"
// @Failure 404 {object} map[string]interface{} "Transaction not found"
// @Router /api/transactions/{id} [get]
func getTransaction(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "取引IDが不正です")
		return
	}

	dbTransaction, err := queries.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if dbTransaction == nil {
		respondNotFound(c, "取引が見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": convertTransaction(*dbTransaction)})
}

// @Summary Create transaction
// @Description Create a new transaction. The category type must match the transaction type.
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body TransactionInput true "Transaction data"
// @Success 201 {object} map[string]interface{} "Created transaction"
// @Failure 400 {object} map[string]interface{} "Validation or consistency error"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/transactions [post]
func createTransaction(c *gin.Context) {
	var input TransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}

	if errs := validateTransactionInput(input); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	params := db.CreateTransactionParams{
		Type:            *input.Type,
		Amount:          *input.Amount,
		Description:     toText(input.Description),
		TransactionDate: toDate(*input.TransactionDate),
		PaymentMethod:   toText(input.PaymentMethod),
		Tags:            encodeTags(input.Tags),
		ReceiptURL:      toText(input.ReceiptURL),
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
		if consErr := checkTransactionCategory(category, *input.Type); consErr != nil {
			respondConsistencyError(c, consErr)
			return
		}
		params.CategoryID = toInt8(input.CategoryID)
	}

	id, err := queries.CreateTransaction(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	created, err := queries.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    convertTransaction(*created),
		"message": "取引を登録しました",
	})
}

// @Summary Update transaction
// @Description Partially update a transaction. Type and category consistency is re-checked against the merged result.
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path int true "Transaction ID"
// @Param transaction body TransactionPatch true "Fields to update"
// @Success 200 {object} map[string]interface{} "Updated transaction"
// @Failure 400 {object} map[string]interface{} "Validation or consistency error"
// @Failure 404 {object} map[string]interface{} "Transaction not found"
// @Router /api/transactions/{id} [put]
func updateTransaction(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "取引IDが不正です")
		return
	}

	var patch TransactionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}
	if !patch.hasFields() {
		respondBadRequest(c, "更新する項目がありません")
		return
	}
	if errs := validateTransactionPatch(patch); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	existing, err := queries.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if existing == nil {
		respondNotFound(c, "取引が見つかりません")
		return
	}

	recordType := effectiveTransactionType(existing, patch)
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
		if consErr := checkTransactionCategory(category, recordType); consErr != nil {
			respondConsistencyError(c, consErr)
			return
		}
	}

	params := db.UpdateTransactionParams{
		ID:              id,
		Type:            recordType,
		Amount:          existing.Amount,
		Description:     existing.Description,
		TransactionDate: existing.TransactionDate,
		PaymentMethod:   existing.PaymentMethod,
		Tags:            existing.Tags,
		ReceiptURL:      existing.ReceiptURL,
	}
	if hasCategory {
		params.CategoryID = pgtype.Int8{Int64: categoryID, Valid: true}
	}
	if patch.Amount != nil {
		params.Amount = *patch.Amount
	}
	if patch.Description != nil {
		params.Description = toText(patch.Description)
	}
	if patch.TransactionDate != nil {
		params.TransactionDate = toDate(*patch.TransactionDate)
	}
	if patch.PaymentMethod != nil {
		params.PaymentMethod = toText(patch.PaymentMethod)
	}
	if patch.Tags != nil {
		params.Tags = encodeTags(patch.Tags)
	}
	if patch.ReceiptURL != nil {
		params.ReceiptURL = toText(patch.ReceiptURL)
	}

	updated, err := queries.UpdateTransaction(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if !updated {
		respondNotFound(c, "取引が見つかりません")
		return
	}

	result, err := queries.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    convertTransaction(*result),
		"message": "取引を更新しました",
	})
}

// @Summary Delete transaction
// @Description Physically delete a transaction
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} map[string]interface{} "Transaction deleted"
// @Failure 404 {object} map[string]interface{} "Transaction not found"
// @Router /api/transactions/{id} [delete]
func deleteTransaction(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "取引IDが不正です")
		return
	}

	deleted, err := queries.DeleteTransaction(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "取引が見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "取引を削除しました"})
}

// @Summary Get transaction summary
// @Description Aggregate income, expense and per-category totals for the given period
// @Tags transactions
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{} "Summary totals"
// @Failure 400 {object} map[string]interface{} "Invalid query parameters"
// @Router /api/transactions/summary [get]
func getTransactionsSummary(c *gin.Context) {
	var errs []FieldError
	from := c.Query("from")
	to := c.Query("to")
	if from != "" {
		if fieldErr := validateDate("from", from); fieldErr != nil {
			errs = append(errs, *fieldErr)
		}
	}
	if to != "" {
		if fieldErr := validateDate("to", to); fieldErr != nil {
			errs = append(errs, *fieldErr)
		}
	}
	if len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	typeTotals, err := queries.TransactionTotals(c.Request.Context(), toDate(from), toDate(to))
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	categoryTotals, err := queries.CategoryTotals(c.Request.Context(), toDate(from), toDate(to))
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	var income, expense int64
	for _, row := range typeTotals {
		switch row.Type {
		case "income":
			income = row.Total
		case "expense":
			expense = row.Total
		}
	}

	byCategory := make([]CategorySummary, 0, len(categoryTotals))
	for _, row := range categoryTotals {
		byCategory = append(byCategory, CategorySummary{
			CategoryID:   int8OrNil(row.CategoryID),
			CategoryName: textOrNil(row.CategoryName),
			Type:         row.Type,
			Total:        row.Total,
		})
	}

	summary := TransactionSummary{
		Income:     income,
		Expense:    expense,
		Net:        income - expense,
		ByCategory: byCategory,
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// csvColumnCount is the expected layout: date, type, amount, category name, description.
const csvColumnCount = 5

// @Summary Import transactions from CSV
// @Description Bulk import transactions from an uploaded CSV file. Duplicate rows are skipped.
// @Tags transactions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file (date, type, amount, category, description)"
// @Success 200 {object} map[string]interface{} "Import result"
// @Failure 400 {object} map[string]interface{} "Invalid file or rows"
// @Router /api/transactions/import-csv [post]
func importTransactionsCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "CSVファイルを指定してください")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "CSVファイルを開けませんでした")
		return
	}
	defer file.Close()

	categories, err := queries.ListCategories(c.Request.Context(), "")
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	categoryByName := make(map[string]db.Category, len(categories))
	for _, category := range categories {
		categoryByName[category.Name] = category
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	imported := 0
	skipped := 0
	var rowErrors []string
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("行%d: CSVの形式が不正です", line))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue // header row
		}
		if len(record) < csvColumnCount-1 {
			rowErrors = append(rowErrors, fmt.Sprintf("行%d: 列数が不足しています", line))
			continue
		}

		date := strings.TrimSpace(record[0])
		recordType := strings.TrimSpace(record[1])
		amountRaw := strings.TrimSpace(record[2])
		categoryName := strings.TrimSpace(record[3])
		description := ""
		if len(record) >= csvColumnCount {
			description = strings.TrimSpace(record[4])
		}

		if !dateRegex.MatchString(date) {
			rowErrors = append(rowErrors, fmt.Sprintf("行%d: 日付の形式が不正です", line))
			continue
		}
		if !validRecordTypes[recordType] {
			rowErrors = append(rowErrors, fmt.Sprintf("行%d: タイプが不正です", line))
			continue
		}
		amount, err := strconv.ParseInt(amountRaw, 10, 64)
		if err != nil || amount <= 0 {
			rowErrors = append(rowErrors, fmt.Sprintf("行%d: 金額が不正です", line))
			continue
		}

		params := db.CreateTransactionParams{
			Type:   recordType,
			Amount: amount,
		}
		if description != "" {
			params.Description = toText(&description)
		}
		params.TransactionDate = toDate(date)

		if categoryName != "" {
			category, ok := categoryByName[categoryName]
			if !ok {
				rowErrors = append(rowErrors, fmt.Sprintf("行%d: カテゴリ「%s」が見つかりません", line, categoryName))
				continue
			}
			if category.Type != recordType {
				rowErrors = append(rowErrors, fmt.Sprintf("行%d: カテゴリタイプが不適切です", line))
				continue
			}
			params.CategoryID = pgtype.Int8{Int64: category.ID, Valid: true}
		}

		dupParams := db.FindDuplicateTransactionParams{
			Amount:          params.Amount,
			Type:            params.Type,
			TransactionDate: params.TransactionDate,
			Description:     params.Description,
		}
		existing, err := queries.FindDuplicateTransaction(c.Request.Context(), dupParams)
		if err != nil {
			respondDatabaseError(c, err)
			return
		}
		if existing > 0 {
			skipped++
			continue
		}

		if _, err := queries.CreateTransaction(c.Request.Context(), params); err != nil {
			respondDatabaseError(c, err)
			return
		}
		imported++
	}

	if len(rowErrors) > 0 {
		log.Printf("[%s] CSV import finished with %d row errors", requestID(c), len(rowErrors))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d件の取引を取り込みました", imported),
		"data": gin.H{
			"imported":     imported,
			"skipped_rows": skipped,
			"errors":       rowErrors,
		},
	})
}
