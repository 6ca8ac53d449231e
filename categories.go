package main

import (
	"log"
	"net/http"

	"kakeibo/db"

	"github.com/gin-gonic/gin"
)

// Category handler functions

// @Summary Get all categories
// @Description Retrieve active categories ordered by display order
// @Tags categories
// @Produce json
// @Param type query string false "Filter by category type (income or expense)"
// @Success 200 {object} map[string]interface{} "List of categories"
// @Failure 400 {object} map[string]interface{} "Invalid type filter"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/categories [get]
func getCategories(c *gin.Context) {
	typeFilter := c.Query("type")
	if typeFilter != "" && !validRecordTypes[typeFilter] {
		respondValidationErrors(c, []FieldError{{Field: "type", Message: "タイプはincomeまたはexpenseを指定してください"}})
		return
	}

	dbCategories, err := queries.ListCategories(c.Request.Context(), typeFilter)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	categories := make([]Category, 0, len(dbCategories))
	for _, dbCategory := range dbCategories {
		categories = append(categories, convertCategory(dbCategory))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": categories, "count": len(categories)})
}

// @Summary Get category
// @Description Retrieve a single active category by ID
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} map[string]interface{} "Category"
// @Failure 404 {object} map[string]interface{} "Category not found"
// @Router /api/categories/{id} [get]
func getCategory(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "カテゴリIDが不正です")
		return
	}

	dbCategory, err := queries.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if dbCategory == nil {
		respondNotFound(c, "カテゴリが見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": convertCategory(*dbCategory)})
}

// @Summary Create category
// @Description Create a new category. Display order defaults to the end of the type's list.
// @Tags categories
// @Accept json
// @Produce json
// @Param category body CategoryInput true "Category data (name and type required)"
// @Success 201 {object} map[string]interface{} "Created category"
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/categories [post]
func createCategory(c *gin.Context) {
	var input CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}

	if errs := validateCategoryInput(input); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	params := db.CreateCategoryParams{
		Name:  *input.Name,
		Type:  *input.Type,
		Color: toText(input.Color),
		Icon:  toText(input.Icon),
	}
	if input.DisplayOrder != nil {
		params.DisplayOrder = int32(*input.DisplayOrder)
	} else {
		next, err := queries.NextDisplayOrder(c.Request.Context(), *input.Type)
		if err != nil {
			respondDatabaseError(c, err)
			return
		}
		params.DisplayOrder = next
	}

	dbCategory, err := queries.CreateCategory(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    convertCategory(*dbCategory),
		"message": "カテゴリを作成しました",
	})
}

// @Summary Update category
// @Description Partially update a category. Type and isActive are immutable.
// @Tags categories
// @Accept json
// @Produce json
// @Param id path int true "Category ID"
// @Param category body CategoryPatch true "Fields to update"
// @Success 200 {object} map[string]interface{} "Updated category"
// @Failure 400 {object} map[string]interface{} "Validation error or empty patch"
// @Failure 404 {object} map[string]interface{} "Category not found"
// @Router /api/categories/{id} [put]
func updateCategory(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "カテゴリIDが不正です")
		return
	}

	var patch CategoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}
	if !patch.hasFields() {
		respondBadRequest(c, "更新する項目がありません")
		return
	}
	if errs := validateCategoryPatch(patch); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	existing, err := queries.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if existing == nil {
		respondNotFound(c, "カテゴリが見つかりません")
		return
	}

	params := db.UpdateCategoryParams{
		ID:           id,
		Name:         existing.Name,
		Color:        existing.Color,
		Icon:         existing.Icon,
		DisplayOrder: existing.DisplayOrder,
	}
	if patch.Name != nil {
		params.Name = *patch.Name
	}
	if patch.Color != nil {
		params.Color = toText(patch.Color)
	}
	if patch.Icon != nil {
		params.Icon = toText(patch.Icon)
	}
	if patch.DisplayOrder != nil {
		params.DisplayOrder = int32(*patch.DisplayOrder)
	}

	updated, err := queries.UpdateCategory(c.Request.Context(), params)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if updated == nil {
		respondNotFound(c, "カテゴリが見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    convertCategory(*updated),
		"message": "カテゴリを更新しました",
	})
}

// categoryInUse reports whether deleting the category should be blocked.
// TODO: return true once transactions referencing an active category are
// meant to block deletion; for now deletion is always allowed.
func categoryInUse(id int64) bool {
	_ = id
	return false
}

// @Summary Delete category
// @Description Logically delete a category (sets isActive to false)
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} map[string]interface{} "Category deleted"
// @Failure 404 {object} map[string]interface{} "Category not found"
// @Failure 409 {object} map[string]interface{} "Category in use"
// @Router /api/categories/{id} [delete]
func deleteCategory(c *gin.Context) {
	id, ok := parsePathID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "カテゴリIDが不正です")
		return
	}

	existing, err := queries.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if existing == nil {
		respondNotFound(c, "カテゴリが見つかりません")
		return
	}

	if categoryInUse(id) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "カテゴリは使用中のため削除できません",
			"errorType": errTypeConflict,
		})
		return
	}

	deleted, err := queries.DeactivateCategory(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c, "カテゴリが見つかりません")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "カテゴリを削除しました"})
}

// @Summary Reorder categories
// @Description Bulk update display orders. Duplicate ids are rejected before any write.
// @Tags categories
// @Accept json
// @Produce json
// @Param reorder body ReorderInput true "Pairs of category id and new display order"
// @Success 200 {object} map[string]interface{} "Reorder applied"
// @Failure 400 {object} map[string]interface{} "Validation error or duplicate ids"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/categories/reorder [put]
func reorderCategories(c *gin.Context) {
	var input ReorderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "リクエストボディが不正です")
		return
	}

	if errs := validateReorderInput(input); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	pairs := make([]db.ReorderPair, 0, len(input.Categories))
	for _, item := range input.Categories {
		pairs = append(pairs, db.ReorderPair{ID: item.ID, DisplayOrder: int32(item.DisplayOrder)})
	}

	updated, err := queries.ReorderCategories(c.Request.Context(), pairs)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if updated != int64(len(pairs)) {
		// Unknown or inactive ids shrink the count; not a hard failure.
		log.Printf("[%s] reorder updated %d of %d categories", requestID(c), updated, len(pairs))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "表示順を更新しました",
		"updated": updated,
	})
}
