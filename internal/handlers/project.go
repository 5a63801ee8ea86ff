package handlers

import (
	"net/http"
	"strconv"
	"time"

	"hashfund/internal/models"
	dbconfig "hashfund/pkg/config"

	"github.com/gin-gonic/gin"
)

// ProjectRequest represents the request body for creating a project
type ProjectRequest struct {
	CreatorID         string    `json:"creator_id" binding:"required"`
	CreatorName       string    `json:"creator_name"`
	Title             string    `json:"title" binding:"required"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	ImageURL          string    `json:"image_url"`
	TargetAmount      int64     `json:"target_amount" binding:"required"`
	Deadline          time.Time `json:"deadline" binding:"required"`
	TokenID           string    `json:"token_id"`
	TokenSymbol       string    `json:"token_symbol"`
	TreasuryAccountID string    `json:"treasury_account_id" binding:"required"`
}

// ListProjects returns paginated projects, newest first
// Query parameters: page (default: 1), page_size (default: 10, max: 100), creator_id (optional filter)
func ListProjects(c *gin.Context) {
	page := 1
	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := 10
	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}

	query := dbconfig.DB.Model(&models.Project{})
	if creatorID := c.Query("creator_id"); creatorID != "" {
		query = query.Where("creator_id = ?", creatorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var projects []models.Project
	if err := query.Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	totalPages := (int(total) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"data": projects,
		"pagination": gin.H{
			"current_page": page,
			"page_size":    pageSize,
			"total_pages":  totalPages,
			"total_count":  total,
			"has_next":     page < totalPages,
			"has_prev":     page > 1,
		},
	})
}

// GetProject returns a specific project with its milestones
func GetProject(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var project models.Project
	if err := dbconfig.DB.Preload("Milestones").First(&project, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// CreateProject creates a new project with zero balances. The on-chain
// linkage (token id, treasury account) is fixed at creation and never
// updated afterwards.
func CreateProject(c *gin.Context) {
	var request ProjectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	if request.TargetAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_amount must be positive"})
		return
	}
	if !request.Deadline.After(time.Now().UTC()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deadline must be in the future"})
		return
	}

	project := models.Project{
		CreatorID:         request.CreatorID,
		CreatorName:       request.CreatorName,
		Title:             request.Title,
		Description:       request.Description,
		Category:          request.Category,
		ImageURL:          request.ImageURL,
		TargetAmount:      request.TargetAmount,
		Deadline:          request.Deadline.UTC(),
		TokenID:           request.TokenID,
		TokenSymbol:       request.TokenSymbol,
		TreasuryAccountID: request.TreasuryAccountID,
	}

	if err := dbconfig.DB.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// UpdateProjectRequest carries the mutable project fields. Balances,
// target and on-chain linkage are deliberately absent: balances belong
// to the escrow engine, the rest is immutable after creation.
type UpdateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

// UpdateProject updates a project's descriptive fields
func UpdateProject(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var request UpdateProjectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	var project models.Project
	if err := dbconfig.DB.First(&project, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	if request.Title != "" {
		project.Title = request.Title
	}
	if request.Description != "" {
		project.Description = request.Description
	}
	if request.Category != "" {
		project.Category = request.Category
	}
	if request.ImageURL != "" {
		project.ImageURL = request.ImageURL
	}

	if err := dbconfig.DB.Save(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject deletes a project that has no funds in flight
func DeleteProject(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var project models.Project
	if err := dbconfig.DB.First(&project, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	// A project holding escrowed or released funds is a financial
	// record, not a row to drop.
	if project.FundsInEscrow != 0 || project.TreasuryBalance != 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "project holds funds and cannot be deleted"})
		return
	}

	if err := dbconfig.DB.Select("Milestones").Delete(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}
