package handlers

import (
	"net/http"
	"strconv"
	"time"

	"hashfund/internal/models"
	dbconfig "hashfund/pkg/config"

	"github.com/gin-gonic/gin"
)

// MilestoneRequest represents the request body for creating a milestone
type MilestoneRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	TargetAmount int64      `json:"target_amount" binding:"required"`
	Deadline     *time.Time `json:"deadline"`
}

// ListMilestones returns all milestones of a project in creation order
func ListMilestones(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var project models.Project
	if err := dbconfig.DB.First(&project, projectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	var milestones []models.Milestone
	if err := dbconfig.DB.Where("project_id = ?", projectID).
		Order("id asc").Find(&milestones).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, milestones)
}

// CreateMilestone adds a milestone to a project. Only the project
// creator may add milestones, and only before any payout happened for
// an amount that would exceed the funding target.
func CreateMilestone(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var request MilestoneRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if request.TargetAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_amount must be positive"})
		return
	}

	callerID := c.GetHeader("X-User-ID")
	if callerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header required"})
		return
	}

	var project models.Project
	if err := dbconfig.DB.First(&project, projectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if project.CreatorID != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the project creator can add milestones"})
		return
	}

	var committed int64
	if err := dbconfig.DB.Model(&models.Milestone{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(target_amount), 0)").Scan(&committed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if committed+request.TargetAmount > project.TargetAmount {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "milestone amounts would exceed the project funding target",
		})
		return
	}

	milestone := models.Milestone{
		ProjectID:    uint(projectID),
		Title:        request.Title,
		Description:  request.Description,
		TargetAmount: request.TargetAmount,
		Status:       models.MilestoneStatusPending,
		Deadline:     request.Deadline,
	}
	if err := dbconfig.DB.Create(&milestone).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, milestone)
}

// StartMilestone marks a pending milestone as in progress
func StartMilestone(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	milestoneID, err := strconv.Atoi(c.Param("milestone_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var milestone models.Milestone
	if err := dbconfig.DB.Where("id = ? AND project_id = ?", milestoneID, projectID).
		First(&milestone).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if milestone.Status != models.MilestoneStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "milestone is not pending"})
		return
	}

	milestone.Status = models.MilestoneStatusInProgress
	if err := dbconfig.DB.Save(&milestone).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, milestone)
}

// ReleaseMilestone releases escrowed funds for a completed milestone.
// The caller must be the project creator, identified by X-User-ID.
func ReleaseMilestone(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	milestoneID, err := strconv.Atoi(c.Param("milestone_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	callerID := c.GetHeader("X-User-ID")
	if callerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header required"})
		return
	}

	txID, err := Engine().ReleaseMilestone(c.Request.Context(), uint(projectID), uint(milestoneID), callerID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	var milestone models.Milestone
	if err := dbconfig.DB.First(&milestone, milestoneID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": milestone, "transaction_id": txID})
}

// RetryMilestonePayout retries the on-chain leg of a payout that is
// stuck in the local_committed phase
func RetryMilestonePayout(c *gin.Context) {
	milestoneID, err := strconv.Atoi(c.Param("milestone_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	txID, err := Engine().RetryPayout(c.Request.Context(), uint(milestoneID))
	if err != nil {
		respondEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payout completed", "transaction_id": txID})
}
