package handlers

import (
	"net/http"
	"strconv"

	"hashfund/internal/escrow"
	"hashfund/internal/models"
	dbconfig "hashfund/pkg/config"

	"github.com/gin-gonic/gin"
)

// InvestmentRequest represents the request body for recording an
// investment. The investor's private key never touches the database,
// it is only used to sign the transfer.
type InvestmentRequest struct {
	ProjectID       uint   `json:"project_id" binding:"required"`
	InvestorName    string `json:"investor_name"`
	InvestorAccount string `json:"investor_account" binding:"required"`
	InvestorKey     string `json:"investor_key" binding:"required"`
	Amount          int64  `json:"amount" binding:"required"`
	Currency        string `json:"currency"`
}

// CreateInvestment transfers funds on chain and records the investment
func CreateInvestment(c *gin.Context) {
	var request InvestmentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	currency := request.Currency
	if currency == "" {
		currency = models.CurrencyHBAR
	}

	investment, err := Engine().RecordInvestment(c.Request.Context(), escrow.RecordInvestmentInput{
		ProjectID: request.ProjectID,
		Investor: escrow.Account{
			ID:  request.InvestorAccount,
			Key: request.InvestorKey,
		},
		InvestorName: request.InvestorName,
		Amount:       request.Amount,
		Currency:     currency,
	})
	if err != nil {
		respondEscrowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, investment)
}

// ListProjectInvestments returns all investments of a project
func ListProjectInvestments(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var investments []models.Investment
	if err := dbconfig.DB.Where("project_id = ?", projectID).
		Order("created_at desc").Find(&investments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, investments)
}

// ListInvestorInvestments returns all investments made by an investor
func ListInvestorInvestments(c *gin.Context) {
	investorID := c.Param("investor_id")
	if investorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "investor_id required"})
		return
	}

	var investments []models.Investment
	if err := dbconfig.DB.Where("investor_id = ?", investorID).
		Order("created_at desc").Find(&investments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, investments)
}

// RefundInvestment refunds an escrowed investment after the project
// deadline passed without the funding goal being met
func RefundInvestment(c *gin.Context) {
	investmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	callerID := c.GetHeader("X-User-ID")
	if callerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header required"})
		return
	}

	txID, err := Engine().RefundInvestment(c.Request.Context(), uint(investmentID), callerID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refund completed", "transaction_id": txID})
}
