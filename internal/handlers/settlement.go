package handlers

import (
	"net/http"
	"strconv"

	"hashfund/internal/escrow"
	"hashfund/internal/models"
	dbconfig "hashfund/pkg/config"

	"github.com/gin-gonic/gin"
)

// ListPendingSettlements returns settlement intents that are still in
// flight, oldest first. Resolved and failed intents are excluded unless
// phase= is passed explicitly.
func ListPendingSettlements(c *gin.Context) {
	query := dbconfig.DB.Model(&models.PendingSettlement{})

	if phase := c.Query("phase"); phase != "" {
		query = query.Where("phase = ?", phase)
	} else {
		query = query.Where("phase IN ?", []string{
			models.SettlementPhaseSubmitted,
			models.SettlementPhaseTransferConfirmed,
			models.SettlementPhaseLocalCommitted,
			models.SettlementPhaseSubmitting,
		})
	}
	if projectID := c.Query("project_id"); projectID != "" {
		if id, err := strconv.Atoi(projectID); err == nil {
			query = query.Where("project_id = ?", id)
		}
	}

	var intents []models.PendingSettlement
	if err := query.Order("created_at asc").Find(&intents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, intents)
}

// AssociateRequest represents the request body for a token association
type AssociateRequest struct {
	AccountID  string `json:"account_id" binding:"required"`
	PrivateKey string `json:"private_key" binding:"required"`
	TokenID    string `json:"token_id" binding:"required"`
}

// AssociateToken associates an account with a project token so it can
// receive token investments. Re-associating is a no-op.
func AssociateToken(c *gin.Context) {
	var request AssociateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	txID, err := Engine().EnsureAssociation(c.Request.Context(), escrow.Account{
		ID:  request.AccountID,
		Key: request.PrivateKey,
	}, request.TokenID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	if txID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "already associated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "associated", "transaction_id": txID})
}

// GetAccountBalance returns the on-chain balance of an account.
// Repeatable token_id query parameters select token balances to include.
func GetAccountBalance(c *gin.Context) {
	accountID := c.Param("account_id")
	tokenIDs := c.QueryArray("token_id")

	balance, err := Engine().AccountBalances(c.Request.Context(), accountID, tokenIDs...)
	if err != nil {
		respondEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}
