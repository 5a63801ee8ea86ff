package routes

import (
	"hashfund/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupSettlementRoutes sets up all routes related to on-chain settlement
func SetupSettlementRoutes(r *gin.Engine, writeLimiter gin.HandlerFunc) {
	settlement := r.Group("/settlements")
	{
		settlement.GET("/pending", handlers.ListPendingSettlements)
		settlement.POST("/associate", writeLimiter, handlers.AssociateToken)
		settlement.GET("/balance/:account_id", handlers.GetAccountBalance)
	}
}
