package routes

import (
	"hashfund/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupInvestmentRoutes sets up all routes related to investment management
func SetupInvestmentRoutes(r *gin.Engine, writeLimiter gin.HandlerFunc) {
	investment := r.Group("/investments")
	{
		investment.POST("", writeLimiter, handlers.CreateInvestment)
		investment.POST("/:id/refund", writeLimiter, handlers.RefundInvestment)
	}

	r.GET("/projects/:id/investments", handlers.ListProjectInvestments)
	r.GET("/investors/:investor_id/investments", handlers.ListInvestorInvestments)
}
