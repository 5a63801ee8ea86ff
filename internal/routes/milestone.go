package routes

import (
	"hashfund/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupMilestoneRoutes sets up all routes related to milestone management
func SetupMilestoneRoutes(r *gin.Engine, writeLimiter gin.HandlerFunc) {
	milestone := r.Group("/projects/:id/milestones")
	{
		milestone.GET("", handlers.ListMilestones)
		milestone.POST("", handlers.CreateMilestone)
		milestone.POST("/:milestone_id/start", handlers.StartMilestone)
		milestone.POST("/:milestone_id/release", writeLimiter, handlers.ReleaseMilestone)
		milestone.POST("/:milestone_id/retry-payout", writeLimiter, handlers.RetryMilestonePayout)
	}
}
