package routes

import (
	"hashfund/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupNotificationRoutes sets up all routes related to notifications
func SetupNotificationRoutes(r *gin.Engine) {
	notification := r.Group("/notifications/:user_id")
	{
		notification.GET("", handlers.ListNotifications)
		notification.GET("/stream", handlers.StreamNotifications)
		notification.POST("/read/:id", handlers.MarkNotificationRead)
		notification.POST("/read-all", handlers.MarkAllNotificationsRead)
	}
}
