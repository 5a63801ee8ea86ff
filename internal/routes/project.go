package routes

import (
	"hashfund/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupProjectRoutes sets up all routes related to project management
func SetupProjectRoutes(r *gin.Engine) {
	project := r.Group("/projects")
	{
		project.GET("", handlers.ListProjects)
		project.GET("/:id", handlers.GetProject)
		project.POST("", handlers.CreateProject)
		project.PUT("/:id", handlers.UpdateProject)
		project.DELETE("/:id", handlers.DeleteProject)
	}
}
