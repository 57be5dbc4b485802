package routes

import (
	"example.com/volunteerhub/services/signup/api/handlers"
	"example.com/volunteerhub/services/signup/api/middleware"
	"example.com/volunteerhub/services/signup/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.SignupService, adminToken string, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	// API routes
	api := r.Group("/api/v1")
	admin := middleware.AdminAuth(adminToken)

	// Opportunity routes
	opportunityHandler := handlers.NewOpportunityHandler(svc, log)
	registrationHandler := handlers.NewRegistrationHandler(svc, log)
	opportunities := api.Group("/opportunities")
	{
		opportunities.GET("", opportunityHandler.ListOpportunities)
		opportunities.GET("/search", opportunityHandler.SearchOpportunities)
		opportunities.GET("/:id", opportunityHandler.GetOpportunity)
		opportunities.POST("", admin, opportunityHandler.CreateOpportunity)
		opportunities.PUT("/:id", admin, opportunityHandler.UpdateOpportunity)
		opportunities.DELETE("/:id", admin, opportunityHandler.DeleteOpportunity)
		opportunities.GET("/:id/registrations", admin, registrationHandler.ListOpportunityRegistrations)
	}

	// Registration routes
	registrations := api.Group("/registrations")
	{
		registrations.POST("", registrationHandler.Register)
		registrations.GET("", admin, registrationHandler.ListRegistrations)
		registrations.PUT("/:id", admin, registrationHandler.UpdateRegistrationStatus)
		registrations.DELETE("/:id", registrationHandler.CancelRegistration)
	}

	// User-facing registration listing
	api.GET("/user/registrations", registrationHandler.ListUserRegistrations)

	// Stats and admin maintenance
	statsHandler := handlers.NewStatsHandler(svc, log)
	api.GET("/stats", statsHandler.GetStats)
	api.POST("/admin/cleanup", admin, statsHandler.Cleanup)
}
