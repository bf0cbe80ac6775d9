package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/importer"
	"alcyxob/shaper/internal/service"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth          service.AuthService
	Exercises     service.ExerciseService
	Plans         service.PlanService
	Permissions   service.PermissionService
	Collaboration service.CollaborationService
	Offers        service.OfferService
	Checkout      service.CheckoutService
	Imports       *importer.Runner
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc Services, logger *slog.Logger) {
	authHandler := NewAuthHandler(svc.Auth, logger)
	exerciseHandler := NewExerciseHandler(svc.Exercises, logger)
	planHandler := NewPlanHandler(svc.Plans, logger)
	collabHandler := NewCollaborationHandler(svc.Collaboration, svc.Permissions, logger)
	offerHandler := NewOfferHandler(svc.Offers, svc.Checkout, logger)
	importHandler := NewImportHandler(svc.Imports, logger)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/activate", authHandler.Activate)
			authGroup.POST("/activation/resend", authHandler.ResendActivation)
		}

		// Public offer page: the token is the credential.
		offerGroup := apiV1.Group("/offers")
		{
			offerGroup.GET("/:token", offerHandler.GetOffer)
			offerGroup.POST("/:token/checkout", offerHandler.Checkout)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", authHandler.Me)

		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/:id", exerciseHandler.GetExercise)
			exerciseGroup.POST("", RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin), exerciseHandler.CreateExercise)
		}

		trainingPlans := protected.Group("/training-plans")
		{
			trainingPlans.POST("", RoleMiddleware(domain.RoleTrainer), planHandler.CreateTrainingPlan)
			trainingPlans.GET("", planHandler.ListTrainingPlans)
			trainingPlans.GET("/:id", planHandler.GetTrainingPlan)
			trainingPlans.PUT("/:id", planHandler.UpdateTrainingPlan)
			trainingPlans.DELETE("/:id", planHandler.DeleteTrainingPlan)
			trainingPlans.POST("/:id/workouts", planHandler.AddWorkout)
			trainingPlans.GET("/:id/workouts", planHandler.ListWorkouts)
			trainingPlans.GET("/:id/collaborators", collabHandler.ListCollaborators(domain.ResourceTrainingPlan))
			trainingPlans.DELETE("/:id/collaborators/:userId", collabHandler.RevokeCollaborator(domain.ResourceTrainingPlan))
		}

		mealPlans := protected.Group("/meal-plans")
		{
			mealPlans.POST("", RoleMiddleware(domain.RoleTrainer), planHandler.CreateMealPlan)
			mealPlans.GET("", planHandler.ListMealPlans)
			mealPlans.GET("/:id", planHandler.GetMealPlan)
			mealPlans.PUT("/:id", planHandler.UpdateMealPlan)
			mealPlans.DELETE("/:id", planHandler.DeleteMealPlan)
			mealPlans.GET("/:id/collaborators", collabHandler.ListCollaborators(domain.ResourceMealPlan))
			mealPlans.DELETE("/:id/collaborators/:userId", collabHandler.RevokeCollaborator(domain.ResourceMealPlan))
		}

		protected.POST("/permissions/check-batch", collabHandler.CheckBatch)

		invitations := protected.Group("/collaborations/invitations")
		invitations.Use(RoleMiddleware(domain.RoleTrainer))
		{
			invitations.POST("", collabHandler.CreateInvitation)
			invitations.GET("", collabHandler.ListInvitations)
			invitations.POST("/:id/accept", collabHandler.AcceptInvitation)
			invitations.POST("/:id/decline", collabHandler.DeclineInvitation)
		}

		protected.GET("/packages", RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin), offerHandler.ListPackages)

		trainerApiGroup := protected.Group("/trainer")
		trainerApiGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerApiGroup.POST("/offers", offerHandler.CreateOffer)
			trainerApiGroup.GET("/offers", offerHandler.ListTrainerOffers)
			trainerApiGroup.POST("/offers/:token/cancel", offerHandler.CancelOffer)
		}

		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/packages", offerHandler.CreatePackage)
			adminGroup.POST("/imports/upload-url", importHandler.RequestUploadURL)
			adminGroup.POST("/imports", importHandler.StartImport)
			adminGroup.GET("/imports", importHandler.ListImports)
			adminGroup.GET("/imports/:id", importHandler.GetImport)
		}
	}
}
