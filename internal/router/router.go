package router

import (
	"jobly/config"
	"jobly/internal/domain"
	"jobly/internal/handler"
	"jobly/internal/middleware"
	"jobly/internal/repository"
	"jobly/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, recon *service.ReconService, subs *service.SubscriptionService, plans *service.PlanService) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(cfg, userRepo)

	authHandler := handler.NewAuthHandler(authSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(recon, &cfg.Razorpay)
	adminHandler := handler.NewAdminHandler(subs, plans, userRepo, paymentRepo, subRepo, planRepo, notifRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)

		payments := api.Group("/payments")
		{
			payments.POST("/webhook/razorpay", webhookHandler.HandleWebhook)
			// Some payment-link setups redirect the browser to the webhook
			// path instead of the callback path.
			payments.GET("/webhook/razorpay", webhookHandler.HandleCallback)
			payments.GET("/callback", webhookHandler.HandleCallback)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/users/:user_id/subscription", adminHandler.GetUserSubscription)
			admin.GET("/users/:user_id/notifications", adminHandler.ListUserNotifications)
			admin.POST("/users/:user_id/trial", adminHandler.GrantTrial)
			admin.GET("/subscriptions/expiring", adminHandler.ListExpiring)
			admin.GET("/payments/stats", adminHandler.PaymentStats)
			admin.GET("/plans", adminHandler.ListPlans)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
