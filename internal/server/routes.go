// Package server contain implementation of go-gin-server and each route handlers
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"AOTF-backend/internal/auth"
	"AOTF-backend/internal/controller/application"
	"AOTF-backend/internal/controller/notification"
	"AOTF-backend/internal/controller/posting"
	"AOTF-backend/internal/logging"
	"AOTF-backend/internal/middleware"
	"AOTF-backend/internal/model"
)

// RegisterRoutes will register each http endpoint routes to bound Server instance
func (s *MyServer) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(s.Logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.Config.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true, // Enable cookies/auth
	}))
	r.Use(
		middleware.SafeHeader(),
		middleware.SizeLimit(middleware.DefaultMaxBodyBytes),
		middleware.RequestTimeout(s.Config.RequestTimeout),
	)

	lAuth := auth.NewLocalAuthHandler(s.DB)
	lAuth.Logger = s.Logger.Named("auth")
	postingController := posting.NewPostingController(s.Engine)
	applicationController := application.NewApplicationController(s.Engine)
	notificationController := notification.NewNotificationController(s.Engine)

	r.GET("/", s.HelloWorldHandler)
	r.GET("/health", s.healthHandler)
	v1 := r.Group("/api/v1")
	{
		authRoute := v1.Group("/auth")
		{
			if s.RateLimit != nil {
				authRoute.Use(s.RateLimit)
			}
			authRoute.POST("login", lAuth.LocalLoginHandler)
			authRoute.POST("register", lAuth.LocalRegisterHandler)
		}

		// Any routes
		needAuth := v1.Group("")
		{
			needAuth.Use(middleware.RequireAuth(s.DB))
			// keyed by user id, so it must run after RequireAuth
			if s.RateLimit != nil {
				needAuth.Use(s.RateLimit)
			}

			postingRoute := needAuth.Group("/posting")
			{
				postingRoute.GET("", postingController.GetPostings)
				postingRoute.GET("/:id", postingController.GetPostingByID)
				postingRoute.GET("/:id/applications", middleware.CheckRole(model.RoleAdmin, model.RoleRequester), postingController.GetApplications)
				postingRoute.GET("/:id/summary", middleware.CheckRole(model.RoleAdmin, model.RoleRequester), postingController.GetSummary)
				postingRoute.POST("", middleware.CheckRole(model.RoleRequester), postingController.CreatePostingHandler)

				postingAdmin := postingRoute.Group("/:id")
				{
					postingAdmin.Use(middleware.CheckRole(model.RoleAdmin))
					postingAdmin.GET("/archive", postingController.GetArchive)
					postingAdmin.PATCH("/hold", postingController.HoldPosting)
					postingAdmin.PATCH("/unhold", postingController.UnholdPosting)
					postingAdmin.PATCH("/close", postingController.ClosePosting)
					postingAdmin.PATCH("/sync", postingController.SyncPosting)
				}
			}

			applicationRoute := needAuth.Group("/application")
			{
				applicationRoute.GET("/:id", middleware.CheckRole(model.RoleAdmin, model.RoleCandidate), applicationController.GetApplicationByID)

				needCandidate := applicationRoute.Group("")
				{
					needCandidate.Use(middleware.CheckRole(model.RoleCandidate))
					needCandidate.POST("", applicationController.ApplicationHandler)
					needCandidate.GET("/mine", applicationController.GetMyApplications)
					needCandidate.POST("/:id/withdrawal", applicationController.RequestWithdrawalHandler)
				}

				needAdmin := applicationRoute.Group("/:id")
				{
					needAdmin.Use(middleware.CheckRole(model.RoleAdmin))
					needAdmin.PATCH("/approve", applicationController.ApproveHandler)
					needAdmin.PATCH("/decline", applicationController.DeclineHandler)
					needAdmin.PATCH("/complete", applicationController.CompleteHandler)
					needAdmin.PATCH("/withdrawal", applicationController.ResolveWithdrawalHandler)
				}
			}

			notificationRoute := needAuth.Group("/notification")
			{
				notificationRoute.Use(middleware.CheckRole(model.RoleAdmin))
				notificationRoute.GET("", notificationController.GetNotifications)
				notificationRoute.PATCH("/:id/read", notificationController.MarkRead)
			}
		}
	}

	return r
}

// HelloWorldHandler handle request by return message "Hello World"
func (s *MyServer) HelloWorldHandler(c *gin.Context) {
	resp := make(map[string]string)
	resp["message"] = "Hello World"

	c.JSON(http.StatusOK, resp)
}

func (s *MyServer) healthHandler(c *gin.Context) {
	stats := s.DB.Health()
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
