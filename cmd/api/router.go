package api

import (
	"net/http"

	authDelivery "mailboard-backend/internal/auth/delivery"
	authdomain "mailboard-backend/internal/auth/domain"
	authUsecasePkg "mailboard-backend/internal/auth/usecase"
	emailDelivery "mailboard-backend/internal/email/delivery"
	emailUsecasePkg "mailboard-backend/internal/email/usecase"
	"mailboard-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecasePkg.AuthUsecase, emailService emailUsecasePkg.EmailService, sseManager *sse.Manager, summaryHandler *emailDelivery.SummaryHandler) {
	authHandler := authDelivery.NewAuthHandler(authUsecase)
	emailHandler := emailDelivery.NewEmailHandler(emailService)
	authRequired := authDelivery.AuthMiddleware(authUsecase)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE stream for board/summary/unsnooze updates
		api.GET("/events", authRequired, func(c *gin.Context) {
			user := c.MustGet("user").(*authdomain.User)
			sseManager.ServeHTTP(c, user.ID)
		})

		auth := api.Group("/auth")
		{
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/imap", authHandler.IMAPSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/logout-all", authRequired, authHandler.LogoutAll)
			auth.GET("/me", authRequired, authHandler.Me)
		}

		fcmGroup := api.Group("/fcm")
		fcmGroup.Use(authRequired)
		{
			fcmGroup.POST("/register", authHandler.RegisterFCMToken)
			fcmGroup.POST("/unregister", authHandler.UnregisterFCMToken)
		}

		emails := api.Group("/emails")
		emails.Use(authRequired)
		{
			emails.GET("", emailHandler.GetEmails)
			emails.GET("/mailboxes", emailHandler.GetMailboxes)
			emails.GET("/status/:status", emailHandler.GetEmailsByStatus)
			emails.GET("/search", emailHandler.SearchEmails)
			emails.POST("/send", emailHandler.SendEmail)
			emails.POST("/watch", emailHandler.WatchInbox)
			emails.GET("/:id", emailHandler.GetEmailByID)
			emails.GET("/:id/attachments/:attachmentId", emailHandler.GetAttachment)
			emails.PATCH("/:id/read", emailHandler.MarkAsRead)
			emails.PATCH("/:id/unread", emailHandler.MarkAsUnread)
			emails.PATCH("/:id/star", emailHandler.ToggleStar)
			emails.POST("/:id/move", emailHandler.MoveEmail)
			emails.POST("/:id/snooze", emailHandler.SnoozeEmail)
			emails.POST("/:id/unsnooze", emailHandler.UnsnoozeEmail)
			emails.POST("/:id/trash", emailHandler.TrashEmail)
			emails.POST("/:id/archive", emailHandler.ArchiveEmail)
			emails.DELETE("/:id/permanent", emailHandler.DeleteEmail)
		}

		search := api.Group("/search")
		search.Use(authRequired)
		{
			search.POST("/semantic", emailHandler.SemanticSearch)
			search.GET("/suggestions", emailHandler.GetSearchSuggestions)
		}

		kanban := api.Group("/kanban")
		kanban.Use(authRequired)
		{
			kanban.GET("/columns", emailHandler.GetColumns)
			kanban.POST("/columns", emailHandler.CreateColumn)
			kanban.PUT("/columns/orders", emailHandler.ReorderColumns)
			kanban.PUT("/columns/:slug", emailHandler.UpdateColumn)
			kanban.DELETE("/columns/:slug", emailHandler.DeleteColumn)
			kanban.POST("/summarize", summaryHandler.QueueSummaries)
		}
	}
}
