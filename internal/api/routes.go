package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ebookGen/internal/api/middleware"
	"ebookGen/internal/auth"
	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/store"
)

// Dependencies 汇总路由所需的服务与客户端。Scanner 为 nil 时上传不做病毒扫描。
type Dependencies struct {
	Config  *config.Config
	Store   store.Store
	Books   *books.Service
	Auth    *auth.AuthService
	Redis   redis.UniversalClient
	Queue   TaskEnqueuer
	Storage ObjectStorage
	Scanner VirusScanner
	Logger  *slog.Logger
}

// RegisterRoutes 注册 API 路由，统一挂在 /v1 下。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config
	authHandler := NewAuthHandler(deps.Store, deps.Auth, deps.Redis, deps.Logger, cfg.Auth)
	userHandler := NewUserHandler(deps.Store)
	bookHandler := NewBookHandler(deps.Books, deps.Queue, deps.Storage, cfg.Export, deps.Logger)
	chapterHandler := NewChapterHandler(deps.Books)
	imageHandler := NewImageHandler(deps.Books, deps.Storage, deps.Scanner, cfg.Upload, cfg.Export, deps.Logger)
	wsHandler := NewWsHandler(deps.Redis, deps.Auth, deps.Logger, cfg.API.AllowedOrigins)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		userGroup := v1.Group("/users")
		userGroup.Use(authMiddleware)
		{
			userGroup.GET("/profile", userHandler.GetProfile)
			userGroup.PUT("/profile", passwordGate, userHandler.UpdateProfile)
		}

		v1.GET("/books/categories", bookHandler.ListCategories)

		bookGroup := v1.Group("/books")
		bookGroup.Use(authMiddleware, passwordGate)
		{
			bookGroup.POST("", bookHandler.CreateBook)
			bookGroup.GET("/my-books", bookHandler.ListMyBooks)
			bookGroup.GET("/:id", bookHandler.GetBook)
			bookGroup.PUT("/:id", bookHandler.UpdateBook)
			bookGroup.DELETE("/:id", bookHandler.DeleteBook)

			bookGroup.POST("/:id/export/:format", bookHandler.ExportBook)
			bookGroup.GET("/:id/download", bookHandler.DownloadBook)
			bookGroup.GET("/:id/preview", bookHandler.PreviewBook)

			bookGroup.GET("/:id/chapters", chapterHandler.ListChapters)
			bookGroup.POST("/:id/chapters", chapterHandler.CreateChapter)
			bookGroup.PUT("/:id/chapters", chapterHandler.UpdateChapter)
			bookGroup.DELETE("/:id/chapters/:chapterId", chapterHandler.DeleteChapter)

			bookGroup.GET("/:id/images", imageHandler.ListImages)
			bookGroup.POST("/:id/images", imageHandler.CreateImage)
			bookGroup.PUT("/:id/images", imageHandler.UpdateImage)
			bookGroup.POST("/:id/images/upload", imageHandler.UploadImage)
			bookGroup.DELETE("/:id/images/:imageId", imageHandler.DeleteImage)
		}
	}
}
