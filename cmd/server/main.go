package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feavel/feeds/backend/internal/auth"
	"github.com/feavel/feeds/backend/internal/cache"
	"github.com/feavel/feeds/backend/internal/collaborators"
	"github.com/feavel/feeds/backend/internal/comments"
	"github.com/feavel/feeds/backend/internal/database"
	"github.com/feavel/feeds/backend/internal/feeds"
	"github.com/feavel/feeds/backend/internal/handlers"
	"github.com/feavel/feeds/backend/internal/likes"
	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/middleware"
	"github.com/feavel/feeds/backend/internal/permissions"
	"github.com/feavel/feeds/backend/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Setup file logging
	logFile, err := os.OpenFile("server.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	gin.DefaultWriter = multiWriter
	gin.DefaultErrorWriter = multiWriter

	log.Println("=== Feeds server starting ===")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	db, err := database.Initialize()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional; without it like counts fall through to the
	// database on every read.
	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		log.Printf("Warning: Redis unavailable, like counts will not be cached: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		log.Fatalf("JWT_SECRET environment variable is required")
	}

	s3Gateway, err := storage.NewS3Gateway(
		context.Background(),
		os.Getenv("AWS_REGION"),
		os.Getenv("AWS_BUCKET"),
		os.Getenv("STORAGE_BASE_URL"),
	)
	if err != nil {
		log.Fatalf("Failed to initialize S3 gateway: %v", err)
	}

	// Wire up services
	resolver := permissions.NewResolver(db)
	authService := auth.NewService(db, jwtSecret)
	feedService := feeds.NewService(db, resolver)
	collabService := collaborators.NewService(db, resolver)
	likeService := likes.NewService(db, resolver, redisClient)
	commentService := comments.NewService(db, resolver, likeService)

	h := handlers.NewHandlers(db, authService, feedService, collabService, commentService, likeService, s3Gateway)

	// Setup Gin router
	r := gin.Default()
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure properly for production
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(db); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "feeds-backend",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	required := authService.Middleware()
	optional := authService.OptionalMiddleware()

	// API routes
	api := r.Group("/api/v1")
	{
		// Authentication routes
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.GET("/me", required, h.Me)
		}

		// Feed routes. Reads take optional auth so public feeds work
		// without an account.
		feedGroup := api.Group("/feeds")
		{
			feedGroup.GET("", optional, h.ListFeeds)
			feedGroup.POST("", required, h.CreateFeed)
			feedGroup.GET("/:id", optional, h.GetFeed)
			feedGroup.PATCH("/:id", required, h.UpdateFeed)
			feedGroup.DELETE("/:id", required, h.DeleteFeed)
			feedGroup.PUT("/:id/cover", required, h.SetFeedCover)

			// Collaborator roster
			feedGroup.GET("/:id/collaborators", optional, h.ListCollaborators)
			feedGroup.POST("/:id/collaborators", required, h.AddCollaborator)
			feedGroup.PATCH("/:id/collaborators/:userId", required, h.UpdateCollaborator)
			feedGroup.DELETE("/:id/collaborators/:userId", required, h.RemoveCollaborator)
			feedGroup.GET("/:id/collaborators/search", required, h.SearchCollaboratorCandidates)

			// Comments on a feed
			feedGroup.GET("/:id/comments", optional, h.ListComments)
			feedGroup.POST("/:id/comments", required, h.AddComment)

			// Feed likes
			feedGroup.GET("/:id/likes", optional, h.GetFeedLikes)
			feedGroup.POST("/:id/like", required, h.LikeFeed)
			feedGroup.DELETE("/:id/like", required, h.UnlikeFeed)
		}

		// Comment routes
		commentGroup := api.Group("/comments")
		{
			commentGroup.GET("/:id", optional, h.GetComment)
			commentGroup.GET("/:id/replies", optional, h.ListReplies)
			commentGroup.PATCH("/:id", required, h.UpdateComment)
			commentGroup.DELETE("/:id", required, h.DeleteComment)
			commentGroup.GET("/:id/likes", optional, h.GetCommentLikes)
			commentGroup.POST("/:id/like", required, h.LikeComment)
			commentGroup.DELETE("/:id/like", required, h.UnlikeComment)
		}

		// User routes
		userGroup := api.Group("/users")
		{
			userGroup.GET("/me/likes", required, h.GetMyFeedLikes)
			userGroup.PUT("/me/avatar", required, h.SetMyAvatar)
			userGroup.DELETE("/me", required, h.DeleteMe)
		}

		// Media upload routes
		fileGroup := api.Group("/files")
		{
			fileGroup.POST("/feed-upload-url", required, h.FeedUploadURL)
			fileGroup.POST("/avatar-upload-url", required, h.AvatarUploadURL)
		}
	}

	// Server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Feeds backend starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
