package api

import (
	"database/sql"
	"time"

	"chinese-srs/internal/auth"
	"chinese-srs/internal/config"
	"chinese-srs/internal/database"
	"chinese-srs/internal/events"
	"chinese-srs/internal/middleware"
	"chinese-srs/internal/models"
	"chinese-srs/internal/orchestrator"
	"chinese-srs/internal/projection"
	"chinese-srs/internal/scheduler"
	"chinese-srs/internal/session"

	redisadapter "chinese-srs/internal/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes and returns the scheduler facade so
// the caller can run its background jobs (outbox drain, TTL sweep).
func SetupRoutes(router *gin.Engine, db *sql.DB, redisClient *redis.Client, cfg *config.Config) *orchestrator.Facade {
	// Add CORS middleware FIRST
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "Accept", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Initialize handlers
	vocabHandler := NewVocabularyHandler(db)
	authHandler := NewAuthHandler(db, cfg)
	schedulerFacade := buildSchedulerFacade(db, redisClient, cfg)
	schedulerHandler := NewSchedulerHandler(schedulerFacade)

	// Initialize middleware
	userRepo := database.NewUserRepository(db)
	userService := models.NewUserService(userRepo)
	tokenService := auth.NewTokenService(cfg)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, userService)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheck)

		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/request-password-reset", authHandler.RequestPasswordReset)
			auth.POST("/confirm-password-reset", authHandler.ConfirmPasswordReset)
			auth.POST("/verify-email", authHandler.VerifyEmail)
		}

		// Public content routes (no authentication required)
		// Vocabulary routes (public)
		vocabulary := v1.Group("/vocabulary")
		{
			vocabulary.GET("", vocabHandler.GetVocabularyList)  // Handle /vocabulary
			vocabulary.GET("/", vocabHandler.GetVocabularyList) // Handle /vocabulary/
			vocabulary.GET("/random", vocabHandler.GetRandomVocabulary)
			vocabulary.GET("/hsk/:level", vocabHandler.GetHSKVocabulary)
			vocabulary.GET("/:id", vocabHandler.GetVocabularyItem)
		}

		// Protected routes (require authentication)
		protected := v1.Group("/")
		protected.Use(authMiddleware.RequireAuth())
		{
			// User profile routes
			profile := protected.Group("/profile")
			{
				profile.GET("", authHandler.GetProfile)
				profile.PUT("", authHandler.UpdateProfile)
			}

			// Spaced-repetition learning sessions (protected)
			learn := protected.Group("/learn")
			{
				learn.GET("/due", schedulerHandler.GetDueItems)
				learn.POST("/sessions", schedulerHandler.StartSession)
				learn.GET("/sessions/active", schedulerHandler.GetActiveSession)
				learn.GET("/sessions/:id/next", schedulerHandler.NextItem)
				learn.POST("/sessions/:id/reveal", schedulerHandler.RevealAnswer)
				learn.POST("/sessions/:id/judge", schedulerHandler.Judge)
				learn.POST("/sessions/:id/complete", schedulerHandler.CompleteSession)
				learn.POST("/sessions/:id/abandon", schedulerHandler.AbandonSession)
			}
		}
	}

	return schedulerFacade
}

// buildSchedulerFacade wires components A-J into the orchestrator facade
// (component K, spec §4.K), the same dependency-construction style
// SetupRoutes already uses for its other handlers.
func buildSchedulerFacade(db *sql.DB, redisClient *redis.Client, cfg *config.Config) *orchestrator.Facade {
	records := database.NewRecordStore(db)
	reviews := database.NewReviewLogStore(db)
	outbox := database.NewEventStore(db)
	projectionStore := database.NewProjectionStore(db)
	vocabRepo := models.NewVocabularyRepository(db)

	emitter := events.NewEmitter(outbox)
	emitter.Subscribe(projection.NewUpdater(projectionStore))

	analysisCache := redisadapter.NewAnalysisCache(redisClient)
	analyzer := scheduler.NewAnalyzer(reviews, analysisCache, scheduler.RealClock{})

	sessionStore := session.NewRedisStore(redisClient, cfg.Scheduler.SessionTTL)

	return orchestrator.New(orchestrator.Config{
		Records:            records,
		Sessions:           sessionStore,
		Items:              orchestrator.NewVocabularySource(vocabRepo),
		Reviews:            reviews,
		Analyzer:           analyzer,
		Emitter:            emitter,
		Clock:              scheduler.RealClock{},
		NewRatio:           cfg.Scheduler.NewItemRatio,
		OverdueCap:         cfg.Scheduler.OverdueCapRatio,
		RevealTimeout:      cfg.Scheduler.RevealTimeout,
		AutoConfirmQuality: cfg.Scheduler.AutoConfirmQuality,
	})
}

// Health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "healthy",
		"service": "chinese-learning-api",
		"version": "1.0.0",
	})
}
