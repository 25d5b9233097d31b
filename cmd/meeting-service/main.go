package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	adminHandler "github.com/usetoolieproject/coachly-sub000/internal/handler/http/admin"
	meetingHandler "github.com/usetoolieproject/coachly-sub000/internal/handler/http/meeting"
	wsHandler "github.com/usetoolieproject/coachly-sub000/internal/handler/ws"
	"github.com/usetoolieproject/coachly-sub000/internal/middleware"
	"github.com/usetoolieproject/coachly-sub000/internal/repository/cockroach"
	"github.com/usetoolieproject/coachly-sub000/internal/room"
	meetingService "github.com/usetoolieproject/coachly-sub000/internal/service/meeting"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	"github.com/usetoolieproject/coachly-sub000/pkg/database"
	"github.com/usetoolieproject/coachly-sub000/pkg/env"
	"github.com/usetoolieproject/coachly-sub000/pkg/jwt"
	"github.com/usetoolieproject/coachly-sub000/pkg/logger"
	"github.com/usetoolieproject/coachly-sub000/pkg/metrics"
)

func main() {
	ctx := context.Background()

	logger.InitDefault()
	defer logger.Sync()

	// 1. Setup JWT Manager (verification only; tokens are issued by the
	// identity service)
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}

	jwtManager := jwt.NewJWTManager(jwtSecret, constants.AccessTokenExpiry)

	// 2. Connect to CockroachDB with exponential backoff retry
	dbConfig := &database.CockroachConfig{
		Host:     env.GetString("DB_HOST", "localhost"),
		Port:     env.GetInt("DB_PORT", 26257),
		User:     env.GetString("DB_USER", "root"),
		Password: env.GetStringFromFile("DB_PASSWORD", ""),
		Database: env.GetString("DB_NAME", "coachly"),
		SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
	}

	var db *database.CockroachDB
	var err error

	maxRetries := 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	db, err = database.NewCockroachDB(ctx, dbConfig)
	if err != nil {
		for attempt := 2; attempt <= maxRetries; attempt++ {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > maxDelay {
				delay = maxDelay
			}
			log.Printf("CockroachDB connection attempt %d failed: %v. Retrying in %v...", attempt-1, err, delay)
			time.Sleep(delay)

			db, err = database.NewCockroachDB(ctx, dbConfig)
			if err == nil {
				break
			}
		}
	}
	if err != nil {
		log.Fatalf("Failed to connect to CockroachDB after %d attempts: %v", maxRetries, err)
	}
	defer db.Close()
	log.Println("Connected to CockroachDB")

	meetingRepo := cockroach.NewMeetingRepository(db.Pool)

	// 3. Redis for token revocation checks (optional; auth fails open
	// without it)
	var revocationChecker middleware.RevocationChecker
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Running without token revocation checks")
	} else {
		defer redisDB.Close()
		revocationChecker = middleware.NewRedisRevocationChecker(redisDB.Client)
		log.Println("Connected to Redis")
	}

	// 4. Metrics
	appMetrics := metrics.NewMetrics("meeting-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 5. Meeting lifecycle service + outbox worker
	baseURL := env.GetString("MEETING_BASE_URL", "http://localhost:3000")
	meetingSvc := meetingService.NewService(meetingRepo, baseURL)

	outbox := meetingService.NewOutbox(meetingSvc, appMetrics)
	outbox.Start(ctx)

	// 6. Room registry and signaling hub
	registry := room.NewRegistry()
	signalingHub := wsHandler.NewSignalingHub(registry, outbox, jwtManager, appMetrics)

	// 7. Handlers
	meetingHdlr := meetingHandler.NewHandler(meetingSvc)
	adminHdlr := adminHandler.NewHandler(registry)

	// 8. Gin router
	router := gin.New()

	trustedProxies := []string{}
	if os.Getenv("ENV") == "production" {
		trustedProxies = []string{
			"https://api.coachly.app",
			"https://*.coachly.app",
		}
	} else {
		trustedProxies = []string{
			"http://localhost:3000",
			"http://localhost:8080",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8080",
		}
	}
	router.SetTrustedProxies(trustedProxies)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "meeting-service",
			"time":    time.Now().UTC(),
		})
	})

	// Metrics endpoint (for Prometheus scraping)
	router.GET("/metrics", middleware.MetricsHandler())

	// Meeting lifecycle routes (all require authentication)
	v1 := router.Group("/v1/meetings")
	v1.Use(middleware.Timeout(30 * time.Second))
	v1.Use(middleware.AuthMiddleware(jwtManager, revocationChecker))
	if redisDB != nil {
		limiter := middleware.NewRateLimiter(redisDB.Client,
			env.GetInt("RATE_LIMIT_REQUESTS", 120), time.Minute)
		v1.Use(limiter.Middleware())
	}
	{
		v1.POST("", meetingHdlr.CreateMeeting)
		v1.GET("", meetingHdlr.ListMeetings)
		v1.GET("/:id", meetingHdlr.GetMeeting)
		v1.PUT("/:id", meetingHdlr.UpdateMeeting)
		v1.POST("/:id/cancel", meetingHdlr.CancelMeeting)
		v1.DELETE("/:id", meetingHdlr.DeleteMeeting)
		v1.POST("/:id/participants", meetingHdlr.AddParticipant)
	}

	// WebSocket endpoint for WebRTC signaling; the hub authenticates the
	// handshake itself because browsers cannot set headers on WebSocket
	// requests
	router.GET("/v1/meetings/ws/signaling", signalingHub.ServeWS)

	// Admin reads over the live registry
	admin := router.Group("/v1/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager, revocationChecker))
	{
		admin.GET("/stats", adminHdlr.GetStats)
	}

	// 9. Start server
	port := env.GetString("PORT", "8084")
	addr := fmt.Sprintf(":%s", port)

	log.Printf("Meeting service starting on port %s", port)
	log.Println("WebRTC signaling: /v1/meetings/ws/signaling")
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
