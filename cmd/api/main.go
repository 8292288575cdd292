package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ethos/internal/alerts"
	"ethos/internal/auth"
	"ethos/internal/config"
	"ethos/internal/evidence"
	"ethos/internal/gaps"
	"ethos/internal/httpmiddleware"
	"ethos/internal/inference"
	"ethos/internal/queue"
	"ethos/internal/store"
	"ethos/internal/timeline"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	cache := store.NewPredictionCache(redisClient.Client, cfg.PredictionTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "ethos:rescore")
	}

	repo := evidence.NewRepository(db.Client)
	owner := inference.NewService(repo, inference.Weights{
		Wifi:    cfg.WeightWifi,
		Booking: cfg.WeightBooking,
		Face:    cfg.WeightFace,
		Alibi:   cfg.WeightAlibi,
	}, cfg.EvidenceWindow, cfg.PredictTopN)
	gap := gaps.NewPredictor(repo)
	feed := timeline.NewRepository(db.Client)
	inactivity := alerts.NewService(alerts.NewRepository(db.Client), cfg.InactivityWindow)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Request correlation
	r.Use(httpmiddleware.RequestID())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/tokens", func(c *gin.Context) {
		var req struct {
			OperatorID string `json:"operator_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.OperatorID, "operator", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	api := r.Group("/api", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	api.POST("/predict/owner", func(c *gin.Context) {
		var req struct {
			CardID string `json:"card_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request must carry a card_id"})
			return
		}

		if cached, ok := cache.Get(c.Request.Context(), req.CardID); ok {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}

		preds, err := owner.Predict(c.Request.Context(), req.CardID)
		if err != nil {
			log.Printf("owner inference for card %s failed: %v", req.CardID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if preds == nil {
			preds = []inference.Prediction{}
		}

		if err := cache.Set(c.Request.Context(), req.CardID, gin.H{"predictions": preds}); err != nil {
			log.Printf("prediction cache write failed: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"predictions": preds})
	})

	api.POST("/predict/owner/rescore", func(c *gin.Context) {
		var req struct {
			CardID string `json:"card_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request must carry a card_id"})
			return
		}
		if err := cache.Invalidate(c.Request.Context(), req.CardID); err != nil {
			log.Printf("cache invalidate failed: %v", err)
		}
		if err := q.Publish(c.Request.Context(), queue.Message{Type: "rescore", Body: []byte(req.CardID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"card_id": req.CardID, "status": "queued"})
	})

	api.POST("/predict/location", func(c *gin.Context) {
		var req struct {
			UserID           int       `json:"user_id" binding:"required"`
			StartTime        time.Time `json:"start_time" binding:"required"`
			EndTime          time.Time `json:"end_time" binding:"required"`
			LocationBeforeID int       `json:"location_before_id"`
			LocationAfterID  int       `json:"location_after_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, start_time and end_time are required"})
			return
		}

		res, err := gap.Predict(c.Request.Context(), gaps.Request{
			UserID:           req.UserID,
			Start:            req.StartTime,
			End:              req.EndTime,
			BeforeLocationID: req.LocationBeforeID,
			AfterLocationID:  req.LocationAfterID,
		})
		if err != nil {
			log.Printf("gap prediction for user %d failed: %v", req.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"prediction": res.Prediction, "reason": res.Reason})
	})

	api.GET("/timeline/:userId", func(c *gin.Context) {
		userID, err := strconv.Atoi(c.Param("userId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		entries, err := feed.UserTimeline(c.Request.Context(), userID, limit, offset)
		if err != nil {
			if errors.Is(err, evidence.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if entries == nil {
			entries = []timeline.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"timeline": entries})
	})

	api.GET("/alerts/inactivity", func(c *gin.Context) {
		found, err := inactivity.Sweep(c.Request.Context(), time.Now().UTC())
		if err != nil {
			log.Printf("inactivity sweep failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if found == nil {
			found = []alerts.Alert{}
		}
		c.JSON(http.StatusOK, gin.H{"alerts": found})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
