// cmd/server/main.go - ReliefLink Backend Server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relieflink-backend/internal/audit"
	"relieflink-backend/internal/config"
	"relieflink-backend/internal/database"
	"relieflink-backend/internal/distribution"
	"relieflink-backend/internal/events"
	"relieflink-backend/internal/handlers"
	"relieflink-backend/internal/logger"
	"relieflink-backend/internal/matching"
	"relieflink-backend/internal/middleware"
	"relieflink-backend/internal/services"
	"relieflink-backend/internal/store"
	"relieflink-backend/internal/workflow"
	"relieflink-backend/pkg/auth"
	"relieflink-backend/pkg/geocode"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var serverStartTime = time.Now()

const appVersion = "1.0.0"

func main() {
	cfg := config.Load()

	logger.Init(cfg.Env)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logrus.Infof("ReliefLink Backend v%s starting, environment: %s", appVersion, cfg.Env)

	db, err := database.NewMongoDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateIndexes(indexCtx); err != nil {
		logrus.Warnf("Failed to create some indexes: %v", err)
	}
	cancelIndexes()

	jwtManager := auth.NewJWTManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTExpiration)*time.Hour,
	)

	dataStore := store.NewMongoStore(db.Database)

	// Event pipeline: every committed transition flows through one bus
	// into the audit ledger and the notification dispatcher.
	bus := events.NewBus(cfg.EventQueueSize, 10*time.Second)

	ledger := audit.NewLedger(dataStore)
	bus.Subscribe(ledger)

	wsHandler := handlers.NewWebSocketHandler(jwtManager)
	wsHandler.StartHub()

	var transport services.Transport = services.NoopTransport{}
	if cfg.EmailGatewayURL != "" || cfg.SMSGatewayURL != "" {
		transport = services.NewWebhookTransport(
			cfg.EmailGatewayURL,
			cfg.SMSGatewayURL,
			time.Duration(cfg.TransportTimeout)*time.Second,
		)
	}
	dispatcher := services.NewNotificationDispatcher(dataStore, transport, wsHandler.Hub())
	bus.Subscribe(dispatcher)

	go bus.Run()
	defer bus.Close()

	// Workflow engines
	matcher := matching.NewEngine(dataStore)
	tracker := distribution.NewTracker(dataStore, bus)
	engine := workflow.NewEngine(dataStore, matcher, tracker, bus)

	var geocoder geocode.Validator = geocode.BoundsValidator{}
	if cfg.GeocodeURL != "" {
		geocoder = geocode.NewReverseValidator(cfg.GeocodeURL, time.Duration(cfg.GeocodeTimeout)*time.Second)
	}

	authHandler := handlers.NewAuthHandler(dataStore, jwtManager)
	requestHandler := handlers.NewRequestHandler(dataStore, engine, geocoder, bus)
	distributionHandler := handlers.NewDistributionHandler(dataStore, tracker)
	centerHandler := handlers.NewCenterHandler(dataStore)
	notificationHandler := handlers.NewNotificationHandler(dataStore, bus)
	auditHandler := handlers.NewAuditHandler(ledger)

	router := setupRouter(cfg, jwtManager,
		authHandler, requestHandler, distributionHandler,
		centerHandler, notificationHandler, auditHandler, wsHandler)

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logrus.Infof("Server running on http://%s:%s", cfg.Host, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	} else {
		logrus.Info("Server gracefully stopped")
	}
}

func setupRouter(
	cfg *config.Config,
	jwtManager *auth.JWTManager,
	authHandler *handlers.AuthHandler,
	requestHandler *handlers.RequestHandler,
	distributionHandler *handlers.DistributionHandler,
	centerHandler *handlers.CenterHandler,
	notificationHandler *handlers.NotificationHandler,
	auditHandler *handlers.AuditHandler,
	wsHandler *handlers.WebSocketHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindow)*time.Second)
	router.Use(rateLimiter.RateLimit())

	router.GET("/ws", wsHandler.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(serverStartTime).String(),
			"version":   appVersion,
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		// Anonymous submissions are allowed, so creation only reads
		// the identity when a token happens to be present
		v1.POST("/requests", middleware.OptionalAuthMiddleware(jwtManager), requestHandler.Create)
		v1.GET("/request-types", requestHandler.Types)
		v1.GET("/centers", centerHandler.ListCenters)
		v1.GET("/centers/:id", centerHandler.GetCenter)
		v1.GET("/centers/:id/resources", centerHandler.ListResources)

		// Authenticated routes
		authorized := v1.Group("")
		authorized.Use(middleware.AuthMiddleware(jwtManager))
		{
			authorized.GET("/auth/profile", authHandler.Profile)

			authorized.GET("/requests", requestHandler.List)
			authorized.GET("/requests/:id", requestHandler.Get)
			authorized.POST("/requests/:id/cancel", requestHandler.Cancel)
			authorized.GET("/requests/:id/distributions", distributionHandler.ListByRequest)

			authorized.GET("/notifications", notificationHandler.List)
			authorized.POST("/notifications/:id/read", notificationHandler.MarkRead)

			// Volunteer routes
			volunteer := authorized.Group("")
			volunteer.Use(middleware.VolunteerMiddleware())
			{
				volunteer.POST("/distributions", distributionHandler.Create)
				volunteer.GET("/distributions/:id", distributionHandler.Get)
				volunteer.POST("/distributions/:id/advance", distributionHandler.Advance)
			}

			// Admin routes
			admin := authorized.Group("")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.POST("/requests/:id/approve", requestHandler.Approve)
				admin.POST("/requests/:id/reject", requestHandler.Reject)
				admin.POST("/requests/:id/rematch", requestHandler.Rematch)

				admin.POST("/centers", centerHandler.CreateCenter)
				admin.POST("/centers/:id/resources", centerHandler.CreateResource)

				admin.POST("/notifications/emergency", notificationHandler.Emergency)

				admin.GET("/audit/:chain", auditHandler.List)
				admin.GET("/audit/:chain/verify", auditHandler.Verify)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})

	return router
}
