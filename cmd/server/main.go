package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatepass/checkout-backend/internal/config"
	"github.com/gatepass/checkout-backend/internal/database"
	"github.com/gatepass/checkout-backend/internal/handlers"
	"github.com/gatepass/checkout-backend/internal/middleware"
	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/gatepass/checkout-backend/pkg/jwt"
	"github.com/gatepass/checkout-backend/pkg/mailer"
	"github.com/gatepass/checkout-backend/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting employee checkout backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Reject a bad routing table before anything is sent to it
	recipients := validator.NewRecipientValidator()
	if err := recipients.ValidateRouting(cfg.Notification.DepartmentRecipients); err != nil {
		logger.Fatalf("Invalid department routing: %v", err)
	}
	if err := recipients.ValidateList(cfg.Notification.HRRecipients); err != nil {
		logger.Fatalf("Invalid HR recipients: %v", err)
	}
	if err := recipients.ValidateList(cfg.Notification.OpsManagerRecipients); err != nil {
		logger.Fatalf("Invalid ops manager recipients: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	checkoutRepo := database.NewCheckoutRepository(db)
	employeeRepo := database.NewEmployeeRepository(db)
	hrUserRepo := database.NewHRUserRepository(db)

	// Initialize services
	logger.Info("Initializing services...")

	notifications, err := services.NewNotificationService(cfg.Notification, newMailer(cfg.Notification, logger), logger)
	if err != nil {
		logger.Fatalf("Failed to initialize notification service: %v", err)
	}
	notifications.Start()

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	sessionService := services.NewSessionService(checkoutRepo, logger)
	checkoutService := services.NewCheckoutService(checkoutRepo, employeeRepo, sessionService, notifications, logger)
	exportService := services.NewExportService(checkoutRepo)
	hrAuthService := services.NewHRAuthService(hrUserRepo, jwtService, logger)

	cronService := services.NewCronService(checkoutRepo, cfg.Scheduler, logger)
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cronService.WithLocker(services.NewRedisSweepLocker(redisClient))
		logger.WithField("address", cfg.Redis.Address).Info("Sweep locks backed by Redis")
	}
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started - reconciliation sweeps enabled")

	logger.Info("Services initialized")

	deviceSession := middleware.NewCookieSession(cfg.Session.CookieName, cfg.Session.MaxAge, cfg.Session.Secure)
	hrSession := middleware.NewCookieSession(cfg.Session.HRCookieName, jwtService.Expiry(), cfg.Session.Secure)

	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, deviceSession, logger)
	exportHandler := handlers.NewExportHandler(exportService, logger)
	hrAuthHandler := handlers.NewHRAuthHandler(hrAuthService, hrSession, logger)
	adminHandler := handlers.NewAdminHandler(cronService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger, cfg.Session.CookieName))

	// CORS configuration. Credentials are required for the session cookies.
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	router.Use(middleware.OptionalHRSession(jwtService, hrSession, logger))

	router.GET("/employee/:no", checkoutHandler.GetEmployee)
	router.POST("/checkout", checkoutHandler.CreateCheckout)
	router.POST("/confirm-checkout", checkoutHandler.ConfirmCheckout)
	router.PUT("/checkin/:employeeNo", checkoutHandler.CheckIn)
	router.GET("/session-status", checkoutHandler.SessionStatus)
	router.GET("/checkout-status/:no", checkoutHandler.CheckoutStatus)
	router.GET("/checkout-history", checkoutHandler.CheckoutHistory)

	router.GET("/export", exportHandler.ExportCSV)
	router.GET("/export.xlsx", exportHandler.ExportXLSX)

	router.POST("/hr-login", hrAuthHandler.Login)
	router.POST("/hr-logout", hrAuthHandler.Logout)

	admin := router.Group("/admin")
	admin.Use(middleware.RequireHR())
	{
		admin.GET("/sweeps", adminHandler.ListSweeps)
		admin.POST("/sweeps/:name/run", adminHandler.RunSweep)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop cron service
	logger.Info("Stopping cron service...")
	if err := cronService.Stop(ctx); err != nil {
		logger.Warnf("Cron service did not stop cleanly: %v", err)
	}

	// Drain queued notifications
	logger.Info("Stopping notification dispatcher...")
	if err := notifications.Stop(ctx); err != nil {
		logger.Warnf("Notification dispatcher abandoned pending work: %v", err)
	}

	logger.Info("Server exited successfully")
}

// newMailer picks the mail transport for the configured notification mode
func newMailer(cfg config.NotificationConfig, logger *logrus.Logger) mailer.Mailer {
	if cfg.Mode == "smtp" {
		logger.WithFields(logrus.Fields{
			"host": cfg.SMTPHost,
			"port": cfg.SMTPPort,
		}).Info("Notifications sent over SMTP")
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.FromAddress,
		})
	}
	logger.Info("Notifications in log mode (no mail will be sent)")
	return mailer.NewLogMailer(logger)
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger, sessionCookie string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		// Session presence only, never the token itself
		if _, err := c.Cookie(sessionCookie); err == nil {
			fields["has_session"] = true
		}
		if hrCtx, ok := middleware.GetHRContext(c); ok {
			fields["hr_user"] = hrCtx.Username
		}

		entry := logger.WithFields(fields)

		// Log errors with more details
		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		// Log based on status code
		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		dbStatus := "healthy"
		if err := db.PingContext(c.Request.Context()); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
