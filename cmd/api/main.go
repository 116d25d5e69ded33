// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/teamloop/teamloop-backend/internal/api/handlers"
	"github.com/teamloop/teamloop-backend/internal/api/middleware"
	"github.com/teamloop/teamloop-backend/internal/config"
	"github.com/teamloop/teamloop-backend/internal/cron"
	"github.com/teamloop/teamloop-backend/internal/db"
	"github.com/teamloop/teamloop-backend/internal/email"
	"github.com/teamloop/teamloop-backend/internal/notification"
	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/seed"
	"github.com/teamloop/teamloop-backend/internal/service"
	"github.com/teamloop/teamloop-backend/internal/socket"
	"github.com/teamloop/teamloop-backend/internal/worker"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("🔄 Running database migrations...")
	migrationsPath := "./internal/db/migrations"
	if err := db.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	// ============================================
	// Initialize Repositories
	// ============================================
	repos := repository.NewRepositories(pg.Pool)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Delivery Queue (Redis, or in-memory fallback)
	// ============================================
	var deliveryQueue queue.Queue
	queueStatus := "memory"
	if cfg.RedisURL != "" {
		redisDB, err := db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (falling back to in-memory queue)", err)
			deliveryQueue = queue.NewMemoryQueue(cfg.QueueVisibilityTimeout)
		} else {
			defer redisDB.Close()
			deliveryQueue = queue.NewRedisQueue(redisDB.Client, cfg.QueueVisibilityTimeout)
			queueStatus = "redis"
			log.Println("⚡ Redis delivery queue enabled")
		}
	} else {
		deliveryQueue = queue.NewMemoryQueue(cfg.QueueVisibilityTimeout)
		log.Println("⚠️  REDIS_URL not set, using in-memory delivery queue")
	}

	// ============================================
	// Initialize Email Service (optional)
	// ============================================
	var emailSvc *email.Service
	if cfg.SMTPHost != "" {
		emailSvc = email.NewService(&email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		log.Println("📧 Email service initialized")
	} else {
		log.Println("⚠️  Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)

	// WebSocket handler with JWT secret for self-authentication
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret)
	log.Println("🔌 WebSocket hub initialized")

	// ============================================
	// Seed Data (for development)
	// ============================================
	if cfg.Environment != "production" {
		log.Println("🌱 Seeding development data...")
		seed.SeedData(repos)
	}

	// ============================================
	// Initialize Notification Service
	// ============================================
	notificationSvc := notification.NewService(repos.NotificationRepo)
	notificationSvc.SetPusher(broadcaster)

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		Queue:       deliveryQueue,
		Broadcaster: broadcaster,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Start Delivery Workers
	// ============================================
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workerWG sync.WaitGroup
	for i := 1; i <= cfg.WorkerCount; i++ {
		w := worker.New(i, deliveryQueue, repos.UserRepo, repos.TeamRepo, notificationSvc, mailerOrNil(emailSvc), cfg.FrontendURL)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			w.Run(workerCtx)
		}()
	}
	log.Printf("👷 Started %d delivery workers", cfg.WorkerCount)

	// ============================================
	// Initialize Handlers
	// ============================================
	h := handlers.NewHandlers(services, notificationSvc)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(deliveryQueue, repos.NotificationRepo)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.Default()

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"queue":      queueStatus,
			"websocket":  "active",
			"ws_clients": hub.GetConnectedClientsCount(),
			"email":      emailStatus(emailSvc),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// ============================================
		// Public routes (no auth required)
		// ============================================
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// WebSocket route
		api.GET("/ws", wsHandler.HandleWebSocket)

		// ============================================
		// Protected routes (require auth middleware)
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(services.Auth))
		{
			// Invitation routes
			invitations := protected.Group("/invitations")
			{
				invitations.POST("", h.Invitation.Create)
				invitations.GET("", h.Invitation.List)
				invitations.GET("/:id", h.Invitation.Get)
				invitations.POST("/:id/accept", h.Invitation.Accept)
				invitations.POST("/:id/reject", h.Invitation.Reject)
				invitations.DELETE("/:id", h.Invitation.Delete)
			}

			// Notification routes
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/count", h.Notification.Count)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
			}

			// Team routes
			teams := protected.Group("/teams")
			{
				teams.POST("", h.Team.Create)
				teams.GET("", h.Team.List)
				teams.GET("/:id", h.Team.Get)
				teams.GET("/:id/members", h.Team.ListMembers)
				teams.POST("/:id/members", h.Team.AddMember)
				teams.PUT("/:id/members/:userId", h.Team.UpdateMemberRole)
				teams.DELETE("/:id/members/:userId", h.Team.RemoveMember)
			}
		}
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop workers after the HTTP surface is closed; jobs already dequeued
	// finish, the rest stay in the queue for the next start.
	stopWorkers()
	workerWG.Wait()

	log.Println("Server exited")
}

// mailerOrNil keeps the worker's nil check honest: a nil *email.Service
// wrapped in the Mailer interface would not compare equal to nil.
func mailerOrNil(svc *email.Service) worker.Mailer {
	if svc == nil {
		return nil
	}
	return svc
}

func emailStatus(svc *email.Service) string {
	if svc == nil {
		return "disabled"
	}
	return "configured"
}
