package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"fieldstock/cmd"
	"fieldstock/internal/container"
	"fieldstock/internal/database"
	"fieldstock/internal/logger"
	"fieldstock/internal/middleware"
	"fieldstock/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("Warning: No .env file found, falling back to system environment variables.")
	}

	// Execute migration CMD
	cmd.Execute(ctx)
}

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := database.NewPostgresConnection(dbURL)
	if err != nil {
		log.Fatal("cannot connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("connected to the database")

	app := container.NewAppContainer(db, log)

	router := gin.Default()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TimeoutMiddleware(30 * time.Second))

	router.GET("/health", middleware.HealthCheckMiddleware())
	app.LoginHandler.RegisterRoutes(router)

	api := router.Group("/api", security.JWTMiddleware())
	app.LocationHandler.RegisterRoutes(api)
	app.LedgerHandler.RegisterRoutes(api)
	app.ReceivingHandler.RegisterRoutes(api)
	app.ConsumptionHandler.RegisterRoutes(api)
	app.ReconciliationHandler.RegisterRoutes(api)
	app.AuditLogHandler.RegisterRoutes(api)
	if app.CountSheetHandler != nil {
		app.CountSheetHandler.RegisterRoutes(api)
	}

	if err := router.Run(os.Getenv("APP_HOST")); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
