package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flyrpro/config"
	"flyrpro/db"
	"flyrpro/handlers"
	"flyrpro/middleware"
)

func runMigrations() {
	sqlBytes, err := os.ReadFile("schema.sql")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read schema.sql")
	}

	if _, err := db.GetDB().Exec(string(sqlBytes)); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().Msg("database schema verified")
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if err := db.InitDB(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	runMigrations()

	features := config.LoadFeatures()
	billing := config.LoadBilling()
	log.Info().
		Bool("billing", features.BillingEnabled).
		Bool("apple_billing", features.AppleBillingEnabled).
		Msg("features loaded")

	r := gin.Default()
	r.Use(middleware.CORS(billing.ClientURL))

	// Provider webhooks authenticate by signature, not session.
	r.POST("/webhooks/stripe", handlers.StripeWebhook)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api/auth/signup", handlers.Signup)
	r.POST("/api/auth/login", handlers.Login)

	api := r.Group("/api", middleware.AuthRequired())
	{
		api.GET("/auth/me", handlers.Me)

		api.GET("/billing/entitlement", handlers.GetEntitlement)
		api.POST("/billing/checkout", handlers.CreateCheckout)
		api.POST("/billing/apple/confirm", handlers.ConfirmApplePurchase)

		api.POST("/workspaces", handlers.CreateWorkspace)
		api.GET("/workspaces/mine", handlers.GetMyWorkspace)
		api.POST("/workspaces/join", handlers.JoinWorkspace)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
