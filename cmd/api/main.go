package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/siterank/siterank-api/internal/config"
	"github.com/siterank/siterank-api/internal/domain/exchange"
	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/notification"
	"github.com/siterank/siterank-api/internal/domain/report"
	"github.com/siterank/siterank-api/internal/domain/reward"
	"github.com/siterank/siterank-api/internal/domain/site"
	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/database"
	"github.com/siterank/siterank-api/internal/pkg/jwt"
	"github.com/siterank/siterank-api/internal/pkg/logger"
	"github.com/siterank/siterank-api/internal/pkg/metrics"
	pkgresponse "github.com/siterank/siterank-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SiteRank API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		// Events degrade to websocket-only delivery without Redis
		log.Warn().Err(err).Msg("Redis unavailable, cross-instance events disabled")
		redisClient = nil
	}
	defer database.CloseRedis(redisClient)

	exchangeRate, err := decimal.NewFromString(cfg.ExchangeRate)
	if err != nil {
		log.Fatal().Err(err).Str("rate", cfg.ExchangeRate).Msg("Invalid exchange rate")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	txRunner := database.NewSQLRunner(db)

	// ---------- Repositories ----------
	ledgerStore := ledger.NewStore(db)
	rewardRepo := reward.NewRepository(db)
	siteRepo := site.NewRepository(db)
	exchangeRepo := exchange.NewRepository(db)
	reportRepo := report.NewRepository(db)

	// ---------- Events ----------
	hub := notification.NewHub(cfg.AllowedOrigins)
	publisher := notification.NewFanout(notification.NewRedisPublisher(redisClient), hub)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerStore)
	rewardEngine := reward.NewEngine(txRunner, ledgerStore, rewardRepo, rewardRepo)
	exchangeService := exchange.NewService(txRunner, exchangeRepo, ledgerStore, siteRepo, publisher, exchange.Config{
		MinPoints:  cfg.ExchangeMinPoints,
		UnitPoints: cfg.ExchangeUnitPoints,
		Rate:       exchangeRate,
	})
	reportService := report.NewService(reportRepo, siteRepo, rewardEngine, txRunner, publisher)

	// ---------- Handlers ----------
	pointsHandler := ledger.NewHandler(ledgerService)
	rewardHandler := reward.NewHandler(rewardEngine, rewardRepo)
	siteHandler := site.NewHandler(siteRepo)
	exchangeHandler := exchange.NewHandler(exchangeService)
	reportHandler := report.NewHandler(reportService)

	authMiddleware := middleware.Auth(jwtService)
	moderatorMiddleware := middleware.RequireModerator()
	adminMiddleware := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (token via query string, before Compress)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(hub.ServeWS)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Route("/points", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/balance", pointsHandler.Balance)
			r.Get("/transactions", pointsHandler.Transactions)
			r.Post("/attendance", rewardHandler.ClaimAttendance)
		})

		r.Mount("/sites", siteHandler.Routes())
		r.Mount("/exchanges", exchangeHandler.Routes(authMiddleware))
		r.Mount("/reports", reportHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/exchanges", exchangeHandler.AdminRoutes(authMiddleware, moderatorMiddleware))
		r.Mount("/reports", reportHandler.AdminRoutes(authMiddleware, moderatorMiddleware))
		r.Mount("/sites", siteHandler.AdminRoutes(authMiddleware, adminMiddleware))
		r.Mount("/", rewardHandler.AdminRoutes(authMiddleware, adminMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
