package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/completion-gateway/internal/config"
	"github.com/openclaw/completion-gateway/internal/database"
	"github.com/openclaw/completion-gateway/internal/handler"
	"github.com/openclaw/completion-gateway/internal/llm"
	"github.com/openclaw/completion-gateway/internal/middleware"
	"github.com/openclaw/completion-gateway/internal/ratelimit"
	"github.com/openclaw/completion-gateway/internal/redis"
	"github.com/openclaw/completion-gateway/internal/repository"
	"github.com/openclaw/completion-gateway/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedis(redisClient.Client)
		log.Info().Msg("redis connected")
	} else {
		limiter = ratelimit.NewMemory()
		log.Info().Msg("REDIS_URL not set: token issuance is rate limited in memory")
	}

	tokens := token.NewService(cfg.AllowList(), cfg.TokenSigningSecret, cfg.TokenTTL())

	modelClient := llm.NewClient(cfg.ModelTimeout())
	modelClient.SetHeader("Authorization", cfg.ModelAuth)
	modelClient.SetHeader("x-folder-id", cfg.ModelFolderID)
	completer := llm.NewCompleter(modelClient, cfg.ModelAPIURL, cfg.ModelFolderID, cfg.ModelName)

	store := repository.NewSessionStore(db.DB, database.NewExecutor(cfg.StatementTimeout()), repository.Procedures{
		Quota:   cfg.QuotaProcedure,
		History: cfg.HistoryProcedure,
		Audit:   cfg.AuditProcedure,
	})

	authStage := middleware.NewAuthStage(tokens, limiter, cfg.TokenIssueLimitPerMin)
	completionStage := handler.NewCompletionHandler(store, completer)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Scope(db.DB))
		r.Use(authStage.Handler)
		r.Handle("/*", completionStage)
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Bool("legacySigning", cfg.LegacySigning()).
			Str("model", completer.ModelURI()).
			Msg("starting gateway")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
