package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/auth"
	"github.com/DevCodeRift/boundless-saga/internal/background"
	"github.com/DevCodeRift/boundless-saga/internal/config"
	"github.com/DevCodeRift/boundless-saga/internal/database"
	"github.com/DevCodeRift/boundless-saga/internal/discord"
	"github.com/DevCodeRift/boundless-saga/internal/handlers"
	"github.com/DevCodeRift/boundless-saga/internal/repositories"
	"github.com/DevCodeRift/boundless-saga/internal/routes"
	"github.com/DevCodeRift/boundless-saga/internal/services"
	pkghttp "github.com/DevCodeRift/boundless-saga/pkg/http"
	pkglogger "github.com/DevCodeRift/boundless-saga/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("ses_enabled", cfg.Email.Enabled()),
		slog.Bool("single_use_state", cfg.Redis.Enabled()),
	)

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, &cfg.Database, logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	deviceRepo := repositories.NewDeviceRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	emailVerificationRepo := repositories.NewEmailVerificationRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Verification mail goes through SES when configured, otherwise to the log
	var mailer services.Mailer
	if cfg.Email.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesMailer, err := services.NewSESMailer(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.VerificationURLBase, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	} else {
		mailer = services.NewLogMailer(cfg.Email.VerificationURLBase, cfg.Server.Env, logger)
	}

	emailVerificationService := services.NewEmailVerificationService(
		emailVerificationRepo,
		mailer,
		logger,
		auditLogger,
		cfg.Email.TokenExpiry,
	)

	// Account resolution pipeline
	discordClient := discord.NewClient(cfg.Discord)
	recorder := services.NewBookkeepingRecorder(deviceRepo, loginAttemptRepo, accountRepo, logger)
	matcher := services.NewAccountMatcher(accountRepo)
	resolver := services.NewAccountResolver(accountRepo, recorder, cfg.Discord.CDNBaseURL, logger)

	authService := services.NewAuthService(
		discordClient,
		matcher,
		resolver,
		recorder,
		accountRepo,
		logger,
		auditLogger,
		cfg.Auth.DashboardPath,
	)
	authService.SetVerificationSender(emailVerificationService)
	authService.SetFailurePadder(auth.NewFailurePadding(cfg.Auth.FailureFloor, cfg.Auth.FailureJitter))

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	stateManager := auth.NewStateManager(cfg.Auth.StateSecret, cfg.Auth.StateTTL)
	if cfg.Redis.Enabled() {
		rdb, err := database.NewRedisClient(context.Background(), &cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		stateManager.SetNonceStore(repositories.NewStateNonceRepository(rdb))
	}

	authHandler := handlers.NewAuthHandler(authService, emailVerificationService, ipConfig, logger)
	discordHandler := handlers.NewDiscordOAuthHandler(
		discordClient,
		stateManager,
		cfg.Server.BaseURL+cfg.Auth.CallbackPath,
		logger,
	)

	router := routes.NewRouter(routes.Options{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	}, authHandler, discordHandler, db)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(emailVerificationRepo, logger, cfg.Email.CleanupInterval)
	go cleanupManager.Start(context.Background())

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
