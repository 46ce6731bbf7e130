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

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	cloudinaryadapter "github.com/undermod/gitback/internal/adapter/driven/cloudinary"
	githubadapter "github.com/undermod/gitback/internal/adapter/driven/github"
	sqliteadapter "github.com/undermod/gitback/internal/adapter/driven/sqlite"
	httphandler "github.com/undermod/gitback/internal/adapter/driving/http"
	"github.com/undermod/gitback/internal/application"
	"github.com/undermod/gitback/internal/auth"
	"github.com/undermod/gitback/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"base_url", cfg.BaseURL,
		"github_oauth", cfg.HasGitHubOAuth(),
		"cloudinary", cfg.HasCloudinary(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	userStore := sqliteadapter.NewUserRepo(db)
	repoStore := sqliteadapter.NewRepoRepo(db)
	feedbackStore := sqliteadapter.NewFeedbackRepo(db)
	imageStore := sqliteadapter.NewImageRepo(db)

	assets := cloudinaryadapter.NewClient(*cfg)
	if !cfg.HasCloudinary() {
		slog.Warn("cloudinary credentials not configured, image uploads will fail")
	}

	// 6. Session tokens and optional GitHub OAuth app.
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return err
	}

	var oauthProvider *auth.GitHubProvider
	if cfg.HasGitHubOAuth() {
		oauthProvider = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.OAuthCallbackURL)
		slog.Info("github oauth configured")
	} else {
		slog.Info("no github oauth app configured, github login and repository import disabled")
	}

	// 7. Wire application services.
	imageSvc := application.NewImageService(imageStore, assets)
	handler := httphandler.NewHandler(
		application.NewAuthService(userStore),
		application.NewRepoService(repoStore, userStore, imageStore, assets, githubadapter.Factory),
		application.NewFeedbackService(feedbackStore, repoStore, imageStore, imageSvc),
		application.NewPublishService(feedbackStore, repoStore, imageStore, userStore, githubadapter.Factory, cfg.BaseURL),
		application.NewDashboardService(repoStore, feedbackStore),
		tokens,
		oauthProvider,
		strings.HasPrefix(cfg.BaseURL, "https://"),
		slog.Default(),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("gitback started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
