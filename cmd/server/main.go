package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"projecthub/internal/auth"
	"projecthub/internal/config"
	"projecthub/internal/handler"
	"projecthub/internal/middleware"
	"projecthub/internal/repository/postgres"
	"projecthub/internal/service"
	"projecthub/internal/storage/s3store"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"bucket", cfg.Storage.Bucket,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	projectRepo := postgres.NewProjectRepository(repoConfig)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Object storage
	storage, err := s3store.NewGateway(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatalf("Failed to create storage gateway: %v", err)
	}

	// Credentials and tokens
	tokens, err := auth.NewHMACTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, logger)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	hasher := auth.NewBcryptHasher(0)

	// Create services
	accountService, err := service.NewAccountService(userRepo, projectRepo, docRepo, storage, hasher, tokens, tokens, logger)
	if err != nil {
		log.Fatalf("Failed to create account service: %v", err)
	}
	projectService := service.NewProjectService(projectRepo, docRepo, userRepo, storage, txManager, logger)
	documentService := service.NewDocumentService(projectRepo, docRepo, storage, txManager, cfg.Storage.PresignTTL, logger)

	metrics := middleware.NewHTTPMetrics()

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Handlers{
		Auth:      handler.NewAuthHandler(accountService, logger),
		Users:     handler.NewUserHandler(accountService, logger),
		Projects:  handler.NewProjectHandler(projectService, logger),
		Documents: handler.NewDocumentHandler(documentService, cfg.MaxUploadBytes, logger),
		Metrics:   metrics.Handler(),
	}, middleware.RequireAuth(accountService, logger))

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Logging → Metrics → Routes (auth is per route)
	var root http.Handler = mux
	root = metrics.Middleware(root)
	root = middleware.RequestLogger(logger)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - outermost so OPTIONS pre-flight requests never reach auth
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"WWW-Authenticate"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // large multipart uploads
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
