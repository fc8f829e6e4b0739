package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"projecthub/internal/auth"
	"projecthub/internal/config"
	"projecthub/internal/domain"
	"projecthub/internal/domain/services"
	"projecthub/internal/repository/postgres"
	"projecthub/internal/service"
	"projecthub/internal/storage/s3store"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	seedDemo := flag.Bool("seed-demo", false, "Create a demo user with a sample project")
	demoUser := flag.String("demo-user", "demo", "Username for -seed-demo")
	demoPassword := flag.String("demo-password", "demo-password", "Password for -seed-demo")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *seedDemo) {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables or --seed-demo in production environment")
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	log.Printf("🏗️  Migrating database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped (stored objects are not touched)")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if !*seedDemo {
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	projectRepo := postgres.NewProjectRepository(repoConfig)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	storage, err := s3store.NewGateway(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatalf("Failed to create storage gateway: %v", err)
	}
	tokens, err := auth.NewHMACTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, logger)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	accounts, err := service.NewAccountService(userRepo, projectRepo, docRepo, storage, auth.NewBcryptHasher(0), tokens, tokens, logger)
	if err != nil {
		log.Fatalf("Failed to create account service: %v", err)
	}
	projects := service.NewProjectService(projectRepo, docRepo, userRepo, storage, txManager, logger)

	if err := seed(ctx, accounts, projects, *demoUser, *demoPassword); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}
	log.Println("🎉 Seeding complete!")
}

// seed registers the demo user, or logs in if it already exists, and gives
// it a sample project when it has none.
func seed(ctx context.Context, accounts services.AccountService, projects services.ProjectService, username, password string) error {
	_, err := accounts.Register(ctx, &services.RegisterRequest{
		Username:       username,
		Password:       password,
		RepeatPassword: password,
	})
	switch {
	case err == nil:
		log.Printf("✅ Created user %q", username)
	case errors.Is(err, domain.ErrConflict):
		log.Printf("ℹ️  User %q already exists", username)
	default:
		return err
	}

	token, err := accounts.Login(ctx, &services.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	user, err := accounts.Authenticate(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	existing, err := projects.ListProjects(ctx, user)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Printf("ℹ️  User %q already has %d project(s)", username, len(existing))
		return nil
	}

	project, err := projects.CreateProject(ctx, user, &services.CreateProjectRequest{
		Name:        "Getting started",
		Description: "Upload documents and invite collaborators to this project.",
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created project %q (ID: %s)", project.Name, project.ID)
	log.Printf("🔑 Bearer token for %q: %s", username, token.AccessToken)
	return nil
}
