package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/application/services"
	"github.com/taskmaster/taskboard/internal/infrastructure/config"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/infrastructure/server"
	"github.com/taskmaster/taskboard/internal/infrastructure/storage"
	"github.com/taskmaster/taskboard/internal/infrastructure/validation"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Set at build time with -ldflags "-X .../commands.Version=..."
var (
	Version   = "dev"
	GitCommit = "development"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Taskboard API server",
		Long:  "Start the Taskboard API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage PostgreSQL schema migrations (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 applies all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 reverts all)")

	migrateCmd.AddCommand(upCmd, downCmd, &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users directly in the configured storage",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Run: func(cmd *cobra.Command, args []string) {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			if name == "" || email == "" || password == "" {
				log.Fatal("Name, email and password are required")
			}

			createUser(name, email, password)
		},
	}

	createUserCmd.Flags().String("name", "", "User name (required)")
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("password", "", "User password (required)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Taskboard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Taskboard %s\n", Version)
			fmt.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to open storage", "error", err)
	}
	defer store.Close()

	srv, err := server.New(cfg, store, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	appLogger.Infow("Starting Taskboard API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"version", Version,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.GetAddress())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Errorw("Server failed", "error", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
	}
}

func newMigrator() (*migrate.Migrate, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(context.Background(), cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.Migrations.Path, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, func() { _, _ = m.Close() }, nil
}

func runMigration(direction string, steps int) {
	m, closeFn, err := newMigrator()
	if err != nil {
		log.Fatal(err)
	}
	defer closeFn()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Printf("Migration %s completed successfully\n", direction)
}

func showMigrationVersion() {
	m, closeFn, err := newMigrator()
	if err != nil {
		log.Fatal(err)
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

// validateNewUser applies the rules the register endpoint enforces
func validateNewUser(name, email, password string) error {
	return validation.NewValidator().Validate(&ports.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
}

func createUser(name, email, password string) {
	if err := validateNewUser(name, email, password); err != nil {
		log.Fatalf("Invalid user: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	auditor := security.NewAuditor(store.Cache, security.Config{
		FailedLoginThreshold: cfg.Security.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Security.FailedLoginWindow,
	}, prometheus.NewRegistry(), appLogger)
	authService := services.NewAuthService(store.Repos.Users, store.Cache, auditor, cfg.JWT, cfg.Security.BcryptCost, appLogger)

	user, err := authService.CreateUser(ctx, name, email, password)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User created successfully:\n")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Name: %s\n", user.Name)
	fmt.Printf("  Email: %s\n", user.Email)
}
