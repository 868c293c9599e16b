package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library/internal/storage/sqlstore"
	"library/migrations"
)

type options struct {
	driver     string
	dsn        string
	sqlitePath string
	dir        string
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the library database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.driver, "driver", getEnv("DB_DRIVER", sqlstore.DriverPostgres), "database driver (postgres or sqlite3)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", getEnv("SQLITE_PATH", "library.db"), "SQLite database file")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), opts, func(ctx context.Context, store *sqlstore.Store, dir string) error {
					if err := goose.UpContext(ctx, store.DB().DB, dir); err != nil {
						return fmt.Errorf("failed to run migrations: %w", err)
					}
					log.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), opts, func(ctx context.Context, store *sqlstore.Store, dir string) error {
					if err := goose.DownContext(ctx, store.DB().DB, dir); err != nil {
						return fmt.Errorf("failed to rollback migration: %w", err)
					}
					log.Println("Rollback completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the status of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), opts, func(ctx context.Context, store *sqlstore.Store, dir string) error {
					if err := goose.StatusContext(ctx, store.DB().DB, dir); err != nil {
						return fmt.Errorf("failed to get migration status: %w", err)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), opts, func(ctx context.Context, store *sqlstore.Store, dir string) error {
					version, err := goose.GetDBVersionContext(ctx, store.DB().DB)
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					log.Printf("Current migration version: %d", version)
					return nil
				})
			},
		},
		newCreateCmd(opts),
	)
	return root
}

// newCreateCmd writes a new SQL migration into the source tree for the driver
func newCreateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new SQL migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Join(opts.dir, opts.driver)
			goose.SetSequential(true)
			if err := goose.Create(nil, dir, args[0], "sql"); err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			log.Printf("Created migration: %s", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "./migrations", "migrations source directory")
	return cmd
}

// withStore opens the database without auto-migrating and hands it to fn
// together with the goose directory for the driver
func withStore(ctx context.Context, opts *options, fn func(ctx context.Context, store *sqlstore.Store, dir string) error) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	var store *sqlstore.Store
	switch opts.driver {
	case sqlstore.DriverPostgres:
		if opts.dsn == "" {
			return fmt.Errorf("--dsn or DATABASE_URL is required for %s", sqlstore.DriverPostgres)
		}
		store, err = sqlstore.OpenPostgres(ctx, opts.dsn, sqlstore.WithLogger(logger), sqlstore.WithAutoMigrate(false))
	case sqlstore.DriverSQLite:
		store, err = sqlstore.OpenSQLite(ctx, opts.sqlitePath, sqlstore.WithLogger(logger), sqlstore.WithAutoMigrate(false))
	default:
		return fmt.Errorf("unknown driver: %s", opts.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	log.Printf("Connected to %s successfully", opts.driver)

	dir, err := migrations.Setup(opts.driver, logger)
	if err != nil {
		return err
	}
	return fn(ctx, store, dir)
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
