// Command migrate manages the ClickHouse schema with goose.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"readingtracker/internal/storage/ch"
	"readingtracker/migrations"
)

// dbEnv is the subset of the application environment the migrator needs
type dbEnv struct {
	Host     string `env:"CLICKHOUSE_HOST" envDefault:"localhost"`
	Port     int    `env:"CLICKHOUSE_PORT" envDefault:"9000"`
	Database string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	User     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD"`
	UseTLS   bool   `env:"CLICKHOUSE_USE_TLS"`
}

var (
	db            *sql.DB
	migrationsDir string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply and inspect ClickHouse schema migrations",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "./migrations",
		"directory for new migration files (create only; other commands use the embedded set)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:     "up",
			Short:   "Apply all pending migrations",
			Args:    cobra.NoArgs,
			PreRunE: connect,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Up(db, "."); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				log.Println("Migrations completed successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:     "down",
			Short:   "Roll back the latest migration",
			Args:    cobra.NoArgs,
			PreRunE: connect,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Down(db, "."); err != nil {
					return fmt.Errorf("failed to rollback migration: %w", err)
				}
				log.Println("Rollback completed successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:     "status",
			Short:   "Show applied and pending migrations",
			Args:    cobra.NoArgs,
			PreRunE: connect,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Status(db, "."); err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "version",
			Short:   "Print the current schema version",
			Args:    cobra.NoArgs,
			PreRunE: connect,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := goose.GetDBVersion(db)
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				log.Printf("Current migration version: %d", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a new SQL migration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Create(nil, migrationsDir, args[0], "sql"); err != nil {
					return fmt.Errorf("failed to create migration: %w", err)
				}
				log.Printf("Created migration: %s", args[0])
				return nil
			},
		},
	)

	cobra.OnFinalize(func() {
		if db != nil {
			_ = db.Close()
		}
	})
}

// connect opens ClickHouse and points goose at the embedded migrations
func connect(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	var cfg dbEnv
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	db = ch.OpenSQL(ch.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
		UseTLS:   cfg.UseTLS,
	})
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Printf("Connected to ClickHouse at %s:%d", cfg.Host, cfg.Port)

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}
