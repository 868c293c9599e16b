package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"library/internal/app"
)

func main() {
	ctx := context.Background()

	log.Println("Starting PostgreSQL testcontainer...")

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("library"),
		postgres.WithUsername("library"),
		postgres.WithPassword("devpassword"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		log.Println("Stopping PostgreSQL container...")
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("Failed to get PostgreSQL connection string: %v", err)
	}
	log.Printf("PostgreSQL started at %s", dsn)

	log.Println("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := testcontainers.TerminateContainer(clickhouseContainer); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}
	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	// Set environment variables for the application
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("DB_DRIVER", "postgres")
	os.Setenv("DATABASE_URL", dsn)
	os.Setenv("DB_AUTO_MIGRATE", "true")
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}
	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, loan notifications are disabled")
	}

	log.Printf("Starting application on http://localhost:%s ...", os.Getenv("PORT"))
	fmt.Println()

	application, err := app.New()
	if err != nil {
		log.Printf("Failed to create application: %v", err)
		return
	}

	// Run blocks until SIGINT or SIGTERM, then the deferred container cleanup runs
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
