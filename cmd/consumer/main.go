// Command consumer drains the analytics topic into the events table.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/eventbus"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("no kafka brokers configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSON(os.Stdout, cfg.LogLevel).With("module", "consumer")

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	c := eventbus.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, repos.Events(), logger)
	defer c.Close()

	logger.Info(ctx, "consuming analytics events", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	if err := c.Run(ctx); err != nil {
		logger.Error(ctx, "consumer stopped", "error", err)
		os.Exit(1)
	}
}
