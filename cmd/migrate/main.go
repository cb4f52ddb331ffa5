package main

import (
	"context"
	"time"

	mongoMigration "labbook/internal/migrations/mongo"
	"labbook/pkg/config"
)

const (
	JobName = "labbook-migrate"

	migrationTimeout = 120 * time.Second
)

func main() {
	cfg := config.LoadWorker(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	cfg.Log.Info("Starting Mongo migration job")
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}
