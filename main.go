// cosv-backend ingests COSV advisory files into a deduplicated
// vulnerability catalog and serves it over REST and GraphQL.
package main

import (
	"context"
	"time"

	"github.com/cosv-horizon/cosv-backend/database"
	"github.com/cosv-horizon/cosv-backend/internal/api"
	"github.com/cosv-horizon/cosv-backend/store"
	"github.com/cosv-horizon/cosv-backend/util"
)

func main() {
	logger := database.InitLogger().Sugar()

	cfg, err := util.LoadConfig(database.GetEnvDefault("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db := database.InitializeDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.NewStores(db, logger).SeedDictionaries(ctx); err != nil {
		logger.Fatalf("Failed to seed dictionaries: %v", err)
	}

	app := api.NewFiberApp(db, cfg)

	logger.Infof("Listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}
