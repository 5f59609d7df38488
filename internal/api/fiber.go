package api

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cosv-horizon/cosv-backend/cosv"
	"github.com/cosv-horizon/cosv-backend/database"
	gqlschema "github.com/cosv-horizon/cosv-backend/graphql"
	"github.com/cosv-horizon/cosv-backend/restapi"
	"github.com/cosv-horizon/cosv-backend/store"
	"github.com/cosv-horizon/cosv-backend/util"
)

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(db database.DBConnection, cfg util.Config) *fiber.App {
	// Initialize GraphQL schema
	gqlschema.InitDB(db)
	schema, err := gqlschema.CreateSchema()
	if err != nil {
		log.Fatalf("Failed to create GraphQL schema: %v", err)
	}

	logg := database.InitLogger().Sugar()
	stores := store.NewStores(db, logg)
	svc := cosv.NewService(stores.RawFiles, stores.Catalog, stores.Aliases, stores.Categories, stores.Tags, stores.Orgs, logg)

	app := fiber.New(fiber.Config{
		AppName:     "cosv-backend API v1.0",
		BodyLimit:   cfg.BodyLimitMB * 1024 * 1024,
		ReadTimeout: time.Duration(cfg.ReadTimeoutS) * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-User-UUID",
		AllowCredentials: true,
		AllowMethods:     "GET, POST, HEAD, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(logger.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// Setup REST and GraphQL routes (Pass the schema here)
	restapi.SetupRoutes(app, svc, stores, schema, cfg)

	return app
}
