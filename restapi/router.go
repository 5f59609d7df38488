// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/cosv-horizon/cosv-backend/cosv"
	"github.com/cosv-horizon/cosv-backend/restapi/modules/cosvimport"
	"github.com/cosv-horizon/cosv-backend/restapi/modules/dictionary"
	"github.com/cosv-horizon/cosv-backend/restapi/modules/vulnerabilities"
	"github.com/cosv-horizon/cosv-backend/store"
	"github.com/cosv-horizon/cosv-backend/util"
)

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, svc *cosv.Service, stores *store.Stores, schema graphql.Schema, cfg util.Config) {

	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL Route - Mounted within the api group to inherit path prefixes
	if cfg.EnableGraphQL {
		api.Post("/graphql", GraphQLHandler(schema))
	}

	// COSV file upload and ingestion
	files := api.Group("/cosv/files")
	files.Post("/", cosvimport.UploadCosvFile(svc, cfg.MaxUploadMB))
	files.Get("/", cosvimport.ListCosvFiles(stores.RawFiles))
	files.Post("/:uuid/parse", cosvimport.ParseCosvFile(svc))
	files.Post("/:uuid/parse-batch", cosvimport.ParseCosvBatch(svc))
	files.Post("/:uuid/ingest", cosvimport.IngestCosvFile(svc))
	files.Post("/:uuid/ingest-batch", cosvimport.IngestCosvBatch(svc))

	// Vulnerability catalog reads
	vulns := api.Group("/vulnerabilities")
	vulns.Get("/", vulnerabilities.ListVulnerabilities(stores.Catalog))
	vulns.Get("/:uuid", vulnerabilities.GetVulnerability(stores.Catalog))
	vulns.Get("/:uuid/affected", vulnerabilities.CheckAffected(stores.Catalog))

	// Dictionaries
	api.Get("/categories", dictionary.ListCategories(stores.Categories))
	api.Get("/tags", dictionary.ListTags(stores.Tags))

	log.Println("API routes initialized successfully")
}
