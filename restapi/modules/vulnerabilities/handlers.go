// Package vulnerabilities implements the REST API handlers for reading the
// vulnerability catalog.
package vulnerabilities

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/store"
	"github.com/cosv-horizon/cosv-backend/util"
)

// ListVulnerabilities returns catalog entries filtered by query parameters.
func ListVulnerabilities(catalog *store.CatalogStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		list, err := catalog.List(c.Context(), store.ListParams{
			Language:       c.Query("language"),
			CategoryCode:   c.Query("category"),
			SeverityRating: c.Query("severity_rating"),
			Limit:          limit,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		return c.JSON(list)
	}
}

// GetVulnerability returns one catalog entry with its tag codes.
func GetVulnerability(catalog *store.CatalogStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, err := catalog.FindByUUID(c.Context(), c.Params("uuid"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		if entry == nil {
			return c.Status(fiber.StatusNotFound).JSON(model.ErrorResponse{Message: "vulnerability not found"})
		}
		tags, err := catalog.TagsFor(c.Context(), entry.UUID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		return c.JSON(fiber.Map{
			"vulnerability": entry,
			"tags":          tags,
		})
	}
}

// CheckAffected reports whether a package version falls inside the entry's
// affected ranges.
func CheckAffected(catalog *store.CatalogStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Query("version")
		if version == "" {
			return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Message: "version query parameter is required"})
		}
		packageName := c.Query("package")
		ecosystem := c.Query("ecosystem")

		entry, err := catalog.FindByUUID(c.Context(), c.Params("uuid"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		if entry == nil {
			return c.Status(fiber.StatusNotFound).JSON(model.ErrorResponse{Message: "vulnerability not found"})
		}

		affected := false
		for _, a := range entry.Affected {
			if a.Package == nil {
				continue
			}
			if packageName != "" && a.Package.Name != packageName {
				continue
			}
			if ecosystem != "" && a.Package.Ecosystem != ecosystem {
				continue
			}
			if util.IsVersionAffected(version, a) {
				affected = true
				break
			}
		}

		return c.JSON(fiber.Map{
			"uuid":     entry.UUID,
			"version":  version,
			"affected": affected,
		})
	}
}
