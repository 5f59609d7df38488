// Package dictionary implements the REST API handlers for the category and
// tag dictionaries.
package dictionary

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/store"
)

// ListCategories returns every defined category.
func ListCategories(categories *store.CategoryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := categories.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		return c.JSON(list)
	}
}

// ListTags returns every defined tag.
func ListTags(tags *store.TagStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := tags.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
		}
		return c.JSON(list)
	}
}
