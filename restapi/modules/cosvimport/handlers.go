// Package cosvimport implements the REST API handlers for COSV file upload,
// preview, and ingestion.
package cosvimport

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cosv-horizon/cosv-backend/cosv"
	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/store"
)

// userUUID reads the caller identity set by the gateway.
func userUUID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get("X-User-UUID"))
}

// writeError maps pipeline errors onto HTTP statuses.
func writeError(c *fiber.Ctx, err error) error {
	var parseErr *cosv.ParseError
	var validationErr *cosv.ValidationError
	var conflictErr *cosv.ConflictError
	var dictErr *cosv.DictionaryError
	var permErr *cosv.PermissionError
	var notFoundErr *cosv.NotFoundError

	switch {
	case errors.As(err, &parseErr), errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Message: err.Error()})
	case errors.As(err, &conflictErr), errors.As(err, &dictErr):
		return c.Status(fiber.StatusConflict).JSON(model.ErrorResponse{Message: err.Error()})
	case errors.As(err, &permErr):
		return c.Status(fiber.StatusForbidden).JSON(model.ErrorResponse{Message: err.Error()})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(model.ErrorResponse{Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Message: err.Error()})
	}
}

// UploadCosvFile stores a raw COSV payload sent as multipart form data or as
// the request body. Payloads above the size limit are rejected before any
// storage work happens.
func UploadCosvFile(svc *cosv.Service, maxUploadMB int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileName := "cosv.json"
		mimeType := "application/json"
		var content []byte

		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Message: "failed to open uploaded file: " + err.Error()})
			}
			defer f.Close()
			content, err = io.ReadAll(f)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Message: "failed to read uploaded file: " + err.Error()})
			}
			fileName = fh.Filename
			if ct := fh.Header.Get("Content-Type"); ct != "" {
				mimeType = ct
			}
		} else {
			content = c.Body()
			if ct := c.Get(fiber.HeaderContentType); ct != "" {
				mimeType = ct
			}
		}

		if maxUploadMB > 0 && len(content) > maxUploadMB*1024*1024 {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(model.ErrorResponse{Message: "file exceeds upload size limit"})
		}

		uuid, err := svc.Upload(c.Context(), cosv.UploadParams{
			UserUUID: userUUID(c),
			OrgUUID:  c.Query("organization"),
			FileName: fileName,
			MimeType: mimeType,
			Content:  content,
		})
		if err != nil {
			return writeError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(model.UploadResponse{Success: true, Message: "file stored", RawFileUUID: uuid})
	}
}

// ListCosvFiles returns the caller's uploaded files without their content.
func ListCosvFiles(files *store.RawFileStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		list, err := files.List(c.Context(), userUUID(c), limit)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(list)
	}
}

func parseParams(c *fiber.Ctx) cosv.ParseParams {
	return cosv.ParseParams{
		RawFileUUID:  c.Params("uuid"),
		Language:     c.Query("language"),
		CategoryCode: c.Query("category"),
		TagCodes:     splitCodes(c.Query("tags")),
		Mode:         c.Query("mode"),
	}
}

// ParseCosvFile previews a single-record payload without committing anything.
func ParseCosvFile(svc *cosv.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := svc.Parse(c.Context(), parseParams(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(report)
	}
}

// ParseCosvBatch previews every record of a multi-record payload.
func ParseCosvBatch(svc *cosv.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := svc.ParseBatch(c.Context(), parseParams(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(report)
	}
}

func ingestParams(c *fiber.Ctx) (cosv.IngestParams, error) {
	var req model.IngestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return cosv.IngestParams{}, &cosv.ParseError{Msg: "invalid request body: " + err.Error()}
		}
	}
	return cosv.IngestParams{
		RawFileUUID:    c.Params("uuid"),
		UserUUID:       userUUID(c),
		Action:         req.Action,
		TargetVulnUUID: req.TargetVulnUUID,
		ConflictPolicy: req.ConflictPolicy,
		OrgUUID:        req.OrgUUID,
		Language:       req.Language,
		CategoryCode:   req.CategoryCode,
		TagCodes:       splitCodes(req.TagCodes),
	}, nil
}

// IngestCosvFile commits a single-record payload into the catalog.
func IngestCosvFile(svc *cosv.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params, err := ingestParams(c)
		if err != nil {
			return writeError(c, err)
		}
		outcome, err := svc.Ingest(c.Context(), params)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(outcome)
	}
}

// IngestCosvBatch commits every record of a multi-record payload, reporting
// per-record outcomes.
func IngestCosvBatch(svc *cosv.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.IngestBatchRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, &cosv.ParseError{Msg: "invalid request body: " + err.Error()})
			}
		}
		result, err := svc.IngestBatch(c.Context(), cosv.IngestParams{
			RawFileUUID:    c.Params("uuid"),
			UserUUID:       userUUID(c),
			Action:         req.Action,
			ConflictPolicy: req.ConflictPolicy,
			OrgUUID:        req.OrgUUID,
			Language:       req.Language,
			CategoryCode:   req.CategoryCode,
			TagCodes:       splitCodes(req.TagCodes),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(result)
	}
}

func splitCodes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}
