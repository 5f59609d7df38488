package store

import (
	"context"

	"github.com/cosv-horizon/cosv-backend/model"
)

var defaultCategories = []model.Category{
	{Code: "MEMORY", Name: "Memory safety", Description: "Out-of-bounds access, use-after-free, double free"},
	{Code: "INJECTION", Name: "Injection", Description: "SQL, command, and template injection"},
	{Code: "AUTH", Name: "Authentication", Description: "Broken authentication and session handling"},
	{Code: "CRYPTO", Name: "Cryptography", Description: "Weak or misused cryptographic primitives"},
	{Code: "DESERIALIZATION", Name: "Deserialization", Description: "Unsafe deserialization of untrusted data"},
	{Code: "PATH_TRAVERSAL", Name: "Path traversal", Description: "File system access outside intended roots"},
	{Code: "DOS", Name: "Denial of service", Description: "Resource exhaustion and crash conditions"},
	{Code: "OTHER", Name: "Other", Description: "Uncategorized"},
}

var defaultTags = []model.Tag{
	{Code: "NETWORK", Name: "Network exploitable"},
	{Code: "LOCAL", Name: "Local access required"},
	{Code: "POC_AVAILABLE", Name: "Proof of concept available"},
	{Code: "EXPLOITED", Name: "Exploited in the wild"},
	{Code: "PATCHED", Name: "Patch available"},
}

// SeedDictionaries inserts the built-in categories and tags when they are
// missing. Existing codes are left untouched so operators can edit names.
func (s *Stores) SeedDictionaries(ctx context.Context) error {
	for _, c := range defaultCategories {
		exists, err := s.Categories.Exists(ctx, c.Code)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.Categories.db.Collections["category"].CreateDocument(ctx, c); err != nil {
			return err
		}
	}
	for _, t := range defaultTags {
		exists, err := s.Tags.Exists(ctx, t.Code)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.Tags.db.Collections["tag"].CreateDocument(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
