package cosv

import (
	"context"
	"strings"
)

// ConflictType enumerates the closed set of conflict kinds a preview can
// report. Consumers switch over the type and handle every kind.
type ConflictType string

// Conflict kinds.
const (
	ConflictAlias            ConflictType = "ALIAS_CONFLICT"
	ConflictCategoryNotFound ConflictType = "CATEGORY_NOT_FOUND"
	ConflictTagNotFound      ConflictType = "TAG_NOT_FOUND"
	ConflictLanguageInvalid  ConflictType = "LANGUAGE_INVALID"
)

// Conflict is one finding of the preview pipeline. Exactly the fields of the
// reported kind are set; all others are omitted from the JSON form.
type Conflict struct {
	Type              ConflictType `json:"type"`
	Alias             string       `json:"alias,omitempty"`
	VulnerabilityUUID string       `json:"vulnerability_uuid,omitempty"`
	CategoryCode      string       `json:"category_code,omitempty"`
	TagCode           string       `json:"tag_code,omitempty"`
	Language          string       `json:"language,omitempty"`
}

func aliasConflict(alias, boundTo string) Conflict {
	return Conflict{Type: ConflictAlias, Alias: alias, VulnerabilityUUID: boundTo}
}

func categoryNotFound(code string) Conflict {
	return Conflict{Type: ConflictCategoryNotFound, CategoryCode: code}
}

func tagNotFound(code string) Conflict {
	return Conflict{Type: ConflictTagNotFound, TagCode: code}
}

func languageInvalid(value string) Conflict {
	return Conflict{Type: ConflictLanguageInvalid, Language: value}
}

// Alias conflict policies applied at commit time.
const (
	PolicyFail      = "FAIL"
	PolicySkipAlias = "SKIP_ALIAS"
	PolicyOverwrite = "OVERWRITE"
)

// AliasIndex resolves an alias to the UUID of the catalog entry that owns it.
type AliasIndex interface {
	// FindOwner returns the owning entry UUID, or "" when the alias is unbound.
	FindOwner(ctx context.Context, alias string) (string, error)
}

// DetectAliasConflicts cross-checks aliases against the catalog's alias index.
// An alias is free when unbound, fine when bound to targetUUID, and a conflict
// when bound to a different entry. Blank aliases are skipped.
func DetectAliasConflicts(ctx context.Context, index AliasIndex, aliases []string, targetUUID string) ([]Conflict, error) {
	var conflicts []Conflict
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		owner, err := index.FindOwner(ctx, a)
		if err != nil {
			return nil, err
		}
		if owner != "" && (targetUUID == "" || owner != targetUUID) {
			conflicts = append(conflicts, aliasConflict(a, owner))
		}
	}
	return conflicts, nil
}

// filterAliases returns the aliases that can be kept under SKIP_ALIAS: those
// unbound or already bound to targetUUID. Blank aliases are dropped.
func filterAliases(ctx context.Context, index AliasIndex, aliases []string, targetUUID string) ([]string, error) {
	var kept []string
	for _, a := range aliases {
		trimmed := strings.TrimSpace(a)
		if trimmed == "" {
			continue
		}
		owner, err := index.FindOwner(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		if owner == "" || (targetUUID != "" && owner == targetUUID) {
			kept = append(kept, a)
		}
	}
	return kept, nil
}
