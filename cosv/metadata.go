package cosv

import (
	"context"
	"strings"

	"github.com/cosv-horizon/cosv-backend/model"
)

// CategoryDictionary is the catalog's category lookup collaborator.
type CategoryDictionary interface {
	// Exists reports whether a category with the given code is known.
	Exists(ctx context.Context, code string) (bool, error)
	// CodeForName resolves a human name (or code) to the category code,
	// returning "" when unknown.
	CodeForName(ctx context.Context, name string) (string, error)
}

// TagDictionary is the catalog's tag lookup collaborator.
type TagDictionary interface {
	Exists(ctx context.Context, code string) (bool, error)
	CodeForName(ctx context.Context, name string) (string, error)
}

// Defaults carries the request-level metadata defaults for one invocation.
type Defaults struct {
	Language     string
	CategoryCode string
	TagCodes     []string
}

// ResolvedMetadata is the effective category, tags and language for one
// record after the override chain has been applied.
type ResolvedMetadata struct {
	CategoryCode string
	TagCodes     []string
	Language     string
}

// NormalizeCode trims and upper-cases a dictionary code. Blank input yields "".
func NormalizeCode(code string) string {
	t := strings.TrimSpace(code)
	if t == "" {
		return ""
	}
	return strings.ToUpper(t)
}

// ResolveMetadata determines the effective category code, tag codes and
// language for a record. Precedence per field: embedded per-record code
// override, embedded name override resolved through the dictionary, then the
// request-level default. Tags operate on the whole set per tier and are never
// merged across tiers. The result is not yet validated against dictionaries.
func ResolveMetadata(ctx context.Context, cats CategoryDictionary, tags TagDictionary, rec *model.CosvRecord, d Defaults) (ResolvedMetadata, error) {
	category := perRecordCategoryCode(rec)
	if category == "" {
		byName, err := perRecordCategoryByName(ctx, cats, rec)
		if err != nil {
			return ResolvedMetadata{}, err
		}
		category = byName
	}
	if category == "" {
		category = NormalizeCode(d.CategoryCode)
	}

	tagCodes := perRecordTagCodes(rec)
	if len(tagCodes) == 0 {
		byNames, err := perRecordTagsByName(ctx, tags, rec)
		if err != nil {
			return ResolvedMetadata{}, err
		}
		tagCodes = byNames
	}
	if len(tagCodes) == 0 {
		for _, t := range d.TagCodes {
			if code := NormalizeCode(t); code != "" {
				tagCodes = append(tagCodes, code)
			}
		}
	}

	return ResolvedMetadata{
		CategoryCode: category,
		TagCodes:     tagCodes,
		Language:     ResolveLanguage(rec, d.Language),
	}, nil
}

// ResolveLanguage picks the request-level language when given, else the first
// affected package language, else a language inferred from the first affected
// package ecosystem. Returns "" when nothing applies.
func ResolveLanguage(rec *model.CosvRecord, requested string) string {
	if lang := model.NormalizeLanguage(requested); lang != "" {
		return lang
	}
	if rec == nil {
		return ""
	}
	for _, a := range rec.Affected {
		if a.Package != nil && strings.TrimSpace(a.Package.Language) != "" {
			return model.NormalizeLanguage(a.Package.Language)
		}
	}
	for _, a := range rec.Affected {
		if a.Package != nil && a.Package.Ecosystem != "" {
			if lang := model.LanguageForEcosystem(a.Package.Ecosystem); lang != "" {
				return lang
			}
		}
	}
	return ""
}

// CheckMetadata validates resolved metadata against the dictionaries and the
// language enumeration, accumulating findings instead of failing. Used by the
// preview paths.
func CheckMetadata(ctx context.Context, cats CategoryDictionary, tags TagDictionary, meta ResolvedMetadata, requestedLanguage string) ([]Conflict, error) {
	var conflicts []Conflict
	if meta.CategoryCode != "" {
		known, err := cats.Exists(ctx, meta.CategoryCode)
		if err != nil {
			return nil, err
		}
		if !known {
			conflicts = append(conflicts, categoryNotFound(meta.CategoryCode))
		}
	}
	for _, t := range meta.TagCodes {
		if t == "" {
			continue
		}
		known, err := tags.Exists(ctx, t)
		if err != nil {
			return nil, err
		}
		if !known {
			conflicts = append(conflicts, tagNotFound(t))
		}
	}
	if requested := strings.TrimSpace(requestedLanguage); requested != "" && !model.IsValidLanguage(requested) {
		conflicts = append(conflicts, languageInvalid(requested))
	}
	return conflicts, nil
}

// RequireMetadata validates resolved metadata for a commit. Any unknown value
// is a hard DictionaryError that aborts the record.
func RequireMetadata(ctx context.Context, cats CategoryDictionary, tags TagDictionary, meta ResolvedMetadata) error {
	if meta.CategoryCode != "" {
		known, err := cats.Exists(ctx, meta.CategoryCode)
		if err != nil {
			return err
		}
		if !known {
			return &DictionaryError{Kind: ConflictCategoryNotFound, Value: meta.CategoryCode}
		}
	}
	for _, t := range meta.TagCodes {
		if t == "" {
			continue
		}
		known, err := tags.Exists(ctx, t)
		if err != nil {
			return err
		}
		if !known {
			return &DictionaryError{Kind: ConflictTagNotFound, Value: t}
		}
	}
	if meta.Language != "" && !model.IsValidLanguage(meta.Language) {
		return &DictionaryError{Kind: ConflictLanguageInvalid, Value: meta.Language}
	}
	return nil
}

// perRecordCategoryCode reads the embedded category_code override.
func perRecordCategoryCode(rec *model.CosvRecord) string {
	v := databaseSpecificValue(rec, "category_code", "categoryCode")
	if v == nil {
		return ""
	}
	return NormalizeCode(stringValue(v))
}

// perRecordCategoryByName resolves the embedded category_name override
// through the category dictionary.
func perRecordCategoryByName(ctx context.Context, cats CategoryDictionary, rec *model.CosvRecord) (string, error) {
	v := databaseSpecificValue(rec, "category_name", "categoryName")
	if v == nil {
		return "", nil
	}
	name := strings.TrimSpace(stringValue(v))
	if name == "" {
		return "", nil
	}
	code, err := cats.CodeForName(ctx, name)
	if err != nil {
		return "", err
	}
	return NormalizeCode(code), nil
}

// perRecordTagCodes reads the embedded tag_codes override, accepting either a
// JSON list or a comma separated string.
func perRecordTagCodes(rec *model.CosvRecord) []string {
	v := databaseSpecificValue(rec, "tag_codes", "tagCodes")
	if v == nil {
		return nil
	}
	var out []string
	for _, raw := range stringList(v) {
		if code := NormalizeCode(raw); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// perRecordTagsByName resolves the embedded tag_names override through the
// tag dictionary; names that resolve to nothing are dropped.
func perRecordTagsByName(ctx context.Context, tags TagDictionary, rec *model.CosvRecord) ([]string, error) {
	v := databaseSpecificValue(rec, "tag_names", "tagNames")
	if v == nil {
		return nil, nil
	}
	var out []string
	for _, raw := range stringList(v) {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		code, err := tags.CodeForName(ctx, name)
		if err != nil {
			return nil, err
		}
		if code != "" {
			out = append(out, NormalizeCode(code))
		}
	}
	return out, nil
}

func databaseSpecificValue(rec *model.CosvRecord, keys ...string) interface{} {
	if rec == nil || rec.DatabaseSpecific == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := rec.DatabaseSpecific[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// stringList accepts a JSON array of values or a comma separated string.
func stringList(v interface{}) []string {
	switch vv := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		return strings.Split(vv, ",")
	default:
		return nil
	}
}
