// Package store - ArangoDB-backed persistence for the COSV catalog
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"
	"go.uber.org/zap"

	"github.com/cosv-horizon/cosv-backend/cosv"
	"github.com/cosv-horizon/cosv-backend/database"
	"github.com/cosv-horizon/cosv-backend/model"
)

// Stores bundles every ArangoDB-backed collaborator of the ingestion service.
type Stores struct {
	RawFiles   *RawFileStore
	Catalog    *CatalogStore
	Aliases    *AliasStore
	Categories *CategoryStore
	Tags       *TagStore
	Orgs       *OrganizationStore
}

// NewStores wires the stores onto one database connection.
func NewStores(db database.DBConnection, log *zap.SugaredLogger) *Stores {
	aliases := &AliasStore{db: db}
	return &Stores{
		RawFiles:   &RawFileStore{db: db},
		Catalog:    &CatalogStore{db: db, log: log, aliases: aliases},
		Aliases:    aliases,
		Categories: &CategoryStore{db: db},
		Tags:       &TagStore{db: db},
		Orgs:       &OrganizationStore{db: db},
	}
}

func queryOne(ctx context.Context, db arangodb.Database, query string, bindVars map[string]interface{}, out interface{}) (bool, error) {
	cursor, err := db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return false, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return false, nil
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return false, err
	}
	return true, nil
}

// RawFileStore persists uploaded COSV payloads in the raw_cosv_file collection.
type RawFileStore struct {
	db database.DBConnection
}

// Find returns the raw file with the uuid, or nil when absent.
func (s *RawFileStore) Find(ctx context.Context, uuid string) (*model.RawCosvFile, error) {
	query := `
		FOR f IN raw_cosv_file
			FILTER f.uuid == @uuid
			LIMIT 1
			RETURN f
	`
	var file model.RawCosvFile
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"uuid": uuid}, &file)
	if err != nil || !found {
		return nil, err
	}
	return &file, nil
}

// Insert stores a new raw file document.
func (s *RawFileStore) Insert(ctx context.Context, file *model.RawCosvFile) error {
	_, err := s.db.Collections["raw_cosv_file"].CreateDocument(ctx, file)
	return err
}

// SetStatus updates the processing status and message of a raw file.
func (s *RawFileStore) SetStatus(ctx context.Context, uuid, status, message string) error {
	query := `
		FOR f IN raw_cosv_file
			FILTER f.uuid == @uuid
			UPDATE f WITH { status: @status, status_message: @message, updated_at: @now } IN raw_cosv_file
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{
		"uuid":    uuid,
		"status":  status,
		"message": message,
		"now":     time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	return cursor.Close()
}

// List returns raw files, newest first, optionally filtered by user.
func (s *RawFileStore) List(ctx context.Context, userUUID string, limit int) ([]model.RawCosvFile, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		FOR f IN raw_cosv_file
			FILTER @user == "" || f.user_uuid == @user
			SORT f.created_at DESC
			LIMIT @limit
			RETURN UNSET(f, "content")
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{
		"user":  userUUID,
		"limit": limit,
	}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	files := []model.RawCosvFile{}
	for cursor.HasMore() {
		var f model.RawCosvFile
		if _, err := cursor.ReadDocument(ctx, &f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// CatalogStore persists vulnerability entries and their tag edges.
type CatalogStore struct {
	db      database.DBConnection
	log     *zap.SugaredLogger
	aliases *AliasStore
}

// FindByIdentifier returns the non-deleted entry carrying the identifier, or nil.
func (s *CatalogStore) FindByIdentifier(ctx context.Context, identifier string) (*model.VulnerabilityEntry, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.identifier == @identifier AND v.deleted != true
			LIMIT 1
			RETURN v
	`
	var entry model.VulnerabilityEntry
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"identifier": identifier}, &entry)
	if err != nil || !found {
		return nil, err
	}
	return &entry, nil
}

// FindByUUID returns the entry with the uuid, or nil.
func (s *CatalogStore) FindByUUID(ctx context.Context, uuid string) (*model.VulnerabilityEntry, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.uuid == @uuid
			LIMIT 1
			RETURN v
	`
	var entry model.VulnerabilityEntry
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"uuid": uuid}, &entry)
	if err != nil || !found {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a new entry. The unique identifier index turns a concurrent
// duplicate insert into a ConflictError.
func (s *CatalogStore) Create(ctx context.Context, entry *model.VulnerabilityEntry) (*model.VulnerabilityEntry, error) {
	meta, err := s.db.Collections["vulnerability"].CreateDocument(ctx, entry)
	if err != nil {
		if shared.IsConflict(err) {
			s.log.Warnw("identifier collision on create", "identifier", entry.Identifier)
			return nil, &cosv.ConflictError{Msg: fmt.Sprintf("identifier %q was claimed by a concurrent import", entry.Identifier)}
		}
		return nil, err
	}
	entry.Key = meta.Key
	return entry, nil
}

// Update applies the patch to the entry with the uuid and returns the new document.
func (s *CatalogStore) Update(ctx context.Context, uuid string, patch cosv.EntryPatch) (*model.VulnerabilityEntry, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.uuid == @uuid
			UPDATE v WITH {
				summary: @summary,
				details: @details,
				severity_num: @severityNum,
				language: @language,
				category_code: @categoryCode,
				aliases: @aliases,
				affected: @affected,
				database_specific: @databaseSpecific,
				raw_file_uuid: @rawFileUUID,
				updated_at: @now
			} IN vulnerability
			RETURN NEW
	`
	var entry model.VulnerabilityEntry
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{
		"uuid":             uuid,
		"summary":          patch.Summary,
		"details":          patch.Details,
		"severityNum":      patch.SeverityNum,
		"language":         patch.Language,
		"categoryCode":     patch.CategoryCode,
		"aliases":          patch.Aliases,
		"affected":         patch.Affected,
		"databaseSpecific": patch.DatabaseSpecific,
		"rawFileUUID":      patch.RawFileUUID,
		"now":              time.Now().UTC(),
	}, &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &cosv.NotFoundError{What: "vulnerability", UUID: uuid}
	}
	return &entry, nil
}

// Delete removes the entry document. Used to roll back a create whose
// follow-up alias or tag writes failed.
func (s *CatalogStore) Delete(ctx context.Context, uuid string) error {
	query := `
		FOR v IN vulnerability
			FILTER v.uuid == @uuid
			REMOVE v IN vulnerability
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{"uuid": uuid}})
	if err != nil {
		return err
	}
	return cursor.Close()
}

// AddTagLink upserts a vuln2tag edge between the entry and the tag.
func (s *CatalogStore) AddTagLink(ctx context.Context, entryUUID, tagCode string) error {
	query := `
		LET vuln = FIRST(FOR v IN vulnerability FILTER v.uuid == @uuid LIMIT 1 RETURN v)
		LET tag = FIRST(FOR t IN tag FILTER t.code == @code LIMIT 1 RETURN t)
		FILTER vuln != null AND tag != null
		UPSERT { _from: vuln._id, _to: tag._id }
			INSERT { _from: vuln._id, _to: tag._id }
			UPDATE {} IN vuln2tag
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{
		"uuid": entryUUID,
		"code": tagCode,
	}})
	if err != nil {
		return err
	}
	return cursor.Close()
}

// BindAliases records alias ownership for the entry. Without reassign, an
// alias held by another entry surfaces as a ConflictError from the unique
// alias index. With reassign, existing bindings are moved to the entry.
func (s *CatalogStore) BindAliases(ctx context.Context, entryUUID string, aliases []string, reassign bool) error {
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}

		if reassign {
			query := `
				UPSERT { alias: @alias }
					INSERT { alias: @alias, vulnerability_uuid: @uuid }
					UPDATE { vulnerability_uuid: @uuid } IN alias
			`
			cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{
				"alias": alias,
				"uuid":  entryUUID,
			}})
			if err != nil {
				return err
			}
			cursor.Close()
			continue
		}

		owner, err := s.aliases.FindOwner(ctx, alias)
		if err != nil {
			return err
		}
		if owner == entryUUID {
			continue
		}
		_, err = s.db.Collections["alias"].CreateDocument(ctx, model.AliasBinding{
			Alias:             alias,
			VulnerabilityUUID: entryUUID,
		})
		if err != nil {
			if shared.IsConflict(err) {
				return &cosv.ConflictError{Alias: alias, BoundTo: owner}
			}
			return err
		}
	}
	return nil
}

// ListParams filters catalog listings.
type ListParams struct {
	Language       string
	CategoryCode   string
	SeverityRating string
	Limit          int
}

// List returns non-deleted entries ordered by severity, highest first.
func (s *CatalogStore) List(ctx context.Context, p ListParams) ([]model.VulnerabilityEntry, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	query := `
		FOR v IN vulnerability
			FILTER v.deleted != true
			FILTER @language == "" || v.language == @language
			FILTER @category == "" || v.category_code == @category
			FILTER @rating == "" || v.database_specific.severity_rating == @rating
			SORT v.severity_num DESC
			LIMIT @limit
			RETURN v
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{
		"language": p.Language,
		"category": p.CategoryCode,
		"rating":   p.SeverityRating,
		"limit":    p.Limit,
	}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	entries := []model.VulnerabilityEntry{}
	for cursor.HasMore() {
		var e model.VulnerabilityEntry
		if _, err := cursor.ReadDocument(ctx, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// TagsFor returns the tag codes linked to the entry via vuln2tag edges.
func (s *CatalogStore) TagsFor(ctx context.Context, entryUUID string) ([]string, error) {
	query := `
		LET vuln = FIRST(FOR v IN vulnerability FILTER v.uuid == @uuid LIMIT 1 RETURN v)
		FILTER vuln != null
		FOR tag IN OUTBOUND vuln._id vuln2tag
			RETURN tag.code
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: map[string]interface{}{"uuid": entryUUID}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	codes := []string{}
	for cursor.HasMore() {
		var code string
		if _, err := cursor.ReadDocument(ctx, &code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// AliasStore resolves alias ownership from the alias collection.
type AliasStore struct {
	db database.DBConnection
}

// FindOwner returns the uuid of the entry bound to the alias, or "".
func (s *AliasStore) FindOwner(ctx context.Context, alias string) (string, error) {
	query := `
		FOR a IN alias
			FILTER a.alias == @alias
			LIMIT 1
			RETURN a.vulnerability_uuid
	`
	var owner string
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"alias": alias}, &owner)
	if err != nil || !found {
		return "", err
	}
	return owner, nil
}

// CategoryStore is the category dictionary.
type CategoryStore struct {
	db database.DBConnection
}

// Exists reports whether a category with the code is defined.
func (s *CategoryStore) Exists(ctx context.Context, code string) (bool, error) {
	query := `
		FOR c IN category
			FILTER c.code == @code
			LIMIT 1
			RETURN c.code
	`
	var out string
	return queryOne(ctx, s.db.Database, query, map[string]interface{}{"code": code}, &out)
}

// CodeForName returns the code of the category with the display name, or "".
func (s *CategoryStore) CodeForName(ctx context.Context, name string) (string, error) {
	query := `
		FOR c IN category
			FILTER c.name == @name
			LIMIT 1
			RETURN c.code
	`
	var code string
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"name": name}, &code)
	if err != nil || !found {
		return "", err
	}
	return code, nil
}

// List returns every category ordered by code.
func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	query := `
		FOR c IN category
			SORT c.code ASC
			RETURN c
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	categories := []model.Category{}
	for cursor.HasMore() {
		var c model.Category
		if _, err := cursor.ReadDocument(ctx, &c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// TagStore is the tag dictionary.
type TagStore struct {
	db database.DBConnection
}

// Exists reports whether a tag with the code is defined.
func (s *TagStore) Exists(ctx context.Context, code string) (bool, error) {
	query := `
		FOR t IN tag
			FILTER t.code == @code
			LIMIT 1
			RETURN t.code
	`
	var out string
	return queryOne(ctx, s.db.Database, query, map[string]interface{}{"code": code}, &out)
}

// CodeForName returns the code of the tag with the display name, or "".
func (s *TagStore) CodeForName(ctx context.Context, name string) (string, error) {
	query := `
		FOR t IN tag
			FILTER t.name == @name
			LIMIT 1
			RETURN t.code
	`
	var code string
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"name": name}, &code)
	if err != nil || !found {
		return "", err
	}
	return code, nil
}

// List returns every tag ordered by code.
func (s *TagStore) List(ctx context.Context) ([]model.Tag, error) {
	query := `
		FOR t IN tag
			SORT t.code ASC
			RETURN t
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	tags := []model.Tag{}
	for cursor.HasMore() {
		var t model.Tag
		if _, err := cursor.ReadDocument(ctx, &t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// OrganizationStore answers organization existence and membership checks.
type OrganizationStore struct {
	db database.DBConnection
}

// Find returns the organization with the uuid, or nil.
func (s *OrganizationStore) Find(ctx context.Context, uuid string) (*model.Organization, error) {
	query := `
		FOR o IN organization
			FILTER o.uuid == @uuid
			LIMIT 1
			RETURN o
	`
	var org model.Organization
	found, err := queryOne(ctx, s.db.Database, query, map[string]interface{}{"uuid": uuid}, &org)
	if err != nil || !found {
		return nil, err
	}
	return &org, nil
}

// IsAdmin reports whether the user holds the ADMIN role in the organization.
func (s *OrganizationStore) IsAdmin(ctx context.Context, orgUUID, userUUID string) (bool, error) {
	query := `
		FOR m IN org_member
			FILTER m.org_uuid == @org AND m.user_uuid == @user AND m.role == "ADMIN"
			LIMIT 1
			RETURN m.user_uuid
	`
	var out string
	return queryOne(ctx, s.db.Database, query, map[string]interface{}{"org": orgUUID, "user": userUUID}, &out)
}
