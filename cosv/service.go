package cosv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/util"
)

// Actions accepted by the commit operations.
const (
	ActionAuto   = "AUTO"
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
)

// Per-item batch statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// RawFileStore persists uploaded COSV payloads.
type RawFileStore interface {
	// Find returns nil when no file carries the uuid.
	Find(ctx context.Context, uuid string) (*model.RawCosvFile, error)
	Insert(ctx context.Context, file *model.RawCosvFile) error
	SetStatus(ctx context.Context, uuid, status, message string) error
}

// EntryPatch carries the field-level updates applied to an existing entry.
type EntryPatch struct {
	Summary          string
	Details          string
	SeverityNum      float64
	Language         string
	CategoryCode     string
	Aliases          []string
	Affected         []model.Affected
	DatabaseSpecific map[string]interface{}
	RawFileUUID      string
}

// CatalogStore persists vulnerability catalog entries. Identifier and alias
// uniqueness are store-level invariants; a violating write between concurrent
// callers must come back as a *ConflictError.
type CatalogStore interface {
	// FindByIdentifier returns the non-deleted entry with the identifier,
	// or nil.
	FindByIdentifier(ctx context.Context, identifier string) (*model.VulnerabilityEntry, error)
	FindByUUID(ctx context.Context, uuid string) (*model.VulnerabilityEntry, error)
	Create(ctx context.Context, entry *model.VulnerabilityEntry) (*model.VulnerabilityEntry, error)
	Update(ctx context.Context, uuid string, patch EntryPatch) (*model.VulnerabilityEntry, error)
	// Delete removes the entry. Used to roll back a create whose follow-up
	// alias or tag writes failed.
	Delete(ctx context.Context, uuid string) error
	AddTagLink(ctx context.Context, entryUUID, tagCode string) error
	// BindAliases records alias ownership for the entry. With reassign set,
	// aliases bound to other entries are released and rebound.
	BindAliases(ctx context.Context, entryUUID string, aliases []string, reassign bool) error
}

// OrganizationStore is the narrow organization collaborator: existence and
// admin membership checks only.
type OrganizationStore interface {
	Find(ctx context.Context, uuid string) (*model.Organization, error)
	IsAdmin(ctx context.Context, orgUUID, userUUID string) (bool, error)
}

// Service is the ingestion orchestrator. All I/O goes through the
// collaborator interfaces; parsing and resolution are pure computation.
type Service struct {
	Raw        RawFileStore
	Catalog    CatalogStore
	Aliases    AliasIndex
	Categories CategoryDictionary
	Tags       TagDictionary
	Orgs       OrganizationStore
	Log        *zap.SugaredLogger
}

// NewService wires the orchestrator with its collaborators.
func NewService(raw RawFileStore, catalog CatalogStore, aliases AliasIndex, cats CategoryDictionary, tags TagDictionary, orgs OrganizationStore, log *zap.SugaredLogger) *Service {
	return &Service{Raw: raw, Catalog: catalog, Aliases: aliases, Categories: cats, Tags: tags, Orgs: orgs, Log: log}
}

// UploadParams describes one raw file upload.
type UploadParams struct {
	UserUUID string
	OrgUUID  string
	FileName string
	MimeType string
	Content  []byte
}

// Upload stores a raw COSV payload with status UPLOADED and returns its uuid.
// Uploading on behalf of an organization requires admin membership.
func (s *Service) Upload(ctx context.Context, p UploadParams) (string, error) {
	if len(p.Content) == 0 {
		return "", &ValidationError{Msg: "file must not be empty"}
	}
	if p.OrgUUID != "" {
		if err := s.requireOrgAdmin(ctx, p.OrgUUID, p.UserUUID); err != nil {
			return "", err
		}
	}

	checksum := sha256.Sum256(p.Content)
	now := time.Now().UTC()
	file := &model.RawCosvFile{
		UUID:           uuid.NewString(),
		ObjType:        "RawCosvFile",
		FileName:       p.FileName,
		UserUUID:       p.UserUUID,
		OrgUUID:        p.OrgUUID,
		Status:         model.FileStatusUploaded,
		ContentLength:  int64(len(p.Content)),
		Content:        p.Content,
		ChecksumSha256: hex.EncodeToString(checksum[:]),
		MimeType:       p.MimeType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Raw.Insert(ctx, file); err != nil {
		return "", fmt.Errorf("failed to save raw file: %w", err)
	}
	return file.UUID, nil
}

// ParseParams carries the request-level inputs of a preview.
type ParseParams struct {
	RawFileUUID  string
	Language     string
	CategoryCode string
	TagCodes     []string
	Mode         string // AUTO|CREATE|UPDATE
}

// PreviewReport is the outcome of a single-record preview.
type PreviewReport struct {
	RawFileUUID           string            `json:"raw_file_uuid"`
	SuggestedAction       string            `json:"suggested_action"`
	TargetVulnUUID        string            `json:"target_vulnerability_uuid,omitempty"`
	Conflicts             []Conflict        `json:"conflicts"`
	AggregatedSeverityNum *float64          `json:"aggregated_severity_num"`
	Preview               *model.CosvRecord `json:"preview"`
}

// Parse runs the pipeline read-only for a single record: identifier
// resolution, alias and metadata checks, severity aggregation. No mutation;
// repeat calls yield identical reports.
func (s *Service) Parse(ctx context.Context, p ParseParams) (*PreviewReport, error) {
	rf, err := s.requireRawFile(ctx, p.RawFileUUID)
	if err != nil {
		return nil, err
	}
	rec, err := DecodeOne(rf.Content)
	if err != nil {
		return nil, err
	}

	targetUUID, err := s.resolveTarget(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	suggested := ActionCreate
	if targetUUID != "" {
		suggested = ActionUpdate
	}

	conflicts := []Conflict{}
	aliasConflicts, err := DetectAliasConflicts(ctx, s.Aliases, rec.Aliases, targetUUID)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, aliasConflicts...)

	meta, err := ResolveMetadata(ctx, s.Categories, s.Tags, rec, Defaults{
		Language:     p.Language,
		CategoryCode: p.CategoryCode,
		TagCodes:     p.TagCodes,
	})
	if err != nil {
		return nil, err
	}
	metaConflicts, err := CheckMetadata(ctx, s.Categories, s.Tags, meta, p.Language)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, metaConflicts...)

	return &PreviewReport{
		RawFileUUID:           p.RawFileUUID,
		SuggestedAction:       suggested,
		TargetVulnUUID:        targetUUID,
		Conflicts:             conflicts,
		AggregatedSeverityNum: AggregateSeverity(rec.Severity),
		Preview:               rec,
	}, nil
}

// BatchPreviewItem is one record's entry in a batch preview report.
type BatchPreviewItem struct {
	Index                 int        `json:"index"`
	ID                    string     `json:"id,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	SuggestedAction       string     `json:"suggested_action"`
	TargetVulnUUID        string     `json:"target_vulnerability_uuid,omitempty"`
	Conflicts             []Conflict `json:"conflicts"`
	AggregatedSeverityNum *float64   `json:"aggregated_severity_num"`
}

// BatchPreviewReport is the outcome of a batch preview.
type BatchPreviewReport struct {
	RawFileUUID   string             `json:"raw_file_uuid"`
	Items         []BatchPreviewItem `json:"items"`
	Total         int                `json:"total"`
	ConflictCount int                `json:"conflict_count"`
}

// ParseBatch previews every record of the payload independently. A payload
// that yields no records aborts the call; a resolution issue for one record
// only affects that record's entry.
func (s *Service) ParseBatch(ctx context.Context, p ParseParams) (*BatchPreviewReport, error) {
	rf, err := s.requireRawFile(ctx, p.RawFileUUID)
	if err != nil {
		return nil, err
	}
	records, err := Decode(rf.Content)
	if err != nil {
		return nil, err
	}

	report := &BatchPreviewReport{RawFileUUID: p.RawFileUUID, Items: make([]BatchPreviewItem, 0, len(records))}
	for i := range records {
		rec := &records[i]
		targetUUID, err := s.resolveTarget(ctx, rec.ID)
		if err != nil {
			return nil, err
		}

		// Per-record resolution wins; the request-level mode only forces
		// UPDATE when no match is found.
		suggested := ActionCreate
		if targetUUID != "" || strings.EqualFold(p.Mode, ActionUpdate) {
			suggested = ActionUpdate
		}

		conflicts := []Conflict{}
		aliasConflicts, err := DetectAliasConflicts(ctx, s.Aliases, rec.Aliases, targetUUID)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, aliasConflicts...)

		meta, err := ResolveMetadata(ctx, s.Categories, s.Tags, rec, Defaults{
			Language:     p.Language,
			CategoryCode: p.CategoryCode,
			TagCodes:     p.TagCodes,
		})
		if err != nil {
			return nil, err
		}
		metaConflicts, err := CheckMetadata(ctx, s.Categories, s.Tags, meta, p.Language)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, metaConflicts...)

		report.Items = append(report.Items, BatchPreviewItem{
			Index:                 i,
			ID:                    rec.ID,
			Summary:               rec.Summary,
			SuggestedAction:       suggested,
			TargetVulnUUID:        targetUUID,
			Conflicts:             conflicts,
			AggregatedSeverityNum: AggregateSeverity(rec.Severity),
		})
		report.ConflictCount += len(conflicts)
	}
	report.Total = len(report.Items)
	return report, nil
}

// IngestParams carries the inputs of a commit.
type IngestParams struct {
	RawFileUUID    string
	UserUUID       string
	Action         string // AUTO|CREATE|UPDATE
	TargetVulnUUID string
	ConflictPolicy string // FAIL|SKIP_ALIAS|OVERWRITE
	OrgUUID        string
	Language       string
	CategoryCode   string
	TagCodes       []string
}

// IngestOutcome reports the committed entry and the action taken.
type IngestOutcome struct {
	Action string                    `json:"action"`
	Entry  *model.VulnerabilityEntry `json:"vulnerability"`
}

// Ingest commits a single record atomically: every validation and conflict
// check runs before the first write, so a failing call persists nothing and
// leaves the raw file untouched. On success the raw file is marked PROCESSED.
func (s *Service) Ingest(ctx context.Context, p IngestParams) (*IngestOutcome, error) {
	rf, err := s.requireRawFile(ctx, p.RawFileUUID)
	if err != nil {
		return nil, err
	}
	orgUUID, err := s.resolveOrg(ctx, p.OrgUUID, rf.OrgUUID, p.UserUUID)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeOne(rf.Content)
	if err != nil {
		return nil, err
	}

	outcome, err := s.commitRecord(ctx, rec, commitParams{
		action:         p.Action,
		targetVulnUUID: p.TargetVulnUUID,
		conflictPolicy: p.ConflictPolicy,
		userUUID:       p.UserUUID,
		orgUUID:        orgUUID,
		rawFileUUID:    p.RawFileUUID,
		defaults: Defaults{
			Language:     p.Language,
			CategoryCode: p.CategoryCode,
			TagCodes:     p.TagCodes,
		},
	})
	if err != nil {
		return nil, err
	}

	message := "created"
	if outcome.Action == ActionUpdate {
		message = "updated"
	}
	if err := s.Raw.SetStatus(ctx, p.RawFileUUID, model.FileStatusProcessed, message); err != nil {
		return nil, fmt.Errorf("failed to update raw file status: %w", err)
	}
	return outcome, nil
}

// BatchItemResult is one record's outcome in a batch commit.
type BatchItemResult struct {
	Index      int    `json:"index"`
	Status     string `json:"status"`
	Action     string `json:"action,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BatchResult reports every input record's outcome; Success+Failed == Total.
type BatchResult struct {
	RawFileUUID string            `json:"raw_file_uuid"`
	Total       int               `json:"total"`
	Success     int               `json:"success"`
	Failed      int               `json:"failed"`
	Items       []BatchItemResult `json:"items"`
}

// IngestBatch commits every record of the payload sequentially in input
// order. Failures are caught per record and recorded as ERROR items; the call
// never aborts early because of one bad record, trading cross-record
// atomicity for throughput of a heterogeneous upload. Only a total parse
// failure aborts the whole call.
func (s *Service) IngestBatch(ctx context.Context, p IngestParams) (*BatchResult, error) {
	rf, err := s.requireRawFile(ctx, p.RawFileUUID)
	if err != nil {
		return nil, err
	}
	orgUUID, err := s.resolveOrg(ctx, p.OrgUUID, rf.OrgUUID, p.UserUUID)
	if err != nil {
		return nil, err
	}
	records, err := Decode(rf.Content)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{RawFileUUID: p.RawFileUUID, Items: make([]BatchItemResult, 0, len(records))}
	for i := range records {
		outcome, err := s.commitRecord(ctx, &records[i], commitParams{
			action:         defaultString(p.Action, ActionAuto),
			conflictPolicy: p.ConflictPolicy,
			userUUID:       p.UserUUID,
			orgUUID:        orgUUID,
			rawFileUUID:    p.RawFileUUID,
			defaults: Defaults{
				Language:     p.Language,
				CategoryCode: p.CategoryCode,
				TagCodes:     p.TagCodes,
			},
		})
		if err != nil {
			result.Items = append(result.Items, BatchItemResult{Index: i, Status: StatusError, Message: err.Error()})
			result.Failed++
			continue
		}
		result.Items = append(result.Items, BatchItemResult{
			Index:      i,
			Status:     StatusOK,
			Action:     outcome.Action,
			UUID:       outcome.Entry.UUID,
			Identifier: outcome.Entry.Identifier,
		})
		result.Success++
	}
	result.Total = len(result.Items)

	status := model.FileStatusProcessed
	if result.Success == 0 {
		status = model.FileStatusFailed
	}
	message := fmt.Sprintf("%d/%d records ingested", result.Success, result.Total)
	if err := s.Raw.SetStatus(ctx, p.RawFileUUID, status, message); err != nil {
		return nil, fmt.Errorf("failed to update raw file status: %w", err)
	}
	return result, nil
}

type commitParams struct {
	action         string
	targetVulnUUID string
	conflictPolicy string
	userUUID       string
	orgUUID        string
	rawFileUUID    string
	defaults       Defaults
}

// commitRecord validates one record completely and then performs exactly one
// catalog mutation: create or update.
func (s *Service) commitRecord(ctx context.Context, rec *model.CosvRecord, p commitParams) (*IngestOutcome, error) {
	summary := strings.TrimSpace(rec.Summary)
	if summary == "" {
		return nil, &ValidationError{Msg: "summary missing"}
	}
	details := strings.TrimSpace(rec.Details)

	sev := AggregateSeverity(rec.Severity)
	if sev == nil {
		return nil, &ValidationError{Msg: "severity missing: provide severity.score_num or a parsable score"}
	}

	// Resolve the target entry and the action.
	action := strings.ToUpper(defaultString(p.action, ActionAuto))
	targetUUID := p.targetVulnUUID
	if targetUUID == "" {
		resolved, err := s.resolveTarget(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		targetUUID = resolved
	}
	if action == ActionAuto {
		if targetUUID != "" {
			action = ActionUpdate
		} else {
			action = ActionCreate
		}
	}

	// Alias conflict policy.
	policy := strings.ToUpper(defaultString(p.conflictPolicy, PolicyFail))
	aliases := rec.Aliases
	switch policy {
	case PolicySkipAlias:
		filtered, err := filterAliases(ctx, s.Aliases, aliases, targetUUID)
		if err != nil {
			return nil, err
		}
		aliases = filtered
	case PolicyOverwrite:
		// Explicit reassignment: conflicts are logged and rebound below.
		conflicts, err := DetectAliasConflicts(ctx, s.Aliases, aliases, targetUUID)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			s.Log.Warnw("alias reassigned by OVERWRITE policy",
				"alias", c.Alias, "previous_owner", c.VulnerabilityUUID)
		}
	default:
		conflicts, err := DetectAliasConflicts(ctx, s.Aliases, aliases, targetUUID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			c := conflicts[0]
			return nil, &ConflictError{Alias: c.Alias, BoundTo: c.VulnerabilityUUID}
		}
	}

	meta, err := ResolveMetadata(ctx, s.Categories, s.Tags, rec, p.defaults)
	if err != nil {
		return nil, err
	}
	if meta.Language == "" {
		return nil, &ValidationError{Msg: "language missing: specify it in the request"}
	}
	if err := RequireMetadata(ctx, s.Categories, s.Tags, meta); err != nil {
		return nil, err
	}

	if err := validateRangesEvents(rec); err != nil {
		return nil, err
	}
	util.MaterializeAffected(rec.Affected)

	dbSpecific := mergeDatabaseSpecific(rec.DatabaseSpecific, util.SeverityMetadata(rec.Severity, *sev))

	if action == ActionUpdate {
		if targetUUID == "" {
			return nil, &ValidationError{Msg: "no update target resolved"}
		}
		updated, err := s.Catalog.Update(ctx, targetUUID, EntryPatch{
			Summary:          summary,
			Details:          details,
			SeverityNum:      *sev,
			Language:         meta.Language,
			CategoryCode:     meta.CategoryCode,
			Aliases:          aliases,
			Affected:         rec.Affected,
			DatabaseSpecific: dbSpecific,
			RawFileUUID:      p.rawFileUUID,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Catalog.BindAliases(ctx, updated.UUID, aliases, policy == PolicyOverwrite); err != nil {
			return nil, err
		}
		for _, t := range meta.TagCodes {
			if err := s.Catalog.AddTagLink(ctx, updated.UUID, t); err != nil {
				return nil, err
			}
		}
		return &IngestOutcome{Action: ActionUpdate, Entry: updated}, nil
	}

	now := time.Now().UTC()
	entry := &model.VulnerabilityEntry{
		UUID:             uuid.NewString(),
		ObjType:          "VulnerabilityEntry",
		Identifier:       strings.TrimSpace(rec.ID),
		Summary:          summary,
		Details:          details,
		SeverityNum:      *sev,
		Language:         meta.Language,
		CategoryCode:     meta.CategoryCode,
		Aliases:          aliases,
		Affected:         rec.Affected,
		DatabaseSpecific: dbSpecific,
		UserUUID:         p.userUUID,
		OrgUUID:          p.orgUUID,
		RawFileUUID:      p.rawFileUUID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.Catalog.Create(ctx, entry)
	if err != nil {
		return nil, err
	}
	// An alias claimed by a concurrent writer between the pre-check and the
	// bind must not leave the created entry behind.
	if err := s.Catalog.BindAliases(ctx, created.UUID, aliases, policy == PolicyOverwrite); err != nil {
		s.rollbackCreate(ctx, created.UUID)
		return nil, err
	}
	for _, t := range meta.TagCodes {
		if err := s.Catalog.AddTagLink(ctx, created.UUID, t); err != nil {
			s.rollbackCreate(ctx, created.UUID)
			return nil, err
		}
	}
	return &IngestOutcome{Action: ActionCreate, Entry: created}, nil
}

// rollbackCreate removes a just-created entry so a failed commit persists
// nothing.
func (s *Service) rollbackCreate(ctx context.Context, uuid string) {
	if err := s.Catalog.Delete(ctx, uuid); err != nil {
		s.Log.Errorw("failed to roll back created entry", "uuid", uuid, "error", err)
	}
}

// validateRangesEvents enforces the structural rule that every ranges.events
// element is a single-key object. Checked before any mutation.
func validateRangesEvents(rec *model.CosvRecord) error {
	for _, a := range rec.Affected {
		for _, r := range a.Ranges {
			for _, event := range r.Events {
				if len(event) != 1 {
					return &ValidationError{Msg: "ranges.events elements must be single-key objects"}
				}
			}
		}
	}
	return nil
}

func (s *Service) requireRawFile(ctx context.Context, rawFileUUID string) (*model.RawCosvFile, error) {
	rf, err := s.Raw.Find(ctx, rawFileUUID)
	if err != nil {
		return nil, err
	}
	if rf == nil {
		return nil, &NotFoundError{What: "raw file", UUID: rawFileUUID}
	}
	return rf, nil
}

// resolveTarget looks up the non-deleted catalog entry sharing the record's
// identifier. Returns "" when the identifier is blank or unmatched.
func (s *Service) resolveTarget(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", nil
	}
	existing, err := s.Catalog.FindByIdentifier(ctx, identifier)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", nil
	}
	return existing.UUID, nil
}

// resolveOrg picks the explicit request organization (requiring admin
// membership) or falls back to the raw file's organization.
func (s *Service) resolveOrg(ctx context.Context, requested, fromFile, userUUID string) (string, error) {
	if requested == "" {
		return fromFile, nil
	}
	if err := s.requireOrgAdmin(ctx, requested, userUUID); err != nil {
		return "", err
	}
	return requested, nil
}

func (s *Service) requireOrgAdmin(ctx context.Context, orgUUID, userUUID string) error {
	org, err := s.Orgs.Find(ctx, orgUUID)
	if err != nil {
		return err
	}
	if org == nil {
		return &NotFoundError{What: "organization", UUID: orgUUID}
	}
	admin, err := s.Orgs.IsAdmin(ctx, orgUUID, userUUID)
	if err != nil {
		return err
	}
	if !admin {
		return &PermissionError{Msg: "only organization admins may import on behalf of an organization"}
	}
	return nil
}

func mergeDatabaseSpecific(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
