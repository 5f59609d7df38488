// Package model - catalog entities persisted in ArangoDB.
package model

import "time"

// File lifecycle status values for RawCosvFile.
const (
	FileStatusUploaded   = "UPLOADED"
	FileStatusProcessing = "PROCESSING"
	FileStatusProcessed  = "PROCESSED"
	FileStatusFailed     = "FAILED"
)

// RawCosvFile is the uploaded COSV payload. The content is kept verbatim;
// only the ingestion pipeline changes the status after a commit attempt.
type RawCosvFile struct {
	Key            string    `json:"_key,omitempty"`
	UUID           string    `json:"uuid"`
	ObjType        string    `json:"objtype,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	UserUUID       string    `json:"user_uuid,omitempty"`
	OrgUUID        string    `json:"org_uuid,omitempty"`
	Status         string    `json:"status"`
	StatusMessage  string    `json:"status_message,omitempty"`
	ContentLength  int64     `json:"content_length,omitempty"`
	Content        []byte    `json:"content,omitempty"`
	ChecksumSha256 string    `json:"checksum_sha256,omitempty"`
	MimeType       string    `json:"mime_type,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// VulnerabilityEntry is the persisted catalog entry for one vulnerability.
// The identifier is unique among non-deleted entries; aliases are unique
// across the whole catalog via the alias collection.
type VulnerabilityEntry struct {
	Key              string                 `json:"_key,omitempty"`
	UUID             string                 `json:"uuid"`
	ObjType          string                 `json:"objtype,omitempty"`
	Identifier       string                 `json:"identifier,omitempty"`
	Summary          string                 `json:"summary"`
	Details          string                 `json:"details,omitempty"`
	SeverityNum      float64                `json:"severity_num"`
	Language         string                 `json:"language,omitempty"`
	CategoryCode     string                 `json:"category_code,omitempty"`
	Aliases          []string               `json:"aliases,omitempty"`
	Affected         []Affected             `json:"affected,omitempty"`
	DatabaseSpecific map[string]interface{} `json:"database_specific,omitempty"`
	UserUUID         string                 `json:"user_uuid,omitempty"`
	OrgUUID          string                 `json:"org_uuid,omitempty"`
	RawFileUUID      string                 `json:"raw_file_uuid,omitempty"`
	Deleted          bool                   `json:"deleted"`
	CreatedAt        time.Time              `json:"created_at,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at,omitempty"`
}

// AliasBinding maps one alias string to the catalog entry that owns it.
type AliasBinding struct {
	Key               string `json:"_key,omitempty"`
	Alias             string `json:"alias"`
	VulnerabilityUUID string `json:"vulnerability_uuid"`
}

// Category is a dictionary entry with a stable code and a human name.
type Category struct {
	Key         string    `json:"_key,omitempty"`
	UUID        string    `json:"uuid"`
	Code        string    `json:"code"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Tag is a dictionary entry linked to catalog entries through vuln2tag edges.
type Tag struct {
	Key       string    `json:"_key,omitempty"`
	UUID      string    `json:"uuid"`
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Organization is the narrow view of an organization the pipeline needs.
type Organization struct {
	Key  string `json:"_key,omitempty"`
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}
