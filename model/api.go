// Package model - API types for the COSV import REST surface.
package model

// IngestRequest is the body of POST /cosv/files/:uuid/ingest.
type IngestRequest struct {
	Action         string `json:"action,omitempty"`           // CREATE|UPDATE
	TargetVulnUUID string `json:"target_vuln_uuid,omitempty"` // required for UPDATE
	ConflictPolicy string `json:"conflict_policy,omitempty"`  // FAIL|SKIP_ALIAS|OVERWRITE
	OrgUUID        string `json:"organization_uuid,omitempty"`
	Language       string `json:"language,omitempty"`
	CategoryCode   string `json:"category_code,omitempty"`
	TagCodes       string `json:"tag_codes,omitempty"` // comma separated
}

// IngestBatchRequest is the body of POST /cosv/files/:uuid/ingest-batch.
type IngestBatchRequest struct {
	Action         string `json:"action,omitempty"` // AUTO|CREATE|UPDATE
	ConflictPolicy string `json:"conflict_policy,omitempty"`
	OrgUUID        string `json:"organization_uuid,omitempty"`
	Language       string `json:"language,omitempty"`
	CategoryCode   string `json:"category_code,omitempty"`
	TagCodes       string `json:"tag_codes,omitempty"`
}

// UploadResponse returns the identity of a stored raw file.
type UploadResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	RawFileUUID string `json:"raw_file_uuid,omitempty"`
}

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
