// Package model - CosvRecord defines the in-memory representation of one COSV
// advisory and the nested structures of the interchange format.
package model

// CosvRecord represents one parsed COSV advisory. It is produced by the
// decoder for the duration of a single pipeline invocation and is never
// persisted on its own.
type CosvRecord struct {
	ID               string                 `json:"id,omitempty"`
	SchemaVersion    string                 `json:"schema_version,omitempty"`
	Summary          string                 `json:"summary,omitempty"`
	Details          string                 `json:"details,omitempty"`
	Published        string                 `json:"published,omitempty"`
	Withdrawn        string                 `json:"withdrawn,omitempty"`
	ConfirmedType    string                 `json:"confirmed_type,omitempty"`
	DatabaseSpecific map[string]interface{} `json:"database_specific,omitempty"`

	Aliases    []string    `json:"aliases,omitempty"`
	Related    []string    `json:"related,omitempty"`
	References []Reference `json:"references,omitempty"`

	CweIDs   []string    `json:"cwe_ids,omitempty"`
	CweNames []string    `json:"cwe_names,omitempty"`
	TimeLine []TimePoint `json:"time_line,omitempty"`

	Severity []SeverityItem `json:"severity,omitempty"`

	Affected []Affected `json:"affected,omitempty"`

	PatchDetails  []PatchDetail `json:"patch_details,omitempty"`
	Contributors  []Contributor `json:"contributors,omitempty"`
	Credits       []Credit      `json:"credits,omitempty"`
	ExploitStatus []string      `json:"exploit_status,omitempty"`
}

// Reference is an external link attached to an advisory.
type Reference struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// TimePoint is one entry of the advisory time line.
type TimePoint struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// SeverityItem is one severity observation. Score carries either a CVSS
// vector or free text; ScoreNum is the structured numeric form when present.
type SeverityItem struct {
	Type     string   `json:"type,omitempty"`
	Score    string   `json:"score,omitempty"`
	Level    string   `json:"level,omitempty"`
	ScoreNum *float64 `json:"score_num,omitempty"`
}

// Affected describes one affected package and its version ranges.
type Affected struct {
	Package           *PackageSpec           `json:"package,omitempty"`
	Severity          []SeverityItem         `json:"severity,omitempty"`
	Ranges            []Range                `json:"ranges,omitempty"`
	Versions          []string               `json:"versions,omitempty"`
	EcosystemSpecific map[string]interface{} `json:"ecosystem_specific,omitempty"`
	DatabaseSpecific  map[string]interface{} `json:"database_specific,omitempty"`
}

// PackageSpec identifies the affected package.
type PackageSpec struct {
	Ecosystem         string                 `json:"ecosystem,omitempty"`
	Name              string                 `json:"name,omitempty"`
	Purl              string                 `json:"purl,omitempty"`
	Language          string                 `json:"language,omitempty"`
	Repository        string                 `json:"repository,omitempty"`
	IntroducedCommits []string               `json:"introduced_commits,omitempty"`
	FixedCommits      []string               `json:"fixed_commits,omitempty"`
	HomePage          string                 `json:"home_page,omitempty"`
	Edition           string                 `json:"edition,omitempty"`
	EcosystemSpecific map[string]interface{} `json:"ecosystem_specific,omitempty"`
	DatabaseSpecific  map[string]interface{} `json:"database_specific,omitempty"`
}

// Range is one version range of an affected package. Each element of Events
// must be a single-key object, a structural rule of the interchange format
// that is checked before any catalog mutation. The component fields are
// populated at commit time so catalog queries can filter on numeric versions.
type Range struct {
	Type             string                 `json:"type,omitempty"` // ECOSYSTEM|SEMVER|GIT
	Repo             string                 `json:"repo,omitempty"` // for GIT
	Events           []map[string]string    `json:"events,omitempty"`
	Introduced       *VersionComponents     `json:"introduced_components,omitempty"`
	Fixed            *VersionComponents     `json:"fixed_components,omitempty"`
	LastAffected     *VersionComponents     `json:"last_affected_components,omitempty"`
	DatabaseSpecific map[string]interface{} `json:"database_specific,omitempty"`
}

// VersionComponents are the parsed numeric parts of a range boundary version.
// A component that could not be parsed stays nil.
type VersionComponents struct {
	Major *int `json:"major,omitempty"`
	Minor *int `json:"minor,omitempty"`
	Patch *int `json:"patch,omitempty"`
}

// PatchDetail carries patch provenance for an advisory.
type PatchDetail struct {
	PatchURL     string   `json:"patch_url,omitempty"`
	IssueURL     string   `json:"issue_url,omitempty"`
	MainLanguage string   `json:"main_language,omitempty"`
	Author       string   `json:"author,omitempty"`
	Committer    string   `json:"committer,omitempty"`
	Branches     []string `json:"branches,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Contributor credits a person or organization with work on the advisory.
type Contributor struct {
	Org           string `json:"org,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Contributions string `json:"contributions,omitempty"`
}

// Credit is an OSV-style credit entry.
type Credit struct {
	Name    string   `json:"name,omitempty"`
	Contact []string `json:"contact,omitempty"`
	Type    string   `json:"type,omitempty"`
}
