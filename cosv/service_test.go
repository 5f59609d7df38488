package cosv

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cosv-horizon/cosv-backend/model"
)

type memRawStore struct {
	files map[string]*model.RawCosvFile
}

func (s *memRawStore) Find(_ context.Context, uuid string) (*model.RawCosvFile, error) {
	return s.files[uuid], nil
}

func (s *memRawStore) Insert(_ context.Context, f *model.RawCosvFile) error {
	s.files[f.UUID] = f
	return nil
}

func (s *memRawStore) SetStatus(_ context.Context, uuid, status, message string) error {
	f, ok := s.files[uuid]
	if !ok {
		return fmt.Errorf("no raw file %s", uuid)
	}
	f.Status = status
	f.StatusMessage = message
	return nil
}

type memCatalog struct {
	aliases  *fakeAliasIndex
	entries  map[string]*model.VulnerabilityEntry
	tagLinks map[string][]string
	nextID   int
}

func (s *memCatalog) FindByIdentifier(_ context.Context, identifier string) (*model.VulnerabilityEntry, error) {
	for _, e := range s.entries {
		if e.Identifier == identifier && !e.Deleted {
			return e, nil
		}
	}
	return nil, nil
}

func (s *memCatalog) FindByUUID(_ context.Context, uuid string) (*model.VulnerabilityEntry, error) {
	return s.entries[uuid], nil
}

func (s *memCatalog) Create(_ context.Context, entry *model.VulnerabilityEntry) (*model.VulnerabilityEntry, error) {
	for _, e := range s.entries {
		if entry.Identifier != "" && e.Identifier == entry.Identifier && !e.Deleted {
			return nil, &ConflictError{Msg: "identifier already exists"}
		}
	}
	s.nextID++
	entry.Key = fmt.Sprintf("%d", s.nextID)
	s.entries[entry.UUID] = entry
	return entry, nil
}

func (s *memCatalog) Update(_ context.Context, uuid string, patch EntryPatch) (*model.VulnerabilityEntry, error) {
	e, ok := s.entries[uuid]
	if !ok {
		return nil, &NotFoundError{What: "vulnerability", UUID: uuid}
	}
	e.Summary = patch.Summary
	e.Details = patch.Details
	e.SeverityNum = patch.SeverityNum
	e.Language = patch.Language
	e.CategoryCode = patch.CategoryCode
	e.Aliases = patch.Aliases
	e.Affected = patch.Affected
	e.DatabaseSpecific = patch.DatabaseSpecific
	e.RawFileUUID = patch.RawFileUUID
	return e, nil
}

func (s *memCatalog) Delete(_ context.Context, uuid string) error {
	delete(s.entries, uuid)
	return nil
}

func (s *memCatalog) AddTagLink(_ context.Context, entryUUID, tagCode string) error {
	for _, t := range s.tagLinks[entryUUID] {
		if t == tagCode {
			return nil
		}
	}
	s.tagLinks[entryUUID] = append(s.tagLinks[entryUUID], tagCode)
	return nil
}

func (s *memCatalog) BindAliases(_ context.Context, entryUUID string, aliases []string, reassign bool) error {
	for _, a := range aliases {
		owner := s.aliases.owners[a]
		if owner != "" && owner != entryUUID && !reassign {
			return &ConflictError{Alias: a, BoundTo: owner}
		}
		s.aliases.owners[a] = entryUUID
	}
	return nil
}

type memOrgs struct {
	orgs   map[string]*model.Organization
	admins map[string]bool
}

func (s *memOrgs) Find(_ context.Context, uuid string) (*model.Organization, error) {
	return s.orgs[uuid], nil
}

func (s *memOrgs) IsAdmin(_ context.Context, orgUUID, userUUID string) (bool, error) {
	return s.admins[orgUUID+"|"+userUUID], nil
}

type testEnv struct {
	raw     *memRawStore
	catalog *memCatalog
	aliases *fakeAliasIndex
	orgs    *memOrgs
	svc     *Service
}

func newTestEnv() *testEnv {
	aliases := &fakeAliasIndex{owners: map[string]string{}}
	env := &testEnv{
		raw:     &memRawStore{files: map[string]*model.RawCosvFile{}},
		catalog: &memCatalog{aliases: aliases, entries: map[string]*model.VulnerabilityEntry{}, tagLinks: map[string][]string{}},
		aliases: aliases,
		orgs:    &memOrgs{orgs: map[string]*model.Organization{}, admins: map[string]bool{}},
	}
	cats := newFakeDictionary([]string{"MEMORY", "INJECTION", "OTHER"}, map[string]string{"Memory safety": "MEMORY"})
	tags := newFakeDictionary([]string{"NETWORK", "LOCAL", "PATCHED"}, map[string]string{"Network exploitable": "NETWORK"})
	env.svc = NewService(env.raw, env.catalog, aliases, cats, tags, env.orgs, zap.NewNop().Sugar())
	return env
}

func (e *testEnv) addRawFile(uuid string, content string) *model.RawCosvFile {
	f := &model.RawCosvFile{UUID: uuid, Status: model.FileStatusUploaded, Content: []byte(content)}
	e.raw.files[uuid] = f
	return f
}

const singleRecord = `{
	"id": "CVE-2024-0001",
	"summary": "heap overflow in decoder",
	"details": "a long description",
	"aliases": ["GHSA-abcd"],
	"severity": [{"type": "CVSS_V3", "score": "8.8 HIGH"}],
	"affected": [{"package": {"ecosystem": "Go", "name": "example.com/mod"}}]
}`

func TestUploadStoresFile(t *testing.T) {
	env := newTestEnv()

	uuid, err := env.svc.Upload(context.Background(), UploadParams{
		UserUUID: "user-1",
		FileName: "adv.json",
		Content:  []byte(singleRecord),
	})
	require.NoError(t, err)

	f := env.raw.files[uuid]
	require.NotNil(t, f)
	assert.Equal(t, model.FileStatusUploaded, f.Status)
	assert.Equal(t, int64(len(singleRecord)), f.ContentLength)
	assert.NotEmpty(t, f.ChecksumSha256)
}

func TestUploadRequiresOrgAdmin(t *testing.T) {
	env := newTestEnv()
	env.orgs.orgs["org-1"] = &model.Organization{UUID: "org-1"}

	_, err := env.svc.Upload(context.Background(), UploadParams{
		UserUUID: "user-1",
		OrgUUID:  "org-1",
		Content:  []byte("{}"),
	})
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)

	env.orgs.admins["org-1|user-1"] = true
	_, err = env.svc.Upload(context.Background(), UploadParams{
		UserUUID: "user-1",
		OrgUUID:  "org-1",
		Content:  []byte("{}"),
	})
	require.NoError(t, err)
}

func TestUploadUnknownOrg(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Upload(context.Background(), UploadParams{
		UserUUID: "user-1",
		OrgUUID:  "missing",
		Content:  []byte("{}"),
	})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestParseIsReadOnlyAndRepeatable(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)

	first, err := env.svc.Parse(context.Background(), ParseParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)
	second, err := env.svc.Parse(context.Background(), ParseParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ActionCreate, first.SuggestedAction)
	assert.Empty(t, first.Conflicts)
	require.NotNil(t, first.AggregatedSeverityNum)
	assert.Equal(t, 8.8, *first.AggregatedSeverityNum)

	// Nothing was written.
	assert.Empty(t, env.catalog.entries)
	assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
}

func TestParseSuggestsUpdateForKnownIdentifier(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)
	env.catalog.entries["vuln-1"] = &model.VulnerabilityEntry{UUID: "vuln-1", Identifier: "CVE-2024-0001"}

	report, err := env.svc.Parse(context.Background(), ParseParams{RawFileUUID: "raw-1"})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, report.SuggestedAction)
	assert.Equal(t, "vuln-1", report.TargetVulnUUID)
}

func TestParseReportsAliasConflict(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)
	env.aliases.owners["GHSA-abcd"] = "vuln-other"

	report, err := env.svc.Parse(context.Background(), ParseParams{RawFileUUID: "raw-1"})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, ConflictAlias, report.Conflicts[0].Type)
	assert.Equal(t, "vuln-other", report.Conflicts[0].VulnerabilityUUID)
}

func TestParseMissingRawFile(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Parse(context.Background(), ParseParams{RawFileUUID: "nope"})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestIngestCreateThenUpdate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addRawFile("raw-1", singleRecord)

	outcome, err := env.svc.Ingest(ctx, IngestParams{RawFileUUID: "raw-1", UserUUID: "user-1", Language: "go", CategoryCode: "MEMORY"})
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, outcome.Action)
	assert.Equal(t, "CVE-2024-0001", outcome.Entry.Identifier)
	assert.Equal(t, "GO", outcome.Entry.Language)
	assert.Equal(t, "MEMORY", outcome.Entry.CategoryCode)
	assert.Equal(t, 8.8, outcome.Entry.SeverityNum)
	assert.Equal(t, "HIGH", outcome.Entry.DatabaseSpecific["severity_rating"])
	assert.Equal(t, model.FileStatusProcessed, env.raw.files["raw-1"].Status)
	assert.Equal(t, "created", env.raw.files["raw-1"].StatusMessage)
	assert.Equal(t, outcome.Entry.UUID, env.aliases.owners["GHSA-abcd"])

	// Same identifier arriving again updates in place.
	env.addRawFile("raw-2", `{
		"id": "CVE-2024-0001",
		"summary": "heap overflow in decoder, revised",
		"severity": [{"type": "CVSS_V3", "score_num": 9.1}]
	}`)
	second, err := env.svc.Ingest(ctx, IngestParams{RawFileUUID: "raw-2", UserUUID: "user-1", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, second.Action)
	assert.Equal(t, outcome.Entry.UUID, second.Entry.UUID)
	assert.Equal(t, "heap overflow in decoder, revised", second.Entry.Summary)
	assert.Equal(t, 9.1, second.Entry.SeverityNum)
	assert.Equal(t, "updated", env.raw.files["raw-2"].StatusMessage)
	assert.Len(t, env.catalog.entries, 1)
}

func TestIngestAliasConflictFailPolicy(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)
	env.aliases.owners["GHSA-abcd"] = "vuln-other"

	_, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "GHSA-abcd", conflictErr.Alias)
	assert.Equal(t, "vuln-other", conflictErr.BoundTo)

	// Failed commit persists nothing and leaves the raw file untouched.
	assert.Empty(t, env.catalog.entries)
	assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
	assert.Empty(t, env.raw.files["raw-1"].StatusMessage)
}

func TestIngestSkipAliasPolicy(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `{
		"id": "CVE-2024-0002",
		"summary": "sql injection",
		"aliases": ["GHSA-taken", "GHSA-free"],
		"severity": [{"type": "CVSS_V3", "score_num": 7.0}]
	}`)
	env.aliases.owners["GHSA-taken"] = "vuln-other"

	outcome, err := env.svc.Ingest(context.Background(), IngestParams{
		RawFileUUID:    "raw-1",
		ConflictPolicy: PolicySkipAlias,
		Language:       "java",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GHSA-free"}, outcome.Entry.Aliases)
	assert.Equal(t, "vuln-other", env.aliases.owners["GHSA-taken"])
	assert.Equal(t, outcome.Entry.UUID, env.aliases.owners["GHSA-free"])
}

func TestIngestOverwritePolicy(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `{
		"id": "CVE-2024-0003",
		"summary": "path traversal",
		"aliases": ["GHSA-taken"],
		"severity": [{"type": "CVSS_V3", "score_num": 5.0}]
	}`)
	env.aliases.owners["GHSA-taken"] = "vuln-other"

	outcome, err := env.svc.Ingest(context.Background(), IngestParams{
		RawFileUUID:    "raw-1",
		ConflictPolicy: PolicyOverwrite,
		Language:       "go",
	})
	require.NoError(t, err)
	assert.Equal(t, outcome.Entry.UUID, env.aliases.owners["GHSA-taken"])
}

func TestIngestValidationFailuresLeaveRawFileUntouched(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"missing summary", `{"id": "X-1", "severity": [{"score_num": 5.0}]}`},
		{"missing severity", `{"id": "X-1", "summary": "s"}`},
		{"bad ranges events", `{
			"id": "X-1", "summary": "s",
			"severity": [{"score_num": 5.0}],
			"affected": [{"ranges": [{"type": "SEMVER", "events": [{"introduced": "0", "fixed": "1.2.3"}]}]}]
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.addRawFile("raw-1", tc.payload)

			_, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Empty(t, env.catalog.entries)
			assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
		})
	}
}

func TestIngestRequiresLanguage(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `{"id": "X-1", "summary": "s", "severity": [{"score_num": 5.0}]}`)

	_, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestIngestInfersLanguageFromEcosystem(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `{
		"id": "X-1", "summary": "s",
		"severity": [{"score_num": 5.0}],
		"affected": [{"package": {"ecosystem": "npm", "name": "left-pad"}}]
	}`)

	outcome, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1"})
	require.NoError(t, err)
	assert.Equal(t, model.LanguageJavaScript, outcome.Entry.Language)
}

func TestIngestUnknownCategory(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)

	_, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go", CategoryCode: "NOPE"})
	var dictErr *DictionaryError
	require.ErrorAs(t, err, &dictErr)
	assert.Equal(t, ConflictCategoryNotFound, dictErr.Kind)
	assert.Empty(t, env.catalog.entries)
}

func TestIngestMaterializesAffected(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `{
		"id": "X-1", "summary": "prototype pollution",
		"severity": [{"score_num": 7.5}],
		"affected": [{
			"package": {"purl": "pkg:npm/lodash@4.17.20"},
			"ranges": [{"type": "SEMVER", "events": [{"introduced": "0"}, {"fixed": "4.17.21"}]}]
		}]
	}`)

	outcome, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1"})
	require.NoError(t, err)

	stored := env.catalog.entries[outcome.Entry.UUID]
	require.Len(t, stored.Affected, 1)
	assert.Equal(t, "pkg:npm/lodash", stored.Affected[0].Package.Purl)

	r := stored.Affected[0].Ranges[0]
	require.NotNil(t, r.Introduced)
	assert.Equal(t, 0, *r.Introduced.Major)
	require.NotNil(t, r.Fixed)
	assert.Equal(t, 4, *r.Fixed.Major)
	assert.Equal(t, 17, *r.Fixed.Minor)
	assert.Equal(t, 21, *r.Fixed.Patch)
}

func TestIngestRollsBackCreateOnAliasBindFailure(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)

	// A concurrent writer claims the alias after the conflict pre-check: the
	// detection index is stale while the bind sees the new owner.
	env.svc.Aliases = &fakeAliasIndex{owners: map[string]string{}}
	env.catalog.aliases.owners["GHSA-abcd"] = "vuln-other"

	_, err := env.svc.Ingest(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)

	// The created entry was rolled back and the raw file stays untouched.
	assert.Empty(t, env.catalog.entries)
	assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
}

func TestIngestLinksTags(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", singleRecord)

	outcome, err := env.svc.Ingest(context.Background(), IngestParams{
		RawFileUUID: "raw-1",
		Language:    "go",
		TagCodes:    []string{"NETWORK", "PATCHED"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NETWORK", "PATCHED"}, env.catalog.tagLinks[outcome.Entry.UUID])
}

func batchPayload() string {
	return `[
		{"id": "B-1", "summary": "one", "severity": [{"score_num": 1.0}]},
		{"id": "B-2", "summary": "two", "severity": [{"score_num": 2.0}]},
		{"id": "B-3", "severity": [{"score_num": 3.0}]},
		{"id": "B-4", "summary": "four", "severity": [{"score_num": 4.0}]},
		{"id": "B-5", "summary": "five", "severity": [{"score_num": 5.0}]}
	]`
}

func TestIngestBatchPartialFailure(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", batchPayload())

	result, err := env.svc.IngestBatch(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.Total, result.Success+result.Failed)

	// Record 3 has no summary; everything else commits.
	assert.Equal(t, StatusError, result.Items[2].Status)
	assert.NotEmpty(t, result.Items[2].Message)
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, StatusOK, result.Items[i].Status)
		assert.Equal(t, ActionCreate, result.Items[i].Action)
	}
	assert.Len(t, env.catalog.entries, 4)
	assert.Equal(t, model.FileStatusProcessed, env.raw.files["raw-1"].Status)
	assert.Equal(t, "4/5 records ingested", env.raw.files["raw-1"].StatusMessage)
}

func TestIngestBatchAllFail(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `[
		{"id": "B-1", "severity": [{"score_num": 1.0}]},
		{"id": "B-2", "severity": [{"score_num": 2.0}]}
	]`)

	result, err := env.svc.IngestBatch(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Success)
	assert.Equal(t, model.FileStatusFailed, env.raw.files["raw-1"].Status)
}

func TestIngestBatchUnparsablePayloadAborts(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `not a cosv payload`)

	_, err := env.svc.IngestBatch(context.Background(), IngestParams{RawFileUUID: "raw-1"})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
}

func TestIngestBatchUpdatesExistingIdentifiers(t *testing.T) {
	env := newTestEnv()
	env.catalog.entries["vuln-1"] = &model.VulnerabilityEntry{UUID: "vuln-1", Identifier: "B-1", Summary: "old"}
	env.addRawFile("raw-1", `[{"id": "B-1", "summary": "new", "severity": [{"score_num": 4.2}]}]`)

	result, err := env.svc.IngestBatch(context.Background(), IngestParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)
	assert.Equal(t, ActionUpdate, result.Items[0].Action)
	assert.Equal(t, "vuln-1", result.Items[0].UUID)
	assert.Equal(t, "new", env.catalog.entries["vuln-1"].Summary)
}

func TestParseBatchIndependentRecords(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", batchPayload())
	env.catalog.entries["vuln-1"] = &model.VulnerabilityEntry{UUID: "vuln-1", Identifier: "B-2"}

	report, err := env.svc.ParseBatch(context.Background(), ParseParams{RawFileUUID: "raw-1", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, ActionCreate, report.Items[0].SuggestedAction)
	assert.Equal(t, ActionUpdate, report.Items[1].SuggestedAction)
	assert.Equal(t, "vuln-1", report.Items[1].TargetVulnUUID)

	// Preview writes nothing.
	assert.Len(t, env.catalog.entries, 1)
	assert.Equal(t, model.FileStatusUploaded, env.raw.files["raw-1"].Status)
}

func TestParseBatchModeForcesUpdate(t *testing.T) {
	env := newTestEnv()
	env.addRawFile("raw-1", `[{"id": "B-9", "summary": "nine"}]`)

	report, err := env.svc.ParseBatch(context.Background(), ParseParams{RawFileUUID: "raw-1", Mode: ActionUpdate})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, report.Items[0].SuggestedAction)
}
