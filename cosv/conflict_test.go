package cosv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAliasIndex struct {
	owners map[string]string
}

func (f *fakeAliasIndex) FindOwner(_ context.Context, alias string) (string, error) {
	return f.owners[alias], nil
}

func TestDetectAliasConflicts(t *testing.T) {
	ctx := context.Background()
	index := &fakeAliasIndex{owners: map[string]string{
		"CVE-2024-0001": "vuln-a",
		"GHSA-xxxx":     "vuln-b",
	}}

	conflicts, err := DetectAliasConflicts(ctx, index, []string{"CVE-2024-0001", "CVE-2024-9999", " ", "GHSA-xxxx"}, "vuln-a")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictAlias, conflicts[0].Type)
	assert.Equal(t, "GHSA-xxxx", conflicts[0].Alias)
	assert.Equal(t, "vuln-b", conflicts[0].VulnerabilityUUID)
}

func TestDetectAliasConflictsNoTarget(t *testing.T) {
	ctx := context.Background()
	index := &fakeAliasIndex{owners: map[string]string{"CVE-2024-0001": "vuln-a"}}

	// Without a target every bound alias is a conflict.
	conflicts, err := DetectAliasConflicts(ctx, index, []string{"CVE-2024-0001"}, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
}

func TestDetectAliasConflictsTrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	index := &fakeAliasIndex{owners: map[string]string{"CVE-2024-0001": "vuln-b"}}

	conflicts, err := DetectAliasConflicts(ctx, index, []string{"  CVE-2024-0001  "}, "vuln-a")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "CVE-2024-0001", conflicts[0].Alias)
}

func TestFilterAliases(t *testing.T) {
	ctx := context.Background()
	index := &fakeAliasIndex{owners: map[string]string{
		"CVE-2024-0001": "vuln-a",
		"GHSA-xxxx":     "vuln-b",
	}}

	kept, err := filterAliases(ctx, index, []string{"CVE-2024-0001", "GHSA-xxxx", "CVE-2024-9999"}, "vuln-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"CVE-2024-0001", "CVE-2024-9999"}, kept)
}
