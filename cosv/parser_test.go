package cosv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOneSingleObject(t *testing.T) {
	rec, err := DecodeOne([]byte(`{"id": "CVE-2024-0001", "summary": "heap overflow"}`))
	require.NoError(t, err)
	assert.Equal(t, "CVE-2024-0001", rec.ID)
	assert.Equal(t, "heap overflow", rec.Summary)
}

func TestDecodeOneRejectsArray(t *testing.T) {
	_, err := DecodeOne([]byte(`[{"id": "CVE-2024-0001"}]`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecodeOneRejectsEmpty(t *testing.T) {
	_, err := DecodeOne([]byte("   \n  "))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecodeArray(t *testing.T) {
	records, err := Decode([]byte(`[{"id": "A-1"}, {"id": "A-2"}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A-1", records[0].ID)
	assert.Equal(t, "A-2", records[1].ID)
}

func TestDecodeEmptyArray(t *testing.T) {
	_, err := Decode([]byte(`[]`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecodeItemsEnvelope(t *testing.T) {
	records, err := Decode([]byte(`{"items": [{"id": "A-1"}, {"id": "A-2"}, {"id": "A-3"}]}`))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "A-3", records[2].ID)
}

func TestDecodeEmptyItemsEnvelope(t *testing.T) {
	_, err := Decode([]byte(`{"items": []}`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Msg, "no records")
}

func TestDecodeSingleObjectAsList(t *testing.T) {
	records, err := Decode([]byte(`{"id": "A-1", "summary": "one record"}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A-1", records[0].ID)
}

func TestDecodeNDJSON(t *testing.T) {
	payload := "{\"id\": \"A-1\"}\n{\"id\": \"A-2\"}\n\n{\"id\": \"A-3\"}\n"
	records, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "A-2", records[1].ID)
}

func TestDecodeNDJSONSkipsBadLines(t *testing.T) {
	payload := "{\"id\": \"A-1\"}\nnot json at all\n{\"id\": \"A-2\"}\n"
	records, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte(`<xml>nope</xml>`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecodeOrderPreserved(t *testing.T) {
	records, err := Decode([]byte(`[{"id": "Z"}, {"id": "A"}, {"id": "M"}]`))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Z", "A", "M"}, []string{records[0].ID, records[1].ID, records[2].ID})
}

func TestDecodeFillsPackageFromPurl(t *testing.T) {
	payload := `{
		"id": "A-1",
		"affected": [{"package": {"purl": "pkg:npm/%40scope/left-pad@1.3.0"}}]
	}`
	records, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 1)
	pkg := records[0].Affected[0].Package
	require.NotNil(t, pkg)
	assert.Equal(t, "npm", pkg.Ecosystem)
	assert.Equal(t, "@scope/left-pad", pkg.Name)
}

func TestDecodeKeepsExplicitPackageFields(t *testing.T) {
	payload := `{
		"id": "A-1",
		"affected": [{"package": {"ecosystem": "Maven", "name": "org.demo:lib", "purl": "pkg:maven/org.demo/lib@1.0"}}]
	}`
	records, err := Decode([]byte(payload))
	require.NoError(t, err)
	pkg := records[0].Affected[0].Package
	assert.Equal(t, "Maven", pkg.Ecosystem)
	assert.Equal(t, "org.demo:lib", pkg.Name)
}
