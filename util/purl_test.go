package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePURL(t *testing.T) {
	parsed, err := ParsePURL("pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1")
	require.NoError(t, err)
	assert.Equal(t, "maven", parsed.Type)
	assert.Equal(t, "org.apache.logging.log4j", parsed.Namespace)
	assert.Equal(t, "log4j-core", parsed.Name)
	assert.Equal(t, "2.14.1", parsed.Version)

	_, err = ParsePURL("definitely-not-a-purl")
	assert.Error(t, err)
}

func TestEcosystemToPurlType(t *testing.T) {
	assert.Equal(t, "golang", EcosystemToPurlType("Go"))
	assert.Equal(t, "pypi", EcosystemToPurlType("PyPI"))
	assert.Equal(t, "cargo", EcosystemToPurlType("crates.io"))
	// Case-insensitive lookup.
	assert.Equal(t, "maven", EcosystemToPurlType("maven"))
	// Unknown ecosystems pass through lower-cased.
	assert.Equal(t, "conda", EcosystemToPurlType("Conda"))
}

func TestPurlTypeToEcosystem(t *testing.T) {
	assert.Equal(t, "Go", PurlTypeToEcosystem("golang"))
	assert.Equal(t, "npm", PurlTypeToEcosystem("npm"))
	assert.Equal(t, "crates.io", PurlTypeToEcosystem("cargo"))
	assert.Equal(t, "mystery", PurlTypeToEcosystem("mystery"))
}

func TestBasePURL(t *testing.T) {
	base, err := BasePURL("pkg:npm/lodash@4.17.20?arch=amd64")
	require.NoError(t, err)
	assert.Equal(t, "pkg:npm/lodash", base)

	base, err = BasePURL("pkg:golang/github.com/example/mod@v2.0.0#v2")
	require.NoError(t, err)
	assert.Equal(t, "pkg:golang/github.com/example/mod#v2", base)
}

func TestBasePURLFromComponents(t *testing.T) {
	assert.Equal(t, "pkg:npm/left-pad", BasePURLFromComponents("npm", "left-pad"))
	assert.Equal(t, "pkg:golang/github.com/example/mod", BasePURLFromComponents("Go", "github.com/example/mod"))
}
