package util

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
)

// ecosystemPurlTypes maps OSV ecosystems to PURL types.
var ecosystemPurlTypes = map[string]string{
	"npm":       "npm",
	"PyPI":      "pypi",
	"Maven":     "maven",
	"Go":        "golang",
	"NuGet":     "nuget",
	"RubyGems":  "gem",
	"crates.io": "cargo",
	"Packagist": "composer",
	"Pub":       "pub",
	"CocoaPods": "cocoapods",
	"Hex":       "hex",
	"Alpine":    "apk",
	"Debian":    "deb",
	"Ubuntu":    "deb",
}

// ParsePURL parses a PURL string into its components.
func ParsePURL(purlStr string) (*packageurl.PackageURL, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// EcosystemToPurlType converts an OSV ecosystem to a PURL type.
func EcosystemToPurlType(ecosystem string) string {
	if purlType, exists := ecosystemPurlTypes[ecosystem]; exists {
		return purlType
	}
	for key, value := range ecosystemPurlTypes {
		if strings.EqualFold(key, ecosystem) {
			return value
		}
	}
	return strings.ToLower(ecosystem)
}

// PurlTypeToEcosystem converts a PURL type back to an OSV ecosystem name.
// Unknown types are returned as-is.
func PurlTypeToEcosystem(purlType string) string {
	for eco, pt := range ecosystemPurlTypes {
		if pt == strings.ToLower(purlType) {
			return eco
		}
	}
	return purlType
}

// BasePURL extracts a standardized base PURL without version and qualifiers,
// preserving the subpath to maintain module identity (e.g. #v2).
// Example: "pkg:npm/lodash@4.17.20" -> "pkg:npm/lodash"
func BasePURL(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}
	base := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
		Subpath:   parsed.Subpath,
	}
	return strings.ToLower(base.ToString()), nil
}

// BasePURLFromComponents constructs a standardized base PURL from an
// ecosystem and package name when the record carries no purl of its own.
func BasePURLFromComponents(ecosystem, name string) string {
	purlType := EcosystemToPurlType(ecosystem)
	return strings.ToLower(fmt.Sprintf("pkg:%s/%s", purlType, name))
}
