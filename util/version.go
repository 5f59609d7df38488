package util

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/cosv-horizon/cosv-backend/model"
)

// ParsedVersion holds parsed semantic version components
type ParsedVersion struct {
	Major *int
	Minor *int
	Patch *int
}

// ParseSemanticVersion parses a version string into numeric components.
// Returns nil values for components that cannot be parsed.
func ParseSemanticVersion(version string) *ParsedVersion {
	if version == "" {
		return &ParsedVersion{}
	}

	// "0" means "from the beginning of time" in the OSV range model
	if version == "0" {
		zero := 0
		return &ParsedVersion{Major: &zero, Minor: &zero, Patch: &zero}
	}

	cleanVersion := strings.TrimPrefix(version, "go")

	if v, err := semver.NewVersion(cleanVersion); err == nil {
		major := int(v.Major())
		minor := int(v.Minor())
		patch := int(v.Patch())
		return &ParsedVersion{Major: &major, Minor: &minor, Patch: &patch}
	}

	// Fallback: parse manually for versions like "1.2" or "2"
	parts := strings.Split(cleanVersion, ".")
	result := &ParsedVersion{}
	if len(parts) >= 1 {
		if major, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			result.Major = &major
		}
	}
	if len(parts) >= 2 {
		if minor, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			result.Minor = &minor
		}
	}
	if len(parts) >= 3 {
		patchStr := strings.FieldsFunc(parts[2], func(r rune) bool {
			return r == '-' || r == '+'
		})
		if len(patchStr) > 0 {
			if patch, err := strconv.Atoi(strings.TrimSpace(patchStr[0])); err == nil {
				result.Patch = &patch
			}
		}
	}
	return result
}

// rangeBoundaries extracts the introduced/fixed/last_affected boundary
// versions from a range's single-key event objects.
func rangeBoundaries(r model.Range) (introduced, fixed, lastAffected string) {
	for _, event := range r.Events {
		for key, value := range event {
			switch key {
			case "introduced":
				introduced = value
			case "fixed":
				fixed = value
			case "last_affected":
				lastAffected = value
			}
		}
	}
	return introduced, fixed, lastAffected
}

// IsVersionAffected reports whether version falls inside any range of the
// affected entry, or is listed among its explicit versions.
func IsVersionAffected(version string, affected model.Affected) bool {
	for _, v := range affected.Versions {
		if v == version {
			return true
		}
	}
	ecosystem := ""
	if affected.Package != nil {
		ecosystem = affected.Package.Ecosystem
	}
	for _, r := range affected.Ranges {
		if strings.EqualFold(r.Type, "GIT") {
			continue
		}
		if IsVersionInRange(ecosystem, version, r) {
			return true
		}
	}
	return false
}

// IsVersionInRange checks whether a version lies inside one affected range,
// using ecosystem-specific comparison where the ecosystem has its own version
// grammar (npm, PyPI) and semver coercion otherwise. A range needs both a
// lower and an upper boundary; incomplete ranges report false to avoid false
// positives.
func IsVersionInRange(ecosystem, version string, r model.Range) bool {
	switch strings.ToLower(ecosystem) {
	case "npm":
		return isVersionInRangeNPM(version, r)
	case "pypi":
		return isVersionInRangePython(version, r)
	}

	v, err := semver.NewVersion(strings.TrimPrefix(version, "go"))
	if err != nil {
		return false
	}

	introducedStr, fixedStr, lastAffectedStr := rangeBoundaries(r)

	var introduced, fixed, lastAffected *semver.Version
	if introducedStr == "0" {
		introduced = semver.MustParse("0.0.0")
	} else if introducedStr != "" {
		introduced, _ = semver.NewVersion(introducedStr)
	}
	if fixedStr != "" {
		fixed, _ = semver.NewVersion(fixedStr)
	}
	if lastAffectedStr != "" {
		lastAffected, _ = semver.NewVersion(lastAffectedStr)
	}

	if introduced == nil || (fixed == nil && lastAffected == nil) {
		return false
	}
	if v.LessThan(introduced) {
		return false
	}
	if fixed != nil && !v.LessThan(fixed) {
		return false
	}
	if lastAffected != nil && v.GreaterThan(lastAffected) {
		return false
	}
	return true
}

func isVersionInRangeNPM(version string, r model.Range) bool {
	v, err := npm.NewVersion(version)
	if err != nil {
		return false
	}

	introducedStr, fixedStr, lastAffectedStr := rangeBoundaries(r)
	if introducedStr == "0" {
		introducedStr = "0.0.0"
	}

	var introduced, fixed, lastAffected npm.Version
	hasIntroduced, hasFixed, hasLastAffected := false, false, false
	if introducedStr != "" {
		if parsed, err := npm.NewVersion(introducedStr); err == nil {
			introduced = parsed
			hasIntroduced = true
		}
	}
	if fixedStr != "" {
		if parsed, err := npm.NewVersion(fixedStr); err == nil {
			fixed = parsed
			hasFixed = true
		}
	}
	if lastAffectedStr != "" {
		if parsed, err := npm.NewVersion(lastAffectedStr); err == nil {
			lastAffected = parsed
			hasLastAffected = true
		}
	}

	if !hasIntroduced || (!hasFixed && !hasLastAffected) {
		return false
	}
	if v.LessThan(introduced) {
		return false
	}
	if hasFixed && !v.LessThan(fixed) {
		return false
	}
	if hasLastAffected && v.GreaterThan(lastAffected) {
		return false
	}
	return true
}

func isVersionInRangePython(version string, r model.Range) bool {
	v, err := pep440.Parse(version)
	if err != nil {
		return false
	}

	introducedStr, fixedStr, lastAffectedStr := rangeBoundaries(r)
	if introducedStr == "0" {
		introducedStr = "0.0.0"
	}

	var introduced, fixed, lastAffected pep440.Version
	hasIntroduced, hasFixed, hasLastAffected := false, false, false
	if introducedStr != "" {
		if parsed, err := pep440.Parse(introducedStr); err == nil {
			introduced = parsed
			hasIntroduced = true
		}
	}
	if fixedStr != "" {
		if parsed, err := pep440.Parse(fixedStr); err == nil {
			fixed = parsed
			hasFixed = true
		}
	}
	if lastAffectedStr != "" {
		if parsed, err := pep440.Parse(lastAffectedStr); err == nil {
			lastAffected = parsed
			hasLastAffected = true
		}
	}

	if !hasIntroduced || (!hasFixed && !hasLastAffected) {
		return false
	}
	if v.LessThan(introduced) {
		return false
	}
	if hasFixed && !v.LessThan(fixed) {
		return false
	}
	if hasLastAffected && v.GreaterThan(lastAffected) {
		return false
	}
	return true
}
