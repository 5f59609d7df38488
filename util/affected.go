package util

import (
	"strings"

	"github.com/cosv-horizon/cosv-backend/model"
)

// MaterializeAffected normalizes affected packages in place before they are
// persisted: the package purl is reduced to its versionless base form (or
// derived from ecosystem and name when the record carries none), and every
// non-GIT range boundary gets parsed numeric version components. Catalog
// indexes cover both the base purl and the components.
func MaterializeAffected(affected []model.Affected) {
	for i := range affected {
		if pkg := affected[i].Package; pkg != nil {
			if pkg.Purl != "" {
				if base, err := BasePURL(pkg.Purl); err == nil {
					pkg.Purl = base
				}
			} else if pkg.Ecosystem != "" && pkg.Name != "" {
				pkg.Purl = BasePURLFromComponents(pkg.Ecosystem, pkg.Name)
			}
		}
		for j := range affected[i].Ranges {
			r := &affected[i].Ranges[j]
			if strings.EqualFold(r.Type, "GIT") {
				continue
			}
			introduced, fixed, lastAffected := rangeBoundaries(*r)
			r.Introduced = versionComponents(introduced)
			r.Fixed = versionComponents(fixed)
			r.LastAffected = versionComponents(lastAffected)
		}
	}
}

func versionComponents(version string) *model.VersionComponents {
	if version == "" {
		return nil
	}
	parsed := ParseSemanticVersion(version)
	return &model.VersionComponents{Major: parsed.Major, Minor: parsed.Minor, Patch: parsed.Patch}
}
