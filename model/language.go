// Package model - programming language enumeration used by catalog entries.
package model

import (
	"strings"

	"github.com/google/osv-scanner/pkg/models"
)

// Language codes accepted by the catalog.
const (
	LanguageJava       = "JAVA"
	LanguagePython     = "PYTHON"
	LanguageJavaScript = "JAVASCRIPT"
	LanguagePHP        = "PHP"
	LanguageGo         = "GO"
	LanguageRust       = "RUST"
	LanguageC          = "C"
	LanguageCPP        = "CPP"
	LanguageOther      = "OTHER"
)

var languages = map[string]bool{
	LanguageJava:       true,
	LanguagePython:     true,
	LanguageJavaScript: true,
	LanguagePHP:        true,
	LanguageGo:         true,
	LanguageRust:       true,
	LanguageC:          true,
	LanguageCPP:        true,
	LanguageOther:      true,
}

// IsValidLanguage reports whether code is a known language code.
// Matching is case-insensitive; the canonical form is upper case.
func IsValidLanguage(code string) bool {
	return languages[strings.ToUpper(strings.TrimSpace(code))]
}

// NormalizeLanguage returns the canonical upper-case form of a language code,
// or the empty string when the code is blank.
func NormalizeLanguage(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ecosystemLanguages maps OSV ecosystems to catalog language codes.
var ecosystemLanguages = map[models.Ecosystem]string{
	models.EcosystemGo:        LanguageGo,
	models.EcosystemNPM:       LanguageJavaScript,
	models.EcosystemPyPI:      LanguagePython,
	models.EcosystemMaven:     LanguageJava,
	models.EcosystemCratesIO:  LanguageRust,
	models.EcosystemPackagist: LanguagePHP,
}

// LanguageForEcosystem infers a catalog language code from an OSV package
// ecosystem. Returns the empty string when no mapping applies.
func LanguageForEcosystem(ecosystem string) string {
	if lang, ok := ecosystemLanguages[models.Ecosystem(ecosystem)]; ok {
		return lang
	}
	for eco, lang := range ecosystemLanguages {
		if strings.EqualFold(string(eco), ecosystem) {
			return lang
		}
	}
	return ""
}
