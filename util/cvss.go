// Package util provides severity scoring, PURL normalization and version
// comparison helpers for the COSV ingestion pipeline.
package util

import (
	"strings"

	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"github.com/cosv-horizon/cosv-backend/model"
)

// CalculateCVSSScore calculates the CVSS base score from a vector string
func CalculateCVSSScore(vectorStr string) float64 {
	if vectorStr == "" || !strings.HasPrefix(vectorStr, "CVSS:") {
		return 0
	}
	if strings.HasPrefix(vectorStr, "CVSS:3.1") || strings.HasPrefix(vectorStr, "CVSS:3.0") {
		if cvss31, err := gocvss31.ParseVector(vectorStr); err == nil {
			return cvss31.BaseScore()
		}
	}
	if strings.HasPrefix(vectorStr, "CVSS:4.0") {
		if cvss40, err := gocvss40.ParseVector(vectorStr); err == nil {
			return cvss40.Score()
		}
	}
	return 0
}

// SeverityMetadata builds the database_specific severity fields persisted
// with each catalog entry: the CVSS base scores found in the record's
// severity entries, the aggregated score and its rating.
func SeverityMetadata(entries []model.SeverityItem, aggregated float64) map[string]interface{} {
	var baseScores []float64
	for _, entry := range entries {
		if entry.Type != "CVSS_V3" && entry.Type != "CVSS_V4" {
			continue
		}
		if base := CalculateCVSSScore(entry.Score); base > 0 {
			baseScores = append(baseScores, base)
		}
	}
	meta := map[string]interface{}{
		"severity_num":    aggregated,
		"severity_rating": GetSeverityRating(aggregated),
	}
	if len(baseScores) > 0 {
		meta["cvss_base_scores"] = baseScores
	}
	return meta
}

// GetSeverityRating returns the severity rating for a given CVSS score
func GetSeverityRating(score float64) string {
	switch {
	case score == 0:
		return "NONE"
	case score < 4.0:
		return "LOW"
	case score < 7.0:
		return "MEDIUM"
	case score < 9.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}
