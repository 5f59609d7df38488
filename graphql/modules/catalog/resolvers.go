package catalog

import (
	"context"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/cosv-horizon/cosv-backend/database"
)

// ResolveVulnerabilities fetches catalog entries ordered by severity with
// optional language and rating filters.
func ResolveVulnerabilities(db database.DBConnection, language, rating string, limit int) ([]map[string]interface{}, error) {
	ctx := context.Background()

	query := `
		FOR v IN vulnerability
			FILTER v.deleted != true
			FILTER @language == "" || v.language == @language
			FILTER @rating == "" || v.database_specific.severity_rating == @rating
			SORT v.severity_num DESC
			LIMIT @limit
			LET tags = (FOR t IN OUTBOUND v._id vuln2tag RETURN t.code)
			RETURN {
				uuid: v.uuid,
				identifier: v.identifier,
				summary: v.summary,
				details: v.details,
				severity_num: v.severity_num,
				severity_rating: v.database_specific.severity_rating,
				language: v.language,
				category_code: v.category_code,
				aliases: v.aliases,
				tags: tags
			}
	`

	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"language": language,
			"rating":   rating,
			"limit":    limit,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var entries []map[string]interface{}
	for cursor.HasMore() {
		var entry map[string]interface{}
		if _, err := cursor.ReadDocument(ctx, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ResolveCategories fetches every defined category.
func ResolveCategories(db database.DBConnection) ([]map[string]interface{}, error) {
	return resolveDictionary(db, `
		FOR c IN category
			SORT c.code ASC
			RETURN { code: c.code, name: c.name, description: c.description }
	`)
}

// ResolveTags fetches every defined tag.
func ResolveTags(db database.DBConnection) ([]map[string]interface{}, error) {
	return resolveDictionary(db, `
		FOR t IN tag
			SORT t.code ASC
			RETURN { code: t.code, name: t.name }
	`)
}

// ResolveSeverityDistribution aggregates entry counts per severity rating.
func ResolveSeverityDistribution(db database.DBConnection) ([]map[string]interface{}, error) {
	return resolveDictionary(db, `
		FOR v IN vulnerability
			FILTER v.deleted != true
			COLLECT rating = v.database_specific.severity_rating WITH COUNT INTO count
			SORT count DESC
			RETURN { rating: rating != null ? rating : "UNKNOWN", count: count }
	`)
}

func resolveDictionary(db database.DBConnection, query string) ([]map[string]interface{}, error) {
	ctx := context.Background()

	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var rows []map[string]interface{}
	for cursor.HasMore() {
		var row map[string]interface{}
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
