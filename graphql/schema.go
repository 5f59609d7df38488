// Package graphql assembles the read-only GraphQL schema over the catalog.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/cosv-horizon/cosv-backend/database"
	"github.com/cosv-horizon/cosv-backend/graphql/modules/catalog"
)

var db database.DBConnection

// InitDB hands the resolvers their database connection. Must run before
// CreateSchema.
func InitDB(conn database.DBConnection) {
	db = conn
}

// CreateSchema builds the query schema. All fields are reads; mutations go
// through the REST ingestion endpoints.
func CreateSchema() (graphql.Schema, error) {
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"vulnerabilities": &graphql.Field{
				Type: graphql.NewList(catalog.VulnerabilityType),
				Args: graphql.FieldConfigArgument{
					"limit":           &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"language":        &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"severity_rating": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit, _ := p.Args["limit"].(int)
					language, _ := p.Args["language"].(string)
					rating, _ := p.Args["severity_rating"].(string)
					return catalog.ResolveVulnerabilities(db, language, rating, limit)
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(catalog.CategoryType),
				Resolve: func(_ graphql.ResolveParams) (interface{}, error) {
					return catalog.ResolveCategories(db)
				},
			},
			"tags": &graphql.Field{
				Type: graphql.NewList(catalog.TagType),
				Resolve: func(_ graphql.ResolveParams) (interface{}, error) {
					return catalog.ResolveTags(db)
				},
			},
			"severityDistribution": &graphql.Field{
				Type: graphql.NewList(catalog.SeverityBucketType),
				Resolve: func(_ graphql.ResolveParams) (interface{}, error) {
					return catalog.ResolveSeverityDistribution(db)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}
