// Package catalog implements the GraphQL types and resolvers for the
// vulnerability catalog read model.
package catalog

import "github.com/graphql-go/graphql"

// VulnerabilityType exposes one catalog entry.
var VulnerabilityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Vulnerability",
	Fields: graphql.Fields{
		"uuid":            &graphql.Field{Type: graphql.String},
		"identifier":      &graphql.Field{Type: graphql.String},
		"summary":         &graphql.Field{Type: graphql.String},
		"details":         &graphql.Field{Type: graphql.String},
		"severity_num":    &graphql.Field{Type: graphql.Float},
		"severity_rating": &graphql.Field{Type: graphql.String},
		"language":        &graphql.Field{Type: graphql.String},
		"category_code":   &graphql.Field{Type: graphql.String},
		"aliases":         &graphql.Field{Type: graphql.NewList(graphql.String)},
		"tags":            &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

// CategoryType exposes one dictionary category.
var CategoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Category",
	Fields: graphql.Fields{
		"code":        &graphql.Field{Type: graphql.String},
		"name":        &graphql.Field{Type: graphql.String},
		"description": &graphql.Field{Type: graphql.String},
	},
})

// TagType exposes one dictionary tag.
var TagType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Tag",
	Fields: graphql.Fields{
		"code": &graphql.Field{Type: graphql.String},
		"name": &graphql.Field{Type: graphql.String},
	},
})

// SeverityBucketType is one slice of the severity distribution.
var SeverityBucketType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SeverityBucket",
	Fields: graphql.Fields{
		"rating": &graphql.Field{Type: graphql.String},
		"count":  &graphql.Field{Type: graphql.Int},
	},
})
