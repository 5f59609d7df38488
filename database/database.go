// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = InitLogger() // setup the logger

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
	Sparse     bool
}

var initDone = false          // has the data been initialized
var dbConnection DBConnection // database connection definition

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase is the function for connecting to the db engine, creating the database and collections
func InitializeDatabase() DBConnection {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var db arangodb.Database
	var collections map[string]arangodb.Collection
	const databaseName = "cosv"

	ctx := context.Background()

	if initDone {
		return dbConnection
	}

	dbhost := GetEnvDefault("ARANGO_HOST", "localhost")
	dbport := GetEnvDefault("ARANGO_PORT", "8529")
	dbuser := GetEnvDefault("ARANGO_USER", "root")
	dbpass := GetEnvDefault("ARANGO_PASS", "mypassword")
	dburl := GetEnvDefault("ARANGO_URL", "http://"+dbhost+":"+dbport)

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	// Configure exponential backoff
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	// Retry logic
	err := backoff.RetryNotify(func() error {
		fmt.Println("Attempting to connect to ArangoDB")
		endpoint := connection.NewRoundRobinEndpoints([]string{dburl})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, dbuser, dbpass))

		client = arangodb.NewClient(conn)

		// Ask the version of the server
		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'\n", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		fmt.Printf("Retrying connection to ArangoDB: %v\n", err)
	})

	if err != nil {
		logger.Sugar().Fatalf("Backoff Error %v\n", err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			logger.Sugar().Fatalf("Failed to get Database: %v", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			logger.Sugar().Fatalf("Failed to create Database: %v", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections = make(map[string]arangodb.Collection)
	collectionNames := []string{"raw_cosv_file", "vulnerability", "alias", "category", "tag", "organization", "org_member"}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use collection: %v", err)
			}
		} else {
			if col, err = db.CreateCollectionV2(ctx, collectionName, nil); err != nil {
				logger.Sugar().Fatalf("Failed to create collection: %v", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Edge collection creation
	//

	edgeCollectionNames := []string{"vuln2tag"}

	for _, edgeCollectionName := range edgeCollectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, edgeCollectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, edgeCollectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use edge collection: %v", err)
			}
		} else {
			edgeType := arangodb.CollectionTypeEdge
			if col, err = db.CreateCollectionV2(ctx, edgeCollectionName, &arangodb.CreateCollectionPropertiesV2{
				Type: &edgeType,
			}); err != nil {
				logger.Sugar().Fatalf("Failed to create edge collection: %v", err)
			}
		}

		collections[edgeCollectionName] = col
	}

	//
	// Index creation
	//

	idxList := []indexConfig{
		// Raw file indexes
		{Collection: "raw_cosv_file", IdxName: "raw_file_uuid", IdxFields: []string{"uuid"}, Unique: true},
		{Collection: "raw_cosv_file", IdxName: "raw_file_status", IdxFields: []string{"status"}},
		{Collection: "raw_cosv_file", IdxName: "raw_file_user", IdxFields: []string{"user_uuid"}},
		{Collection: "raw_cosv_file", IdxName: "raw_file_org", IdxFields: []string{"org_uuid"}},
		{Collection: "raw_cosv_file", IdxName: "raw_file_checksum", IdxFields: []string{"checksum_sha256"}},

		// Vulnerability catalog indexes. The unique identifier index is the
		// backstop against concurrent imports of the same advisory: the
		// second writer fails at insert time.
		{Collection: "vulnerability", IdxName: "vuln_uuid", IdxFields: []string{"uuid"}, Unique: true},
		{Collection: "vulnerability", IdxName: "vuln_identifier", IdxFields: []string{"identifier"}, Unique: true, Sparse: true},
		{Collection: "vulnerability", IdxName: "vuln_severity_num", IdxFields: []string{"severity_num"}},
		{Collection: "vulnerability", IdxName: "vuln_severity_rating", IdxFields: []string{"database_specific.severity_rating"}},
		{Collection: "vulnerability", IdxName: "vuln_language", IdxFields: []string{"language"}},
		{Collection: "vulnerability", IdxName: "vuln_category", IdxFields: []string{"category_code"}},
		{Collection: "vulnerability", IdxName: "vuln_package_name", IdxFields: []string{"affected[*].package.name"}},
		{Collection: "vulnerability", IdxName: "vuln_package_purl", IdxFields: []string{"affected[*].package.purl"}},
		{Collection: "vulnerability", IdxName: "vuln_deleted", IdxFields: []string{"deleted"}},

		// Alias binding indexes. One owner per alias, enforced here rather
		// than in application code.
		{Collection: "alias", IdxName: "alias_unique", IdxFields: []string{"alias"}, Unique: true},
		{Collection: "alias", IdxName: "alias_vuln", IdxFields: []string{"vulnerability_uuid"}},

		// Dictionary indexes
		{Collection: "category", IdxName: "category_code_unique", IdxFields: []string{"code"}, Unique: true},
		{Collection: "category", IdxName: "category_name", IdxFields: []string{"name"}},
		{Collection: "tag", IdxName: "tag_code_unique", IdxFields: []string{"code"}, Unique: true},
		{Collection: "tag", IdxName: "tag_name", IdxFields: []string{"name"}},

		// Organization indexes
		{Collection: "organization", IdxName: "org_uuid", IdxFields: []string{"uuid"}, Unique: true},
		{Collection: "org_member", IdxName: "org_member_pair", IdxFields: []string{"org_uuid", "user_uuid"}, Unique: true},
		{Collection: "org_member", IdxName: "org_member_role", IdxFields: []string{"role"}},

		// Edge collection indexes for tag traversals
		{Collection: "vuln2tag", IdxName: "vuln2tag_from", IdxFields: []string{"_from"}},
		{Collection: "vuln2tag", IdxName: "vuln2tag_to", IdxFields: []string{"_to"}},
		{Collection: "vuln2tag", IdxName: "vuln2tag_pair", IdxFields: []string{"_from", "_to"}, Unique: true},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			unique := idx.Unique
			sparse := idx.Sparse
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &unique,
				Sparse: &sparse,
				Name:   idx.IdxName,
			}

			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions)
			if err != nil {
				logger.Sugar().Fatalln("Error creating index:", err)
			} else {
				logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
			}
		}
	}

	initDone = true

	dbConnection = DBConnection{
		Database:    db,
		Collections: collections,
	}

	logger.Sugar().Infof("Database initialization complete")

	return dbConnection
}
