//go:build integration

package store

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/elasticdoctor/webapp/config"
	"github.com/elasticdoctor/webapp/internal/secrets"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

var (
	testDB     *sql.DB
	testSealer *secrets.Sealer
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	schema, err := filepath.Abs("../db/migrations/mysql/000001_create_users_and_clusters.up.sql")
	if err != nil {
		log.Fatalf("failed to resolve schema path: %s", err)
	}

	container, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("elasticdoctor"),
		mysql.WithUsername("doctor"),
		mysql.WithPassword("password"),
		mysql.WithScripts(schema),
	)
	if err != nil {
		log.Fatalf("failed to start mysql container: %s", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate mysql container: %s", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "clientFoundRows=true", "loc=UTC")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	testDB, err = sql.Open(config.DriverMySQL, dsn)
	if err != nil {
		log.Fatalf("failed to connect to test database: %s", err)
	}
	defer testDB.Close()

	key, err := secrets.GenerateKey()
	if err != nil {
		log.Fatalf("failed to generate key: %s", err)
	}
	testSealer, err = secrets.NewSealer(key)
	if err != nil {
		log.Fatalf("failed to build sealer: %s", err)
	}

	return m.Run()
}
