// Command semcache-migrate applies the schema under migrations/ to a
// Postgres database. Flag shape grounded on the teacher's cmd/migrate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quietloop/semcache/pkg/semcache/migrate"
)

const defaultMigrationsPath = "migrations"

var (
	dsn           = flag.String("dsn", "", "Postgres connection string (or $SEMCACHE_DSN)")
	migrationsDir = flag.String("dir", defaultMigrationsPath, "Migrations directory")
	versionFlag   = flag.Bool("version", false, "Show current schema version and exit")
	timeout       = flag.Duration("timeout", time.Minute, "Migration timeout")
)

func main() {
	flag.Parse()

	dsnValue := *dsn
	if dsnValue == "" {
		dsnValue = os.Getenv("SEMCACHE_DSN")
	}
	if dsnValue == "" {
		fmt.Println("Error: -dsn or $SEMCACHE_DSN is required")
		flag.Usage()
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", dsnValue)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	manager, err := migrate.NewManager(db, migrate.Config{
		MigrationsPath: *migrationsDir,
		Timeout:        *timeout,
	})
	if err != nil {
		log.Fatalf("failed to build migration manager: %v", err)
	}

	if *versionFlag {
		version, dirty, err := manager.Version()
		if err != nil {
			log.Fatalf("failed to read schema version: %v", err)
		}
		fmt.Printf("schema version: %d (dirty=%v)\n", version, dirty)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	if err := manager.Up(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migrations applied successfully")
}
