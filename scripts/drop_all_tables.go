package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"medialib/internal/repository/postgres"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Read environment to determine table prefix
	prefix := os.Getenv("TABLE_PREFIX")
	if prefix == "" {
		env := os.Getenv("ENVIRONMENT")
		if env == "" {
			env = "dev" // Default to dev
		}
		prefix = env + "_"
	}
	if strings.HasPrefix(prefix, "prod") {
		log.Fatal("refusing to drop production tables")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Children before parents
	for _, table := range postgres.NewTableNames(prefix).All() {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE"); err != nil {
			log.Fatalf("Failed to drop %s: %v", table, err)
		}
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}
