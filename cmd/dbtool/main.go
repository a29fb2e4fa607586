package main

import (
	"context"
	"flag"
	"fleet-sequencing-service/internal/adapters/repositories"
	"fleet-sequencing-service/internal/config"
	"fleet-sequencing-service/internal/platform/db"
	"log"
	"os"
)

// dbtool initializes the schema and optionally seeds drivers, orders and stops
// from a JSON file. It reads the same DB_* variables as the server.
func main() {
	config.LoadDotEnv()

	seedPath := flag.String("seed", config.Get("SEED_PATH", ""), "seed JSON file (empty skips seeding)")
	schemaOnly := flag.Bool("schema-only", false, "create tables and exit")
	flag.Parse()

	conn, dialect, err := db.Connect(
		config.Get("DB_DRIVER", "sqlite"),
		os.Getenv("DATABASE_URL"),
		config.Get("DB_PATH", "data/app.db"),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ctx := context.Background()

	log.Printf("Initializing database schema driver=%s...", dialect)
	if err := repositories.InitSchema(ctx, conn, dialect); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	if *schemaOnly || *seedPath == "" {
		return
	}

	log.Printf("Seeding database path=%s...", *seedPath)
	if err := repositories.SeedFromJSON(ctx, conn, dialect, *seedPath); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")
}
