package main

import (
	"database/sql"
	"flag"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"storefront/internal/config"
	"storefront/internal/database/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open PostgreSQL: %v", err)
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{
		MigrationsDir: *dir,
	})
	defer runner.Close()

	if *down {
		if err := runner.Down(); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("migrations rolled back")
		return
	}

	if err := runner.Up(); err != nil {
		log.Fatalf("migration up failed: %v", err)
	}
	log.Println("migrations applied")
}
