package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	pg "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

func main() {
	dsn := pflag.String("dsn", os.Getenv("DB_DSN"), "postgres DSN (defaults to $DB_DSN)")
	pflag.Parse()
	if *dsn == "" {
		log.Fatal("DB_DSN is empty")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := pg.Migrate(db); err != nil {
		log.Fatal(err)
	}
	log.Println("migrations: up OK")
}
