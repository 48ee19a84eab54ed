package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	migrations "roadwatch.mg/ops/migrations"

	"roadwatch.mg/internal/migrate"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	var (
		dsn            = flag.String("dsn", os.Getenv("ROADWATCH_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", os.Getenv("ROADWATCH_MIGRATIONS_DIR"), "Path to SQL migrations (embedded when empty)")
		seedsPath      = flag.String("seeds", os.Getenv("ROADWATCH_SEEDS_DIR"), "Path to SQL seeds (embedded when empty)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or ROADWATCH_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	fsys, migDir, seedDir, err := source(*migrationsPath, *seedsPath)
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}
	mgr := migrate.NewManager(db, fsys, migDir, seedDir)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []migrate.Applied
		applied, err = mgr.Status(ctx)
		for _, a := range applied {
			fmt.Printf("%s\t%s\n", a.AppliedAt.UTC().Format(time.RFC3339), a.Name)
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// source picks the on-disk directories when both are given, else the
// migrations compiled into the binary.
func source(migDir, seedDir string) (fs.FS, string, string, error) {
	if migDir == "" || seedDir == "" {
		return migrations.FS, "sql", "seeds", nil
	}
	migDir = filepath.ToSlash(filepath.Clean(migDir))
	seedDir = filepath.ToSlash(filepath.Clean(seedDir))
	if !fs.ValidPath(migDir) || !fs.ValidPath(seedDir) {
		return nil, "", "", fmt.Errorf("directories must be relative to the working directory: %q, %q", migDir, seedDir)
	}
	return os.DirFS("."), migDir, seedDir, nil
}
