package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/menuwatch/internal/pkg/config"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: migrate [-dir migrations] up")
	}

	cfg, err := config.Load("menuwatch-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.Driver == "sqlite" {
		log.Println("sqlite store applies its schema on open; nothing to do")
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch flag.Arg(0) {
	case "up":
		files, err := migrationFiles(*dir)
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		runMigrations(ctx, pool, files)
	default:
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
}

// migrationFiles returns the *.sql files of dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// runMigrations executes every file. Migrations are written to be re-runnable.
func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}
