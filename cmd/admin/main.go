package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	repopg "github.com/tendant/simple-media/pkg/simplemedia/repo/postgres"
)

const usage = `Simple Media Admin CLI

USAGE:
  admin <command> [arguments]

COMMANDS:
  migrate                      Apply pending database migrations
  list <owner-id> [--json]     List the newest files of an owner
  mark-failed <storage-key>    Mark an upload as failed

ENVIRONMENT VARIABLES:
  DATABASE_URL      PostgreSQL connection string (required for migrate)
  DB_SCHEMA         PostgreSQL schema name
  STORAGE_URL       Storage connection string (see the server)

  Configuration can be loaded from a .env file in the current directory.
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch command {
	case "migrate":
		err = handleMigrate(ctx, cfg)
	case "list":
		err = handleList(ctx, cfg, args)
	case "mark-failed":
		err = handleMarkFailed(ctx, cfg, args)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func handleMigrate(ctx context.Context, cfg *config.ServerConfig) error {
	if cfg.DatabaseType != "postgres" {
		return errors.New("DATABASE_URL must point to postgres")
	}
	pool, err := config.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repopg.Migrate(ctx, pool, repopg.MigrateConfig{SchemaName: cfg.DBSchema}); err != nil {
		return err
	}
	fmt.Println("Migrations applied")
	return nil
}

func handleList(ctx context.Context, cfg *config.ServerConfig, args []string) error {
	if len(args) < 1 {
		return errors.New("owner id is required")
	}
	ownerID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}
	useJSON := len(args) > 1 && args[1] == "--json"

	rt, err := cfg.BuildService(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	page, err := rt.Service.ListFiles(ctx, simplemedia.ListFilesRequest{OwnerID: ownerID, Limit: cfg.List.MaxLimit})
	if err != nil {
		return err
	}

	if useJSON {
		snapshots := make([]simplemedia.MediaSnapshot, 0, len(page.Files))
		for _, m := range page.Files {
			snapshots = append(snapshots, m.Snapshot())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshots)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS\tCREATED")
	for _, m := range page.Files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID(), m.FileName(), m.FileSize(), m.Status(), m.CreatedAt().Format(simplemedia.CursorTimeLayout))
	}
	return w.Flush()
}

func handleMarkFailed(ctx context.Context, cfg *config.ServerConfig, args []string) error {
	if len(args) < 1 {
		return errors.New("storage key is required")
	}

	rt, err := cfg.BuildService(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Service.MarkFailed(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Marked %s as failed\n", args[0])
	return nil
}
