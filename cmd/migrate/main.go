package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/spmanalyzer/internal/history"
	"github.com/chrissnell/spmanalyzer/internal/log"
	"github.com/chrissnell/spmanalyzer/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbPath   = flag.String("db", "spmanalyzer.db", "Path to the SQLite history database")
		command  = flag.String("command", "status", "Migration command: up, to, version, status")
		target   = flag.Int("target", -1, "Target version for the to command")
		helpFlag = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := history.SQLiteMigrator(db, log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "to":
		if *target < 0 {
			fmt.Fprintf(os.Stderr, "Error: -target is required for the to command\n")
			os.Exit(1)
		}
		err = migrator.MigrateTo(ctx, *target)
	case "version":
		var v int
		if v, err = migrator.Version(ctx); err == nil {
			fmt.Printf("Current version: %d\n", v)
		}
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	current, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	pending, err := migrator.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", current)
	fmt.Printf("Pending migrations: %d\n", len(pending))
	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, mig := range pending {
			fmt.Printf("  %d: %s\n", mig.Version, mig.Name)
		}
	}
	return nil
}

func showHelp() {
	fmt.Println("History Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -db string         SQLite history database (default: spmanalyzer.db)")
	fmt.Println("  -command string    Migration command (default: status)")
	fmt.Println("  -target int        Target version for the to command")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  to                 Migrate to a specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -db spmanalyzer.db -command up")
	fmt.Println("  migrate -db spmanalyzer.db -command to -target 1")
}
