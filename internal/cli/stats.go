package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/config"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
)

// StatsCommand prints statistics about the local content store.
type StatsCommand struct {
	DatabasePath string
	ShowCoverage bool
}

func NewStatsCommand() *StatsCommand {
	return &StatsCommand{}
}

func (cmd *StatsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local content database")
	fs.BoolVar(&cmd.ShowCoverage, "coverage", false, "Also print per-scope coverage records")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s stats [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print statistics about downloaded content.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *StatsCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store := verses.NewRepository(db.DB)

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Println("Local Content Store")
	fmt.Println("===================")
	fmt.Printf("Verses:         %d\n", stats.TotalVerses)
	fmt.Printf("Books:          %d\n", stats.TotalBooks)
	fmt.Printf("Chapters:       %d\n", stats.TotalChapters)
	fmt.Printf("Estimated size: %d bytes\n", stats.EstimatedSize)

	if len(stats.ByTestament) > 0 {
		fmt.Println("\nBy testament:")
		for testament, count := range stats.ByTestament {
			fmt.Printf("  %-5s %d\n", testament, count)
		}
	}

	if cmd.ShowCoverage {
		records, err := store.AllCoverage()
		if err != nil {
			return fmt.Errorf("failed to read coverage: %w", err)
		}
		fmt.Println("\nCoverage:")
		for _, rec := range records {
			name := rec.BookID
			if book, err := catalog.ByID(rec.BookID); err == nil {
				name = book.Name
			}
			scope := name
			if rec.Chapter != 0 {
				scope = fmt.Sprintf("%s %d", name, rec.Chapter)
			}
			marker := ""
			if rec.IsComplete {
				marker = " (complete)"
			}
			fmt.Printf("  %-25s %d/%d verses%s\n", scope, rec.DownloadedVerses, rec.TotalVerses, marker)
		}
	}

	return nil
}
