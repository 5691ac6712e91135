package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/bijbelquiz/bijbellezer/internal/config"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
)

// ClearCommand removes downloaded content from the local store.
type ClearCommand struct {
	DatabasePath string
	BookID       string
	Chapter      int
	All          bool
}

func NewClearCommand() *ClearCommand {
	return &ClearCommand{}
}

func (cmd *ClearCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local content database")
	fs.StringVar(&cmd.BookID, "book", "", "Remove a single book's content")
	fs.IntVar(&cmd.Chapter, "chapter", 0, "Remove a single chapter (requires -book)")
	fs.BoolVar(&cmd.All, "all", false, "Remove all downloaded content")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s clear (-all | -book <id> [-chapter <n>]) [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remove downloaded content. Bookmarks and download history are kept.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !cmd.All && cmd.BookID == "" {
		return fmt.Errorf("either -all or -book must be provided")
	}
	if cmd.All && cmd.BookID != "" {
		return fmt.Errorf("-all and -book are mutually exclusive")
	}
	if cmd.Chapter != 0 && cmd.BookID == "" {
		return fmt.Errorf("-chapter requires -book")
	}

	return nil
}

func (cmd *ClearCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store := verses.NewRepository(db.DB)

	if cmd.All {
		if err := store.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear content: %w", err)
		}
		fmt.Println("All downloaded content removed.")
		return nil
	}

	if err := store.ClearScope(cmd.BookID, cmd.Chapter); err != nil {
		return fmt.Errorf("failed to clear content: %w", err)
	}
	if cmd.Chapter != 0 {
		fmt.Printf("Removed %s chapter %d.\n", cmd.BookID, cmd.Chapter)
	} else {
		fmt.Printf("Removed %s.\n", cmd.BookID)
	}
	return nil
}
