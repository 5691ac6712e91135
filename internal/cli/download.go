package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/config"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
	"github.com/bijbelquiz/bijbellezer/internal/remote"
)

// DownloadCommand downloads a book, chapter or verse range into the local
// store, running the task to completion in the foreground.
type DownloadCommand struct {
	BookID       string
	Chapter      int
	StartVerse   int
	EndVerse     int
	DatabasePath string
	RemoteURL    string
	BatchSize    int
	Verbose      bool
}

func NewDownloadCommand() *DownloadCommand {
	return &DownloadCommand{}
}

func (cmd *DownloadCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	fs.StringVar(&cmd.BookID, "book", "", "Book identifier, e.g. 'gen' or 'mat' (required)")
	fs.IntVar(&cmd.Chapter, "chapter", 0, "Chapter number (omit to download the whole book)")
	fs.IntVar(&cmd.StartVerse, "start", 0, "First verse of a range (requires -chapter)")
	fs.IntVar(&cmd.EndVerse, "end", 0, "Last verse of a range (requires -chapter)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local content database")
	fs.StringVar(&cmd.RemoteURL, "remote", config.DefaultRemoteBaseURL, "Base URL of the remote content API")
	fs.IntVar(&cmd.BatchSize, "batch", 10, "Number of verses fetched per request")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print progress for every persisted batch")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s download -book <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Download Bible content for offline reading.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Download the whole book of Genesis:\n")
		fmt.Fprintf(os.Stderr, "  %s download -book gen\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Download John chapter 3:\n")
		fmt.Fprintf(os.Stderr, "  %s download -book jhn -chapter 3\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Download John 3:16-18:\n")
		fmt.Fprintf(os.Stderr, "  %s download -book jhn -chapter 3 -start 16 -end 18\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.BookID == "" {
		return fmt.Errorf("required flag -book not provided")
	}
	if (cmd.StartVerse != 0 || cmd.EndVerse != 0) && cmd.Chapter == 0 {
		return fmt.Errorf("-start/-end require -chapter")
	}

	return nil
}

func (cmd *DownloadCommand) Run() error {
	book, err := catalog.ByID(cmd.BookID)
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	verseStore := verses.NewRepository(db.DB)
	taskRepo := downloads.NewRepository(db.DB)
	fetcher := remote.NewClient(cmd.RemoteURL, 30*time.Second)

	cfg := downloader.DefaultConfig()
	cfg.BatchSize = cmd.BatchSize
	sched := downloader.NewScheduler(verseStore, taskRepo, fetcher, cfg)

	if cmd.Verbose {
		unsubscribe := sched.Subscribe(func(task entities.DownloadTask) {
			fmt.Printf("  %s: %d/%d verses (%d%%)\n", task.Status, task.DownloadedItems, task.TotalItems, task.Progress())
		})
		defer unsubscribe()
	}

	scope := downloader.Scope{
		Type:       entities.DownloadTypeBook,
		BookID:     cmd.BookID,
		Chapter:    cmd.Chapter,
		StartVerse: cmd.StartVerse,
		EndVerse:   cmd.EndVerse,
	}
	switch {
	case cmd.StartVerse != 0 || cmd.EndVerse != 0:
		scope.Type = entities.DownloadTypeVerseRange
	case cmd.Chapter != 0:
		scope.Type = entities.DownloadTypeChapter
	}

	fmt.Printf("Downloading %s", book.Name)
	if cmd.Chapter != 0 {
		fmt.Printf(" %d", cmd.Chapter)
	}
	fmt.Println("...")

	task, err := sched.Enqueue(scope, false)
	if err != nil {
		return fmt.Errorf("failed to enqueue download: %w", err)
	}

	if err := sched.Start(context.Background(), task.ID); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	final, err := sched.Task(task.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d/%d verses stored (%s)\n", final.DownloadedItems, final.TotalItems, final.Status)

	return nil
}
