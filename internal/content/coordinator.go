// Package content is the single read façade the UI depends on. It decides
// per request whether to serve from the local store or the remote source,
// owns the offline-mode policy, and republishes state snapshots to
// subscribers on every mode change.
package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
	"github.com/bijbelquiz/bijbellezer/internal/remote"
)

// ErrContentUnavailable means neither the local store nor the remote source
// could satisfy a read.
var ErrContentUnavailable = errors.New("content unavailable offline and online")

// ErrNoOfflineContent means offline mode was requested with an empty store.
var ErrNoOfflineContent = errors.New("no offline content available")

// LocalStore is the slice of the verses repository the coordinator reads.
type LocalStore interface {
	GetVerses(bookID string, chapter int) ([]entities.StoredVerse, error)
	RecordChapterAccess(bookID string, chapter int) error
	Search(query string) ([]verses.SearchResult, error)
	Stats() (*entities.StoreStats, error)
	UpsertVerses(inputs []verses.VerseInput) error
}

// BookmarkStore feeds search ranking and records history.
type BookmarkStore interface {
	BookmarkedVerses() (map[string]bool, error)
	RecordSearch(query string, resultCount int) error
}

// Connectivity is the reachability signal the coordinator consumes.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
}

// State is the snapshot republished to subscribers.
type State struct {
	Offline       bool                `json:"offline"`
	ForcedOffline bool                `json:"forced_offline"`
	Online        bool                `json:"online"`
	Message       string              `json:"message,omitempty"`
	Stats         entities.StoreStats `json:"stats"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Chapter is an ordered chapter read, with the path it was served from and
// any degraded-mode message for display.
type Chapter struct {
	BookID   string   `json:"book_id"`
	BookName string   `json:"book_name"`
	Chapter  int      `json:"chapter"`
	Verses   []string `json:"verses"`
	Offline  bool     `json:"offline"`
	Message  string   `json:"message,omitempty"`
}

// SearchHit is one merged, deduplicated search result.
type SearchHit struct {
	BookID     string  `json:"book_id"`
	BookName   string  `json:"book_name"`
	Chapter    int     `json:"chapter"`
	Verse      int     `json:"verse"`
	Text       string  `json:"text"`
	Relevance  float64 `json:"relevance"`
	Local      bool    `json:"local"`
	Bookmarked bool    `json:"bookmarked"`
}

// Subscriber receives state snapshots.
type Subscriber func(state State)

// Coordinator mediates between the local store and the remote source.
type Coordinator struct {
	store            LocalStore
	bookmarks        BookmarkStore
	fetcher          remote.Fetcher
	monitor          Connectivity
	cacheOnlineReads bool

	mu            sync.Mutex
	forcedOffline bool
	autoOffline   bool
	message       string
	subscribers   map[int]Subscriber
	nextSubID     int
}

// NewCoordinator wires the coordinator and subscribes it to connectivity
// transitions. cacheOnlineReads persists online chapter reads into the
// local store as they happen; downloads stay the explicit persistence path
// when it is off.
func NewCoordinator(store LocalStore, bookmarks BookmarkStore, fetcher remote.Fetcher, monitor Connectivity, cacheOnlineReads bool) *Coordinator {
	c := &Coordinator{
		store:            store,
		bookmarks:        bookmarks,
		fetcher:          fetcher,
		monitor:          monitor,
		cacheOnlineReads: cacheOnlineReads,
		subscribers:      make(map[int]Subscriber),
	}
	monitor.Subscribe(c.onConnectivityChange)
	return c
}

// Subscribe registers fn for state snapshots and returns an unsubscribe
// func. This is the only write path the UI observes.
func (c *Coordinator) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	return c.snapshot()
}

// OfflineMode reports whether reads currently prefer the local store.
func (c *Coordinator) OfflineMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forcedOffline || c.autoOffline
}

// SetOfflineMode is the explicit user override. Enabling it with an empty
// local store fails with ErrNoOfflineContent.
func (c *Coordinator) SetOfflineMode(enabled bool) error {
	if enabled {
		stats, err := c.store.Stats()
		if err != nil {
			return err
		}
		if stats.TotalVerses == 0 {
			return ErrNoOfflineContent
		}
	}

	c.mu.Lock()
	c.forcedOffline = enabled
	if enabled {
		c.message = "Offline mode enabled. Downloaded content will be served."
	} else {
		c.autoOffline = !c.monitor.IsOnline()
		if c.autoOffline {
			c.message = "Offline mode disabled, but no connection. Downloaded content will be served."
		} else {
			c.message = ""
		}
	}
	c.mu.Unlock()

	c.publish()
	return nil
}

// GetChapter returns the verses of a chapter. In offline mode (explicit or
// detected) the local store is attempted first; a local miss falls through
// to the remote path with a degraded-mode message. It fails with
// ErrContentUnavailable only when both paths fail.
func (c *Coordinator) GetChapter(ctx context.Context, bookID string, chapter int) (*Chapter, error) {
	book, err := catalog.ByID(bookID)
	if err != nil {
		return nil, err
	}

	if c.OfflineMode() || !c.monitor.IsOnline() {
		rows, localErr := c.store.GetVerses(bookID, chapter)
		if localErr == nil {
			c.recordAccess(bookID, chapter)
			return &Chapter{
				BookID:   bookID,
				BookName: book.Name,
				Chapter:  chapter,
				Verses:   verseTexts(rows),
				Offline:  true,
				Message:  c.currentMessage(),
			}, nil
		}
		if !errors.Is(localErr, verses.ErrNotFound) {
			log.Printf("Local read failed for %s %d: %v", bookID, chapter, localErr)
		}

		// Not downloaded; the remote path may still work.
		fetched, remoteErr := c.fetcher.FetchVerses(ctx, bookID, chapter, 0, 0)
		if remoteErr != nil {
			return nil, fmt.Errorf("%s %d: %w", bookID, chapter, ErrContentUnavailable)
		}
		return &Chapter{
			BookID:   bookID,
			BookName: book.Name,
			Chapter:  chapter,
			Verses:   remoteTexts(fetched),
			Offline:  false,
			Message:  "This chapter is not downloaded; it was fetched online.",
		}, nil
	}

	fetched, remoteErr := c.fetcher.FetchVerses(ctx, bookID, chapter, 0, 0)
	if remoteErr == nil {
		if c.cacheOnlineReads {
			c.persistAsync(fetched)
		}
		return &Chapter{
			BookID:   bookID,
			BookName: book.Name,
			Chapter:  chapter,
			Verses:   remoteTexts(fetched),
		}, nil
	}

	// Remote failed while nominally online; the offline copy may save us.
	rows, localErr := c.store.GetVerses(bookID, chapter)
	if localErr != nil {
		return nil, fmt.Errorf("%s %d: %w", bookID, chapter, ErrContentUnavailable)
	}
	c.recordAccess(bookID, chapter)
	return &Chapter{
		BookID:   bookID,
		BookName: book.Name,
		Chapter:  chapter,
		Verses:   verseTexts(rows),
		Offline:  true,
		Message:  "Connection problem. Serving the downloaded copy.",
	}, nil
}

// Search merges local and remote results, deduplicated by verse identity
// with the local copy's metadata winning. The query lands in the search
// history as a side effect.
func (c *Coordinator) Search(ctx context.Context, query string) ([]SearchHit, error) {
	localResults, err := c.store.Search(query)
	if err != nil {
		return nil, err
	}

	bookmarked, err := c.bookmarks.BookmarkedVerses()
	if err != nil {
		log.Printf("Bookmark lookup failed during search: %v", err)
		bookmarked = map[string]bool{}
	}

	seen := make(map[string]int) // verse key -> index in hits
	hits := make([]SearchHit, 0, len(localResults))
	for _, res := range localResults {
		key := verseKey(res.Verse.BookID, res.Verse.Chapter, res.Verse.Verse)
		hit := SearchHit{
			BookID:     res.Verse.BookID,
			BookName:   res.Verse.BookName,
			Chapter:    res.Verse.Chapter,
			Verse:      res.Verse.Verse,
			Text:       res.Verse.Text,
			Relevance:  res.Relevance,
			Local:      true,
			Bookmarked: bookmarked[key],
		}
		if hit.Bookmarked {
			hit.Relevance += bookmarkBoost
		}
		seen[key] = len(hits)
		hits = append(hits, hit)
	}

	if !c.OfflineMode() && c.monitor.IsOnline() {
		remoteResults, remoteErr := c.fetcher.Search(ctx, query)
		if remoteErr != nil {
			log.Printf("Remote search failed, serving local results only: %v", remoteErr)
		}
		for _, v := range remoteResults {
			key := verseKey(v.BookID, v.Chapter, v.Verse)
			if _, dup := seen[key]; dup {
				continue // prefer the local copy's metadata
			}
			name := v.BookID
			if book, err := catalog.ByID(v.BookID); err == nil {
				name = book.Name
			}
			hit := SearchHit{
				BookID:     v.BookID,
				BookName:   name,
				Chapter:    v.Chapter,
				Verse:      v.Verse,
				Text:       v.Text,
				Relevance:  remoteRelevance,
				Bookmarked: bookmarked[key],
			}
			if hit.Bookmarked {
				hit.Relevance += bookmarkBoost
			}
			seen[key] = len(hits)
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})

	go func() {
		if err := c.bookmarks.RecordSearch(query, len(hits)); err != nil {
			log.Printf("Failed to record search history: %v", err)
		}
	}()

	return hits, nil
}

// Ranking constants. Remote hits score below any local phrase match so the
// downloaded copy surfaces first.
const (
	bookmarkBoost   = 25.0
	remoteRelevance = 40.0
)

// onConnectivityChange implements the automatic mode transition: going
// offline with non-empty coverage auto-enables offline serving; coming back
// online reverts it unless the user forced offline mode.
func (c *Coordinator) onConnectivityChange(online bool) {
	c.mu.Lock()
	if online {
		c.autoOffline = false
		if !c.forcedOffline {
			c.message = "Connection restored. Serving online content."
		}
		c.mu.Unlock()
		c.publish()
		return
	}
	c.mu.Unlock()

	stats, err := c.store.Stats()
	if err != nil {
		log.Printf("Stats lookup failed on connectivity change: %v", err)
		stats = &entities.StoreStats{}
	}

	c.mu.Lock()
	if stats.TotalVerses > 0 {
		c.autoOffline = true
		c.message = "No connection. Your downloaded content will be served."
	} else {
		c.message = "No connection and no downloaded content available."
	}
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) recordAccess(bookID string, chapter int) {
	go func() {
		if err := c.store.RecordChapterAccess(bookID, chapter); err != nil {
			log.Printf("Failed to record access for %s %d: %v", bookID, chapter, err)
		}
	}()
}

func (c *Coordinator) persistAsync(fetched []remote.Verse) {
	inputs := make([]verses.VerseInput, 0, len(fetched))
	for _, v := range fetched {
		inputs = append(inputs, verses.VerseInput{
			BookID:  v.BookID,
			Chapter: v.Chapter,
			Verse:   v.Verse,
			Text:    v.Text,
		})
	}
	go func() {
		if err := c.store.UpsertVerses(inputs); err != nil {
			log.Printf("Failed to cache online read: %v", err)
		}
	}()
}

func (c *Coordinator) currentMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func (c *Coordinator) snapshot() State {
	stats, err := c.store.Stats()
	if err != nil {
		log.Printf("Stats lookup failed for state snapshot: %v", err)
		stats = &entities.StoreStats{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Offline:       c.forcedOffline || c.autoOffline,
		ForcedOffline: c.forcedOffline,
		Online:        c.monitor.IsOnline(),
		Message:       c.message,
		Stats:         *stats,
		UpdatedAt:     time.Now(),
	}
}

func (c *Coordinator) publish() {
	state := c.snapshot()

	c.mu.Lock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func verseKey(bookID string, chapter, verse int) string {
	return fmt.Sprintf("%s:%d:%d", bookID, chapter, verse)
}

func verseTexts(rows []entities.StoredVerse) []string {
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text
	}
	return texts
}

func remoteTexts(rows []remote.Verse) []string {
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text
	}
	return texts
}
