package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/bookmarks"
	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	"github.com/bijbelquiz/bijbellezer/internal/remote"
)

// testFetcher satisfies remote.Fetcher with synthesized content.
type testFetcher struct{}

func (testFetcher) FetchVerses(ctx context.Context, bookID string, chapter, startVerse, endVerse int) ([]remote.Verse, error) {
	if startVerse < 1 {
		startVerse = 1
	}
	if endVerse < startVerse {
		count, err := catalog.VerseCount(bookID, chapter)
		if err != nil {
			return nil, &remote.Error{Message: "unknown scope", Err: err}
		}
		endVerse = count
	}
	result := make([]remote.Verse, 0, endVerse-startVerse+1)
	for v := startVerse; v <= endVerse; v++ {
		result = append(result, remote.Verse{
			BookID:  bookID,
			Chapter: chapter,
			Verse:   v,
			Text:    fmt.Sprintf("vers %s %d:%d", bookID, chapter, v),
		})
	}
	return result, nil
}

func (testFetcher) FetchBooks(ctx context.Context) ([]catalog.BookRef, error) {
	return catalog.Books(), nil
}

func (testFetcher) FetchChapters(ctx context.Context, bookID string) ([]catalog.ChapterRef, error) {
	return catalog.Chapters(bookID)
}

func (testFetcher) Search(ctx context.Context, query string) ([]remote.Verse, error) {
	return nil, nil
}

// testMonitor is a fixed connectivity answer.
type testMonitor struct{ online bool }

func (m testMonitor) IsOnline() bool                 { return m.online }
func (m testMonitor) Subscribe(fn func(bool)) func() { return func() {} }

const (
	eventuallyTimeout = 5 * time.Second
	eventuallyTick    = 10 * time.Millisecond
)

type testEnv struct {
	router     *gin.Engine
	verseStore *verses.Repository
	scheduler  *downloader.Scheduler
}

func setupRouter(t *testing.T, apiKey string) (*testEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_router_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	verseStore := verses.NewRepository(db.DB)
	downloadRepo := downloads.NewRepository(db.DB)
	bookmarkRepo := bookmarks.NewRepository(db.DB)
	fetcher := testFetcher{}
	scheduler := downloader.NewScheduler(verseStore, downloadRepo, fetcher, downloader.DefaultConfig())
	coordinator := content.NewCoordinator(verseStore, bookmarkRepo, fetcher, testMonitor{online: true}, false)

	router := NewRouter(RouterConfig{
		Database:    db,
		VerseStore:  verseStore,
		Downloads:   downloadRepo,
		Bookmarks:   bookmarkRepo,
		Coordinator: coordinator,
		Scheduler:   scheduler,
		APIKey:      apiKey,
		Version:     "test",
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return &testEnv{router: router, verseStore: verseStore, scheduler: scheduler}, cleanup
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPIKeyGuardsEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t, "geheim")
	defer cleanup()

	w := doJSON(env.router, "GET", "/v1/books", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(env.router, "GET", "/v1/books", nil, map[string]string{"X-API-Key": "fout"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(env.router, "GET", "/v1/books", nil, map[string]string{"X-API-Key": "geheim"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays reachable without a key.
	w = doJSON(env.router, "GET", "/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListBooksIncludesCoverage(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	require.NoError(t, env.verseStore.UpsertVerses([]verses.VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "In den beginne"},
	}))

	w := doJSON(env.router, "GET", "/v1/books", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listings []BookListing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listings))
	require.Len(t, listings, 66)
	assert.Equal(t, "gen", listings[0].ID)
	assert.Equal(t, 1, listings[0].DownloadedVerses)
	assert.Equal(t, 1533, listings[0].TotalVerses)
	assert.Equal(t, 0, listings[1].DownloadedVerses)
}

func TestGetChapterEndpoint(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	w := doJSON(env.router, "GET", "/v1/books/gen/chapters/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var chapter content.Chapter
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chapter))
	assert.Equal(t, "Genesis", chapter.BookName)
	assert.Len(t, chapter.Verses, 31)

	w = doJSON(env.router, "GET", "/v1/books/gen/chapters/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadLifecycleEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	w := doJSON(env.router, "POST", "/v1/downloads", map[string]any{
		"type":    "chapter",
		"book_id": "gen",
		"chapter": 1,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created taskView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 31, created.TotalItems)

	// The foreground goroutine finishes quickly against the fake fetcher.
	require.Eventually(t, func() bool {
		task, err := env.scheduler.Task(created.ID)
		return err == nil && task.IsTerminal()
	}, eventuallyTimeout, eventuallyTick)

	w = doJSON(env.router, "GET", "/v1/downloads/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched taskView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, 100, fetched.Progress)

	w = doJSON(env.router, "GET", "/v1/downloads", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []taskView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	// Cancelling a completed task is a state conflict.
	w = doJSON(env.router, "POST", "/v1/downloads/"+created.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(env.router, "GET", "/v1/downloads/onbekend", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnqueueValidation(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	w := doJSON(env.router, "POST", "/v1/downloads", map[string]any{"type": "chapter"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(env.router, "POST", "/v1/downloads", map[string]any{
		"type":    "book",
		"book_id": "nope",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfflineEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	// Forcing offline mode with nothing downloaded is rejected.
	w := doJSON(env.router, "PUT", "/v1/offline/mode", map[string]any{"enabled": true}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, env.verseStore.UpsertVerses([]verses.VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "In den beginne"},
	}))

	w = doJSON(env.router, "PUT", "/v1/offline/mode", map[string]any{"enabled": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state content.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.ForcedOffline)

	w = doJSON(env.router, "GET", "/v1/offline/coverage/gen?chapter=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, "GET", "/v1/offline/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, "DELETE", "/v1/offline/content?book_id=gen", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, "GET", "/v1/offline/coverage/gen?chapter=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cov map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cov))
	assert.Equal(t, float64(0), cov["downloaded_verses"])
}

func TestBookmarkEndpoints(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	w := doJSON(env.router, "POST", "/v1/bookmarks", map[string]any{
		"book_id": "jhn",
		"chapter": 3,
		"verse":   16,
		"label":   "favoriet",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(env.router, "POST", "/v1/bookmarks", map[string]any{
		"book_id": "nope",
		"chapter": 1,
		"verse":   1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(env.router, "GET", "/v1/bookmarks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)

	id := int(all[0]["id"].(float64))
	w = doJSON(env.router, "DELETE", fmt.Sprintf("/v1/bookmarks/%d", id), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	env, cleanup := setupRouter(t, "")
	defer cleanup()

	w := doJSON(env.router, "GET", "/v1/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, env.verseStore.UpsertVerses([]verses.VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "In den beginne schiep God"},
	}))

	w = doJSON(env.router, "GET", "/v1/search?q=beginne", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count   int                 `json:"count"`
		Results []content.SearchHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.True(t, resp.Results[0].Local)
}
