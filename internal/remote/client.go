package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
)

// Fetcher is the narrow contract the engine consumes. *Client implements it
// over HTTP; tests substitute fakes.
type Fetcher interface {
	FetchBooks(ctx context.Context) ([]catalog.BookRef, error)
	FetchChapters(ctx context.Context, bookID string) ([]catalog.ChapterRef, error)
	FetchVerses(ctx context.Context, bookID string, chapter, startVerse, endVerse int) ([]Verse, error)
	Search(ctx context.Context, query string) ([]Verse, error)
}

// Client fetches Bible content from the remote source over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a remote source client with a bounded request timeout.
// A timed-out fetch is indistinguishable from any other network error to
// callers.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// FetchBooks retrieves the remote book list.
func (c *Client) FetchBooks(ctx context.Context) ([]catalog.BookRef, error) {
	var books []catalog.BookRef
	if err := c.getJSON(ctx, c.baseURL+"/books", &books); err != nil {
		return nil, err
	}
	return books, nil
}

// FetchChapters retrieves the chapter list of a book.
func (c *Client) FetchChapters(ctx context.Context, bookID string) ([]catalog.ChapterRef, error) {
	var chapters []catalog.ChapterRef
	u := fmt.Sprintf("%s/books/%s/chapters", c.baseURL, url.PathEscape(bookID))
	if err := c.getJSON(ctx, u, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// FetchVerses retrieves a verse range of a chapter. startVerse/endVerse of 0
// mean "from the beginning" and "to the end" respectively.
func (c *Client) FetchVerses(ctx context.Context, bookID string, chapter, startVerse, endVerse int) ([]Verse, error) {
	u := fmt.Sprintf("%s/books/%s/chapters/%d/verses", c.baseURL, url.PathEscape(bookID), chapter)
	params := url.Values{}
	if startVerse > 0 {
		params.Set("start", fmt.Sprint(startVerse))
	}
	if endVerse > 0 {
		params.Set("end", fmt.Sprint(endVerse))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var verses []Verse
	if err := c.getJSON(ctx, u, &verses); err != nil {
		return nil, err
	}
	return verses, nil
}

// Search runs a full-text search on the remote source.
func (c *Client) Search(ctx context.Context, query string) ([]Verse, error) {
	u := c.baseURL + "/search?q=" + url.QueryEscape(query)
	var verses []Verse
	if err := c.getJSON(ctx, u, &verses); err != nil {
		return nil, err
	}
	return verses, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: "fetch " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Message: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Message: "decode response", Err: err}
	}
	return nil
}
