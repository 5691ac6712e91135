package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchVerses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/gen/chapters/1/verses", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("start"))
		assert.Equal(t, "3", r.URL.Query().Get("end"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"book_id":"gen","chapter":1,"verse":1,"text":"In den beginne"},
			{"book_id":"gen","chapter":1,"verse":2,"text":"De aarde nu was woest"},
			{"book_id":"gen","chapter":1,"verse":3,"text":"En God zeide"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	verses, err := client.FetchVerses(context.Background(), "gen", 1, 1, 3)
	require.NoError(t, err)
	require.Len(t, verses, 3)
	assert.Equal(t, "gen", verses[0].BookID)
	assert.Equal(t, "In den beginne", verses[0].Text)
}

func TestFetchVersesOmitsUnboundedRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchVerses(context.Background(), "gen", 1, 0, 0)
	require.NoError(t, err)
}

func TestFetchBooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books", r.URL.Path)
		w.Write([]byte(`[{"id":"gen","name":"Genesis","testament":"old","chapters":50}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	books, err := client.FetchBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Genesis", books[0].Name)
}

func TestSearchEscapesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hemel en aarde", r.URL.Query().Get("q"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Search(context.Background(), "hemel en aarde")
	require.NoError(t, err)
}

func TestNonOKStatusIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchVerses(context.Background(), "gen", 1, 0, 0)
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.Contains(t, err.Error(), "503")
}

func TestDecodeFailureIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchBooks(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
}

func TestConnectionFailureIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FetchBooks(context.Background())
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
}
