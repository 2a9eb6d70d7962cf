package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	results []Result
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(context.Context, string) ([]Result, error) {
	return f.results, f.err
}

func TestSearchAllMergesResponders(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", results: []Result{{Title: "A", Content: "alpha content", SourceName: "a"}}},
		&fakeSource{name: "b", err: ErrSourceUnavailable},
		&fakeSource{name: "c", results: []Result{{Title: "C", Content: "gamma content", SourceName: "c"}}},
	}

	results, err := SearchAll(context.Background(), sources, "anything")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchAllAllFailed(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", err: ErrSourceUnavailable},
		&fakeSource{name: "b", err: errors.New("boom")},
	}

	_, err := SearchAll(context.Background(), sources, "anything")
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestSearchAllDedupes(t *testing.T) {
	same := Result{Title: "X", Content: "Same content, twice."}
	sources := []Source{
		&fakeSource{name: "a", results: []Result{same}},
		&fakeSource{name: "b", results: []Result{{Title: "Y", Content: "same content twice"}}},
	}

	results, err := SearchAll(context.Background(), sources, "anything")
	require.NoError(t, err)
	// normalized hashing collapses the formatting differences
	assert.Len(t, results, 1)
}

func TestDuckDuckGoSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go language", r.URL.Query().Get("q"))
		w.Write([]byte(`{"Heading":"Go","AbstractText":"Go is a programming language.","AbstractURL":"https://example.com/go"}`))
	}))
	defer server.Close()

	src := NewDuckDuckGo()
	src.endpoint = server.URL

	results, err := src.Search(context.Background(), "go language")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "duckduckgo", results[0].SourceName)
}

func TestDuckDuckGoUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewDuckDuckGo()
	src.endpoint = server.URL

	_, err := src.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestWikipediaSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("list") {
		case "search":
			w.Write([]byte(`{"query":{"search":[{"title":"Go (programming language)","snippet":"<span>Go</span> is a language","pageid":1}]}}`))
		default:
			w.Write([]byte(`{"query":{"pages":{"1":{"title":"Go (programming language)","extract":"Go is a statically typed language."}}}}`))
		}
	}))
	defer server.Close()

	src := NewWikipedia()
	src.endpoint = server.URL

	results, err := src.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go is a statically typed language.", results[0].Content)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Go is a language", stripTags(`<span class="hl">Go</span> is a language`))
}
