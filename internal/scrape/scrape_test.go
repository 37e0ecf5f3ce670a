// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

const weatherPage = `<!DOCTYPE html>
<html><head><title> Istanbul Weather </title><style>body{color:red}</style></head>
<body>
  <header><a href="/">Home</a> | <a href="/news">News</a></header>
  <nav><ul><li>Menu item</li></ul></nav>
  <main>
    <h1>Istanbul, Türkiye</h1>
    <p>Current temperature:   <b>22°C</b>
       with clear skies.</p>
    <script>track("pageview")</script>
    <ul><li>Humidity 60%</li><li>Wind 12 km/h</li></ul>
  </main>
  <aside>Related: Ankara weather</aside>
  <footer>© Weather Co</footer>
</body></html>`

func TestExtractText(t *testing.T) {
	title, text, err := ExtractText(strings.NewReader(weatherPage))
	require.NoError(t, err)

	assert.Equal(t, "Istanbul Weather", title)
	got := normalizeText(text)
	assert.Equal(t, "Istanbul, Türkiye\nCurrent temperature: 22°C with clear skies.\nHumidity 60%\nWind 12 km/h", got)
}

func TestExtractTextPrefersArticle(t *testing.T) {
	page := `<html><body><div>Sidebar teaser</div><article><p>Story body.</p></article></body></html>`
	_, text, err := ExtractText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Story body.", normalizeText(text))
}

func TestHTTPFetcherFetch(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, weatherPage)
	}))
	defer ts.Close()

	f := NewHTTPFetcher(types.ScrapeConfig{})
	doc, err := f.Fetch(context.Background(), ts.URL+"/istanbul")
	require.NoError(t, err)

	assert.Equal(t, types.DefaultUserAgent, gotUA)
	assert.Equal(t, ts.URL+"/istanbul", doc.URL)
	assert.Equal(t, "Istanbul Weather", doc.Title)
	assert.Contains(t, doc.Text, "22°C")
	assert.NotContains(t, doc.Text, "Menu item")
	assert.NotContains(t, doc.Text, "pageview")
	assert.False(t, doc.Truncated)
}

func TestHTTPFetcherTruncates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", 50))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(types.ScrapeConfig{MaxChars: 10})
	doc, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10)+"...", doc.Text)
	assert.True(t, doc.Truncated)
}

func TestHTTPFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var se *httputil.StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusNotFound, se.Code)
			},
		},
		{
			name: "empty page",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `<html><body><nav>only nav</nav><script>x()</script></body></html>`)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoContent)
			},
		},
		{
			name: "pdf",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write([]byte("%PDF-1.7"))
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "unsupported content type")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := NewHTTPFetcher(types.ScrapeConfig{}).Fetch(context.Background(), ts.URL)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPFetcherDoesNotRetry(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewHTTPFetcher(types.ScrapeConfig{}).Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text  string
		n     int
		want  string
		trunc bool
	}{
		{"hello", 0, "hello", false},
		{"hello", 5, "hello", false},
		{"hello", 3, "hel...", true},
		{"şehir", 2, "şe...", true},
	}
	for _, tt := range tests {
		got, trunc := Truncate(tt.text, tt.n)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.trunc, trunc)
	}
}

func TestContentKind(t *testing.T) {
	assert.Equal(t, "html", contentKind(""))
	assert.Equal(t, "html", contentKind("text/html; charset=utf-8"))
	assert.Equal(t, "html", contentKind("application/xhtml+xml"))
	assert.Equal(t, "text", contentKind("text/plain"))
	assert.Equal(t, "", contentKind("image/png"))
}

func TestNewSelectsFetcher(t *testing.T) {
	assert.IsType(t, &HTTPFetcher{}, New(types.ScrapeConfig{}))
	assert.IsType(t, &BrowserFetcher{}, New(types.ScrapeConfig{Browser: true}))
}
