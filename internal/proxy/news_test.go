package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/geocoder89/dashboard/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>BBC News</title>
    <item>
      <title>First headline</title>
      <link>https://example.com/first</link>
      <pubDate>Mon, 02 Mar 2026 09:00:00 GMT</pubDate>
      <description><![CDATA[<p>Something   <b>happened</b> today.</p>]]></description>
    </item>
    <item>
      <title>Second headline</title>
      <link>https://example.com/second</link>
    </item>
  </channel>
</rss>`

const emptyFeed = `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirstNewsItem(t *testing.T) {
	srv := feedServer(t, rssFeed)
	store := cache.NewMemory(time.Minute)
	c := newTestClient(t, srv, store, nil)

	item, err := c.FirstNewsItem(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)

	assert.Equal(t, NewsItem{
		Title:          "First headline",
		Link:           "https://example.com/first",
		PubDate:        "Mon, 02 Mar 2026 09:00:00 GMT",
		ContentSnippet: "Something happened today.",
	}, item)

	// second call is served from the cache and parsed again
	again, err := c.FirstNewsItem(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)
	assert.Equal(t, item, again)
}

func TestFirstNewsItem_Errors(t *testing.T) {
	srv := feedServer(t, emptyFeed)
	c := newTestClient(t, srv, nil, nil)

	tests := []struct {
		name    string
		url     string
		kind    apperr.Kind
		message string
	}{
		{"missing url", "", apperr.KindValidation, "A valid RSS feed URL is required"},
		{"bad scheme", "file:///etc/passwd", apperr.KindValidation, "A valid RSS feed URL is required"},
		{"no host", "http://", apperr.KindValidation, "A valid RSS feed URL is required"},
		{"empty feed", srv.URL + "/rss", apperr.KindDependency, "Failed to fetch or parse RSS feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FirstNewsItem(context.Background(), tt.url)
			appErr := apperr.From(err)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestFirstNewsItem_NotAFeed(t *testing.T) {
	srv := feedServer(t, `{"not":"xml"}`)
	c := newTestClient(t, srv, nil, nil)

	_, err := c.FirstNewsItem(context.Background(), srv.URL)
	assert.Equal(t, "Failed to fetch or parse RSS feed", apperr.From(err).Message)
}

func TestTextSnippet(t *testing.T) {
	assert.Equal(t, "Tom & Jerry", textSnippet("<p>Tom &amp;\n  Jerry</p>"))
	assert.Equal(t, "plain text", textSnippet("plain text"))
	assert.Equal(t, "", textSnippet(""))
}

func TestFirstNewsItem_BadFeedsDoNotOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rss" {
			_, _ = w.Write([]byte(rssFeed))
			return
		}
		_, _ = w.Write([]byte(`<html><body>not a feed</body></html>`))
	}))
	defer srv.Close()

	metrics := &recordedMetrics{}
	c := newTestClient(t, srv, nil, metrics)
	ctx := context.Background()

	// threshold is 2
	for i := 0; i < 5; i++ {
		_, err := c.FirstNewsItem(ctx, fmt.Sprintf("%s/page/%d", srv.URL, i))
		require.Error(t, err)
	}

	item, err := c.FirstNewsItem(ctx, srv.URL+"/rss")
	require.NoError(t, err)
	assert.Equal(t, "First headline", item.Title)
	assert.Contains(t, metrics.all(), "news:invalid_body")
	assert.NotContains(t, metrics.all(), "news:circuit_open")
}

func TestFirstNewsItem_FailingHostDoesNotBlockOthers(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	healthy := feedServer(t, rssFeed)

	metrics := &recordedMetrics{}
	c := newTestClient(t, broken, nil, metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.FirstNewsItem(ctx, broken.URL+"/rss")
		require.Error(t, err)
	}
	assert.Equal(t, "news:circuit_open", metrics.all()[len(metrics.all())-1])

	_, err := c.FirstNewsItem(ctx, healthy.URL+"/rss")
	require.NoError(t, err)
}
