package proxy

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

var errEmptyFeed = errors.New("feed has no items")

type NewsItem struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	PubDate        string `json:"pubDate"`
	ContentSnippet string `json:"contentSnippet"`
}

// FirstNewsItem fetches an RSS or Atom feed and returns its first item.
func (c *Client) FirstNewsItem(ctx context.Context, feedURL string) (NewsItem, error) {
	if !validFeedURL(feedURL) {
		return NewsItem{}, apperr.Validation("A valid RSS feed URL is required", nil)
	}

	var feed *gofeed.Feed

	parse := func(body []byte) error {
		var err error
		feed, err = gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			return err
		}
		if len(feed.Items) == 0 {
			return errEmptyFeed
		}
		return nil
	}

	body, err := c.fetch(ctx, upstreamNews, "news:"+feedURL, feedURL, parse)
	if err != nil {
		return NewsItem{}, apperr.Dependency("Failed to fetch or parse RSS feed", err)
	}

	// cache hits skip the check, so parse the stored body here
	if feed == nil {
		if err := parse(body); err != nil {
			return NewsItem{}, apperr.Dependency("Failed to fetch or parse RSS feed", err)
		}
	}

	first := feed.Items[0]

	content := first.Content
	if content == "" {
		content = first.Description
	}

	return NewsItem{
		Title:          first.Title,
		Link:           first.Link,
		PubDate:        first.Published,
		ContentSnippet: textSnippet(content),
	}, nil
}

func validFeedURL(raw string) bool {
	if raw == "" {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// textSnippet drops markup from an HTML fragment and collapses whitespace.
func textSnippet(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
