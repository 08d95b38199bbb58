// ABOUTME: Feed retrieval over HTTP and parsing of RSS, Atom and JSON feeds
// ABOUTME: Exposes a Fetcher interface so the relay can be tested without the network

package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "coven-feeds/1.0 (+https://github.com/2389/coven-feeds)"

// maxFeedSize bounds how much of a response body is parsed.
const maxFeedSize = 16 << 20

// Item is one entry of a feed. Empty fields were absent in the feed.
type Item struct {
	GUID      string
	Link      string
	Title     string
	Published string
	Author    string
}

// Fetcher retrieves the items of a feed, in feed order.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]Item, error)
}

// HTTPFetcher fetches feeds over HTTP and parses them with gofeed.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given request timeout and user agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch downloads and parses the feed at feedURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching feed: unexpected status %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	return convertItems(parsed.Items), nil
}

func convertItems(in []*gofeed.Item) []Item {
	items := make([]Item, 0, len(in))
	for _, it := range in {
		if it == nil {
			continue
		}
		item := Item{
			GUID:      it.GUID,
			Link:      strings.TrimSpace(it.Link),
			Title:     strings.TrimSpace(it.Title),
			Published: it.Published,
			Author:    authorName(it),
		}
		if item.Link == "" && len(it.Links) > 0 {
			item.Link = strings.TrimSpace(it.Links[0])
		}
		items = append(items, item)
	}
	return items
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil && it.Author.Name != "" {
		return it.Author.Name
	}
	for _, p := range it.Authors {
		if p != nil && p.Name != "" {
			return p.Name
		}
	}
	if it.Author != nil {
		return it.Author.Email
	}
	return ""
}
