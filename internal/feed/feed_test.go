// ABOUTME: Tests for HTTP feed fetching and item conversion
// ABOUTME: Serves RSS and Atom documents from httptest servers

package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>https://example.com/</link>
    <description>Example feed</description>
    <item>
      <title> First post </title>
      <link> https://example.com/posts/1.html </link>
      <guid>post-1</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <author>alice@example.com (Alice)</author>
    </item>
    <item>
      <title>No link</title>
      <guid isPermaLink="false">post-2</guid>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <id>urn:example</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <id>urn:example:1</id>
    <link href="https://example.com/atom/1"/>
    <updated>2024-01-01T00:00:00Z</updated>
    <published>2024-01-01T00:00:00Z</published>
    <author><name>Bob</name></author>
  </entry>
</feed>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_RSS(t *testing.T) {
	srv := serve(t, http.StatusOK, rssDoc)
	f := NewHTTPFetcher(5*time.Second, "test-agent")

	items, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://example.com/posts/1.html", items[0].Link)
	assert.Equal(t, "First post", items[0].Title)
	assert.Equal(t, "post-1", items[0].GUID)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", items[0].Published)
	assert.Equal(t, "Alice", items[0].Author)

	assert.Empty(t, items[1].Link, "items without a link keep an empty Link")
	assert.Equal(t, "No link", items[1].Title)
}

func TestHTTPFetcher_Atom(t *testing.T) {
	srv := serve(t, http.StatusOK, atomDoc)
	f := NewHTTPFetcher(5*time.Second, "test-agent")

	items, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/atom/1", items[0].Link)
	assert.Equal(t, "Bob", items[0].Author)
}

func TestHTTPFetcher_BadStatus(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "nope")
	f := NewHTTPFetcher(5*time.Second, "test-agent")

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_NotAFeed(t *testing.T) {
	srv := serve(t, http.StatusOK, "<html><body>hello</body></html>")
	f := NewHTTPFetcher(5*time.Second, "test-agent")

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing feed")
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	srv := serve(t, http.StatusOK, rssDoc)
	f := NewHTTPFetcher(5*time.Second, "test-agent")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPFetcher_DefaultUserAgent(t *testing.T) {
	f := NewHTTPFetcher(time.Second, "")
	assert.Equal(t, DefaultUserAgent, f.userAgent)
}
