// ABOUTME: Renders feed items into chat messages using post_format templates
// ABOUTME: Produces a plain-text body and an HTML body rendered from Markdown with goldmark

package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/2389/coven-feeds/internal/feed"
)

// Message is a rendered post.
type Message struct {
	Body string // plain text fallback
	HTML string // formatted body; empty if rendering failed
}

// Template placeholders. A literal backslash-n in the template is a newline,
// so one-line config values can still produce multi-line posts.
const (
	placeholderTitle  = "$title"
	placeholderURL    = "$url"
	placeholderDate   = "$date"
	placeholderAuthor = "$author"
	escapedNewline    = `\n`
)

var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(), // templates may carry inline HTML such as <b>$title</b>
	),
)

// Format fills tmpl with the item's fields. Missing fields become empty
// strings. Each placeholder is replaced once, so values that themselves
// contain "$url" and the like are not expanded again.
func Format(tmpl string, item feed.Item) Message {
	body := strings.NewReplacer(
		escapedNewline, "\n",
		placeholderTitle, item.Title,
		placeholderURL, item.Link,
		placeholderDate, item.Published,
		placeholderAuthor, item.Author,
	).Replace(tmpl)

	source := strings.NewReplacer(
		escapedNewline, "\n",
		placeholderTitle, escapeMarkdown(item.Title),
		placeholderURL, markdownLink(item.Link),
		placeholderDate, escapeMarkdown(item.Published),
		placeholderAuthor, escapeMarkdown(item.Author),
	).Replace(tmpl)

	formatted, err := ToHTML(source)
	if err != nil {
		formatted = ""
	}

	return Message{Body: body, HTML: formatted}
}

// ToHTML renders Markdown to HTML without the trailing newline.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// escapeMarkdown backslash-escapes every ASCII punctuation character so
// feed-provided text is rendered literally, including '<' and '&'.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 && isASCIIPunct(byte(r)) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') || (c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}

// markdownLink turns a URL into an autolink when it can be one.
func markdownLink(link string) string {
	if link == "" {
		return ""
	}
	if strings.ContainsAny(link, " \t\r\n<>") || !strings.Contains(link, ":") {
		return escapeMarkdown(link)
	}
	return "<" + link + ">"
}
