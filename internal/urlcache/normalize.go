// ABOUTME: URL normalization into canonical identities used as cache keys
// ABOUTME: Only affects the in-cache representation, never the URLs that get posted

package urlcache

import (
	"strings"

	whatwg "github.com/nlnwa/whatwg-url/url"
)

const wwwPrefix = "www."

// postSuffixes are tried in order; at most one is stripped.
var postSuffixes = []string{".htm", ".html"}

// Normalize maps a raw item URL to its canonical identity:
// the domain without a leading "www.", a slash, and the post identifier.
//
// URLs are parsed the way browsers parse them (WHATWG URL Standard), so
// dot segments are resolved, special-scheme slashes are repaired and
// internationalized hosts come out as punycode.
//
// The post identifier is the path with surrounding slashes trimmed and one
// ".htm"/".html" suffix removed. When the path is empty the query string
// becomes the identifier instead, so "?p=123" style permalinks stay distinct.
// Scheme, port, fragment and (for non-empty paths) the query are ignored.
//
// Relative URLs are rejected with ErrInvalidURL. URLs without a domain name,
// including IP literal hosts, are rejected with ErrNoDomain.
func Normalize(rawURL string) (string, error) {
	u, err := whatwg.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &URLError{URL: rawURL, Err: ErrInvalidURL, Cause: err}
	}

	domain := u.Hostname()
	if domain == "" || u.IsIPv4() || u.IsIPv6() {
		return "", &URLError{URL: rawURL, Err: ErrNoDomain}
	}
	domain = strings.TrimPrefix(domain, wwwPrefix)

	post := strings.Trim(u.Pathname(), "/")
	if post == "" {
		if query, ok := rawQuery(u); ok {
			post = "?" + query
		}
	} else {
		for _, suffix := range postSuffixes {
			if stripped, ok := strings.CutSuffix(post, suffix); ok {
				post = stripped
				break
			}
		}
	}

	return domain + "/" + post, nil
}

// rawQuery returns the serialized query and whether one is present at all.
// A bare "?" is a present but empty query.
func rawQuery(u *whatwg.Url) (string, bool) {
	if q := u.Query(); q != "" {
		return q, true
	}
	return "", strings.HasSuffix(u.Href(true), "?")
}
