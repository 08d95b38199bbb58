// ABOUTME: application/x-www-form-urlencoded byte serializer for cache names
// ABOUTME: Keeps alphanumerics and "*-._", turns space into "+", escapes the rest

package urlcache

import "strings"

const upperHex = "0123456789ABCDEF"

// FormEncode form-urlencodes s for use in a cache name. Unlike
// url.QueryEscape it leaves '*' alone and escapes '~', matching the WHATWG
// urlencoded serializer byte for byte.
func FormEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case formSafe(c):
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
		}
	}
	return b.String()
}

func formSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '*', c == '-', c == '.', c == '_':
		return true
	}
	return false
}
