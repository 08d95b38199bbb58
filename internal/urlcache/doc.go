// Package urlcache decides whether a feed item was already posted.
//
// # Canonical identities
//
// Items are keyed by a canonical identity derived from their link with
// Normalize, so cosmetic variants of one URL map to the same key:
//
//	https://www.example.com/posts/42.html  -> example.com/posts/42
//	http://example.com/posts/42/           -> example.com/posts/42
//	http:example.com/drafts/../posts/42    -> example.com/posts/42
//	https://example.com/?p=7               -> example.com/?p=7
//
// The identity is only used for comparison. Posts always carry the URL
// exactly as it appeared in the feed.
//
// # Lifecycle
//
// A Cache belongs to one (chat ID, feed URL) pair and one processing cycle:
//
//	cache := urlcache.New(storage, chatID, feedURL, 1000)
//	if err := cache.Load(ctx); err != nil {
//	    return err // do not continue with an empty cache
//	}
//	isNew, err := cache.Insert(item.Link)
//	...
//	err = cache.Save(ctx)
//
// The cache keeps at most its capacity of identities and evicts the oldest
// first.
//
// # Storage
//
// FileStorage keeps one UTF-8 text file per pair with one identity per line,
// oldest first. store.SQLiteStore implements the same Storage interface with
// one row per pair.
package urlcache
