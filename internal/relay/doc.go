// Package relay posts new feed items to chats.
//
// A cycle for one configured feed loads the feed's URL cache, fetches the
// feed, inserts every item URL into the cache and delivers the items whose
// identity was not already present, then saves the cache. Cycles for
// different feeds run concurrently and never share a cache, so a failure in
// one feed leaves the others untouched.
//
// Items that cannot be identified (no URL, or a URL the normalizer rejects)
// are skipped and reported to the owner room. Delivery failures are logged
// and recorded in the ledger; the identity stays in the cache, so the item
// is not retried on later cycles.
package relay
