// Package dedupe provides a bounded, insertion-ordered set of keys with
// first-in-first-out eviction.
package dedupe
