// Package matrix delivers rendered feed posts to Matrix rooms.
//
// Deliverer wraps a mautrix client. It authenticates with an access token or
// a password login, and when a recovery key is configured it enables
// end-to-end encryption backed by a per-user SQLite crypto store. Outgoing
// messages to encrypted rooms are then encrypted automatically.
//
// LogDeliverer satisfies the same contract without a homeserver and is used
// when general.dry_run is set.
package matrix
