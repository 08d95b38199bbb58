// Package feed retrieves feeds and converts their entries to Items.
//
// HTTPFetcher understands RSS 0.9x/1.0/2.0, Atom and JSON Feed documents.
// A fetch or parse failure is returned as a single error; the relay treats
// it as fatal for that feed's cycle only.
package feed
