// Package metrics exposes Prometheus counters for the feed relay.
package metrics
