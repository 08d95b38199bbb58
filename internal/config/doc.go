// Package config handles configuration loading for coven-feeds.
//
// # Overview
//
// Configuration is loaded from TOML, YAML or JSON files (chosen by file
// extension) with environment variable expansion. The package fills in
// defaults and validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from COVEN_FEEDS_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/coven/feeds.toml (~/.config/coven/feeds.toml)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[matrix]
//	access_token = "${COVEN_FEEDS_MATRIX_TOKEN}"
//
// Unset variables expand to an empty string.
//
// # Example
//
//	[general]
//	owner_id = "!ops:example.org"   # receives notices about broken items
//	interval = "15m"
//	fetch_timeout = "30s"
//
//	[matrix]
//	homeserver = "https://matrix.example.org"
//	user_id = "@feeds:example.org"
//	access_token = "${COVEN_FEEDS_MATRIX_TOKEN}"
//
//	[storage]
//	backend = "file"   # file or sqlite
//	path = "cache"
//
//	[[feeds]]
//	url = "https://blog.example.com/rss.xml"
//	chat_id = "!news:example.org"
//	post_format = "**$title**\n\n$url"
//	url_cache_size = 1000
//
// The JSON layout of older deployments (general.owner_id, general.debug and
// a feeds array) loads unchanged.
//
// # Defaults
//
//   - post_format: "$title\n\n$url"
//   - url_cache_size: 1000 (an explicit 0 disables deduplication)
//   - interval: 15m, fetch_timeout: 30s
//   - storage: file backend in "cache"; the CLI resolves relative storage
//     paths against the data directory ($XDG_DATA_HOME/coven)
//   - general.debug = true implies logging.level = "debug"
package config
