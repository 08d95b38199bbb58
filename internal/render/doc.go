// Package render turns feed items into chat messages.
package render
