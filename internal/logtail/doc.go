// Package logtail prints the end of the jamie log file for `jamie -logs`.
// The terminal UI owns stdout while running, so the client logs JSON to a
// file; this package reads it back and renders it with zerolog's console
// writer.
package logtail
