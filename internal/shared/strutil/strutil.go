// Package strutil holds small string helpers shared across mux packages.
package strutil

import "regexp"

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens a string to at most n characters, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OrDefault returns s if it's not empty, or def if s is empty.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return reThink.ReplaceAllString(s, "")
}
