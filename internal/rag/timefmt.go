package rag

import "fmt"

// FormatTimestamp renders seconds as M:SS under one hour and H:MM:SS
// otherwise. Both RAG stages use this same rendering for any timestamp
// shown to a human.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}
