package utils

import (
	"fmt"
	"regexp"
)

// YouTube video IDs are exactly 11 characters from this alphabet.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/shorts/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^([A-Za-z0-9_-]{11})$`),
}

// ExtractVideoID pulls the 11-character video ID out of any common
// YouTube URL form, or accepts a bare ID.
func ExtractVideoID(input string) (string, error) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract a video ID from %q", input)
}
