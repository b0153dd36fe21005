// SPDX-License-Identifier: MIT

package medialink

import (
	"fmt"
	"regexp"
)

// videoIDLen is the fixed length of a valid video identifier. Candidates of
// any other length are rejected even when the URL shape matches.
const videoIDLen = 11

// videoIDPattern accepts the watch, embed, shortlink and legacy /v/ URL
// shapes of the video service and captures the candidate identifier.
var videoIDPattern = regexp.MustCompile(`(?:youtu\.be/|/v/|/u/\w/|/embed/|watch\?v=|&v=)([^#&?/]+)`)

// VideoID extracts the canonical 11-character video identifier from url.
// The second return value is false when no shape matches or the captured
// candidate has the wrong length.
func VideoID(url string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(url)
	if m == nil || len(m[1]) != videoIDLen {
		return "", false
	}
	return m[1], true
}

// EmbedURL builds the playback embed URL for a video identifier. Autoplay
// requires muted audio in unattended environments; controls and related
// content are suppressed, and the control API is enabled so the player can
// attach end/error listeners.
func EmbedURL(id string) string {
	return fmt.Sprintf(
		"https://www.youtube.com/embed/%s?autoplay=1&mute=1&controls=0&rel=0&showinfo=0&iv_load_policy=3&enablejsapi=1",
		id,
	)
}
