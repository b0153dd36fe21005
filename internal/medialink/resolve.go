// SPDX-License-Identifier: MIT

// Package medialink rewrites human-facing share links into directly
// fetchable URLs and extracts embedded-video identifiers.
package medialink

import (
	"regexp"
	"strings"
)

// driveIDPattern matches the file ID in the three share-link shapes Google
// Drive hands out: file/d/<id>, open?id=<id> and uc?id=<id>.
var driveIDPattern = regexp.MustCompile(`drive\.google\.com/(?:file/d/|open\?id=|uc\?id=)([\w-]+)`)

// Resolve rewrites a share-style URL into a directly fetchable one. URLs
// matching neither known shape pass through unchanged. Resolve is
// idempotent: the rewritten forms no longer match the share patterns.
func Resolve(url string) string {
	if strings.Contains(url, "drive.google.com") {
		if m := driveIDPattern.FindStringSubmatch(url); m != nil {
			return "https://docs.google.com/uc?export=download&id=" + m[1]
		}
	}
	if strings.Contains(url, "dropbox.com") {
		url = strings.Replace(url, "www.dropbox.com", "dl.dropboxusercontent.com", 1)
		url = strings.Replace(url, "?dl=0", "", 1)
		return url
	}
	return url
}
