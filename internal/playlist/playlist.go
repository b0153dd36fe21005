// SPDX-License-Identifier: MIT

// Package playlist defines the media items a screen cycles through and the
// synchronized document that carries them.
package playlist

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaType classifies how an item is rendered and advanced.
type MediaType string

const (
	TypeImage MediaType = "image"
	TypeVideo MediaType = "video"
	TypeEmbed MediaType = "embed"
)

// FitMode controls how an item is scaled into the frame. Presentation only.
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
	// FitSmart renders a blurred, scaled copy of the item behind a contained
	// foreground.
	FitSmart FitMode = "smart"
)

// Item is one playlist entry. Items are owned by the remote store; the
// player only ever observes whole-playlist snapshots and never mutates one.
type Item struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Type     MediaType `json:"type"`
	Duration int       `json:"duration"` // seconds; 0 means advance on end-of-media
	FitMode  FitMode   `json:"fitMode,omitempty"`
	Order    int       `json:"order,omitempty"`
}

// Validate reports whether the item can be played at all.
func (it Item) Validate() error {
	if strings.TrimSpace(it.URL) == "" {
		return fmt.Errorf("item %q: empty url", it.ID)
	}
	switch it.Type {
	case TypeImage, TypeVideo, TypeEmbed:
	default:
		return fmt.Errorf("item %q: unknown media type %q", it.ID, it.Type)
	}
	if it.Duration < 0 {
		return fmt.Errorf("item %q: negative duration %d", it.ID, it.Duration)
	}
	return nil
}

// Command is a one-shot remote instruction. Timestamp is the sender's clock
// in milliseconds and orders redeliveries of the same command.
type Command struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// CommandReload forces a full process restart on the device.
const CommandReload = "RELOAD"

// Document is one synchronized snapshot for a screen. Fields are pointers
// because an absent field means "unchanged", not "clear".
type Document struct {
	Playlist    *[]Item  `json:"playlist,omitempty"`
	Orientation *string  `json:"orientation,omitempty"`
	Command     *Command `json:"command,omitempty"`
}

// ParseDocument decodes a document snapshot. Malformed items are dropped
// rather than propagated: a single bad descriptor must never reach the
// playback path. The returned slice of errors describes what was dropped.
func ParseDocument(data []byte) (Document, []error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, []error{fmt.Errorf("decode document: %w", err)}
	}

	var dropped []error
	if doc.Playlist != nil {
		kept := make([]Item, 0, len(*doc.Playlist))
		for _, it := range *doc.Playlist {
			if err := it.Validate(); err != nil {
				dropped = append(dropped, err)
				continue
			}
			kept = append(kept, it)
		}
		doc.Playlist = &kept
	}
	return doc, dropped
}
