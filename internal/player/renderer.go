// SPDX-License-Identifier: MIT

package player

import (
	"context"

	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/playlist"
)

// Signal is a completion notification for the currently shown item.
type Signal int

const (
	// SignalEnded means the media reached its natural end.
	SignalEnded Signal = iota
	// SignalError means the media failed to load or play.
	SignalError
)

// Renderer is the output surface the engine draws on. Implementations must
// tolerate Show/Play being called while a previous item is still up: the
// new item replaces the old one.
//
// The notify callback may fire more than once, late, or never; the engine
// defends against all three.
type Renderer interface {
	// ShowImage displays an image. A returned error means the item could
	// not even be handed to the output; load failures discovered later
	// arrive through notify as SignalError.
	ShowImage(ctx context.Context, item playlist.Item, frame display.Frame, notify func(Signal)) error

	// PlayVideo starts a direct video. notify receives SignalEnded on
	// natural end and SignalError on playback failure.
	PlayVideo(ctx context.Context, item playlist.Item, frame display.Frame, notify func(Signal)) error

	// PlayEmbed starts embedded-service content by its embed URL. The
	// returned handle exposes a control API that becomes ready
	// asynchronously, possibly never.
	PlayEmbed(ctx context.Context, embedURL string, frame display.Frame) (EmbedHandle, error)

	// ShowPlaceholder renders the waiting-for-synchronization screen.
	ShowPlaceholder(ctx context.Context, message string)

	// Reframe applies new geometry to whatever is currently showing
	// without restarting it. Called on orientation changes and viewport
	// resizes.
	Reframe(frame display.Frame)

	// Stop tears down whatever is currently showing.
	Stop()

	// Viewport returns the physical output size in pixels.
	Viewport() (w, h int)
}

// EmbedHandle is a lazily-ready control surface for embedded content. The
// control API is loaded separately by the embedding service and may not be
// obtainable when the item is first shown.
type EmbedHandle interface {
	// Control returns the control API once it is ready. Callers poll at a
	// bounded interval until ok is true.
	Control() (EmbedControl, bool)

	// Release detaches the handle. Must be called when the item changes.
	Release()
}

// EmbedControl delivers state-change signals for embedded content.
type EmbedControl interface {
	// Events yields SignalEnded / SignalError notifications. The channel
	// closes when the handle is released.
	Events() <-chan Signal
}
