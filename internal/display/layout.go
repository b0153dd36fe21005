// SPDX-License-Identifier: MIT

// Package display computes the geometry of the rendered surface for a
// requested orientation on a physical viewport.
package display

// Orientation is the remote-requested display orientation.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// ParseOrientation normalises a remote value; anything unknown falls back
// to landscape so a bad document can never blank the screen.
func ParseOrientation(s string) Orientation {
	if s == string(Portrait) {
		return Portrait
	}
	return Landscape
}

// Frame describes the box the current item is rendered into. When Rotated
// is set the box is viewport-height by viewport-width, centered, with a
// 90-degree transform applied.
type Frame struct {
	Width   int
	Height  int
	Rotated bool
}

// Layout decides whether the rendered surface must be rotated to satisfy
// the requested orientation. Rotation is needed exactly when portrait is
// requested on a viewport that is wider than tall. Pure and idempotent;
// callers re-invoke it on every viewport resize.
func Layout(o Orientation, viewportW, viewportH int) Frame {
	if o == Portrait && viewportW > viewportH {
		return Frame{Width: viewportH, Height: viewportW, Rotated: true}
	}
	return Frame{Width: viewportW, Height: viewportH}
}
