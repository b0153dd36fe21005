// SPDX-License-Identifier: MIT

// Package player implements the unattended playback engine: a single
// goroutine reactor that shows exactly one playlist item at a time and
// advances on a well-defined trigger, never more than once per showing.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/medialink"
	"github.com/totemview/totem/internal/metrics"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/telemetry"
)

// Trigger names the event that won a showing's advance latch.
type Trigger string

const (
	TriggerTimer      Trigger = "timer"
	TriggerMediaEnd   Trigger = "media_end"
	TriggerMediaError Trigger = "media_error"
	TriggerSafety     Trigger = "safety"
)

// placeholderMessage is rendered while no playlist has arrived yet.
const placeholderMessage = "waiting for synchronization"

// errorSkipDelay paces advances caused by synchronous render failures so a
// playlist whose every item is broken loops slowly instead of spinning.
const errorSkipDelay = 250 * time.Millisecond

// Tunables are the playback timings that may be hot-reloaded.
type Tunables struct {
	// ImageFallback is the display time for images with duration 0.
	ImageFallback time.Duration
	// SafetyCeiling bounds videos/embeds with duration 0 whose end signal
	// never arrives.
	SafetyCeiling time.Duration
	// EmbedPoll is the embed control readiness polling interval.
	EmbedPoll time.Duration
}

// Status is a read-only snapshot of the engine for the local API.
type Status struct {
	Position    int            `json:"position"`
	Playing     bool           `json:"playing"`
	Item        *playlist.Item `json:"item,omitempty"`
	Orientation string         `json:"orientation"`
	Frame       display.Frame  `json:"frame"`
	Advances    uint64         `json:"advances"`
	PlaylistLen int            `json:"playlistLen"`
}

// internal reactor events
type (
	evAdvance struct {
		seq       uint64
		trigger   Trigger
		mediaType playlist.MediaType
	}
	evEmbedPoll      struct{ seq uint64 }
	evSetPlaylist    struct{ items []playlist.Item }
	evSetOrientation struct{ o display.Orientation }
	evSetTunables    struct{ t Tunables }
	evResize         struct{}
)

// Engine owns the playback position and all per-showing timers. All state
// is confined to the Run goroutine; the public methods only post events.
type Engine struct {
	renderer Renderer
	clock    Clock
	logger   zerolog.Logger

	events chan any
	done   chan struct{}

	// reactor-owned state, touched only inside Run
	pl          []playlist.Item
	pos         int
	seq         uint64
	advanced    bool
	orientation display.Orientation
	tun         Tunables
	advances    uint64

	advanceTimer  Timer
	safetyTimer   Timer
	pollTimer     Timer
	embed         EmbedHandle
	showingCtx    context.Context
	showingCancel context.CancelFunc

	statusMu sync.RWMutex
	status   Status
}

// New creates an engine. Run must be called before the engine does anything.
func New(renderer Renderer, clock Clock, tun Tunables) *Engine {
	return &Engine{
		renderer:    renderer,
		clock:       clock,
		logger:      log.WithComponent("player"),
		events:      make(chan any, 64),
		done:        make(chan struct{}),
		orientation: display.Landscape,
		tun:         tun,
	}
}

// SetPlaylist replaces the playlist snapshot. The currently showing item is
// never interrupted; the next advance indexes into the new snapshot.
func (e *Engine) SetPlaylist(items []playlist.Item) { e.post(evSetPlaylist{items: items}) }

// SetOrientation applies a remote orientation change to the current frame.
func (e *Engine) SetOrientation(o display.Orientation) { e.post(evSetOrientation{o: o}) }

// SetTunables applies hot-reloaded playback timings to future showings.
func (e *Engine) SetTunables(t Tunables) { e.post(evSetTunables{t: t}) }

// Resize recomputes the frame after a viewport change.
func (e *Engine) Resize() { e.post(evResize{}) }

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// post delivers an event to the reactor, giving up once the engine has
// shut down so late timer callbacks cannot block forever.
func (e *Engine) post(ev any) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Run executes the reactor until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.show(ctx)
	for {
		select {
		case <-ctx.Done():
			e.teardown()
			return nil
		case ev := <-e.events:
			e.dispatch(ctx, ev)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case evAdvance:
		e.handleAdvance(ctx, ev)
	case evEmbedPoll:
		e.handleEmbedPoll(ev)
	case evSetPlaylist:
		e.handleSetPlaylist(ctx, ev.items)
	case evSetOrientation:
		if ev.o != e.orientation {
			e.logger.Info().
				Str(log.FieldEvent, "player.orientation").
				Str(log.FieldOldState, string(e.orientation)).
				Str(log.FieldNewState, string(ev.o)).
				Msg("orientation changed")
			e.orientation = ev.o
			e.renderer.Reframe(e.frame())
			e.publishStatus(e.currentItem())
		}
	case evSetTunables:
		e.tun = ev.t
	case evResize:
		e.renderer.Reframe(e.frame())
		e.publishStatus(e.currentItem())
	}
}

// handleAdvance is the advance latch: the first trigger for the current
// showing wins, everything else is a no-op. The latch keys on the showing
// sequence number, not a bare boolean, so a stray late callback from a
// previous position can never advance the new one.
func (e *Engine) handleAdvance(ctx context.Context, ev evAdvance) {
	if ev.seq != e.seq || e.advanced {
		metrics.RecordStaleTrigger()
		return
	}
	e.advanced = true
	e.advances++
	metrics.RecordAdvance(string(ev.trigger))
	if ev.trigger == TriggerMediaError {
		metrics.RecordMediaError(string(ev.mediaType))
	}

	e.logger.Debug().
		Str(log.FieldEvent, "player.advance").
		Str(log.FieldTrigger, string(ev.trigger)).
		Int(log.FieldPosition, e.pos).
		Uint64(log.FieldSeq, ev.seq).
		Msg("advancing")

	// The playlist can be replaced out from under an in-flight timer;
	// guard the modulo against a snapshot that emptied meanwhile.
	if len(e.pl) == 0 {
		e.show(ctx)
		return
	}
	e.pos = (e.pos + 1) % len(e.pl)
	e.show(ctx)
}

func (e *Engine) handleSetPlaylist(ctx context.Context, items []playlist.Item) {
	wasEmpty := len(e.pl) == 0
	e.pl = items
	metrics.SetPlaylistItems(len(items))
	e.publishStatus(e.currentItem())

	// An item that is up keeps showing; only an idle screen starts playing
	// immediately when content arrives.
	if wasEmpty && len(items) > 0 {
		e.pos = 0
		e.show(ctx)
	}
}

// show renders the item at the current position and arms its triggers.
// Every call opens a fresh showing: the sequence number increments, the
// latch resets, and everything armed for the previous showing is canceled.
func (e *Engine) show(ctx context.Context) {
	e.cancelShowing()
	e.seq++
	e.advanced = false

	if len(e.pl) == 0 {
		e.renderer.ShowPlaceholder(ctx, placeholderMessage)
		e.publishStatus(nil)
		return
	}
	if e.pos >= len(e.pl) {
		e.pos = e.pos % len(e.pl)
	}

	item := e.pl[e.pos]
	seq := e.seq
	e.showingCtx, e.showingCancel = context.WithCancel(ctx)

	e.logger.Info().
		Str(log.FieldEvent, "player.show").
		Str(log.FieldItemID, item.ID).
		Str(log.FieldMediaType, string(item.Type)).
		Int(log.FieldPosition, e.pos).
		Uint64(log.FieldSeq, seq).
		Msg("showing item")

	_, span := telemetry.Tracer("player").Start(e.showingCtx, "player.show")
	span.SetAttributes(telemetry.PlaybackAttributes(item.ID, string(item.Type), e.pos)...)
	err := e.render(e.showingCtx, item, seq)
	span.End()
	if err != nil {
		e.logger.Warn().Err(err).
			Str(log.FieldItemID, item.ID).
			Str(log.FieldURL, item.URL).
			Msg("render failed, skipping item")
		e.armErrorSkip(seq, item.Type)
		e.publishStatus(nil)
		return
	}
	e.publishStatus(&item)
}

// render hands one item to the renderer and arms its advance triggers. A
// panic out of the renderer is contained here: one malformed descriptor
// must never take the process down, it is skipped like any other broken
// item.
func (e *Engine) render(ctx context.Context, item playlist.Item, seq uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordRenderPanic()
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	frame := e.frame()
	notify := e.notifyFunc(seq, item.Type)

	switch item.Type {
	case playlist.TypeImage:
		if err := e.renderer.ShowImage(ctx, item, frame, notify); err != nil {
			return err
		}
		d := e.tun.ImageFallback
		if item.Duration > 0 {
			d = time.Duration(item.Duration) * time.Second
		}
		e.advanceTimer = e.clock.AfterFunc(d, func() {
			e.post(evAdvance{seq: seq, trigger: TriggerTimer, mediaType: item.Type})
		})

	case playlist.TypeVideo:
		if err := e.renderer.PlayVideo(ctx, item, frame, notify); err != nil {
			return err
		}
		e.armSafety(seq, item)

	case playlist.TypeEmbed:
		id, ok := medialink.VideoID(item.URL)
		if !ok {
			return fmt.Errorf("no video id in %q", item.URL)
		}
		handle, err := e.renderer.PlayEmbed(ctx, medialink.EmbedURL(id), frame)
		if err != nil {
			return err
		}
		e.embed = handle
		e.armSafety(seq, item)
		e.armEmbedPoll(seq)

	default:
		return fmt.Errorf("unplayable media type %q", item.Type)
	}
	return nil
}

// armSafety bounds the worst-case stall when the end-of-media signal never
// arrives. This is the one mechanism that guarantees the loop always moves.
func (e *Engine) armSafety(seq uint64, item playlist.Item) {
	limit := e.tun.SafetyCeiling
	if item.Duration > 0 {
		limit = time.Duration(item.Duration) * time.Second
	}
	e.safetyTimer = e.clock.AfterFunc(limit, func() {
		e.post(evAdvance{seq: seq, trigger: TriggerSafety, mediaType: item.Type})
	})
}

func (e *Engine) armEmbedPoll(seq uint64) {
	e.pollTimer = e.clock.AfterFunc(e.tun.EmbedPoll, func() {
		e.post(evEmbedPoll{seq: seq})
	})
}

// handleEmbedPoll retries until the embed control API is obtainable, then
// forwards its events into the reactor. If the API never becomes ready the
// safety timer remains the only advance path.
func (e *Engine) handleEmbedPoll(ev evEmbedPoll) {
	if ev.seq != e.seq || e.embed == nil {
		return
	}
	control, ok := e.embed.Control()
	if !ok {
		e.armEmbedPoll(ev.seq)
		return
	}

	notify := e.notifyFunc(ev.seq, playlist.TypeEmbed)
	showingCtx := e.showingCtx
	go func() {
		for {
			select {
			case <-showingCtx.Done():
				return
			case s, open := <-control.Events():
				if !open {
					return
				}
				notify(s)
			}
		}
	}()
}

func (e *Engine) notifyFunc(seq uint64, mt playlist.MediaType) func(Signal) {
	return func(s Signal) {
		trigger := TriggerMediaEnd
		if s == SignalError {
			trigger = TriggerMediaError
		}
		e.post(evAdvance{seq: seq, trigger: trigger, mediaType: mt})
	}
}

// armErrorSkip schedules the immediate-advance for a broken item, slightly
// paced so a fully broken playlist cannot spin the reactor.
func (e *Engine) armErrorSkip(seq uint64, mt playlist.MediaType) {
	e.advanceTimer = e.clock.AfterFunc(errorSkipDelay, func() {
		e.post(evAdvance{seq: seq, trigger: TriggerMediaError, mediaType: mt})
	})
}

// cancelShowing stops every trigger bound to the previous showing before a
// new one is armed. Late fires that already escaped are neutralized by the
// sequence check in handleAdvance.
func (e *Engine) cancelShowing() {
	if e.advanceTimer != nil {
		e.advanceTimer.Stop()
		e.advanceTimer = nil
	}
	if e.safetyTimer != nil {
		e.safetyTimer.Stop()
		e.safetyTimer = nil
	}
	if e.pollTimer != nil {
		e.pollTimer.Stop()
		e.pollTimer = nil
	}
	if e.embed != nil {
		e.embed.Release()
		e.embed = nil
	}
	if e.showingCancel != nil {
		e.showingCancel()
		e.showingCancel = nil
	}
}

func (e *Engine) teardown() {
	e.cancelShowing()
	e.renderer.Stop()
	close(e.done)
}

func (e *Engine) frame() display.Frame {
	w, h := e.renderer.Viewport()
	return display.Layout(e.orientation, w, h)
}

func (e *Engine) currentItem() *playlist.Item {
	if len(e.pl) == 0 || e.pos >= len(e.pl) {
		return nil
	}
	item := e.pl[e.pos]
	return &item
}

func (e *Engine) publishStatus(item *playlist.Item) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status = Status{
		Position:    e.pos,
		Playing:     item != nil,
		Item:        item,
		Orientation: string(e.orientation),
		Frame:       e.frame(),
		Advances:    e.advances,
		PlaylistLen: len(e.pl),
	}
}
