// SPDX-License-Identifier: MIT
package player

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/playlist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

// Advance moves the clock and fires all due, unstopped timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fakeRenderer records render calls and lets tests fire media signals.
type fakeRenderer struct {
	mu           sync.Mutex
	shown        []playlist.Item
	placeholders int
	reframes     []display.Frame
	notify       func(Signal)
	failIDs      map[string]bool
	embedHandle  *fakeEmbedHandle
	w, h         int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{failIDs: map[string]bool{}, w: 1920, h: 1080}
}

func (r *fakeRenderer) ShowImage(_ context.Context, item playlist.Item, _ display.Frame, notify func(Signal)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[item.ID] {
		return assert.AnError
	}
	r.shown = append(r.shown, item)
	r.notify = notify
	return nil
}

func (r *fakeRenderer) PlayVideo(_ context.Context, item playlist.Item, _ display.Frame, notify func(Signal)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[item.ID] {
		return assert.AnError
	}
	r.shown = append(r.shown, item)
	r.notify = notify
	return nil
}

func (r *fakeRenderer) PlayEmbed(_ context.Context, embedURL string, _ display.Frame) (EmbedHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, playlist.Item{ID: embedURL, Type: playlist.TypeEmbed})
	if r.embedHandle == nil {
		r.embedHandle = newFakeEmbedHandle()
	}
	return r.embedHandle, nil
}

func (r *fakeRenderer) ShowPlaceholder(_ context.Context, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholders++
}

func (r *fakeRenderer) Reframe(frame display.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reframes = append(r.reframes, frame)
}

func (r *fakeRenderer) Stop() {}

func (r *fakeRenderer) Viewport() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h
}

func (r *fakeRenderer) fire(s Signal) {
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()
	if notify != nil {
		notify(s)
	}
}

func (r *fakeRenderer) placeholderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.placeholders
}

type fakeEmbedHandle struct {
	mu       sync.Mutex
	ready    bool
	released bool
	control  *fakeEmbedControl
}

type fakeEmbedControl struct{ ch chan Signal }

func newFakeEmbedHandle() *fakeEmbedHandle {
	return &fakeEmbedHandle{control: &fakeEmbedControl{ch: make(chan Signal, 4)}}
}

func (h *fakeEmbedHandle) Control() (EmbedControl, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return nil, false
	}
	return h.control, true
}

func (h *fakeEmbedHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
}

func (h *fakeEmbedHandle) setReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = true
}

func (c *fakeEmbedControl) Events() <-chan Signal { return c.ch }

func testTunables() Tunables {
	return Tunables{
		ImageFallback: 10 * time.Second,
		SafetyCeiling: 5 * time.Minute,
		EmbedPoll:     500 * time.Millisecond,
	}
}

// startEngine runs the engine until the test ends.
func startEngine(t *testing.T, r Renderer, c Clock) *Engine {
	t.Helper()
	e := New(r, c, testTunables())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func waitForItem(t *testing.T, e *Engine, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := e.Status()
		return st.Item != nil && st.Item.ID == id
	}, 2*time.Second, 5*time.Millisecond, "engine never showed item %q", id)
}

func waitForAdvances(t *testing.T, e *Engine, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.Status().Advances == n
	}, 2*time.Second, 5*time.Millisecond, "engine never reached %d advances", n)
}

func TestEmptyPlaylistShowsPlaceholder(t *testing.T) {
	r := newFakeRenderer()
	e := startEngine(t, r, newFakeClock())

	require.Eventually(t, func() bool {
		return r.placeholderCount() > 0
	}, 2*time.Second, 5*time.Millisecond)

	st := e.Status()
	assert.False(t, st.Playing)
	assert.Zero(t, st.PlaylistLen)
}

func TestImageThenVideoScenario(t *testing.T) {
	// Playlist [image a (5s), video b (duration 0)]: after 5 quiet
	// seconds position becomes 1; b's end signal at t+2s wraps to 0 well
	// before any safety timer.
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 5},
		{ID: "b", URL: "https://x/b.mp4", Type: playlist.TypeVideo, Duration: 0},
	})
	waitForItem(t, e, "a")

	c.Advance(5 * time.Second)
	waitForItem(t, e, "b")
	assert.Equal(t, 1, e.Status().Position)

	c.Advance(2 * time.Second) // nowhere near the 5 minute ceiling
	r.fire(SignalEnded)
	waitForItem(t, e, "a")
	assert.Equal(t, 0, e.Status().Position, "advance past last index must wrap to 0")
}

func TestDoubleTriggerAdvancesOnce(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "v", URL: "https://x/v.mp4", Type: playlist.TypeVideo, Duration: 5},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "v")

	// End signal and safety timer race for the same showing.
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()
	notify(SignalEnded)
	c.Advance(5 * time.Second)
	notify(SignalEnded) // and a duplicate end signal for good measure

	waitForAdvances(t, e, 1)
	time.Sleep(50 * time.Millisecond) // give any double-advance a chance to surface
	st := e.Status()
	assert.EqualValues(t, 1, st.Advances)
	assert.Equal(t, 1, st.Position)
	assert.Equal(t, "i", st.Item.ID)
}

func TestWrapAroundLoopsForever(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 1},
		{ID: "b", URL: "https://x/b.jpg", Type: playlist.TypeImage, Duration: 1},
	})
	waitForItem(t, e, "a")

	for cycle := 0; cycle < 3; cycle++ {
		c.Advance(time.Second)
		waitForItem(t, e, "b")
		c.Advance(time.Second)
		waitForItem(t, e, "a")
	}
	assert.EqualValues(t, 6, e.Status().Advances)
}

func TestZeroDurationVideoIgnoresClockUntilEndSignal(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "v", URL: "https://x/v.mp4", Type: playlist.TypeVideo, Duration: 0},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "v")

	// Under the safety ceiling nothing moves: duration 0 means play to
	// natural end, not a zero-delay timer.
	c.Advance(4 * time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, e.Status().Position)

	r.fire(SignalEnded)
	waitForItem(t, e, "i")
}

func TestZeroDurationVideoSafetyCeiling(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "v", URL: "https://x/v.mp4", Type: playlist.TypeVideo, Duration: 0},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "v")

	// The end signal never arrives; the ceiling is the only way forward.
	c.Advance(5 * time.Minute)
	waitForItem(t, e, "i")
}

func TestVideoErrorAdvancesImmediately(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "v", URL: "https://x/broken.mp4", Type: playlist.TypeVideo, Duration: 120},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "v")

	r.fire(SignalError)
	waitForItem(t, e, "i")
}

func TestImageLoadErrorSkipsWithoutWaiting(t *testing.T) {
	r := newFakeRenderer()
	r.failIDs["bad"] = true
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "bad", URL: "https://x/bad.jpg", Type: playlist.TypeImage, Duration: 60},
		{ID: "good", URL: "https://x/good.jpg", Type: playlist.TypeImage, Duration: 60},
	})

	// The paced skip fires long before the 60s duration would have.
	require.Eventually(t, func() bool {
		c.Advance(250 * time.Millisecond)
		st := e.Status()
		return st.Item != nil && st.Item.ID == "good"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestImageAsyncLoadErrorAdvances(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 60},
		{ID: "b", URL: "https://x/b.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "a")

	r.fire(SignalError) // load failed after handoff
	waitForItem(t, e, "b")
}

func TestPlaylistReplacementDoesNotInterruptShowing(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "old0", URL: "https://x/0.jpg", Type: playlist.TypeImage, Duration: 10},
		{ID: "old1", URL: "https://x/1.jpg", Type: playlist.TypeImage, Duration: 10},
	})
	waitForItem(t, e, "old0")

	e.SetPlaylist([]playlist.Item{
		{ID: "new0", URL: "https://x/n0.jpg", Type: playlist.TypeImage, Duration: 10},
		{ID: "new1", URL: "https://x/n1.jpg", Type: playlist.TypeImage, Duration: 10},
		{ID: "new2", URL: "https://x/n2.jpg", Type: playlist.TypeImage, Duration: 10},
	})

	// Still the old item: a snapshot replacement never interrupts.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "old0", e.Status().Item.ID)

	// The armed timer advances into the new snapshot.
	c.Advance(10 * time.Second)
	waitForItem(t, e, "new1")
}

func TestShorterPlaylistWrapsInRange(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 1},
		{ID: "b", URL: "https://x/b.jpg", Type: playlist.TypeImage, Duration: 1},
		{ID: "c", URL: "https://x/c.jpg", Type: playlist.TypeImage, Duration: 1},
	})
	waitForItem(t, e, "a")
	c.Advance(time.Second)
	waitForItem(t, e, "b")
	c.Advance(time.Second)
	waitForItem(t, e, "c") // position 2

	// New snapshot is shorter than the current position.
	e.SetPlaylist([]playlist.Item{
		{ID: "x", URL: "https://x/x.jpg", Type: playlist.TypeImage, Duration: 1},
	})
	c.Advance(time.Second)

	waitForItem(t, e, "x")
	assert.Equal(t, 0, e.Status().Position)
}

func TestPlaylistClearedMidItem(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 1},
	})
	waitForItem(t, e, "a")

	before := r.placeholderCount()
	e.SetPlaylist(nil)
	c.Advance(time.Second) // the stale timer fires against an empty snapshot

	require.Eventually(t, func() bool {
		return r.placeholderCount() > before
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, e.Status().Playing)
}

func TestEmbedControlReadyDeliversEndSignal(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "yt", URL: "https://youtu.be/dQw4w9WgXcQ", Type: playlist.TypeEmbed, Duration: 0},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.embedHandle != nil
	}, 2*time.Second, 5*time.Millisecond)

	// A few polls while the control API is still loading.
	c.Advance(500 * time.Millisecond)
	c.Advance(500 * time.Millisecond)
	r.embedHandle.setReady()
	c.Advance(500 * time.Millisecond)

	r.embedHandle.control.ch <- SignalEnded
	waitForItem(t, e, "i")
}

func TestEmbedNeverReadyAdvancesOnSafety(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "yt", URL: "https://youtu.be/dQw4w9WgXcQ", Type: playlist.TypeEmbed, Duration: 30},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.embedHandle != nil
	}, 2*time.Second, 5*time.Millisecond)

	// Control never becomes ready; the declared duration bounds the stall.
	c.Advance(30 * time.Second)
	waitForItem(t, e, "i")
}

func TestInvalidEmbedURLIsSkipped(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "bad", URL: "https://example.com/not-a-video", Type: playlist.TypeEmbed},
		{ID: "i", URL: "https://x/i.jpg", Type: playlist.TypeImage, Duration: 60},
	})

	require.Eventually(t, func() bool {
		c.Advance(250 * time.Millisecond)
		st := e.Status()
		return st.Item != nil && st.Item.ID == "i"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrientationChangeReframesWithoutRestart(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "a")
	advancesBefore := e.Status().Advances

	e.SetOrientation(display.Portrait)

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.reframes) == 1
	}, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	frame := r.reframes[0]
	r.mu.Unlock()
	assert.Equal(t, display.Frame{Width: 1080, Height: 1920, Rotated: true}, frame)

	// The showing survived: same item, no advances, timers untouched.
	st := e.Status()
	assert.Equal(t, "a", st.Item.ID)
	assert.Equal(t, advancesBefore, st.Advances)
}

func TestResizeRecomputesFrame(t *testing.T) {
	r := newFakeRenderer()
	c := newFakeClock()
	e := startEngine(t, r, c)

	e.SetPlaylist([]playlist.Item{
		{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage, Duration: 60},
	})
	waitForItem(t, e, "a")
	e.SetOrientation(display.Portrait)

	// A portrait request on a native portrait viewport needs no rotation.
	r.mu.Lock()
	r.w, r.h = 1080, 1920
	r.mu.Unlock()
	e.Resize()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if len(r.reframes) == 0 {
			return false
		}
		return r.reframes[len(r.reframes)-1] == display.Frame{Width: 1080, Height: 1920}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "a", e.Status().Item.ID, "resize never interrupts the showing")
}
