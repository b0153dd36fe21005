// SPDX-License-Identifier: MIT

// Package mpv renders playlist items by driving an external mpv process.
// One process per showing; its JSON IPC socket doubles as the lazily-ready
// embed control the engine polls for.
package mpv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/medialink"
	"github.com/totemview/totem/internal/player"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/procgroup"
)

// stopGrace is how long a process gets to exit on SIGTERM before SIGKILL.
const stopGrace = 3 * time.Second

// Source localizes a resolved media URL, typically to a cached spool file.
// Returning the URL unchanged means "stream it".
type Source interface {
	Playable(url string) string
}

// identitySource streams everything.
type identitySource struct{}

func (identitySource) Playable(url string) string { return url }

// Config holds the renderer settings.
type Config struct {
	// Bin is the mpv binary name or path.
	Bin string
	// SocketDir holds the per-showing IPC sockets.
	SocketDir string
	// Width and Height describe the physical output in landscape.
	Width, Height int
	// ExtraArgs are appended to every invocation.
	ExtraArgs []string
}

// Renderer implements player.Renderer on top of mpv.
type Renderer struct {
	cfg    Config
	source Source
	logger zerolog.Logger

	mu      sync.Mutex
	current *session
	frame   display.Frame
	serial  uint64
}

// New creates a renderer. source may be nil to always stream.
func New(cfg Config, source Source) (*Renderer, error) {
	if cfg.Bin == "" {
		cfg.Bin = "mpv"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1920, 1080
	}
	if cfg.SocketDir == "" {
		cfg.SocketDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.SocketDir, 0o755); err != nil {
		return nil, fmt.Errorf("mpv: socket dir: %w", err)
	}
	if source == nil {
		source = identitySource{}
	}
	return &Renderer{
		cfg:    cfg,
		source: source,
		logger: log.WithComponent("render.mpv"),
	}, nil
}

// Viewport returns the physical output size in landscape.
func (r *Renderer) Viewport() (int, int) { return r.cfg.Width, r.cfg.Height }

// ShowImage displays a still image. The duration timer lives in the engine;
// the process stays up until the next showing stops it.
func (r *Renderer) ShowImage(ctx context.Context, item playlist.Item, frame display.Frame, notify func(player.Signal)) error {
	uri := r.source.Playable(medialink.Resolve(item.URL))
	args := append(r.frameArgs(frame, item.FitMode),
		"--image-display-duration=inf",
		"--keep-open=yes",
	)
	_, err := r.launch(ctx, uri, frame, args, notify)
	return err
}

// PlayVideo plays a video to its natural end. A clean process exit is the
// end-of-media signal, a non-zero one the error signal.
func (r *Renderer) PlayVideo(ctx context.Context, item playlist.Item, frame display.Frame, notify func(player.Signal)) error {
	uri := r.source.Playable(medialink.Resolve(item.URL))
	args := append(r.frameArgs(frame, item.FitMode), "--keep-open=no")
	_, err := r.launch(ctx, uri, frame, args, notify)
	return err
}

// PlayEmbed streams an embedded video through mpv's ytdl hook. End-of-media
// arrives through the IPC event stream once the control is ready, with the
// process exit as backstop.
func (r *Renderer) PlayEmbed(ctx context.Context, embedURL string, frame display.Frame) (player.EmbedHandle, error) {
	args := append(r.frameArgs(frame, playlist.FitContain),
		"--keep-open=no",
		"--ytdl=yes",
	)
	sess, err := r.launch(ctx, embedURL, frame, args, nil)
	if err != nil {
		return nil, err
	}
	return newEmbedHandle(sess), nil
}

// ShowPlaceholder parks mpv on an empty forced window. The message goes to
// the log; an idle screen has nothing to render it with.
func (r *Renderer) ShowPlaceholder(ctx context.Context, message string) {
	r.logger.Info().
		Str("event", "render.placeholder").
		Str("message", message).
		Msg("showing placeholder")

	args := append(r.frameArgs(r.currentFrame(), ""),
		"--idle=yes",
		"--force-window=yes",
	)
	if _, err := r.launch(ctx, "", r.currentFrame(), args, nil); err != nil {
		r.logger.Warn().Err(err).Msg("placeholder window failed")
	}
}

// Reframe applies a new frame to the running process without restarting it.
func (r *Renderer) Reframe(frame display.Frame) {
	r.mu.Lock()
	r.frame = frame
	sess := r.current
	r.mu.Unlock()

	if sess == nil {
		return
	}
	rotate := 0
	if frame.Rotated {
		rotate = 90
	}
	if err := sess.command("set_property", "video-rotate", rotate); err != nil {
		r.logger.Debug().Err(err).Msg("reframe command failed")
	}
}

// Stop terminates the running process, if any.
func (r *Renderer) Stop() {
	r.mu.Lock()
	sess := r.current
	r.current = nil
	r.mu.Unlock()
	if sess != nil {
		sess.stop()
	}
}

func (r *Renderer) currentFrame() display.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frame == (display.Frame{}) {
		return display.Layout(display.Landscape, r.cfg.Width, r.cfg.Height)
	}
	return r.frame
}

// frameArgs translates frame geometry and fit mode into mpv arguments.
func (r *Renderer) frameArgs(frame display.Frame, fit playlist.FitMode) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--force-window=yes",
		fmt.Sprintf("--geometry=%dx%d", r.cfg.Width, r.cfg.Height),
	}
	if frame.Rotated {
		args = append(args, "--video-rotate=90")
	}
	switch fit {
	case playlist.FitCover:
		args = append(args, "--panscan=1.0")
	case playlist.FitSmart:
		// Blurred copy of the item behind the contained foreground.
		args = append(args,
			"--panscan=0.0",
			"--lavfi-complex=[vid1]split=2[fg][bg];[bg]scale=iw*2:ih*2,gblur=sigma=24[blurred];[blurred][fg]overlay=(W-w)/2:(H-h)/2[vo]",
		)
	default:
		args = append(args, "--panscan=0.0")
	}
	return append(args, r.cfg.ExtraArgs...)
}

// launch stops the previous session and starts a new mpv process for uri.
// An empty uri starts an idle window.
func (r *Renderer) launch(ctx context.Context, uri string, frame display.Frame, args []string, notify func(player.Signal)) (*session, error) {
	r.mu.Lock()
	prev := r.current
	r.current = nil
	r.serial++
	serial := r.serial
	r.frame = frame
	r.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	socket := filepath.Join(r.cfg.SocketDir, fmt.Sprintf("mpv-%d-%d.sock", os.Getpid(), serial))
	full := append(args, "--input-ipc-server="+socket)
	if uri != "" {
		full = append(full, "--", uri)
	}

	cmd := exec.Command(r.cfg.Bin, full...)
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.cfg.Bin, err)
	}

	sess := &session{cmd: cmd, socket: socket, waitCh: make(chan error, 1)}
	go sess.watch(notify)

	r.logger.Debug().
		Str("event", "render.launch").
		Int("pid", cmd.Process.Pid).
		Str(log.FieldURL, uri).
		Msg("player process started")

	r.mu.Lock()
	r.current = sess
	r.mu.Unlock()
	return sess, nil
}

// session is one player process and its IPC socket.
type session struct {
	cmd     *exec.Cmd
	socket  string
	waitCh  chan error
	stopped atomic.Bool
}

// watch turns the process exit into a media signal unless the session was
// stopped deliberately.
func (s *session) watch(notify func(player.Signal)) {
	err := s.cmd.Wait()
	if !s.stopped.Load() && notify != nil {
		if err != nil {
			notify(player.SignalError)
		} else {
			notify(player.SignalEnded)
		}
	}
	s.waitCh <- err
	_ = os.Remove(s.socket)
}

func (s *session) stop() {
	s.stopped.Store(true)
	_ = procgroup.Terminate(s.cmd, s.waitCh, stopGrace)
}
