// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totemview/totem/internal/health"
	"github.com/totemview/totem/internal/player"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/syncchan"
)

type stubEngine struct{ status player.Status }

func (e *stubEngine) Status() player.Status { return e.status }

type stubPairer struct {
	id  string
	err error
}

func (p *stubPairer) Pair(_ context.Context, screenID, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if screenID != "" {
		return screenID, nil
	}
	return p.id, nil
}

type stubDirectory struct {
	screens []syncchan.ScreenInfo
	err     error
}

func (d *stubDirectory) ListScreens(context.Context) ([]syncchan.ScreenInfo, error) {
	return d.screens, d.err
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	item := &playlist.Item{ID: "a", URL: "https://x/a.jpg", Type: playlist.TypeImage}
	s := New(
		Config{ListenAddr: ":0", Version: "test"},
		&stubEngine{status: player.Status{Playing: true, Item: item, PlaylistLen: 2}},
		&stubPairer{id: "screen-generated"},
		&stubDirectory{screens: []syncchan.ScreenInfo{{ID: "screen-1", Name: "Lobby"}}},
		health.NewManager("test"),
		func() string { return "screen-1" },
		func() string { return "" },
	)
	return s, s.Routes()
}

func TestStatusEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "screen-1", resp.ScreenID)
	assert.True(t, resp.Playback.Playing)
	assert.Equal(t, 2, resp.Playback.PlaylistLen)
	require.NotNil(t, resp.Playback.Item)
	assert.Equal(t, "a", resp.Playback.Item.ID)
	assert.Empty(t, resp.PairingCode, "paired devices expose no pairing code")
}

func TestStatusEndpointUnpairedShowsPairingCode(t *testing.T) {
	s := New(
		Config{ListenAddr: ":0", Version: "test"},
		&stubEngine{},
		&stubPairer{id: "screen-generated"},
		nil,
		health.NewManager("test"),
		func() string { return "" },
		func() string { return "834091" },
	)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.ScreenID)
	assert.Equal(t, "834091", resp.PairingCode)
}

func TestScreensEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/screens", nil))
	require.Equal(t, 200, rec.Code)

	var screens []syncchan.ScreenInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &screens))
	require.Len(t, screens, 1)
	assert.Equal(t, "Lobby", screens[0].Name)
}

func TestScreensEndpointDirectoryDown(t *testing.T) {
	s, _ := newTestServer(t)
	s.directory = &stubDirectory{err: errors.New("connection refused")}

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/screens", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPairEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	body := strings.NewReader(`{"name": "Lobby"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pair", body))
	require.Equal(t, 200, rec.Code)

	var resp pairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "screen-generated", resp.ScreenID)
}

func TestPairEndpointBadBody(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pair", strings.NewReader("{nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPairRateLimit(t *testing.T) {
	_, h := newTestServer(t)

	last := 0
	for i := 0; i < pairRateLimit+2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/pair", strings.NewReader(`{}`))
		req.RemoteAddr = "203.0.113.7:1234"
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDPropagated(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("X-Request-Id", "req-42")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRunShutsDownCleanly(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
