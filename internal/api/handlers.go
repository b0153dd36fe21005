// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/player"
)

type statusResponse struct {
	ScreenID    string        `json:"screenId,omitempty"`
	PairingCode string        `json:"pairingCode,omitempty"`
	Uptime      string        `json:"uptime"`
	Version     string        `json:"version"`
	Playback    player.Status `json:"playback"`
}

type pairRequest struct {
	ScreenID string `json:"screenId,omitempty"`
	Name     string `json:"name,omitempty"`
}

type pairResponse struct {
	ScreenID string `json:"screenId"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		ScreenID:    s.screenID(),
		PairingCode: s.pairingCode(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Version:     s.cfg.Version,
		Playback:    s.engine.Status(),
	})
}

func (s *Server) handleScreens(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		writeError(w, http.StatusServiceUnavailable, "no_directory", "sync store not configured")
		return
	}
	screens, err := s.directory.ListScreens(r.Context())
	if err != nil {
		log.FromContext(r.Context()).Warn().Err(err).Msg("directory listing failed")
		writeError(w, http.StatusBadGateway, "directory_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, screens)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be JSON")
		return
	}

	id, err := s.pairer.Pair(r.Context(), req.ScreenID, req.Name)
	if err != nil {
		log.FromContext(r.Context()).Error().Err(err).Msg("pairing failed")
		writeError(w, http.StatusInternalServerError, "pairing_failed", err.Error())
		return
	}

	s.logger.Info().
		Str("event", "api.paired").
		Str(log.FieldScreenID, id).
		Msg("device paired")
	writeJSON(w, http.StatusOK, pairResponse{ScreenID: id})
}
