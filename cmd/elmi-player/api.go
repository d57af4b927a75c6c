package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/mediaclient"
	"github.com/naver-ai/elmi-monorepo/internal/transport"
)

// mountFunc loads and mounts the song identified by id.
type mountFunc func(ctx context.Context, id string) error

// newAPIHandler exposes the controller's command surface over HTTP.
// Commands answer with the resulting read model.
func newAPIHandler(ctrl *transport.Controller, mount mountFunc) http.Handler {
	mux := http.NewServeMux()

	respond := func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": ctrl.State()})
	}

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.State())
	})

	mux.HandleFunc("GET /api/lines", func(w http.ResponseWriter, r *http.Request) {
		lines := ctrl.Lines()
		if lines == nil {
			lines = []lyrics.LyricLine{}
		}
		writeJSON(w, http.StatusOK, lines)
	})

	mux.HandleFunc("POST /api/mount", func(w http.ResponseWriter, r *http.Request) {
		// id names a project when songs come from the API and a song
		// directory when they come from media_dir.
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		if err := mount(r.Context(), req.ID); err != nil {
			writeError(w, err)
			return
		}
		respond(w)
	})

	mux.HandleFunc("POST /api/play", func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.PerformGlobalPlay(); err != nil {
			writeError(w, err)
			return
		}
		respond(w)
	})

	mux.HandleFunc("POST /api/pause", func(w http.ResponseWriter, r *http.Request) {
		ctrl.PauseMedia()
		respond(w)
	})

	mux.HandleFunc("POST /api/stop", func(w http.ResponseWriter, r *http.Request) {
		ctrl.StopAllMedia()
		respond(w)
	})

	mux.HandleFunc("POST /api/line", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LineID    string `json:"line_id"`
			ForcePlay bool   `json:"force_play"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LineID == "" {
			http.Error(w, "invalid line_id", http.StatusBadRequest)
			return
		}
		if err := ctrl.PlayLineLoop(req.LineID, req.ForcePlay); err != nil {
			writeError(w, err)
			return
		}
		respond(w)
	})

	mux.HandleFunc("POST /api/line/direct", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PositionMillis *int64 `json:"position_millis"`
			Select         bool   `json:"select"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PositionMillis == nil {
			http.Error(w, "invalid position_millis", http.StatusBadRequest)
			return
		}
		if err := ctrl.DirectAccessLineLoop(*req.PositionMillis, req.Select); err != nil {
			writeError(w, err)
			return
		}
		respond(w)
	})

	mux.HandleFunc("POST /api/exit", func(w http.ResponseWriter, r *http.Request) {
		ctrl.ExitLineLoop()
		respond(w)
	})

	mux.HandleFunc("POST /api/seek", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PositionMillis *int64 `json:"position_millis"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PositionMillis == nil || *req.PositionMillis < 0 {
			http.Error(w, "invalid position_millis", http.StatusBadRequest)
			return
		}
		ctrl.SeekGlobalMediaPosition(*req.PositionMillis)
		respond(w)
	})

	mux.HandleFunc("POST /api/volume", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Volume *float64 `json:"volume"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
			http.Error(w, "invalid volume", http.StatusBadRequest)
			return
		}
		ctrl.SetVolume(*req.Volume)
		respond(w)
	})

	mux.HandleFunc("POST /api/click", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PositionMillis *int64 `json:"position_millis"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PositionMillis == nil {
			http.Error(w, "invalid position_millis", http.StatusBadRequest)
			return
		}
		ctrl.DispatchTimelineClickEvent(*req.PositionMillis)
		respond(w)
	})

	mux.HandleFunc("POST /api/dispose", func(w http.ResponseWriter, r *http.Request) {
		ctrl.Dispose()
		respond(w)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ferr *mediaclient.FetchError
		verr *lyrics.ValidationError
	)
	switch {
	case errors.Is(err, transport.ErrUnknownLine):
		status = http.StatusNotFound
	case errors.Is(err, transport.ErrSuperseded):
		status = http.StatusConflict
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &ferr):
		status = http.StatusBadGateway
		if ferr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}
