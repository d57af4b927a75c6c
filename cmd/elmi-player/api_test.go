package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/naver-ai/elmi-monorepo/internal/testsupport"
)

type apiState struct {
	MountedSongID  string  `json:"mounted_song_id"`
	Status         string  `json:"status"`
	Volume         float64 `json:"volume"`
	PositionMillis *int64  `json:"position_millis"`
	LinePlayInfo   *struct {
		LineID string `json:"line_id"`
	} `json:"line_play_info"`
}

type apiResponse struct {
	OK    bool     `json:"ok"`
	Error string   `json:"error"`
	State apiState `json:"state"`
}

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	eng := newTestEngine(t)
	return newAPIHandler(eng.ctrl, eng.mount)
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, apiResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))

	var resp apiResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func mustCall(t *testing.T, h http.Handler, method, path, body string) apiState {
	t.Helper()
	code, resp := call(t, h, method, path, body)
	if code != http.StatusOK || !resp.OK {
		t.Fatalf("%s %s = %d %+v", method, path, code, resp)
	}
	return resp.State
}

func TestAPIStateBeforeMount(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	var st apiState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != "initial" || st.MountedSongID != "" || st.Volume != 1 {
		t.Errorf("state = %+v", st)
	}

	// Commands without a song are silent no-ops.
	for _, path := range []string{"/api/play", "/api/pause", "/api/stop", "/api/exit"} {
		if st := mustCall(t, h, http.MethodPost, path, ""); st.Status != "initial" {
			t.Errorf("%s: status = %q, want initial", path, st.Status)
		}
	}
}

func TestAPIMount(t *testing.T) {
	h := newTestAPI(t)

	st := mustCall(t, h, http.MethodPost, "/api/mount", `{"id":"song-1"}`)
	if st.Status != "standby" || st.MountedSongID != testsupport.SongID {
		t.Errorf("state after mount = %+v", st)
	}

	code, resp := call(t, h, http.MethodPost, "/api/mount", `{"id":"song-9"}`)
	if code != http.StatusNotFound || resp.OK {
		t.Errorf("unknown song = %d %+v, want 404", code, resp)
	}

	if code, _ := call(t, h, http.MethodPost, "/api/mount", `{}`); code != http.StatusBadRequest {
		t.Errorf("empty mount = %d, want 400", code)
	}
}

func TestAPILineLoop(t *testing.T) {
	h := newTestAPI(t)
	mustCall(t, h, http.MethodPost, "/api/mount", `{"id":"song-1"}`)

	st := mustCall(t, h, http.MethodPost, "/api/line", `{"line_id":"l3"}`)
	if st.Status != "standby" || st.LinePlayInfo == nil || st.LinePlayInfo.LineID != "l3" {
		t.Errorf("armed state = %+v", st)
	}
	if st.PositionMillis == nil || *st.PositionMillis != 6500 {
		t.Errorf("armed position = %v, want 6500", st.PositionMillis)
	}

	st = mustCall(t, h, http.MethodPost, "/api/play", "")
	if st.Status != "playing" || st.LinePlayInfo == nil {
		t.Errorf("state after play = %+v", st)
	}

	st = mustCall(t, h, http.MethodPost, "/api/exit", "")
	if st.LinePlayInfo != nil {
		t.Errorf("line_play_info after exit = %+v", st.LinePlayInfo)
	}

	code, resp := call(t, h, http.MethodPost, "/api/line", `{"line_id":"nope"}`)
	if code != http.StatusNotFound || resp.OK {
		t.Errorf("unknown line = %d %+v, want 404", code, resp)
	}
}

func TestAPIDirectAccess(t *testing.T) {
	h := newTestAPI(t)
	mustCall(t, h, http.MethodPost, "/api/mount", `{"id":"song-1"}`)

	st := mustCall(t, h, http.MethodPost, "/api/line/direct", `{"position_millis":9600}`)
	if st.LinePlayInfo == nil || st.LinePlayInfo.LineID != "l4" {
		t.Errorf("direct access state = %+v", st)
	}
}

func TestAPIVolume(t *testing.T) {
	h := newTestAPI(t)
	mustCall(t, h, http.MethodPost, "/api/mount", `{"id":"song-1"}`)

	st := mustCall(t, h, http.MethodPost, "/api/volume", `{"volume":0.3}`)
	if st.Volume != 0.3 {
		t.Errorf("volume = %v, want 0.3", st.Volume)
	}
	st = mustCall(t, h, http.MethodPost, "/api/volume", `{"volume":7}`)
	if st.Volume != 1 {
		t.Errorf("volume = %v, want clamped 1", st.Volume)
	}
}

func TestAPIRejectsBadBodies(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		path string
		body string
	}{
		{"/api/line", `{}`},
		{"/api/line/direct", `{}`},
		{"/api/seek", `{"position_millis":-1}`},
		{"/api/seek", `nope`},
		{"/api/volume", `{}`},
		{"/api/click", `{}`},
	}
	for _, tt := range tests {
		if code, _ := call(t, h, http.MethodPost, tt.path, tt.body); code != http.StatusBadRequest {
			t.Errorf("POST %s %s = %d, want 400", tt.path, tt.body, code)
		}
	}

	if code, _ := call(t, h, http.MethodGet, "/api/play", ""); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/play = %d, want 405", code)
	}
}

func TestAPILinesAndDispose(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lines", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("lines before mount = %s, want []", rec.Body.String())
	}

	mustCall(t, h, http.MethodPost, "/api/mount", `{"id":"song-1"}`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lines", nil))
	var lines []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lines); err != nil {
		t.Fatalf("decode lines: %v", err)
	}
	var ids []string
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	if strings.Join(ids, ",") != "l1,l2,l3,l4" {
		t.Errorf("lines = %v, want l1..l4 in order", ids)
	}

	st := mustCall(t, h, http.MethodPost, "/api/dispose", "")
	if st.Status != "initial" || st.MountedSongID != "" {
		t.Errorf("state after dispose = %+v", st)
	}
}
