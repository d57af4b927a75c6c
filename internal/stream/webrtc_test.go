package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestWebRTCHandler() *WebRTCHandler {
	return NewWebRTCHandler(
		NewBroadcaster[[]int16](150, DropNewest),
		NewBroadcaster[Event](32, DropNewest),
		0, nil,
	)
}

func TestWebRTCPreflight(t *testing.T) {
	h := newTestWebRTCHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/offer", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Errorf("Allow-Methods = %q, want POST", got)
	}
}

func TestWebRTCRejectsBadRequests(t *testing.T) {
	h := newTestWebRTCHandler()

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"not json", http.MethodPost, "nope", http.StatusBadRequest},
		{"empty sdp", http.MethodPost, `{"type":"offer","sdp":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/offer", strings.NewReader(tt.body)))
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.status)
		}
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}

func TestWebRTCDefaults(t *testing.T) {
	h := newTestWebRTCHandler()
	if h.bitrate != 128000 {
		t.Errorf("bitrate = %d, want 128000", h.bitrate)
	}
	h.Close()
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount after Close = %d", h.PeerCount())
	}
}
