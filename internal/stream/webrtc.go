package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
)

// EventsChannel is the data channel label that carries playback events.
const EventsChannel = "playback"

// WebRTCHandler serves WebRTC SDP negotiation for monitoring the engine:
// Opus audio of the output plus JSON events on a "playback" data channel the
// client opens.
type WebRTCHandler struct {
	frames  *Broadcaster[[]int16]
	events  *Broadcaster[Event]
	bitrate int
	log     *slog.Logger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

// NewWebRTCHandler creates a WebRTC monitor handler.
func NewWebRTCHandler(frames *Broadcaster[[]int16], events *Broadcaster[Event], bitrate int, logger *slog.Logger) *WebRTCHandler {
	if bitrate <= 0 {
		bitrate = 128000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTCHandler{
		frames:  frames,
		events:  events,
		bitrate: bitrate,
		log:     logger.With("component", "webrtc"),
		peers:   make(map[string]*webrtc.PeerConnection),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	peerID := uuid.NewString()
	log := h.log.With("peer_id", peerID)

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"elmi-player",
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTrack(audioTrack); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != EventsChannel {
			return
		}
		dc.OnOpen(func() { go h.eventsToPeer(dc, log) })
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	select {
	case <-gatherComplete:
	case <-r.Context().Done():
		pc.Close()
		return
	}

	h.mu.Lock()
	h.peers[peerID] = pc
	h.mu.Unlock()

	log.Info("WebRTC peer connected", "peers", h.PeerCount())

	go h.streamToPeer(pc, audioTrack, log)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			h.removePeer(peerID)
			pc.Close()
			log.Info("WebRTC peer disconnected", "peers", h.PeerCount())
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) streamToPeer(pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample, log *slog.Logger) {
	listener := h.frames.Subscribe()
	defer h.frames.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Error("opus encoder", "err", err)
		return
	}
	if err := enc.SetBitrate(h.bitrate); err != nil {
		log.Warn("opus bitrate rejected", "bitrate", h.bitrate, "err", err)
	}

	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				log.Warn("opus encode", "err", err)
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
		if pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
			return
		}
	}
}

func (h *WebRTCHandler) eventsToPeer(dc *webrtc.DataChannel, log *slog.Logger) {
	listener := h.events.Subscribe()
	defer h.events.Unsubscribe(listener)

	closed := make(chan struct{})
	var once sync.Once
	dc.OnClose(func() { once.Do(func() { close(closed) }) })

	for {
		select {
		case <-closed:
			return
		case <-listener.Done():
			return
		case ev := <-listener.C:
			msg, err := ev.Encode()
			if err != nil {
				log.Warn("drop event", "type", ev.Type, "err", err)
				continue
			}
			if err := dc.SendText(string(msg)); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
}
