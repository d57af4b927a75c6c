// Package playback holds the read model of the playback engine and the
// observables that fan it out to subscribers.
package playback

import (
	"fmt"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

// Status is the coarse playback status. Exactly one value holds at a time.
type Status int

const (
	StatusInitial Status = iota
	StatusLoadingMedia
	StatusStandby
	StatusPaused
	StatusPlaying
)

var statusNames = map[Status]string{
	StatusInitial:      "initial",
	StatusLoadingMedia: "loading_media",
	StatusStandby:      "standby",
	StatusPaused:       "paused",
	StatusPlaying:      "playing",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LinePlayInfo is present iff the engine loops a single line.
type LinePlayInfo struct {
	LineID string `json:"line_id"`
	lyrics.TimestampRange
}

// TimelineClick is the one-shot event fired when the global timeline is
// clicked.
type TimelineClick struct {
	PositionMillis int64              `json:"position_millis"`
	Coord          *lyrics.TokenCoord `json:"lyric_coord,omitempty"`
}

// State is a snapshot of the read model.
type State struct {
	MountedSongID      string             `json:"mounted_song_id,omitempty"`
	Status             Status             `json:"status"`
	SongDurationMillis int64              `json:"song_duration_millis,omitempty"`
	LinePlayInfo       *LinePlayInfo      `json:"line_play_info,omitempty"`
	HitCoord           *lyrics.TokenCoord `json:"hit_lyric_token_info,omitempty"`
	PositionMillis     *int64             `json:"position_millis,omitempty"`
	Volume             float64            `json:"volume"`
	SongSamples        []float64          `json:"song_samples,omitempty"`
}

// InLineLoop reports whether line-loop mode is active.
func (s State) InLineLoop() bool { return s.LinePlayInfo != nil }
