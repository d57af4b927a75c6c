package mediaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/media"
)

// audioNames are tried in order when looking for a song's audio file.
var audioNames = []string{"audio.mp3", "audio.wav", "audio.flac", "audio.ogg"}

// Local serves songs from a directory laid out as
//
//	<dir>/<song_id>/audio.{mp3,wav,flac,ogg}
//	<dir>/<song_id>/lyrics.json
//	<dir>/<song_id>/samples.json   (optional)
type Local struct {
	dir string
}

// NewLocal creates a source rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) songDir(songID string) (string, error) {
	if songID == "" || songID != filepath.Base(songID) {
		return "", fmt.Errorf("invalid song id %q", songID)
	}
	return filepath.Join(l.dir, songID), nil
}

// Audio reads the first audio file found for the song.
func (l *Local) Audio(ctx context.Context, songID string) ([]byte, error) {
	dir, err := l.songDir(songID)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: "audio", Err: err}
	}
	for _, name := range audioNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &FetchError{SongID: songID, Op: "audio", Err: err}
		}
		return data, nil
	}
	return nil, &FetchError{SongID: songID, Op: "audio", Err: fs.ErrNotExist}
}

// Samples reads samples.json, or computes a waveform from the audio when
// the file is missing.
func (l *Local) Samples(ctx context.Context, songID string) ([]float64, error) {
	dir, err := l.songDir(songID)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: "samples", Err: err}
	}

	data, err := os.ReadFile(filepath.Join(dir, "samples.json"))
	switch {
	case err == nil:
		var samples []float64
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, &FetchError{SongID: songID, Op: "samples", Err: fmt.Errorf("decode samples: %w", err)}
		}
		return samples, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, &FetchError{SongID: songID, Op: "samples", Err: err}
	}

	raw, err := l.Audio(ctx, songID)
	if err != nil {
		return nil, err
	}
	buf, err := media.Decode(raw)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: "samples", Err: err}
	}
	return audio.Waveform(buf.Streamer(0, buf.Len()), buf.Len(), audio.WaveformPoints), nil
}

// Sheet reads lyrics.json for the song.
func (l *Local) Sheet(ctx context.Context, songID string) (*lyrics.Sheet, error) {
	dir, err := l.songDir(songID)
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: "lyrics", Err: err}
	}
	data, err := os.ReadFile(filepath.Join(dir, "lyrics.json"))
	if err != nil {
		return nil, &FetchError{SongID: songID, Op: "lyrics", Err: err}
	}
	var sheet lyrics.Sheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("decode lyrics for %s: %w", songID, err)
	}
	if sheet.SongID == "" {
		sheet.SongID = songID
	}
	return &sheet, nil
}

// Songs lists the song ids found in the directory.
func (l *Local) Songs() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.dir, e.Name(), "lyrics.json")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
