package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
	"github.com/naver-ai/elmi-monorepo/internal/config"
	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/mediaclient"
	"github.com/naver-ai/elmi-monorepo/internal/testsupport"
)

var (
	songWAVOnce sync.Once
	songWAV     []byte
)

// fakeSource serves testsupport.Sheet for SongID and a silent WAV long
// enough to cover it.
type fakeSource struct{}

func (fakeSource) Audio(ctx context.Context, songID string) ([]byte, error) {
	songWAVOnce.Do(func() {
		songWAV = testsupport.WAV(audio.SampleRate*testsupport.SongMillis/1000, 0)
	})
	return songWAV, nil
}

func (fakeSource) Samples(ctx context.Context, songID string) ([]float64, error) {
	return []float64{0.2, 0.4}, nil
}

func (fakeSource) Sheet(ctx context.Context, id string) (*lyrics.Sheet, error) {
	if id != testsupport.SongID {
		return nil, &mediaclient.FetchError{SongID: id, Op: "sheet", StatusCode: http.StatusNotFound}
	}
	return testsupport.Sheet(id), nil
}

func newTestEngine(t *testing.T) *engine {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	eng, err := newEngine(config.Default(), logger, engineOptions{
		Source: fakeSource{},
		Sink:   audio.NewDiscard(),
		Clock:  &testsupport.ManualClock{},
	})
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	t.Cleanup(eng.close)
	return eng
}
