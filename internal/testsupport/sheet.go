package testsupport

import (
	"testing"

	"github.com/faiface/beep"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

// SongID is the id used by Sheet.
const SongID = "song-1"

// SongMillis is the audio length matching Sheet.
const SongMillis = 15000

// TestRate makes one sample equal one millisecond.
const TestRate = beep.SampleRate(1000)

func r(start, end int64) lyrics.TimestampRange {
	return lyrics.TimestampRange{StartMillis: start, EndMillis: end}
}

// Sheet returns a two-verse sheet with an instrumental gap between 5000
// and 6500 and a verse-only gap between 9000 and 9500:
//
//	v1 [1000,5000]  l1 [1000,4000] tokens [1000,2000] [2000,4000]
//	                l2 [4000,5000]
//	v2 [6500,12000] l3 [6500,9000] tokens [6500,7500] [7500,9000]
//	                l4 [9500,12000]
func Sheet(songID string) *lyrics.Sheet {
	return &lyrics.Sheet{
		SongID: songID,
		Verses: []lyrics.Verse{
			{ID: "v2", SongID: songID, VerseOrdering: 1, TimestampRange: r(6500, 12000)},
			{ID: "v1", SongID: songID, VerseOrdering: 0, TimestampRange: r(1000, 5000)},
		},
		Lines: []lyrics.LyricLine{
			{
				ID: "l1", VerseID: "v1", SongID: songID, LineNumber: 0, Lyric: "hello there",
				Tokens:         []string{"hello", "there"},
				Timestamps:     []lyrics.TimestampRange{r(1000, 2000), r(2000, 4000)},
				TimestampRange: r(1000, 4000),
			},
			{
				ID: "l2", VerseID: "v1", SongID: songID, LineNumber: 1, Lyric: "again",
				Tokens:         []string{"again"},
				Timestamps:     []lyrics.TimestampRange{r(4000, 5000)},
				TimestampRange: r(4000, 5000),
			},
			{
				ID: "l4", VerseID: "v2", SongID: songID, LineNumber: 1, Lyric: "goodbye",
				Tokens:         []string{"goodbye"},
				Timestamps:     []lyrics.TimestampRange{r(9500, 12000)},
				TimestampRange: r(9500, 12000),
			},
			{
				ID: "l3", VerseID: "v2", SongID: songID, LineNumber: 0, Lyric: "sing along",
				Tokens:         []string{"sing", "along"},
				Timestamps:     []lyrics.TimestampRange{r(6500, 7500), r(7500, 9000)},
				TimestampRange: r(6500, 9000),
			},
		},
	}
}

// MustIndex builds an index over sheet or fails the test.
func MustIndex(t testing.TB, sheet *lyrics.Sheet) *lyrics.Index {
	t.Helper()

	idx, err := lyrics.NewIndex(sheet)
	if err != nil {
		t.Fatalf("lyrics.NewIndex: %v", err)
	}
	return idx
}

// Buffer returns millis milliseconds of a constant signal at TestRate.
func Buffer(millis int, level float64) *beep.Buffer {
	format := beep.Format{SampleRate: TestRate, NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	remaining := millis
	buf.Append(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if remaining <= 0 {
			return 0, false
		}
		n := len(samples)
		if n > remaining {
			n = remaining
		}
		for i := range samples[:n] {
			samples[i] = [2]float64{level, level}
		}
		remaining -= n
		return n, true
	}))
	return buf
}
