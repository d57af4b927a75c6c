package playback

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func expectEmpty[T any](t *testing.T, c <-chan T) {
	t.Helper()
	select {
	case v := <-c:
		t.Errorf("unexpected value %v", v)
	default:
	}
}

func TestInitialState(t *testing.T) {
	s := NewStore()
	st := s.State()
	if st.Status != StatusInitial {
		t.Errorf("Status = %v, want initial", st.Status)
	}
	if st.MountedSongID != "" || st.LinePlayInfo != nil || st.HitCoord != nil || st.PositionMillis != nil {
		t.Errorf("initial state not empty: %+v", st)
	}
	if st.Volume != 1 {
		t.Errorf("Volume = %v, want 1", st.Volume)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusInitial, "initial"},
		{StatusLoadingMedia, "loading_media"},
		{StatusStandby, "standby"},
		{StatusPaused, "paused"},
		{StatusPlaying, "playing"},
		{Status(42), "Status(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestPositionsReplayAndDedup(t *testing.T) {
	s := NewStore()
	sub := s.Positions()
	defer sub.Close()

	if p := recv(t, sub.C); p != nil {
		t.Errorf("replayed position = %d, want nil", *p)
	}

	coord := lyrics.TokenCoord{VerseID: "v1", LineID: "l1", Index: 0}
	if !s.PublishPosition(1500, coord, true) {
		t.Error("first publish reported duplicate")
	}
	if p := recv(t, sub.C); p == nil || *p != 1500 {
		t.Errorf("position = %v, want 1500", p)
	}

	if s.PublishPosition(1500, coord, true) {
		t.Error("repeated publish reported new value")
	}
	expectEmpty(t, sub.C)

	got, ok := s.HitCoord()
	if !ok || got != coord {
		t.Errorf("HitCoord = %+v, %v; want %+v", got, ok, coord)
	}

	s.PublishPosition(6000, lyrics.TokenCoord{}, false)
	if _, ok := s.HitCoord(); ok {
		t.Error("HitCoord should clear for an unresolved position")
	}
}

func TestPositionsLatestWins(t *testing.T) {
	s := NewStore()
	sub := s.Positions()
	defer sub.Close()

	for ms := int64(1); ms <= 50; ms++ {
		s.PublishPosition(ms, lyrics.TokenCoord{}, false)
	}
	if p := recv(t, sub.C); p == nil || *p != 50 {
		t.Errorf("latest position = %v, want 50", p)
	}
	expectEmpty(t, sub.C)

	late := s.Positions()
	defer late.Close()
	if p := recv(t, late.C); p == nil || *p != 50 {
		t.Errorf("late subscriber replay = %v, want 50", p)
	}
}

func TestVolumeRoundTrip(t *testing.T) {
	s := NewStore()
	sub := s.Volumes()
	defer sub.Close()

	original := recv(t, sub.C)
	s.PublishVolume(0)
	if v := recv(t, sub.C); v != 0 {
		t.Errorf("volume = %v, want 0", v)
	}
	s.PublishVolume(1)
	if v := recv(t, sub.C); v != original {
		t.Errorf("volume = %v, want %v", v, original)
	}
}

func TestTimelineClicksAreNotReplayed(t *testing.T) {
	s := NewStore()
	s.PublishTimelineClick(TimelineClick{PositionMillis: 10})

	sub := s.TimelineClicks()
	defer sub.Close()
	expectEmpty(t, sub.C)

	coord := lyrics.TokenCoord{VerseID: "v2", Index: -1}
	s.PublishTimelineClick(TimelineClick{PositionMillis: 9200, Coord: &coord})
	got := recv(t, sub.C)
	if got.PositionMillis != 9200 || got.Coord == nil || got.Coord.VerseID != "v2" {
		t.Errorf("click = %+v", got)
	}
}

func TestLinePlayMode(t *testing.T) {
	s := NewStore()
	if _, ok := s.LinePlayInfo(); ok {
		t.Fatal("line play active initially")
	}
	info := LinePlayInfo{LineID: "l3", TimestampRange: lyrics.TimestampRange{StartMillis: 6500, EndMillis: 9000}}
	s.EnterLinePlay(info)
	got, ok := s.LinePlayInfo()
	if !ok || got != info {
		t.Errorf("LinePlayInfo = %+v, %v; want %+v", got, ok, info)
	}
	if !s.State().InLineLoop() {
		t.Error("InLineLoop = false")
	}
	s.ExitLinePlay()
	if _, ok := s.LinePlayInfo(); ok {
		t.Error("line play still active after exit")
	}
}

func TestChangesCarrySnapshots(t *testing.T) {
	s := NewStore()
	sub := s.Changes()
	defer sub.Close()

	if st := recv(t, sub.C); st.Status != StatusInitial {
		t.Errorf("replayed status = %v", st.Status)
	}
	s.MountSong("song-1")
	s.SetStatus(StatusLoadingMedia)
	s.SetSongDuration(15000)
	s.SetStatus(StatusStandby)

	st := recv(t, sub.C)
	if st.MountedSongID != "song-1" || st.Status != StatusStandby || st.SongDurationMillis != 15000 {
		t.Errorf("latest snapshot = %+v", st)
	}
}

func TestMountSongForgetsPreviousSong(t *testing.T) {
	s := NewStore()
	s.MountSong("song-1")
	s.SetSongDuration(15000)
	s.SetSongSamples([]float64{0.1, 0.2})
	s.SetStatus(StatusPlaying)
	s.EnterLinePlay(LinePlayInfo{LineID: "l3"})
	s.PublishPosition(8000, lyrics.TokenCoord{VerseID: "v2", LineID: "l3", Index: 1}, true)
	s.PublishVolume(0.4)

	pos := s.Positions()
	defer pos.Close()
	recv(t, pos.C)

	s.MountSong("song-2")

	if p := recv(t, pos.C); p != nil {
		t.Errorf("position after remount = %d, want nil", *p)
	}
	st := s.State()
	if st.MountedSongID != "song-2" || st.Status != StatusInitial {
		t.Errorf("song/status = %q/%v, want song-2/initial", st.MountedSongID, st.Status)
	}
	if st.PositionMillis != nil || st.HitCoord != nil || st.LinePlayInfo != nil {
		t.Errorf("previous song leaked: %+v", st)
	}
	if st.SongDurationMillis != 0 || st.SongSamples != nil {
		t.Errorf("duration/samples = %d/%v, want cleared", st.SongDurationMillis, st.SongSamples)
	}
	if st.Volume != 0.4 {
		t.Errorf("Volume = %v, want 0.4 kept", st.Volume)
	}
}

func TestPositionChangesLeaveOutSamples(t *testing.T) {
	s := NewStore()
	s.SetSongSamples([]float64{0.1, 0.2})

	sub := s.Changes()
	defer sub.Close()
	if st := recv(t, sub.C); len(st.SongSamples) != 2 {
		t.Errorf("replayed samples = %v, want 2 values", st.SongSamples)
	}

	s.PublishPosition(1500, lyrics.TokenCoord{}, false)
	if st := recv(t, sub.C); st.SongSamples != nil {
		t.Errorf("position snapshot carries %d samples", len(st.SongSamples))
	}

	s.SetSongSamples([]float64{0.3})
	if st := recv(t, sub.C); len(st.SongSamples) != 1 {
		t.Errorf("samples snapshot = %v, want [0.3]", st.SongSamples)
	}
	if got := s.State().SongSamples; len(got) != 1 {
		t.Errorf("State().SongSamples = %v", got)
	}
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	s := NewStore()
	s.SetSongSamples([]float64{0.1, 0.2})
	s.PublishPosition(100, lyrics.TokenCoord{}, false)

	st := s.State()
	st.SongSamples[0] = 9
	*st.PositionMillis = 9

	again := s.State()
	if again.SongSamples[0] != 0.1 {
		t.Errorf("samples aliased: %v", again.SongSamples)
	}
	if *again.PositionMillis != 100 {
		t.Errorf("position aliased: %d", *again.PositionMillis)
	}
}

func TestResetRestoresInitialValues(t *testing.T) {
	s := NewStore()
	s.MountSong("song-1")
	s.SetStatus(StatusPlaying)
	s.EnterLinePlay(LinePlayInfo{LineID: "l1"})
	s.PublishPosition(1500, lyrics.TokenCoord{VerseID: "v1"}, true)
	s.PublishVolume(0.3)

	pos := s.Positions()
	defer pos.Close()
	recv(t, pos.C)

	s.Reset()

	if p := recv(t, pos.C); p != nil {
		t.Errorf("position after Reset = %d, want nil", *p)
	}
	st := s.State()
	if st.MountedSongID != "" || st.Status != StatusInitial || st.LinePlayInfo != nil || st.HitCoord != nil {
		t.Errorf("state after Reset = %+v", st)
	}
	if st.Volume != 1 {
		t.Errorf("volume after Reset = %v, want 1", st.Volume)
	}
}

func TestCloseReleasesSubscribers(t *testing.T) {
	s := NewStore()
	sub := s.Changes()
	s.Close()
	select {
	case <-sub.Done():
	default:
		t.Error("subscription not released by Close")
	}
	sub.Close()
}

func TestStateJSON(t *testing.T) {
	s := NewStore()
	s.MountSong("song-1")
	s.SetStatus(StatusPaused)
	s.EnterLinePlay(LinePlayInfo{LineID: "l1", TimestampRange: lyrics.TimestampRange{StartMillis: 1000, EndMillis: 4000}})

	data, err := json.Marshal(s.State())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"status":"paused"`, `"mounted_song_id":"song-1"`, `"line_id":"l1"`, `"start_millis":1000`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
}
