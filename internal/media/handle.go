package media

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

// ErrUnknownSegment is returned by Play for ids missing from the segment table.
var ErrUnknownSegment = errors.New("unknown segment")

// EventKind identifies a playback event emitted by a Handle.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventStop
	EventVolume
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventStop:
		return "stop"
	case EventVolume:
		return "volume"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to listeners after the handle state changed.
type Event struct {
	Kind      EventKind
	SegmentID string
	Volume    float64
}

// Segment is a named, looping sub-range of the decoded audio.
type Segment struct {
	ID          string
	StartMillis int64
	EndMillis   int64

	start, end int // sample offsets
}

// Handle owns one decoded audio resource and its segment table. It is a
// beep.Streamer: an output sink pulls samples from it, and the playback
// position advances only as samples are pulled.
type Handle struct {
	mu sync.Mutex

	buf      *beep.Buffer
	src      beep.StreamSeeker
	rate     beep.SampleRate
	segments map[string]Segment
	songID   string

	active  string
	playing bool
	closed  bool
	gain    float64

	ctrl *beep.Ctrl
	vol  *effects.Volume

	listeners map[int]func(Event)
	nextID    int
}

// Load decodes data and builds a handle with one segment per lyric line and
// one global segment keyed by the song id.
func Load(data []byte, sheet *lyrics.Sheet) (*Handle, error) {
	buf, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return NewHandle(buf, sheet), nil
}

// NewHandle builds a handle over an already decoded buffer.
func NewHandle(buf *beep.Buffer, sheet *lyrics.Sheet) *Handle {
	h := &Handle{
		buf:       buf,
		src:       buf.Streamer(0, buf.Len()),
		rate:      buf.Format().SampleRate,
		segments:  make(map[string]Segment),
		gain:      1,
		listeners: make(map[int]func(Event)),
	}
	h.ctrl = &beep.Ctrl{Streamer: beep.StreamerFunc(h.streamSegment), Paused: true}
	h.vol = &effects.Volume{Streamer: h.ctrl, Base: 2}

	if sheet == nil {
		return h
	}

	h.songID = sheet.SongID
	for _, line := range sheet.Lines {
		h.addSegment(line.ID, line.StartMillis, line.EndMillis)
	}

	start, end := int64(0), h.DurationMillis()
	if n := len(sheet.Verses); n > 0 {
		first, last := sheet.Verses[0], sheet.Verses[0]
		for _, v := range sheet.Verses {
			if v.VerseOrdering < first.VerseOrdering {
				first = v
			}
			if v.VerseOrdering > last.VerseOrdering {
				last = v
			}
		}
		start, end = first.StartMillis, last.EndMillis
	}
	h.addSegment(sheet.SongID, start, end)
	return h
}

func (h *Handle) addSegment(id string, startMillis, endMillis int64) {
	start := h.samplesAt(startMillis)
	end := h.samplesAt(endMillis)
	if end <= start {
		return
	}
	h.segments[id] = Segment{
		ID:          id,
		StartMillis: startMillis,
		EndMillis:   endMillis,
		start:       start,
		end:         end,
	}
}

// samplesAt converts milliseconds to a sample offset clamped to the buffer.
func (h *Handle) samplesAt(ms int64) int {
	n := h.rate.N(time.Duration(ms) * time.Millisecond)
	if n < 0 {
		return 0
	}
	if n > h.buf.Len() {
		return h.buf.Len()
	}
	return n
}

func (h *Handle) millisAt(samples int) int64 {
	return int64(math.Round(float64(h.rate.D(samples)) / float64(time.Millisecond)))
}

// SongID returns the id of the global segment.
func (h *Handle) SongID() string { return h.songID }

// Segment looks a segment up by id.
func (h *Handle) Segment(id string) (Segment, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.segments[id]
	return s, ok
}

// Subscribe registers fn for playback events. Events are delivered
// synchronously on the goroutine that caused them, after the handle lock is
// released.
func (h *Handle) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// emit must be called without holding h.mu.
func (h *Handle) emit(ev Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Play starts the named segment, stopping any other. A paused segment
// resumes where it was; otherwise playback starts at the segment start.
func (h *Handle) Play(segmentID string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	seg, ok := h.segments[segmentID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segmentID)
	}
	if h.playing && h.active == segmentID {
		h.mu.Unlock()
		return nil
	}
	if h.active != segmentID {
		h.src.Seek(seg.start)
	}
	h.startLocked(segmentID)
	h.mu.Unlock()

	h.emit(Event{Kind: EventPlay, SegmentID: segmentID})
	return nil
}

// PlayAt starts the named segment from offsetMillis (absolute song time).
func (h *Handle) PlayAt(segmentID string, offsetMillis int64) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	if _, ok := h.segments[segmentID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segmentID)
	}
	h.src.Seek(h.samplesAt(offsetMillis))
	h.startLocked(segmentID)
	h.mu.Unlock()

	h.emit(Event{Kind: EventPlay, SegmentID: segmentID})
	return nil
}

// Cue selects the named segment and parks it at offsetMillis without
// starting playback. A following Play of the same segment starts there.
func (h *Handle) Cue(segmentID string, offsetMillis int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if _, ok := h.segments[segmentID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segmentID)
	}
	h.src.Seek(h.samplesAt(offsetMillis))
	h.active = segmentID
	h.playing = false
	h.ctrl.Paused = true
	return nil
}

func (h *Handle) startLocked(segmentID string) {
	h.active = segmentID
	h.playing = true
	h.ctrl.Paused = false
}

// Pause holds the active segment at its current position.
func (h *Handle) Pause() {
	h.mu.Lock()
	if h.closed || !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.ctrl.Paused = true
	seg := h.active
	h.mu.Unlock()

	h.emit(Event{Kind: EventPause, SegmentID: seg})
}

// Stop halts playback and forgets the active segment, so the next Play
// starts from the segment start.
func (h *Handle) Stop() {
	h.mu.Lock()
	if h.closed || (!h.playing && h.active == "") {
		h.mu.Unlock()
		return
	}
	seg := h.active
	h.playing = false
	h.active = ""
	h.ctrl.Paused = true
	h.mu.Unlock()

	h.emit(Event{Kind: EventStop, SegmentID: seg})
}

// Seek moves the playback position to positionMillis (absolute song time).
func (h *Handle) Seek(positionMillis int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.src.Seek(h.samplesAt(positionMillis))
}

// SetVolume sets the output gain, clamped to 0..1.
func (h *Handle) SetVolume(gain float64) {
	gain = math.Max(0, math.Min(1, gain))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.gain = gain
	h.vol.Silent = gain == 0
	if gain > 0 {
		h.vol.Volume = math.Log2(gain)
	}
	seg := h.active
	h.mu.Unlock()

	h.emit(Event{Kind: EventVolume, SegmentID: seg, Volume: gain})
}

// Volume returns the output gain.
func (h *Handle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain
}

// Playing reports whether a segment is audibly advancing.
func (h *Handle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing && !h.closed
}

// ActiveSegment returns the id of the playing or paused segment.
func (h *Handle) ActiveSegment() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// PositionMillis returns the current position in song time.
func (h *Handle) PositionMillis() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.millisAt(h.src.Position())
}

// DurationMillis returns the length of the decoded audio, rounded up.
func (h *Handle) DurationMillis() int64 {
	d := h.rate.D(h.buf.Len())
	return int64(math.Ceil(float64(d) / float64(time.Millisecond)))
}

// Close releases the resource. Every primitive is a no-op afterwards.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	h.active = ""
	h.listeners = map[int]func(Event){}
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Stream implements beep.Streamer. A closed handle reports exhaustion so
// sinks drop it.
func (h *Handle) Stream(samples [][2]float64) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, false
	}
	return h.vol.Stream(samples)
}

// Err implements beep.Streamer.
func (h *Handle) Err() error { return nil }

// streamSegment reads the active segment, looping at its end. Called with
// h.mu held.
func (h *Handle) streamSegment(samples [][2]float64) (int, bool) {
	seg, ok := h.segments[h.active]
	if !ok {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}

	filled := 0
	for filled < len(samples) {
		pos := h.src.Position()
		if pos >= seg.end {
			h.src.Seek(seg.start)
			pos = seg.start
		}
		want := len(samples) - filled
		if left := seg.end - pos; want > left {
			want = left
		}
		n, ok := h.src.Stream(samples[filled : filled+want])
		filled += n
		if !ok || n == 0 {
			h.src.Seek(seg.start)
		}
	}
	return filled, true
}
