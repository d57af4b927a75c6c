package playback

import (
	"sync"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/stream"
)

const (
	clickBuffer  = 8
	changeBuffer = 1
)

// Subscription is one subscriber's view of an observable. Close it when the
// consumer goes away.
type Subscription[T any] struct {
	C <-chan T

	l *stream.Listener[T]
	b *stream.Broadcaster[T]
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription[T]) Close() { s.b.Unsubscribe(s.l) }

// Done is closed once the subscription is closed or the store shuts down.
func (s *Subscription[T]) Done() <-chan struct{} { return s.l.Done() }

func subscription[T any](b *stream.Broadcaster[T], l *stream.Listener[T]) *Subscription[T] {
	return &Subscription[T]{C: l.C, l: l, b: b}
}

// Store holds the playback read model. All mutators publish to the
// matching observables while holding the store lock, so subscribers see
// values in mutation order.
type Store struct {
	mu sync.RWMutex
	st State

	positions *stream.Broadcaster[*int64]
	volumes   *stream.Broadcaster[float64]
	clicks    *stream.Broadcaster[TimelineClick]
	changes   *stream.Broadcaster[State]
}

// NewStore returns a store holding the initial values.
func NewStore() *Store {
	return &Store{
		st:        initialState(),
		positions: stream.NewBroadcaster[*int64](1, stream.LatestWins),
		volumes:   stream.NewBroadcaster[float64](1, stream.LatestWins),
		clicks:    stream.NewBroadcaster[TimelineClick](clickBuffer, stream.DropNewest),
		changes:   stream.NewBroadcaster[State](changeBuffer, stream.LatestWins),
	}
}

func initialState() State {
	return State{Status: StatusInitial, Volume: 1}
}

// snapshotLocked copies st so callers can't alias store memory. The
// waveform is only copied when withSamples is set.
func (s *Store) snapshotLocked(withSamples bool) State {
	out := s.st
	if s.st.LinePlayInfo != nil {
		info := *s.st.LinePlayInfo
		out.LinePlayInfo = &info
	}
	if s.st.HitCoord != nil {
		c := *s.st.HitCoord
		out.HitCoord = &c
	}
	out.PositionMillis = copyPosition(s.st.PositionMillis)
	out.SongSamples = nil
	if withSamples && s.st.SongSamples != nil {
		out.SongSamples = append([]float64(nil), s.st.SongSamples...)
	}
	return out
}

func copyPosition(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// changedLocked announces a snapshot without the waveform; only
// SetSongSamples and the replay on Changes carry it.
func (s *Store) changedLocked() {
	s.changes.Publish(s.snapshotLocked(false))
}

// MountSong records id as the mounted song. Everything but the volume goes
// back to its initial value so nothing of the previous song leaks through.
func (s *Store) MountSong(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hadPosition := s.st.PositionMillis != nil
	volume := s.st.Volume
	s.st = initialState()
	s.st.MountedSongID = id
	s.st.Volume = volume
	if hadPosition {
		s.positions.Publish(nil)
	}
	s.changedLocked()
}

// ClearMountedSong forgets the mounted song id without touching the rest.
func (s *Store) ClearMountedSong() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.MountedSongID == "" {
		return
	}
	s.st.MountedSongID = ""
	s.changedLocked()
}

// SetStatus replaces the status.
func (s *Store) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Status == status {
		return
	}
	s.st.Status = status
	s.changedLocked()
}

// SetSongDuration records the decoded song length.
func (s *Store) SetSongDuration(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.SongDurationMillis = ms
	s.changedLocked()
}

// SetSongSamples records the waveform amplitudes.
func (s *Store) SetSongSamples(samples []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.SongSamples = append([]float64(nil), samples...)
	s.changes.Publish(s.snapshotLocked(true))
}

// EnterLinePlay switches to line-loop mode on info.
func (s *Store) EnterLinePlay(info LinePlayInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LinePlayInfo = &info
	s.changedLocked()
}

// ExitLinePlay leaves line-loop mode.
func (s *Store) ExitLinePlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.LinePlayInfo == nil {
		return
	}
	s.st.LinePlayInfo = nil
	s.changedLocked()
}

// PublishPosition records a sampled position and its resolved coordinate.
// Repeating the last published value is dropped; it reports whether the
// value was new.
func (s *Store) PublishPosition(ms int64, coord lyrics.TokenCoord, hit bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.st.PositionMillis; p != nil && *p == ms {
		return false
	}
	s.st.PositionMillis = &ms
	if hit {
		s.st.HitCoord = &coord
	} else {
		s.st.HitCoord = nil
	}
	s.positions.Publish(copyPosition(&ms))
	s.changedLocked()
	return true
}

// PublishVolume records the current gain.
func (s *Store) PublishVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Volume = v
	s.volumes.Publish(v)
	s.changedLocked()
}

// PublishTimelineClick fires a one-shot timeline click event.
func (s *Store) PublishTimelineClick(c TimelineClick) {
	s.clicks.Publish(c)
}

// Reset restores the initial values and announces them.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hadPosition := s.st.PositionMillis != nil
	oldVolume := s.st.Volume
	s.st = initialState()
	if hadPosition {
		s.positions.Publish(nil)
	}
	if oldVolume != s.st.Volume {
		s.volumes.Publish(s.st.Volume)
	}
	s.changedLocked()
}

// State returns a snapshot of the read model.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(true)
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Status
}

// MountedSongID returns the mounted song id, or "".
func (s *Store) MountedSongID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.MountedSongID
}

// LinePlayInfo returns the looped line, if any.
func (s *Store) LinePlayInfo() (LinePlayInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.LinePlayInfo == nil {
		return LinePlayInfo{}, false
	}
	return *s.st.LinePlayInfo, true
}

// PositionMillis returns the last published position.
func (s *Store) PositionMillis() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.PositionMillis == nil {
		return 0, false
	}
	return *s.st.PositionMillis, true
}

// Volume returns the last published gain.
func (s *Store) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Volume
}

// HitCoord returns the coordinate resolved from the last position.
func (s *Store) HitCoord() (lyrics.TokenCoord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.HitCoord == nil {
		return lyrics.TokenCoord{}, false
	}
	return *s.st.HitCoord, true
}

// Positions subscribes to sampled positions. The current value (nil when
// nothing was sampled) is delivered first.
func (s *Store) Positions() *Subscription[*int64] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subscription(s.positions, s.positions.SubscribeWith(copyPosition(s.st.PositionMillis)))
}

// Volumes subscribes to gain changes, starting with the current gain.
func (s *Store) Volumes() *Subscription[float64] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subscription(s.volumes, s.volumes.SubscribeWith(s.st.Volume))
}

// TimelineClicks subscribes to timeline click events. Nothing is replayed.
func (s *Store) TimelineClicks() *Subscription[TimelineClick] {
	return subscription(s.clicks, s.clicks.Subscribe())
}

// Changes subscribes to read model snapshots, starting with the current one.
// Only the first snapshot and those following SetSongSamples carry the
// waveform; read it from State otherwise.
func (s *Store) Changes() *Subscription[State] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subscription(s.changes, s.changes.SubscribeWith(s.snapshotLocked(true)))
}

// Close releases every subscriber.
func (s *Store) Close() {
	s.positions.Close()
	s.volumes.Close()
	s.clicks.Close()
	s.changes.Close()
}
