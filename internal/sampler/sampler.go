// Package sampler runs the fixed-rate loop that turns the live playback
// position into published positions and lyric coordinates.
package sampler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

// DefaultInterval is roughly one display frame.
const DefaultInterval = 16 * time.Millisecond

// Target is the media being sampled.
type Target interface {
	Playing() bool
	PositionMillis() int64
	Seek(positionMillis int64)
}

// Resolver maps a position to a lyric coordinate.
type Resolver interface {
	Resolve(positionMillis int64) (lyrics.TokenCoord, bool)
}

// Publisher receives every sample.
type Publisher interface {
	PublishPosition(positionMillis int64, coord lyrics.TokenCoord, hit bool) bool
}

// Options configures a Sampler. Zero values pick defaults.
type Options struct {
	Interval time.Duration
	Clock    Clock

	// DurationMillis is the song length. A sampled position past it is
	// wrapped back to WrapToMillis before publishing.
	DurationMillis int64
	WrapToMillis   int64

	Logger *slog.Logger
}

// Sampler polls a Target while it plays. The loop ends on its own the
// first tick it sees the target is not playing, so it never outlives a
// pause or stop.
type Sampler struct {
	target    Target
	resolver  Resolver
	publisher Publisher
	opts      Options
	log       *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates an idle sampler.
func New(target Target, resolver Resolver, publisher Publisher, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{
		target:    target,
		resolver:  resolver,
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

// Start arms the loop. Calling it while the loop runs does nothing.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	ticker := s.opts.Clock.NewTicker(s.opts.Interval)

	s.wg.Add(1)
	go s.run(ticker, s.stop)
	s.log.Debug("sampler started", "interval", s.opts.Interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Running reports whether the loop is armed.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SampleNow samples once on the calling goroutine and returns the
// published position.
func (s *Sampler) SampleNow() int64 {
	return s.sample()
}

func (s *Sampler) run(t Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.stillPlaying(stop) {
				s.log.Debug("sampler stopped", "reason", "not playing")
				return
			}
			s.sample()
		}
	}
}

// stillPlaying clears running when the target stopped. It runs under s.mu
// so a concurrent Start either sees the loop alive or starts a new one.
func (s *Sampler) stillPlaying(stop <-chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-stop:
		return false
	default:
	}
	if s.target.Playing() {
		return true
	}
	s.running = false
	return false
}

func (s *Sampler) sample() int64 {
	pos := s.target.PositionMillis()
	if d := s.opts.DurationMillis; d > 0 && pos > d {
		s.target.Seek(s.opts.WrapToMillis)
		pos = s.target.PositionMillis()
	}
	coord, hit := s.resolver.Resolve(pos)
	s.publisher.PublishPosition(pos, coord, hit)
	return pos
}
