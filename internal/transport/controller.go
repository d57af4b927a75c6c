// Package transport is the command surface of the playback engine. It
// sequences media, sampling and the read model through one mode state
// machine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/media"
	"github.com/naver-ai/elmi-monorepo/internal/playback"
	"github.com/naver-ai/elmi-monorepo/internal/sampler"
)

var (
	// ErrInvalidState marks commands issued in a mode that forbids them.
	// Such commands are no-ops; the error only shows up in debug logs.
	ErrInvalidState = errors.New("command not allowed in current state")
	// ErrSuperseded is returned by a mount whose result was discarded
	// because another mount or a dispose happened meanwhile.
	ErrSuperseded = errors.New("mount superseded")
	// ErrUnknownLine is returned for line ids missing from the mounted sheet.
	ErrUnknownLine = errors.New("unknown line")
)

// MediaSource fetches song media from the media collaborator.
type MediaSource interface {
	Audio(ctx context.Context, songID string) ([]byte, error)
	Samples(ctx context.Context, songID string) ([]float64, error)
}

// LineSelector is told which line a direct access selected, so a detail
// view can open it.
type LineSelector func(lineID string)

// Options configures a Controller.
type Options struct {
	Source         MediaSource
	Sink           audio.Sink
	Clock          sampler.Clock
	SampleInterval time.Duration
	Selector       LineSelector
	Logger         *slog.Logger

	// Load builds a handle from fetched bytes. Defaults to media.Load.
	Load func(data []byte, sheet *lyrics.Sheet) (*media.Handle, error)
}

// Controller owns the one mounted audio resource. Commands serialize on
// its mutex; handle events never take it.
type Controller struct {
	opts  Options
	log   *slog.Logger
	store *playback.Store

	mu          sync.Mutex
	gen         uint64
	handle      *media.Handle
	index       *lyrics.Index
	sampler     *sampler.Sampler
	unsubscribe func()
	volume      float64
}

// New creates a controller with nothing mounted.
func New(opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = audio.NewDiscard()
	}
	if opts.Load == nil {
		opts.Load = media.Load
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		opts:   opts,
		log:    log.With("component", "transport"),
		store:  playback.NewStore(),
		volume: 1,
	}
}

// MountSong loads the song described by sheet. Mounting the song that is
// already mounted (or loading) does nothing. On failure the status reverts
// to Initial and the mounted id is cleared so a retry fetches again.
func (c *Controller) MountSong(ctx context.Context, sheet *lyrics.Sheet) error {
	if sheet == nil || sheet.SongID == "" {
		return errors.New("mount: sheet without song id")
	}
	songID := sheet.SongID

	c.mu.Lock()
	if c.store.MountedSongID() == songID {
		c.mu.Unlock()
		return nil
	}
	idx, err := lyrics.NewIndex(sheet)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("mount %s: %w", songID, err)
	}
	c.unloadLocked()
	c.gen++
	gen := c.gen
	c.store.ExitLinePlay()
	c.store.MountSong(songID)
	c.store.SetStatus(playback.StatusLoadingMedia)
	c.mu.Unlock()

	c.log.Info("mounting song", "song_id", songID)

	h, samples, err := c.fetch(ctx, songID, sheet)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if h != nil {
			h.Close()
		}
		c.log.Debug("discarding stale mount", "song_id", songID)
		return fmt.Errorf("mount %s: %w", songID, ErrSuperseded)
	}
	if err != nil {
		c.log.Error("mount failed", "song_id", songID, "err", err)
		c.store.ClearMountedSong()
		c.store.SetStatus(playback.StatusInitial)
		return fmt.Errorf("mount %s: %w", songID, err)
	}

	c.installLocked(h, idx)
	c.store.SetSongDuration(h.DurationMillis())
	if samples != nil {
		c.store.SetSongSamples(samples)
	}
	c.store.SetStatus(playback.StatusStandby)
	c.log.Info("song mounted", "song_id", songID, "duration_ms", h.DurationMillis(), "lines", len(idx.Lines()))
	return nil
}

// fetch downloads audio and samples concurrently and decodes the audio.
// A samples failure is logged and yields nil samples.
func (c *Controller) fetch(ctx context.Context, songID string, sheet *lyrics.Sheet) (*media.Handle, []float64, error) {
	if c.opts.Source == nil {
		return nil, nil, errors.New("no media source configured")
	}

	var (
		data    []byte
		samples []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = c.opts.Source.Audio(gctx, songID)
		return err
	})
	g.Go(func() error {
		s, err := c.opts.Source.Samples(gctx, songID)
		if err != nil {
			c.log.Warn("song samples unavailable", "song_id", songID, "err", err)
			return nil
		}
		samples = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	h, err := c.opts.Load(data, sheet)
	if err != nil {
		return nil, nil, err
	}
	return h, samples, nil
}

func (c *Controller) installLocked(h *media.Handle, idx *lyrics.Index) {
	smp := sampler.New(h, idx, c.store, sampler.Options{
		Interval:       c.opts.SampleInterval,
		Clock:          c.opts.Clock,
		DurationMillis: h.DurationMillis(),
		WrapToMillis:   idx.FirstVerseStart(),
		Logger:         c.log,
	})

	store := c.store
	c.unsubscribe = h.Subscribe(func(ev media.Event) {
		switch ev.Kind {
		case media.EventPlay:
			store.SetStatus(playback.StatusPlaying)
			smp.Start()
		case media.EventPause:
			store.SetStatus(playback.StatusPaused)
		case media.EventVolume:
			store.PublishVolume(ev.Volume)
		}
	})

	c.handle = h
	c.index = idx
	c.sampler = smp
	h.SetVolume(c.volume)
	c.opts.Sink.Attach(h)
}

// unloadLocked stops and releases the mounted handle, if any.
func (c *Controller) unloadLocked() {
	if c.sampler != nil {
		c.sampler.Stop()
		c.sampler = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.handle != nil {
		c.handle.Stop()
		c.opts.Sink.Detach()
		c.handle.Close()
		c.log.Debug("unloaded song", "song_id", c.handle.SongID())
		c.handle = nil
	}
	c.index = nil
}

// PlayLineLoop enters line-loop mode on lineID. Re-entering the line that
// was paused resumes from the paused offset; otherwise the line starts at
// its beginning. From Paused or Standby the line is only armed unless
// forcePlay is set.
func (c *Controller) PlayLineLoop(lineID string, forcePlay bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLineLoopLocked(lineID, forcePlay)
}

func (c *Controller) playLineLoopLocked(lineID string, forcePlay bool) error {
	if c.handle == nil {
		c.log.Debug("play line ignored", "line_id", lineID, "err", ErrInvalidState)
		return nil
	}
	line, ok := c.index.Line(lineID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, lineID)
	}

	prev, inLine := c.store.LinePlayInfo()
	prevStatus := c.store.Status()

	c.store.SetStatus(playback.StatusPlaying)
	c.store.EnterLinePlay(playback.LinePlayInfo{LineID: line.ID, TimestampRange: line.TimestampRange})

	resume, hasResume := int64(0), false
	if inLine && prev.LineID == lineID && prevStatus == playback.StatusPaused {
		resume, hasResume = c.handle.PositionMillis(), true
	}

	c.handle.Stop()

	if prevStatus != playback.StatusPaused && prevStatus != playback.StatusStandby {
		return c.handle.Play(lineID)
	}

	c.store.SetStatus(playback.StatusStandby)
	pos := line.StartMillis
	if hasResume {
		pos = resume
	}
	coord, hit := c.index.Resolve(pos)
	c.store.PublishPosition(pos, coord, hit)

	c.log.Debug("line armed", "line_id", lineID, "position_ms", pos, "force_play", forcePlay)
	if forcePlay {
		return c.handle.PlayAt(lineID, pos)
	}
	return c.handle.Cue(lineID, pos)
}

// ExitLineLoop leaves line-loop mode. If the line was playing, the global
// segment continues from the current absolute position.
func (c *Controller) ExitLineLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.LinePlayInfo(); !ok {
		return
	}
	c.store.ExitLinePlay()
	if c.handle == nil {
		return
	}
	pos := c.handle.PositionMillis()
	if c.handle.Playing() {
		c.handle.Stop()
		if err := c.handle.PlayAt(c.handle.SongID(), pos); err != nil {
			c.log.Warn("resume song failed", "position_ms", pos, "err", err)
		}
	}
}

// PerformGlobalPlay starts playback if nothing plays. In line-loop mode
// the looped line is force-played; otherwise the song resumes from the last
// sampled position or from the first verse.
func (c *Controller) PerformGlobalPlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		c.log.Debug("global play ignored", "err", ErrInvalidState)
		return nil
	}
	if c.handle.Playing() {
		return nil
	}
	if info, ok := c.store.LinePlayInfo(); ok {
		return c.playLineLoopLocked(info.LineID, true)
	}

	start := c.index.FirstVerseStart()
	if resume, ok := c.store.PositionMillis(); ok && resume != 0 {
		start = resume
	}
	c.handle.Stop()
	if err := c.handle.PlayAt(c.handle.SongID(), start); err != nil {
		return err
	}
	c.store.SetStatus(playback.StatusPlaying)
	return nil
}

// PauseMedia pauses whatever segment plays.
func (c *Controller) PauseMedia() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil && c.handle.Playing() {
		c.handle.Pause()
	}
}

// StopAllMedia stops playback and returns to Standby.
func (c *Controller) StopAllMedia() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return
	}
	c.handle.Stop()
	c.store.SetStatus(playback.StatusStandby)
}

// SeekGlobalMediaPosition moves the song position and samples it at once.
// It does nothing in line-loop mode or while no song is loaded.
func (c *Controller) SeekGlobalMediaPosition(positionMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		c.log.Debug("seek ignored", "position_ms", positionMillis, "err", ErrInvalidState)
		return
	}
	if _, ok := c.store.LinePlayInfo(); ok {
		c.log.Debug("seek ignored in line loop", "position_ms", positionMillis, "err", ErrInvalidState)
		return
	}
	c.handle.Seek(positionMillis)
	c.sampler.SampleNow()
}

// DirectAccessLineLoop arms the line containing positionMillis. With
// selectLine the configured LineSelector is told about it.
func (c *Controller) DirectAccessLineLoop(positionMillis int64, selectLine bool) error {
	c.mu.Lock()
	if c.index == nil {
		c.mu.Unlock()
		return nil
	}
	line, ok := c.index.LineAt(positionMillis)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	err := c.playLineLoopLocked(line.ID, false)
	selector := c.opts.Selector
	c.mu.Unlock()

	if err == nil && selectLine && selector != nil {
		selector(line.ID)
	}
	return err
}

// SetVolume sets the output gain, clamped to 0..1. Legal in every state;
// without a mounted song the gain is kept for the next mount.
func (c *Controller) SetVolume(gain float64) {
	gain = math.Max(0, math.Min(1, gain))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = gain
	if c.handle != nil {
		c.handle.SetVolume(gain)
		return
	}
	c.store.PublishVolume(gain)
}

// DispatchTimelineClickEvent announces a click on the global timeline.
func (c *Controller) DispatchTimelineClickEvent(positionMillis int64) {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()

	click := playback.TimelineClick{PositionMillis: positionMillis}
	if idx != nil {
		if coord, ok := idx.Resolve(positionMillis); ok {
			click.Coord = &coord
		}
	}
	c.store.PublishTimelineClick(click)
}

// Dispose stops playback, unloads the song and resets the read model. Safe
// to call repeatedly. In-flight mounts are discarded.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.unloadLocked()
	c.volume = 1
	c.store.Reset()
}

// Close disposes the controller and releases every subscriber.
func (c *Controller) Close() {
	c.Dispose()
	c.store.Close()
}

// CurrentPositionMillis returns the last sampled position.
func (c *Controller) CurrentPositionMillis() (int64, bool) {
	return c.store.PositionMillis()
}

// LivePositionMillis reads the position straight from the media, for
// consumers that keep other media frame-synced.
func (c *Controller) LivePositionMillis() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return 0, false
	}
	return c.handle.PositionMillis(), true
}

// MountedLineID returns the looped line id, or "".
func (c *Controller) MountedLineID() string {
	info, _ := c.store.LinePlayInfo()
	return info.LineID
}

// Lines returns the lines of the mounted song in playback order.
func (c *Controller) Lines() []lyrics.LyricLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return nil
	}
	return c.index.Lines()
}

// State returns the read model.
func (c *Controller) State() playback.State { return c.store.State() }

// Positions subscribes to sampled positions.
func (c *Controller) Positions() *playback.Subscription[*int64] { return c.store.Positions() }

// Volumes subscribes to gain changes.
func (c *Controller) Volumes() *playback.Subscription[float64] { return c.store.Volumes() }

// TimelineClicks subscribes to timeline clicks.
func (c *Controller) TimelineClicks() *playback.Subscription[playback.TimelineClick] {
	return c.store.TimelineClicks()
}

// Changes subscribes to read model snapshots.
func (c *Controller) Changes() *playback.Subscription[playback.State] { return c.store.Changes() }
