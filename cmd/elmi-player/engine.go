package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
	"github.com/naver-ai/elmi-monorepo/internal/config"
	"github.com/naver-ai/elmi-monorepo/internal/mediaclient"
	"github.com/naver-ai/elmi-monorepo/internal/sampler"
	"github.com/naver-ai/elmi-monorepo/internal/transport"
)

// engine wires a controller to its media source and output stage.
type engine struct {
	log    *slog.Logger
	source mediaclient.Source
	ctrl   *transport.Controller
	pump   *audio.Pump // set when output is monitor
}

type engineOptions struct {
	Source   mediaclient.Source
	Sink     audio.Sink
	Clock    sampler.Clock
	Selector transport.LineSelector
}

// newEngine builds the source and sink named by cfg. Fields set in opts
// take precedence.
func newEngine(cfg config.Config, logger *slog.Logger, opts engineOptions) (*engine, error) {
	e := &engine{log: logger, source: opts.Source}

	if e.source == nil {
		e.source = newSource(cfg)
	}

	sink := opts.Sink
	if sink == nil {
		switch cfg.Output {
		case config.OutputSpeaker:
			s := audio.NewSpeakerSink(cfg.SpeakerBuffer())
			if err := s.Init(); err != nil {
				return nil, err
			}
			sink = s
		case config.OutputMonitor:
			e.pump = audio.NewPump()
			sink = e.pump
		default:
			sink = audio.NewDiscard()
		}
	}

	e.ctrl = transport.New(transport.Options{
		Source:         e.source,
		Sink:           sink,
		Clock:          opts.Clock,
		SampleInterval: cfg.SampleInterval(),
		Selector:       opts.Selector,
		Logger:         logger,
	})
	e.ctrl.SetVolume(cfg.InitialVolume)
	return e, nil
}

func newSource(cfg config.Config) mediaclient.Source {
	if cfg.MediaDir != "" {
		return mediaclient.NewLocal(cfg.MediaDir)
	}
	return mediaclient.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.HTTPTimeout())
}

// mount fetches the lyric sheet for id and mounts its song. id is a project
// id for the API source and a song id for a local directory.
func (e *engine) mount(ctx context.Context, id string) error {
	sheet, err := e.source.Sheet(ctx, id)
	if err != nil {
		return fmt.Errorf("load lyrics %s: %w", id, err)
	}
	return e.ctrl.MountSong(ctx, sheet)
}

func (e *engine) close() {
	e.ctrl.Close()
}
