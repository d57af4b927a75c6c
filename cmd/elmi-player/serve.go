package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/naver-ai/elmi-monorepo/internal/stream"
)

const (
	frameBuffer = 150
	eventBuffer = 64
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [song-id]",
		Short: "Run the playback engine behind an HTTP API and remote monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			events := stream.NewBroadcaster[stream.Event](eventBuffer, stream.DropNewest)
			eng, err := newEngine(cfg, logger, engineOptions{
				Selector: func(lineID string) {
					events.Publish(stream.Event{Type: "line_selected", Data: map[string]string{"line_id": lineID}})
				},
			})
			if err != nil {
				return err
			}

			frames := stream.NewBroadcaster[[]int16](frameBuffer, stream.DropNewest)
			webrtcHandler := stream.NewWebRTCHandler(frames, events, cfg.OpusBitrate, logger)

			mux := http.NewServeMux()
			mux.Handle("/api/", newAPIHandler(eng.ctrl, eng.mount))
			mux.Handle("/offer", webrtcHandler)
			mux.Handle("GET /events", stream.NewEventsHandler(events, stateEvent(eng.ctrl), logger))

			server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

			g, gctx := errgroup.WithContext(cmd.Context())

			if eng.pump != nil {
				g.Go(func() error {
					eng.pump.Run(gctx)
					return nil
				})
				g.Go(func() error {
					frames.Run(gctx, eng.pump.Frames())
					return nil
				})
			}

			g.Go(func() error {
				feedEvents(gctx, eng.ctrl, events)
				return nil
			})

			if len(args) == 1 {
				g.Go(func() error {
					if err := eng.mount(gctx, args[0]); err != nil {
						logger.Error("initial mount failed", "id", args[0], "err", err)
					}
					return nil
				})
			}

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				// SSE handlers only return once their listener is closed.
				webrtcHandler.Close()
				events.Close()
				err := server.Shutdown(shutdownCtx)
				eng.close()
				frames.Close()
				return err
			})

			g.Go(func() error {
				logger.Info("elmi-player live", "addr", cfg.ListenAddr, "output", cfg.Output)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			return g.Wait()
		},
	}
}
