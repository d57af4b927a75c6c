package main

import (
	"context"

	"github.com/naver-ai/elmi-monorepo/internal/stream"
	"github.com/naver-ai/elmi-monorepo/internal/transport"
)

// Event types sent to remote monitors.
const (
	eventState         = "state"
	eventTimelineClick = "timeline_click"
)

// feedEvents republishes controller observables as monitor events until
// ctx is done. State events leave out the waveform; clients fetch it once
// from /api/state.
func feedEvents(ctx context.Context, ctrl *transport.Controller, events *stream.Broadcaster[stream.Event]) {
	changes := ctrl.Changes()
	defer changes.Close()
	clicks := ctrl.TimelineClicks()
	defer clicks.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes.Done():
			return
		case <-clicks.Done():
			return
		case st := <-changes.C:
			st.SongSamples = nil
			events.Publish(stream.Event{Type: eventState, Data: st})
		case click := <-clicks.C:
			events.Publish(stream.Event{Type: eventTimelineClick, Data: click})
		}
	}
}

// stateEvent is the first event every new monitor receives.
func stateEvent(ctrl *transport.Controller) func() stream.Event {
	return func() stream.Event {
		st := ctrl.State()
		st.SongSamples = nil
		return stream.Event{Type: eventState, Data: st}
	}
}
