package audio

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
)

// Pump pulls 20ms frames from the attached streamer at real-time rate and
// publishes them as interleaved PCM. It is the output stage for remote
// listeners, standing in for the local speaker.
type Pump struct {
	frameCh chan []int16

	mu     sync.Mutex
	source beep.Streamer
	buf    [][2]float64
	sent   uint64
}

// NewPump creates an idle pump with nothing attached.
func NewPump() *Pump {
	return &Pump{
		frameCh: make(chan []int16, 100),
		buf:     make([][2]float64, FrameSize),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pump) Frames() <-chan []int16 {
	return p.frameCh
}

// Attach replaces the streamer frames are pulled from.
func (p *Pump) Attach(s beep.Streamer) {
	p.mu.Lock()
	p.source = s
	p.mu.Unlock()
}

// Detach stops pulling; no frames are sent until the next Attach.
func (p *Pump) Detach() {
	p.Attach(nil)
}

// FramesSent returns the number of frames produced so far.
func (p *Pump) FramesSent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Run starts the pump. Blocks until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, ok := p.next()
		if !ok {
			continue
		}

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// next pulls one frame. A drained source is detached and its tail padded
// with silence.
func (p *Pump) next() ([]int16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		return nil, false
	}

	n, ok := p.source.Stream(p.buf)
	if !ok {
		p.source = nil
		if n == 0 {
			return nil, false
		}
	}
	for i := n; i < len(p.buf); i++ {
		p.buf[i] = [2]float64{}
	}

	p.sent++
	return ToPCM(p.buf, make([]int16, FrameSamples)), true
}
