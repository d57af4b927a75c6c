package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Sink is an output stage that pulls samples from a streamer.
type Sink interface {
	Attach(s beep.Streamer)
	Detach()
}

// SpeakerSink plays through the local sound device.
type SpeakerSink struct {
	buffer time.Duration

	once    sync.Once
	initErr error
}

// NewSpeakerSink creates a sink with the given device buffer length.
func NewSpeakerSink(buffer time.Duration) *SpeakerSink {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &SpeakerSink{buffer: buffer}
}

// Init opens the sound device. Calling it again is a no-op.
func (s *SpeakerSink) Init() error {
	s.once.Do(func() {
		sr := beep.SampleRate(SampleRate)
		if err := speaker.Init(sr, sr.N(s.buffer)); err != nil {
			s.initErr = fmt.Errorf("init speaker: %w", err)
		}
	})
	return s.initErr
}

// Attach replaces whatever the speaker is playing with st.
func (s *SpeakerSink) Attach(st beep.Streamer) {
	if s.Init() != nil {
		return
	}
	speaker.Clear()
	speaker.Play(st)
}

// Detach silences the speaker.
func (s *SpeakerSink) Detach() {
	if s.Init() != nil {
		return
	}
	speaker.Clear()
}

// Discard pulls its streamer at the output rate and drops the samples, so
// playback advances in real time with no device attached.
type Discard struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewDiscard creates an idle discarding sink.
func NewDiscard() *Discard {
	return &Discard{}
}

// Attach starts pulling st, replacing any streamer already attached.
func (d *Discard) Attach(st beep.Streamer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go drain(st, d.stop, d.done)
}

// Detach stops pulling and waits for the pull loop to exit.
func (d *Discard) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Discard) stopLocked() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop, d.done = nil, nil
}

func drain(st beep.Streamer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	buf := make([][2]float64, FrameSize)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, ok := st.Stream(buf); !ok {
				return
			}
		}
	}
}
