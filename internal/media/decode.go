package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"github.com/naver-ai/elmi-monorepo/internal/audio"
)

// resampleQuality is the beep.Resample quality used when the source rate
// differs from the engine rate.
const resampleQuality = 4

// DecodeError is returned when audio bytes cannot be turned into a playable
// resource.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode audio: %v", e.Err)
	}
	return fmt.Sprintf("decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errUnknownFormat = errors.New("unrecognized container")

// sniff identifies the container from its leading bytes.
func sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "vorbis"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}

// Decode turns encoded audio into an in-memory buffer at the engine sample
// rate.
func Decode(data []byte) (*beep.Buffer, error) {
	format := sniff(data)
	if format == "" {
		return nil, &DecodeError{Err: errUnknownFormat}
	}

	rc := io.NopCloser(bytes.NewReader(data))

	var (
		streamer beep.StreamSeekCloser
		srcFmt   beep.Format
		err      error
	)
	switch format {
	case "wav":
		streamer, srcFmt, err = wav.Decode(rc)
	case "flac":
		streamer, srcFmt, err = flac.Decode(rc)
	case "vorbis":
		streamer, srcFmt, err = vorbis.Decode(rc)
	default:
		streamer, srcFmt, err = mp3.Decode(rc)
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	defer streamer.Close()

	target := beep.Format{
		SampleRate:  beep.SampleRate(audio.SampleRate),
		NumChannels: audio.Channels,
		Precision:   audio.BitDepth / 8,
	}

	var src beep.Streamer = streamer
	if srcFmt.SampleRate != target.SampleRate {
		src = beep.Resample(resampleQuality, srcFmt.SampleRate, target.SampleRate, streamer)
	}

	buf := beep.NewBuffer(target)
	buf.Append(src)
	if err := streamer.Err(); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if buf.Len() == 0 {
		return nil, &DecodeError{Format: format, Err: errors.New("no audio frames")}
	}
	return buf, nil
}
