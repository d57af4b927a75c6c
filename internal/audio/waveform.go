package audio

import (
	"math"

	"github.com/faiface/beep"
)

// WaveformPoints is the default resolution of a song waveform.
const WaveformPoints = 1000

// Waveform reduces total samples of s to about points RMS amplitudes in
// 0..1, one per block, for timeline rendering.
func Waveform(s beep.Streamer, total, points int) []float64 {
	if total <= 0 || points <= 0 {
		return nil
	}
	step := total / points
	if step == 0 {
		step = 1
	}

	block := make([][2]float64, step)
	waveform := make([]float64, 0, points+1)

	for {
		n := fill(s, block)
		if n == 0 {
			break
		}

		var sum float64
		for _, v := range block[:n] {
			mono := (v[0] + v[1]) / 2
			sum += mono * mono
		}
		rms := math.Sqrt(sum / float64(n))
		waveform = append(waveform, math.Min(rms, 1))

		if n < step {
			break
		}
	}
	return waveform
}

// fill streams until buf is full or s is drained.
func fill(s beep.Streamer, buf [][2]float64) int {
	filled := 0
	for filled < len(buf) {
		n, ok := s.Stream(buf[filled:])
		filled += n
		if !ok || n == 0 {
			break
		}
	}
	return filled
}
