package audio

import "encoding/binary"

// ToPCM converts stereo float samples to interleaved int16, clipping to range.
// dst must hold at least 2*len(samples) values.
func ToPCM(samples [][2]float64, dst []int16) []int16 {
	dst = dst[:len(samples)*Channels]
	for i, s := range samples {
		dst[i*2] = clip(s[0])
		dst[i*2+1] = clip(s[1])
	}
	return dst
}

func clip(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
