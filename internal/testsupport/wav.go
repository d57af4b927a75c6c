package testsupport

import (
	"bytes"
	"encoding/binary"
)

// WAV builds a 48kHz stereo 16-bit PCM file holding frames frames of a
// constant sample value.
func WAV(frames int, value int16) []byte {
	var b bytes.Buffer
	dataLen := frames * 4
	le := binary.LittleEndian

	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1)) // PCM
	binary.Write(&b, le, uint16(2))
	binary.Write(&b, le, uint32(48000))
	binary.Write(&b, le, uint32(48000*4))
	binary.Write(&b, le, uint16(4))
	binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	binary.Write(&b, le, uint32(dataLen))
	for i := 0; i < frames*2; i++ {
		binary.Write(&b, le, value)
	}
	return b.Bytes()
}
