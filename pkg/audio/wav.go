package audio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps raw signed-16-bit little-endian PCM in a minimal WAV
// container for offline inspection (see
// edgeworker.Session.ExportLastTurnAudio). numChannels lets the same
// helper cover both the mono microphone captures the teacher used it for
// and the adapter's synthesized turn audio, which may be stereo.
func NewWavBuffer(pcm []byte, sampleRate, numChannels int) []byte {
	const bitsPerSample = 16
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
