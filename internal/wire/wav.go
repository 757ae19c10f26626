package wire

import (
	"bytes"
	"encoding/binary"
)

// WAV output format: canonical RIFF/WAVE, PCM integer, mono, 16 kHz, 16 bps.
const (
	WavSampleRate    = 16000
	WavChannels      = 1
	WavBitsPerSample = 16
)

// BuildWav wraps raw PCM samples in a canonical RIFF/WAVE header. There is
// no third-party WAV encoder anywhere in the retrieved corpus; every
// example that emits WAV (gabrielpreston-audio-orchestrator's buildWAV,
// rustyguts-bken's RIFF reader) hand-rolls the header with
// encoding/binary, so this does the same.
func BuildWav(pcm []byte) []byte {
	byteRate := WavSampleRate * WavChannels * WavBitsPerSample / 8
	blockAlign := WavChannels * WavBitsPerSample / 8

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // subchunk1 size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM integer format
	binary.Write(buf, binary.LittleEndian, uint16(WavChannels))
	binary.Write(buf, binary.LittleEndian, uint32(WavSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(WavBitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
