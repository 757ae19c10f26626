package cloudbridge

import "encoding/binary"

// Resample converts 16-bit little-endian mono PCM from fromRate to
// toRate by linear interpolation between nearest integer source
// indices. Empty input yields empty output. Ported verbatim from the
// reference implementation's resample() (esp↔cloud sample-rate bridge).
func Resample(pcm []byte, fromRate, toRate int) []byte {
	nIn := len(pcm) / 2
	if nIn == 0 {
		return nil
	}

	src := make([]int16, nIn)
	for i := 0; i < nIn; i++ {
		src[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}

	nOut := (nIn * toRate) / fromRate
	out := make([]byte, 0, nOut*2)

	if nOut <= 1 {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(src[0]))
		return append(out, b[:]...)
	}

	for j := 0; j < nOut; j++ {
		pos := float64(j) * float64(nIn-1) / float64(nOut-1)
		idx := int(pos)
		frac := pos - float64(idx)

		var s int16
		if idx+1 < nIn {
			s = int16(round(float64(src[idx])*(1-frac) + float64(src[idx+1])*frac))
		} else {
			s = src[nIn-1]
		}

		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		out = append(out, b[:]...)
	}

	return out
}

func round(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// Resample16to24 resamples 16 kHz mono PCM16 to 24 kHz.
func Resample16to24(pcm []byte) []byte { return Resample(pcm, 16000, 24000) }

// Resample24to16 resamples 24 kHz mono PCM16 to 16 kHz.
func Resample24to16(pcm []byte) []byte { return Resample(pcm, 24000, 16000) }
