package wire

import (
	"encoding/binary"
	"math"
)

// VadReplySize is the fixed wire length of an affective reply frame.
const VadReplySize = 34

// Kind values for VadReply.Kind.
const (
	VadKindAudio     uint8 = 1
	VadKindEmotional uint8 = 2
)

// VadReply is the 34-byte affective/VAD reply frame sent back to a
// sensor's source address.
type VadReply struct {
	SensorID  uint32
	Seq       uint64
	Active    bool
	Kind      uint8
	Energy    float32
	Threshold float32
	Valence   float32
	Arousal   float32
	Dominance float32
}

// BuildVadReply serializes a VadReply into its 34-byte wire form.
func BuildVadReply(r VadReply) []byte {
	buf := make([]byte, VadReplySize)
	binary.LittleEndian.PutUint32(buf[0:4], r.SensorID)
	binary.LittleEndian.PutUint64(buf[4:12], r.Seq)
	if r.Active {
		buf[12] = 1
	}
	buf[13] = r.Kind
	binary.LittleEndian.PutUint32(buf[14:18], math.Float32bits(r.Energy))
	binary.LittleEndian.PutUint32(buf[18:22], math.Float32bits(r.Threshold))
	binary.LittleEndian.PutUint32(buf[22:26], math.Float32bits(r.Valence))
	binary.LittleEndian.PutUint32(buf[26:30], math.Float32bits(r.Arousal))
	binary.LittleEndian.PutUint32(buf[30:34], math.Float32bits(r.Dominance))
	return buf
}

// ParseVadReply parses a 34-byte affective reply frame.
func ParseVadReply(buf []byte) (VadReply, bool) {
	if len(buf) < VadReplySize {
		return VadReply{}, false
	}
	return VadReply{
		SensorID:  binary.LittleEndian.Uint32(buf[0:4]),
		Seq:       binary.LittleEndian.Uint64(buf[4:12]),
		Active:    buf[12] != 0,
		Kind:      buf[13],
		Energy:    math.Float32frombits(binary.LittleEndian.Uint32(buf[14:18])),
		Threshold: math.Float32frombits(binary.LittleEndian.Uint32(buf[18:22])),
		Valence:   math.Float32frombits(binary.LittleEndian.Uint32(buf[22:26])),
		Arousal:   math.Float32frombits(binary.LittleEndian.Uint32(buf[26:30])),
		Dominance: math.Float32frombits(binary.LittleEndian.Uint32(buf[30:34])),
	}, true
}
