package wire

import (
	"encoding/binary"
	"math"
)

// SensorHeaderSize is the fixed header length of a sensor datagram.
const SensorHeaderSize = 32

// Data types carried in byte 12 of the sensor datagram.
const (
	DataTypeAudio        uint8 = 1
	DataTypeSensorVector uint8 = 2
)

// SensorVectorChannels is the channel count of a SensorVector payload.
const SensorVectorChannels = 10

// SensorVectorBytes is the byte length of a SensorVector payload
// (10 little-endian IEEE-754 32-bit floats).
const SensorVectorBytes = SensorVectorChannels * 4

// Sensor vector channel indices, in wire order.
const (
	ChanBatteryLow = iota
	ChanPeopleCount
	ChanKnownFace
	ChanUnknownFace
	ChanFallEvent
	ChanLifted
	ChanIdleTime
	ChanSoundEnergy
	ChanVoiceRate
	ChanMotionEnergy
)

// SensorPacket is a parsed sensor datagram.
type SensorPacket struct {
	SensorID    uint32
	TimestampUs uint64
	DataType    uint8
	Seq         uint64
	Payload     []byte
}

// ParseSensor parses a sensor datagram from raw UDP bytes. Returns false
// if the buffer is shorter than the fixed header or than the header plus
// the declared payload length.
func ParseSensor(buf []byte) (SensorPacket, bool) {
	if len(buf) < SensorHeaderSize {
		return SensorPacket{}, false
	}

	sensorID := binary.LittleEndian.Uint32(buf[0:4])
	timestampUs := binary.LittleEndian.Uint64(buf[4:12])
	dataType := buf[12]
	payloadLen := int(binary.LittleEndian.Uint16(buf[16:18]))
	seq := binary.LittleEndian.Uint64(buf[20:28])

	if len(buf) < SensorHeaderSize+payloadLen {
		return SensorPacket{}, false
	}

	payload := buf[SensorHeaderSize : SensorHeaderSize+payloadLen]

	return SensorPacket{
		SensorID:    sensorID,
		TimestampUs: timestampUs,
		DataType:    dataType,
		Seq:         seq,
		Payload:     payload,
	}, true
}

// BuildSensor serializes a sensor datagram.
func BuildSensor(p SensorPacket) []byte {
	buf := make([]byte, SensorHeaderSize+len(p.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], p.SensorID)
	binary.LittleEndian.PutUint64(buf[4:12], p.TimestampUs)
	buf[12] = p.DataType
	binary.LittleEndian.PutUint16(buf[16:18], uint16(len(p.Payload)))
	binary.LittleEndian.PutUint64(buf[20:28], p.Seq)
	copy(buf[SensorHeaderSize:], p.Payload)
	return buf
}

// SensorVector decodes a SensorVector payload into its 10 channels.
// Returns false when the payload is shorter than SensorVectorBytes.
func SensorVector(payload []byte) ([SensorVectorChannels]float32, bool) {
	var out [SensorVectorChannels]float32
	if len(payload) < SensorVectorBytes {
		return out, false
	}
	for i := 0; i < SensorVectorChannels; i++ {
		bits := binary.LittleEndian.Uint32(payload[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, true
}

// BuildSensorVector encodes 10 channels into a SensorVector payload.
func BuildSensorVector(channels [SensorVectorChannels]float32) []byte {
	buf := make([]byte, SensorVectorBytes)
	for i, v := range channels {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}
