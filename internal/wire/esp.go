// Package wire implements the binary frame formats exchanged with the
// device fleet: the audio-protocol frame, the sensor datagram, the
// affective reply frame, and the device notification frame.
package wire

import "encoding/binary"

// Header size of the device audio protocol frame (seq + type + flags).
const EspHeaderSize = 4

// Maximum payload carried by a single audio-protocol frame, chosen to
// stay under a typical 1500 B MTU.
const EspMaxPayload = 1400

// Packet types for the device audio protocol (byte 2 of the frame).
const (
	PktAudioUp   uint8 = 0x01
	PktAudioDown uint8 = 0x02
	PktControl   uint8 = 0x03
	PktHeartbeat uint8 = 0x04
)

// Flag bits (byte 3 of the frame).
const (
	FlagStart  uint8 = 0x01
	FlagEnd    uint8 = 0x02
	FlagUrgent uint8 = 0x04
)

// Control commands, carried as the first payload byte when PktType ==
// PktControl.
const (
	CtrlSessionStart uint8 = 0x01
	CtrlSessionEnd   uint8 = 0x02
	CtrlStreamStart  uint8 = 0x03
	CtrlStreamEnd    uint8 = 0x04
	CtrlAck          uint8 = 0x05
	CtrlCancel       uint8 = 0x06
	CtrlServerReady  uint8 = 0x07
)

// EspPacket is a parsed device audio-protocol frame.
type EspPacket struct {
	SeqNum  uint16
	PktType uint8
	Flags   uint8
	Payload []byte
}

// ParseEsp parses a device audio-protocol frame from raw UDP bytes.
// Returns false when the buffer is too short, the type byte is unknown,
// or the payload exceeds EspMaxPayload.
func ParseEsp(buf []byte) (EspPacket, bool) {
	if len(buf) < EspHeaderSize {
		return EspPacket{}, false
	}

	pktType := buf[2]
	switch pktType {
	case PktAudioUp, PktAudioDown, PktControl, PktHeartbeat:
	default:
		return EspPacket{}, false
	}

	payload := buf[EspHeaderSize:]
	if len(payload) > EspMaxPayload {
		return EspPacket{}, false
	}

	return EspPacket{
		SeqNum:  binary.LittleEndian.Uint16(buf[0:2]),
		PktType: pktType,
		Flags:   buf[3],
		Payload: payload,
	}, true
}

// IsStart reports whether the Start flag is set.
func (p EspPacket) IsStart() bool { return p.Flags&FlagStart != 0 }

// IsEnd reports whether the End flag is set.
func (p EspPacket) IsEnd() bool { return p.Flags&FlagEnd != 0 }

// IsUrgent reports whether the Urgent flag is set.
func (p EspPacket) IsUrgent() bool { return p.Flags&FlagUrgent != 0 }

// ControlCmd returns the control command byte for a PktControl frame,
// and false for any other packet type or an empty payload.
func (p EspPacket) ControlCmd() (uint8, bool) {
	if p.PktType == PktControl && len(p.Payload) > 0 {
		return p.Payload[0], true
	}
	return 0, false
}

// BuildEsp serializes a device audio-protocol frame.
func BuildEsp(seqNum uint16, pktType, flags uint8, payload []byte) []byte {
	buf := make([]byte, EspHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], seqNum)
	buf[2] = pktType
	buf[3] = flags
	copy(buf[EspHeaderSize:], payload)
	return buf
}

// BuildControl serializes a control frame (type PktControl, payload = [cmd]).
func BuildControl(seqNum uint16, cmd, flags uint8) []byte {
	return BuildEsp(seqNum, PktControl, flags, []byte{cmd})
}

// BuildHeartbeat serializes a heartbeat reply mirroring the inbound sequence.
func BuildHeartbeat(seqNum uint16) []byte {
	return BuildEsp(seqNum, PktHeartbeat, 0, nil)
}

// BuildAudioDown serializes an audio-down frame (type PktAudioDown).
func BuildAudioDown(seqNum uint16, flags uint8, pcm []byte) []byte {
	return BuildEsp(seqNum, PktAudioDown, flags, pcm)
}
