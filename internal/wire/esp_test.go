package wire

import (
	"bytes"
	"testing"
)

func TestEspRoundTrip(t *testing.T) {
	types := []uint8{PktAudioUp, PktAudioDown, PktControl, PktHeartbeat}
	for _, typ := range types {
		payload := []byte{1, 2, 3, 4, 5}
		raw := BuildEsp(42, typ, FlagStart|FlagEnd, payload)
		got, ok := ParseEsp(raw)
		if !ok {
			t.Fatalf("type %x: parse failed", typ)
		}
		if got.SeqNum != 42 || got.PktType != typ || got.Flags != FlagStart|FlagEnd {
			t.Fatalf("type %x: fields mismatch: %+v", typ, got)
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Fatalf("type %x: payload mismatch", typ)
		}
	}
}

func TestEspParseRejectsShort(t *testing.T) {
	if _, ok := ParseEsp([]byte{0, 0, 0}); ok {
		t.Fatal("expected parse failure for buffer shorter than header")
	}
}

func TestEspParseRejectsUnknownType(t *testing.T) {
	if _, ok := ParseEsp([]byte{0, 0, 0x99, 0}); ok {
		t.Fatal("expected parse failure for unknown packet type")
	}
}

func TestEspParseRejectsOversizedPayload(t *testing.T) {
	raw := BuildEsp(0, PktAudioUp, 0, make([]byte, EspMaxPayload+1))
	if _, ok := ParseEsp(raw); ok {
		t.Fatal("expected parse failure for oversized payload")
	}
}

func TestEspFlags(t *testing.T) {
	p := EspPacket{Flags: FlagStart | FlagUrgent}
	if !p.IsStart() || p.IsEnd() || !p.IsUrgent() {
		t.Fatalf("flag decode mismatch: %+v", p)
	}
}

func TestEspControlCmd(t *testing.T) {
	raw := BuildControl(7, CtrlSessionStart, FlagStart)
	pkt, ok := ParseEsp(raw)
	if !ok {
		t.Fatal("parse failed")
	}
	cmd, ok := pkt.ControlCmd()
	if !ok || cmd != CtrlSessionStart {
		t.Fatalf("control cmd mismatch: cmd=%v ok=%v", cmd, ok)
	}

	audio := EspPacket{PktType: PktAudioUp, Payload: []byte{1}}
	if _, ok := audio.ControlCmd(); ok {
		t.Fatal("expected ControlCmd to fail for non-control packet")
	}
}

func TestBuildHeartbeatMirrorsSeq(t *testing.T) {
	raw := BuildHeartbeat(99)
	pkt, ok := ParseEsp(raw)
	if !ok || pkt.SeqNum != 99 || pkt.PktType != PktHeartbeat {
		t.Fatalf("heartbeat mismatch: %+v ok=%v", pkt, ok)
	}
}
