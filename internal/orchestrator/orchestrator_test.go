package orchestrator

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/xpanvictor/vadbridge/internal/affective"
	"github.com/xpanvictor/vadbridge/internal/dispatch"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/persona"
	"github.com/xpanvictor/vadbridge/internal/session"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

type fakeSender struct {
	sent [][]byte
	dst  []net.Addr
}

func (f *fakeSender) WriteTo(b []byte, dst net.Addr) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	f.dst = append(f.dst, dst)
	return len(b), nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	m := metrics.New()
	log := Logger.New(false)
	engine := affective.NewEngine(persona.NewState(persona.Obedient))
	disp := dispatch.New(engine, 16, m, log)
	o := New(sender, nil, disp, t.TempDir(), m, log)
	return o, sender
}

func TestHeartbeatEcho(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5000}

	pkt, ok := wire.ParseEsp([]byte{0x00, 0x00, 0x04, 0x00})
	if !ok {
		t.Fatal("failed to parse heartbeat frame")
	}
	o.HandleAudioPacket(addr, pkt)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sender.sent))
	}
	want := []byte{0x00, 0x00, 0x04, 0x00}
	if string(sender.sent[0]) != string(want) {
		t.Fatalf("reply mismatch: got %v want %v", sender.sent[0], want)
	}
}

func TestSessionStartReplyAndState(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.2"), Port: 6001}

	pkt, ok := wire.ParseEsp([]byte{0x01, 0x00, 0x03, 0x00, 0x01})
	if !ok {
		t.Fatal("failed to parse session-start frame")
	}
	o.HandleAudioPacket(addr, pkt)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sender.sent))
	}
	want := []byte{0x01, 0x00, 0x03, 0x00, 0x07}
	if string(sender.sent[0]) != string(want) {
		t.Fatalf("reply mismatch: got %v want %v", sender.sent[0], want)
	}

	sess := o.getOrCreate(addr)
	if sess.State() != "receiving" {
		t.Fatalf("expected session state receiving, got %s", sess.State())
	}
}

func TestFullTurnLossAndWav(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.3"), Port: 6002}

	start, _ := wire.ParseEsp(wire.BuildControl(1, wire.CtrlSessionStart, wire.FlagStart))
	o.HandleAudioPacket(addr, start)

	payload := make([]byte, 700)
	for _, seq := range []uint16{10, 11, 13} {
		up, _ := wire.ParseEsp(wire.BuildEsp(seq, wire.PktAudioUp, 0, payload))
		o.HandleAudioPacket(addr, up)
	}

	// SessionEnd resets the session's counters, so the loss is read before it.
	if lost := o.getOrCreate(addr).PacketsLost; lost != 1 {
		t.Fatalf("expected 1 lost packet (seq gap 11->13), got %d", lost)
	}

	end, _ := wire.ParseEsp(wire.BuildControl(14, wire.CtrlSessionEnd, wire.FlagEnd))
	o.HandleAudioPacket(addr, end)

	// ServerReady + Ack expected, in order.
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 replies (ServerReady, Ack), got %d", len(sender.sent))
	}
	if sender.sent[1][4] != wire.CtrlAck {
		t.Fatalf("expected second reply to be Ack, got cmd %d", sender.sent[1][4])
	}

	sess := o.getOrCreate(addr)
	if sess.State() != "idle" {
		t.Fatalf("expected session reset to idle, got %s", sess.State())
	}

	entries, err := os.ReadDir(o.saveDir)
	if err != nil {
		t.Fatalf("reading save dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 wav file written, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(o.saveDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("reading wav file: %v", err)
	}
	const wantPCMBytes = 3 * 700
	if len(data) != 44+wantPCMBytes {
		t.Fatalf("expected %d-byte wav (44-byte header + %d PCM bytes), got %d", 44+wantPCMBytes, wantPCMBytes, len(data))
	}
}

func TestCancelFromIdle(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.4"), Port: 6003}

	cancel, _ := wire.ParseEsp(wire.BuildControl(1, wire.CtrlCancel, 0))
	o.HandleAudioPacket(addr, cancel)

	if len(sender.sent) != 1 || sender.sent[0][4] != wire.CtrlAck {
		t.Fatalf("expected an Ack reply on cancel from idle")
	}
	sess := o.getOrCreate(addr)
	if sess.State() != "idle" {
		t.Fatalf("expected idle after cancel, got %s", sess.State())
	}
}

func TestImplicitSessionAutoStart(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.5"), Port: 6004}

	payload := []byte{1, 2, 3}
	up, _ := wire.ParseEsp(wire.BuildEsp(1, wire.PktAudioUp, 0, payload))
	o.HandleAudioPacket(addr, up)

	o.mu.Lock()
	sess, exists := o.sessions[addr.String()]
	o.mu.Unlock()
	if !exists {
		t.Fatal("expected an implicit session to be created")
	}
	if sess.State() != session.StateReceiving {
		t.Fatalf("expected auto-started session to be Receiving, got %s", sess.State())
	}
	if sess.AudioPackets != 1 || sess.AudioBytes != uint64(len(payload)) {
		t.Fatalf("expected the triggering AudioUp to be recorded, got packets=%d bytes=%d", sess.AudioPackets, sess.AudioBytes)
	}
}
