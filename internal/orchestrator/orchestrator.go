// Package orchestrator implements the control-plane logic that drives
// each device's session state machine from incoming audio-protocol
// frames, wires sessions to the upstream cloud bridge, and persists
// closed sessions to WAV. Grounded on the reference implementation's
// esp_audio_protocol handler loop (the device.rs / main.rs control
// dispatch that matches on packet type and control command) and on the
// teacher's RoutesManager for the address-keyed connection-state map
// idiom.
package orchestrator

import (
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xpanvictor/vadbridge/internal/dispatch"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/session"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// DeviceSender writes a raw device audio-protocol frame to dst, shared
// by the audio ingress plane.
type DeviceSender interface {
	WriteTo(b []byte, dst net.Addr) (int, error)
}

// Bridge is the subset of the upstream cloud bridge the orchestrator
// drives. Implemented by *cloudbridge.Bridge; kept as an interface so
// the orchestrator runs (with a nil bridge) when the cloud bridge is
// disabled.
type Bridge interface {
	SetActiveDevice(addr net.Addr)
	ClearActiveDevice()
	ClearInputBuffer()
	CommitInputBuffer()
	SendAudio(pcm []byte) bool
}

// Orchestrator owns the address-keyed session map and the control-plane
// logic for every device audio-protocol datagram.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	device  DeviceSender
	bridge  Bridge
	disp    *dispatch.Dispatcher
	saveDir string
	m       *metrics.Metrics
	log     *Logger.Logger
}

// New constructs an Orchestrator. bridge may be nil when the cloud
// bridge is disabled.
func New(device DeviceSender, bridge Bridge, disp *dispatch.Dispatcher, saveDir string, m *metrics.Metrics, log *Logger.Logger) *Orchestrator {
	return &Orchestrator{
		sessions: make(map[string]*session.Session),
		device:   device,
		bridge:   bridge,
		disp:     disp,
		saveDir:  saveDir,
		m:        m,
		log:      log,
	}
}

// HandleAudioPacket implements ingress.AudioHandler: it is invoked by
// every audio-endpoint receiver goroutine for each parsed frame.
func (o *Orchestrator) HandleAudioPacket(src net.Addr, pkt wire.EspPacket) {
	switch pkt.PktType {
	case wire.PktHeartbeat:
		o.handleHeartbeat(src, pkt)
	case wire.PktControl:
		o.handleControl(src, pkt)
	case wire.PktAudioUp:
		o.handleAudioUp(src, pkt)
	default:
		// AudioDown should never arrive inbound; ParseEsp already rejects
		// anything outside the known packet types.
	}
}

func (o *Orchestrator) handleHeartbeat(src net.Addr, pkt wire.EspPacket) {
	frame := wire.BuildHeartbeat(pkt.SeqNum)
	if _, err := o.device.WriteTo(frame, src); err != nil {
		o.log.Warnw("failed to send heartbeat reply", "addr", src, "err", err)
	}
}

func (o *Orchestrator) handleControl(src net.Addr, pkt wire.EspPacket) {
	cmd, ok := pkt.ControlCmd()
	if !ok {
		return
	}
	switch cmd {
	case wire.CtrlSessionStart:
		o.sessionStart(src, pkt.SeqNum)
	case wire.CtrlSessionEnd:
		o.sessionEnd(src, pkt.SeqNum)
	case wire.CtrlCancel:
		o.cancel(src, pkt.SeqNum)
	default:
		// StreamStart/Ack/ServerReady are server→device only; silently
		// ignore if a device echoes one back.
	}
}

func (o *Orchestrator) sessionStart(src net.Addr, seq uint16) {
	sess := o.getOrCreate(src)

	var upstream session.AudioSender
	if o.bridge != nil {
		o.bridge.SetActiveDevice(src)
		o.bridge.ClearInputBuffer()
		upstream = o.bridge
	}
	sess.Start(upstream)

	reply := wire.BuildControl(seq, wire.CtrlServerReady, 0)
	if _, err := o.device.WriteTo(reply, src); err != nil {
		o.log.Warnw("failed to send ServerReady", "addr", src, "err", err)
	}
}

func (o *Orchestrator) sessionEnd(src net.Addr, seq uint16) {
	o.endReceiving(src)
	reply := wire.BuildControl(seq, wire.CtrlAck, 0)
	if _, err := o.device.WriteTo(reply, src); err != nil {
		o.log.Warnw("failed to send Ack", "addr", src, "err", err)
	}
}

func (o *Orchestrator) cancel(src net.Addr, seq uint16) {
	sess := o.getOrCreate(src)
	sess.Cancel()
	if o.bridge != nil {
		o.bridge.ClearActiveDevice()
		o.bridge.ClearInputBuffer()
	}
	reply := wire.BuildControl(seq, wire.CtrlAck, 0)
	if _, err := o.device.WriteTo(reply, src); err != nil {
		o.log.Warnw("failed to send Ack", "addr", src, "err", err)
	}
}

// endReceiving transitions a Receiving session to Processing, persists
// its buffer to WAV if non-empty, commits the bridge's input buffer,
// and resets the session to Idle. No-op if the session is not
// Receiving.
func (o *Orchestrator) endReceiving(src net.Addr) {
	sess := o.getOrCreate(src)
	buf, _, _, lost, ok := sess.EndReceiving()
	if !ok {
		return
	}

	if o.bridge != nil {
		o.bridge.CommitInputBuffer()
	}

	if len(buf) > 0 {
		if err := o.writeWav(src, buf); err != nil {
			o.log.Warnw("failed to write session wav", "addr", src, "err", err)
		}
	}
	if lost > 0 {
		o.log.Infow("session ended with packet loss", "addr", src, "packets_lost", lost)
	}

	sess.Reset()
}

func (o *Orchestrator) handleAudioUp(src net.Addr, pkt wire.EspPacket) {
	key := src.String()

	o.mu.Lock()
	sess, existed := o.sessions[key]
	if !existed {
		sess = session.New(src)
		sess.Start(nil)
		o.sessions[key] = sess
		o.log.Infow("implicit session auto-started on AudioUp without SessionStart", "addr", src)
	}
	o.mu.Unlock()

	if pkt.IsEnd() {
		o.endReceiving(src)
		return
	}

	if sess.State() != session.StateReceiving {
		return
	}

	sess.RecordAudio(pkt.SeqNum, pkt.Payload)
	upstream := sess.UpstreamSender()

	sensorID := hashAddr(src)
	derived := wire.SensorPacket{
		SensorID: sensorID,
		DataType: wire.DataTypeAudio,
		Seq:      uint64(pkt.SeqNum),
		Payload:  pkt.Payload,
	}
	if !o.disp.Submit(derived) {
		o.log.Debugw("affective dispatcher queue full, dropping derived audio packet", "addr", src)
	}

	if upstream != nil {
		if !upstream.SendAudio(pkt.Payload) {
			o.log.Debugw("bridge audio queue full, dropping chunk", "addr", src)
		}
	}
}

func (o *Orchestrator) getOrCreate(src net.Addr) *session.Session {
	key := src.String()
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[key]
	if !ok {
		sess = session.New(src)
		o.sessions[key] = sess
	}
	return sess
}

func (o *Orchestrator) writeWav(src net.Addr, pcm []byte) error {
	if err := os.MkdirAll(o.saveDir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	name := fmt.Sprintf("esp_%s_%d.wav", sanitizeAddr(src), time.Now().Unix())
	path := filepath.Join(o.saveDir, name)
	return os.WriteFile(path, wire.BuildWav(pcm), 0o644)
}

func sanitizeAddr(addr net.Addr) string {
	s := addr.String()
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// hashAddr derives a stable 32-bit sensor id from a device address, for
// audio packets forked into the affective pipeline without a
// dedicated sensor id of their own.
func hashAddr(addr net.Addr) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(addr.String()))
	return h.Sum32()
}
