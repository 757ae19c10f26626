// Package session tracks per-device lifecycle state: the device audio
// protocol's session state machine, sequence tracking, the accumulated
// PCM buffer, and the loss counter.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Lifecycle states of a device session, generalized from the teacher's
// sleep/wake runtime FSM (internal/domains/sys_manager/runtime).
const (
	StateIdle       = "idle"
	StateReceiving  = "receiving"
	StateProcessing = "processing"
	StateResponding = "responding"
)

// Lifecycle events driving the state machine.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventCancel       = "cancel"
	EventReset        = "reset"
)

// preallocatedPCMBytes sizes the audio buffer for ~30 s of 16 kHz
// mono 16-bit audio up front, avoiding reallocation mid-session.
const preallocatedPCMBytes = 16000 * 2 * 30

// AudioSender is the handle a Session holds into the upstream bridge's
// inbound audio queue. Installed on SessionStart, cleared on
// SessionEnd/Cancel.
type AudioSender interface {
	SendAudio(pcm []byte) bool
}

// Session is the per-device-address lifecycle record.
type Session struct {
	mu sync.Mutex

	Addr net.Addr
	fsm  *fsm.FSM

	OutSeq       uint16
	LastRecvSeq  uint16
	AudioPackets uint32
	AudioBytes   uint64
	PacketsLost  uint32
	StartedAt    time.Time

	audioBuffer []byte
	upstream    AudioSender
}

// New creates an Idle session for addr, pre-allocating its PCM buffer.
func New(addr net.Addr) *Session {
	s := &Session{
		Addr:        addr,
		audioBuffer: make([]byte, 0, preallocatedPCMBytes),
		StartedAt:   time.Now(),
	}
	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventSessionStart, Src: []string{StateIdle, StateReceiving, StateProcessing, StateResponding}, Dst: StateReceiving},
			{Name: EventSessionEnd, Src: []string{StateIdle, StateReceiving, StateProcessing, StateResponding}, Dst: StateProcessing},
			{Name: EventCancel, Src: []string{StateIdle, StateReceiving, StateProcessing, StateResponding}, Dst: StateIdle},
			{Name: EventReset, Src: []string{StateIdle, StateReceiving, StateProcessing, StateResponding}, Dst: StateIdle},
		},
		fsm.Callbacks{},
	)
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Current()
}

// fire drives the FSM. The events above accept every source state; an
// event whose destination is the current state returns
// fsm.NoTransitionError and leaves the state as it is, so the error is
// ignored.
func (s *Session) fire(event string) {
	_ = s.fsm.Event(context.Background(), event)
}

// Start transitions the session to Receiving, installing the upstream
// audio sender (nil clears it). Idempotent: a SessionStart while already
// Receiving simply resets and restarts the session.
func (s *Session) Start(upstream AudioSender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.fire(EventSessionStart)
	s.upstream = upstream
}

// RecordAudio appends payload to the buffer and updates the loss
// counter. Only valid while the session is Receiving; callers must check
// State() first to honor the "no appends outside Receiving" invariant.
func (s *Session) RecordAudio(seq uint16, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.Current() != StateReceiving {
		return
	}
	if s.AudioPackets > 0 {
		expected := s.LastRecvSeq + 1
		gap := seq - expected // unsigned 16-bit wrapping distance
		s.PacketsLost += uint32(gap)
	}
	s.LastRecvSeq = seq
	s.AudioPackets++
	s.AudioBytes += uint64(len(payload))
	s.audioBuffer = append(s.audioBuffer, payload...)
}

// NextSeq returns the current outbound sequence number and post-
// increments it with wraparound.
func (s *Session) NextSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.OutSeq
	s.OutSeq++
	return seq
}

// UpstreamSender returns the currently installed audio sender, or nil.
func (s *Session) UpstreamSender() AudioSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upstream
}

// ClearUpstream detaches the upstream audio sender without otherwise
// touching session state.
func (s *Session) ClearUpstream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upstream = nil
}

// EndReceiving transitions Receiving → Processing and returns a snapshot
// of the accumulated buffer and counters. No-ops (returns an empty
// snapshot) when the session is not Receiving.
func (s *Session) EndReceiving() (buffer []byte, packets uint32, bytes uint64, lost uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.Current() != StateReceiving {
		return nil, 0, 0, 0, false
	}
	s.fire(EventSessionEnd)
	s.upstream = nil
	buf := make([]byte, len(s.audioBuffer))
	copy(buf, s.audioBuffer)
	return buf, s.AudioPackets, s.AudioBytes, s.PacketsLost, true
}

// Cancel resets the session to Idle and clears the buffer, regardless of
// the current state.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire(EventCancel)
	s.resetLocked()
}

// Reset returns the session to Idle and zeros all counters and the
// buffer, retaining its capacity.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire(EventReset)
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.OutSeq = 0
	s.LastRecvSeq = 0
	s.AudioPackets = 0
	s.AudioBytes = 0
	s.PacketsLost = 0
	s.audioBuffer = s.audioBuffer[:0]
	s.upstream = nil
	s.StartedAt = time.Now()
}

// Elapsed returns the wall-clock duration since the session was last
// started, cancelled or reset.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.StartedAt)
}

// AudioDurationSecs estimates the accumulated audio's duration assuming
// 16 kHz, 16-bit, mono PCM.
func (s *Session) AudioDurationSecs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.AudioBytes) / (16000.0 * 2.0)
}
