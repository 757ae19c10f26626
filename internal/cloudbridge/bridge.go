// Package cloudbridge maintains the single persistent WebSocket to the
// cloud speech service: an outbound writer multiplexing audio and
// control events with bias toward control, and an inbound reader that
// decodes response audio, resamples it, and frames it back to the
// currently active device. Grounded on the reference implementation's
// transport_openai module, translated from a tokio::select!{biased}
// writer loop to a Go select-with-priority loop, and on the teacher's
// gorilla/websocket device endpoint for connection idioms.
package cloudbridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xpanvictor/vadbridge/internal/config"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

const (
	audioQueueCapacity   = 512
	controlQueueCapacity = 64
	reconnectBackoff     = time.Second
)

// DeviceSender writes a raw device audio-protocol frame to dst.
type DeviceSender interface {
	WriteTo(b []byte, dst net.Addr) (int, error)
}

// Bridge owns the single upstream WebSocket connection and its
// multiplexed audio/control outbound queues. At most one device address
// is active at a time; audio delivered by the upstream in that interval
// is routed to that address.
type Bridge struct {
	cfg    config.OpenAIConfig
	device DeviceSender
	m      *metrics.Metrics
	log    *Logger.Logger

	audioCh   chan []byte
	controlCh chan []byte

	activeMu sync.RWMutex
	active   net.Addr

	outSeq atomic.Uint32 // low 16 bits used, wraps
}

// New constructs a Bridge. Run must be called to open the upstream
// connection before audio/control events are drained.
func New(cfg config.OpenAIConfig, device DeviceSender, m *metrics.Metrics, log *Logger.Logger) *Bridge {
	return &Bridge{
		cfg:       cfg,
		device:    device,
		m:         m,
		log:       log,
		audioCh:   make(chan []byte, audioQueueCapacity),
		controlCh: make(chan []byte, controlQueueCapacity),
	}
}

// SetActiveDevice sets the device address that receives routed audio.
func (b *Bridge) SetActiveDevice(addr net.Addr) {
	b.activeMu.Lock()
	b.active = addr
	b.activeMu.Unlock()
}

// ClearActiveDevice drops the active device; routed audio is dropped
// until a new device is set.
func (b *Bridge) ClearActiveDevice() {
	b.activeMu.Lock()
	b.active = nil
	b.activeMu.Unlock()
}

func (b *Bridge) activeDevice() net.Addr {
	b.activeMu.RLock()
	defer b.activeMu.RUnlock()
	return b.active
}

// SendAudio implements session.AudioSender: pushes a raw 16 kHz PCM
// chunk into the outbound audio queue with a non-blocking send.
func (b *Bridge) SendAudio(pcm []byte) bool {
	select {
	case b.audioCh <- pcm:
		return true
	default:
		b.m.RecordChannelDrop()
		return false
	}
}

// ClearInputBuffer issues input_audio_buffer.clear.
func (b *Bridge) ClearInputBuffer() { b.sendControlEvent(map[string]any{"type": "input_audio_buffer.clear"}) }

// CommitInputBuffer issues input_audio_buffer.commit.
func (b *Bridge) CommitInputBuffer() {
	b.sendControlEvent(map[string]any{"type": "input_audio_buffer.commit"})
}

// RequestResponse issues response.create.
func (b *Bridge) RequestResponse() { b.sendControlEvent(map[string]any{"type": "response.create"}) }

// UpdateInstructions issues session.update carrying new instructions.
func (b *Bridge) UpdateInstructions(instructions string) {
	b.sendControlEvent(map[string]any{
		"type":    "session.update",
		"session": map[string]any{"instructions": instructions},
	})
}

func (b *Bridge) sendControlEvent(event map[string]any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Warnw("failed to marshal control event", "err", err)
		return
	}
	select {
	case b.controlCh <- payload:
	default:
		// Internal bug per the ambient contract: the control queue should
		// never fill in steady state.
		b.log.Errorw("control event queue full, dropping event", "event", event["type"])
	}
}

// Run dials the upstream, runs reader/writer until the connection drops
// or fails, and reconnects with backoff until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := b.dial(ctx)
		if err != nil {
			b.log.Warnw("cloud bridge dial failed, retrying", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
				continue
			}
		}

		sessionCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer cancel()
			b.writerLoop(sessionCtx, conn)
		}()
		go func() {
			defer wg.Done()
			defer cancel()
			b.readerLoop(sessionCtx, conn)
		}()
		wg.Wait()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		b.log.Warnw("cloud bridge session ended, reconnecting", "backoff", reconnectBackoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("wss://api.openai.com/v1/realtime?model=%s", b.cfg.Model)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	sessionUpdate := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions":        b.cfg.Instructions,
			"modalities":          []string{"audio", "text"},
			"voice":               b.cfg.Voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
	payload, err := json.Marshal(sessionUpdate)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, err
	}

	b.log.Infow("cloud bridge connected", "model", b.cfg.Model, "voice", b.cfg.Voice)
	return conn, nil
}

// writerLoop drains the control and audio queues into the WebSocket,
// biased toward control so control events are never delayed behind
// queued audio.
func (b *Bridge) writerLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		// Priority pass: drain a pending control event before considering
		// audio, so control is never delayed behind a queued chunk.
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-b.controlCh:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.log.Warnw("cloud bridge control write failed", "err", err)
				return
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case payload, ok := <-b.controlCh:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.log.Warnw("cloud bridge control write failed", "err", err)
				return
			}
		case pcm16, ok := <-b.audioCh:
			if !ok {
				return
			}
			pcm24 := Resample16to24(pcm16)
			event := map[string]any{
				"type":  "input_audio_buffer.append",
				"audio": base64.StdEncoding.EncodeToString(pcm24),
			}
			payload, err := json.Marshal(event)
			if err != nil {
				b.log.Warnw("failed to marshal audio append event", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.log.Warnw("cloud bridge audio write failed", "err", err)
				return
			}
		}
	}
}

// readerLoop consumes framed events from the upstream socket until it
// closes or errors.
func (b *Bridge) readerLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			b.log.Warnw("cloud bridge read error", "err", err)
			return
		}

		switch msgType {
		case websocket.PingMessage:
			_ = conn.WriteMessage(websocket.PongMessage, data)
			continue
		case websocket.CloseMessage:
			b.log.Infow("cloud bridge closed by server")
			return
		case websocket.BinaryMessage:
			continue
		}

		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			b.log.Warnw("failed to parse cloud bridge event", "err", err)
			continue
		}

		eventType, _ := event["type"].(string)
		b.handleEvent(eventType, event)
	}
}

func (b *Bridge) handleEvent(eventType string, event map[string]any) {
	switch eventType {
	case "response.audio.delta":
		b64, _ := event["delta"].(string)
		if b64 == "" {
			return
		}
		pcm24, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			b.log.Warnw("base64 decode failed for audio delta", "err", err)
			return
		}
		b.deliverAudioDown(pcm24)

	case "response.audio.done":
		dst := b.activeDevice()
		if dst == nil {
			return
		}
		seq := b.nextSeq()
		frame := wire.BuildControl(seq, wire.CtrlStreamEnd, 0)
		if _, err := b.device.WriteTo(frame, dst); err != nil {
			b.log.Warnw("failed to send stream-end to device", "err", err)
		}

	case "error":
		b.log.Warnw("cloud bridge error event", "event", event["error"])

	case "session.created", "session.updated",
		"input_audio_buffer.speech_started", "input_audio_buffer.speech_stopped",
		"input_audio_buffer.committed", "response.done",
		"response.audio_transcript.delta", "response.audio_transcript.done",
		"conversation.item.input_audio_transcription.completed":
		// Observed only; no action required downstream.

	default:
		b.log.Debugw("unhandled cloud bridge event", "type", eventType)
	}
}

func (b *Bridge) deliverAudioDown(pcm24 []byte) {
	dst := b.activeDevice()
	if dst == nil {
		b.m.RecordChannelDrop()
		b.log.Warnw("no active device, dropping audio response")
		return
	}

	pcm16 := Resample24to16(pcm24)
	for off := 0; off < len(pcm16); off += wire.EspMaxPayload {
		end := off + wire.EspMaxPayload
		if end > len(pcm16) {
			end = len(pcm16)
		}
		seq := b.nextSeq()
		frame := wire.BuildAudioDown(seq, 0, pcm16[off:end])
		if _, err := b.device.WriteTo(frame, dst); err != nil {
			b.log.Warnw("failed to send audio-down frame", "err", err)
		}
	}
}

func (b *Bridge) nextSeq() uint16 {
	return uint16(b.outSeq.Add(1) - 1)
}
