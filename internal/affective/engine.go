// Package affective implements the voice-activity and emotional VAD
// engine: RMS energy detection for raw audio, and the weighted-sum
// Valence-Arousal-Dominance map over a 10-channel sensor vector,
// modulated by the active persona and a per-sensor EMA smoother.
package affective

import (
	"encoding/binary"
	"math"

	"github.com/xpanvictor/vadbridge/internal/persona"
	"github.com/xpanvictor/vadbridge/internal/wire"
)

// audioEnergyThreshold is the RMS threshold above which audio is
// considered active.
const audioEnergyThreshold = 30.0

// emotionalActiveThreshold is the arousal threshold above which an
// emotional result is considered active.
const emotionalActiveThreshold = 0.35

// Base weight vectors (channels 0..9, bias at index 10). Reproduced
// verbatim from the reference implementation's VAD module; part of the
// system's reproducibility surface.
var (
	valenceWeights   = [11]float32{-0.05, 0.15, 0.30, -0.20, -0.20, -0.15, -0.10, 0.05, 0.15, 0.00, 0.30}
	arousalWeights   = [11]float32{0.00, 0.10, 0.00, 0.10, 0.20, 0.15, -0.25, 0.25, 0.10, 0.25, 0.10}
	dominanceWeights = [11]float32{-0.15, 0.10, 0.25, -0.20, -0.15, -0.15, -0.05, 0.05, 0.15, 0.05, 0.35}
)

// Result is the unified output of the affective engine, able to
// originate from either the audio or the emotional pipeline.
type Result struct {
	SensorID  uint32
	Seq       uint64
	Kind      uint8 // wire.VadKindAudio or wire.VadKindEmotional
	Active    bool
	Energy    float64
	Threshold float64
	Valence   float32
	Arousal   float32
	Dominance float32
}

// Engine dispatches sensor packets to the audio or emotional VAD
// pipeline and owns the per-sensor smoother state.
type Engine struct {
	persona  *persona.State
	smoother *Smoother
}

// NewEngine constructs an Engine sharing the given persona state.
func NewEngine(p *persona.State) *Engine {
	return &Engine{persona: p, smoother: NewSmoother()}
}

// Process routes a parsed sensor packet through the audio or emotional
// pipeline based on its data type. Anything other than
// wire.DataTypeSensorVector is treated as audio.
func (e *Engine) Process(pkt wire.SensorPacket) Result {
	if pkt.DataType == wire.DataTypeSensorVector {
		return e.computeEmotional(pkt)
	}
	return computeAudio(pkt)
}

func computeAudio(pkt wire.SensorPacket) Result {
	energy := rmsEnergy(pkt.Payload)
	return Result{
		SensorID:  pkt.SensorID,
		Seq:       pkt.Seq,
		Kind:      wire.VadKindAudio,
		Active:    energy > audioEnergyThreshold,
		Energy:    energy,
		Threshold: audioEnergyThreshold,
	}
}

// rmsEnergy treats data as signed 16-bit little-endian PCM samples and
// returns their RMS. Returns 0 for fewer than 2 bytes.
func rmsEnergy(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	n := len(data) / 2
	var sumSq float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2])))
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(n))
}

func (e *Engine) computeEmotional(pkt wire.SensorPacket) Result {
	channels, ok := wire.SensorVector(pkt.Payload)
	if !ok {
		return Result{SensorID: pkt.SensorID, Seq: pkt.Seq, Kind: wire.VadKindEmotional}
	}

	p := e.persona.GetBlocking()
	e.smoother.Smooth(pkt.SensorID, &channels, p)

	deltas := persona.Deltas(p)
	valence := weightedSum(channels, persona.ApplyDeltas(valenceWeights, deltas.Valence))
	arousal := weightedSum(channels, persona.ApplyDeltas(arousalWeights, deltas.Arousal))
	dominance := weightedSum(channels, persona.ApplyDeltas(dominanceWeights, deltas.Dominance))

	return Result{
		SensorID:  pkt.SensorID,
		Seq:       pkt.Seq,
		Kind:      wire.VadKindEmotional,
		Active:    arousal > emotionalActiveThreshold,
		Valence:   valence,
		Arousal:   arousal,
		Dominance: dominance,
	}
}

// weightedSum computes bias + Σ wᵢ·xᵢ, clamped to [0,1].
func weightedSum(channels [wire.SensorVectorChannels]float32, weights [11]float32) float32 {
	sum := weights[10]
	for i, x := range channels {
		sum += x * weights[i]
	}
	if sum < 0 {
		return 0
	}
	if sum > 1 {
		return 1
	}
	return sum
}
