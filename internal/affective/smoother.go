package affective

import (
	"sync"

	"github.com/xpanvictor/vadbridge/internal/persona"
	"github.com/xpanvictor/vadbridge/internal/wire"
)

// Smoother applies an exponential moving average to the idle_time
// channel, keyed per sensor id so each physical device ramps
// independently. A raw idle_time reading of 0 → 0.9 in a single packet
// would otherwise make the robot instantly read as bored; real boredom
// should ramp in.
type Smoother struct {
	mu    sync.Mutex
	state map[uint32]float32
}

// NewSmoother constructs an empty Smoother.
func NewSmoother() *Smoother {
	return &Smoother{state: make(map[uint32]float32)}
}

// Smooth applies `s ← α·x + (1−α)·s` to channels[wire.ChanIdleTime] in
// place; every other channel passes through unchanged. alpha is
// persona-dependent (see persona.IdleAlpha).
func (s *Smoother) Smooth(sensorID uint32, channels *[wire.SensorVectorChannels]float32, p persona.Trait) {
	alpha := persona.IdleAlpha(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state[sensorID]
	raw := channels[wire.ChanIdleTime]
	smoothed := alpha*raw + (1-alpha)*prev
	s.state[sensorID] = smoothed
	channels[wire.ChanIdleTime] = smoothed
}

// Reset clears smoothing state for a single sensor id.
func (s *Smoother) Reset(sensorID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, sensorID)
}

// ResetAll clears all smoothing state.
func (s *Smoother) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[uint32]float32)
}
