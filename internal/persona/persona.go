// Package persona holds the process-wide personality tag that
// parameterises the affective engine, plus its additive weight deltas.
package persona

import "fmt"

// Trait is a robot personality tag. Each trait applies an additive delta
// to the base valence/arousal/dominance weight vectors, shaping how the
// affective engine reads the same sensor inputs.
type Trait uint8

const (
	// Obedient is calm and compliant: high dominance sensitivity, low
	// arousal reactivity.
	Obedient Trait = iota
	// Mischievous is playful and chaotic: boosted arousal and valence for
	// fun stimuli, reduced dominance sensitivity.
	Mischievous
	// Cute is affectionate: amplified valence on social channels, softer
	// threat response.
	Cute
	// Stubborn is defiant: boosted dominance, reduced social valence,
	// higher arousal from threats.
	Stubborn
)

// All lists every trait in definition order.
var All = [4]Trait{Obedient, Mischievous, Cute, Stubborn}

// Index returns the trait's numeric tag, matching its wire/JSON index.
func (t Trait) Index() uint8 { return uint8(t) }

// FromIndex constructs a Trait from its numeric tag. The second return
// value is false for any index outside 0..3.
func FromIndex(i uint8) (Trait, bool) {
	if int(i) >= len(All) {
		return Obedient, false
	}
	return Trait(i), true
}

// String renders the trait as lowercase snake_case, matching the JSON
// wire representation used by the control surface.
func (t Trait) String() string {
	switch t {
	case Obedient:
		return "obedient"
	case Mischievous:
		return "mischievous"
	case Cute:
		return "cute"
	case Stubborn:
		return "stubborn"
	default:
		return fmt.Sprintf("trait(%d)", uint8(t))
	}
}

// FromName parses a snake_case persona name. The second return value is
// false for any unrecognized name.
func FromName(name string) (Trait, bool) {
	for _, t := range All {
		if t.String() == name {
			return t, true
		}
	}
	return Obedient, false
}

// WeightDeltas holds the additive per-channel deltas applied to the base
// valence/arousal/dominance weight vectors. Index 10 is the bias term.
type WeightDeltas struct {
	Valence   [11]float32
	Arousal   [11]float32
	Dominance [11]float32
}

// Deltas returns the additive weight deltas for a trait. Values and
// per-trait rationale are reproduced verbatim from the reference
// implementation's persona module: they are part of the system's
// reproducibility surface and must not be tuned independently here.
//
// Channel order: battery_low, people_count, known_face, unknown_face,
// fall_event, lifted, idle_time, sound_energy, voice_rate, motion_energy,
// bias.
func Deltas(t Trait) WeightDeltas {
	switch t {
	case Obedient:
		return WeightDeltas{
			Valence:   [11]float32{0, 0.05, 0.05, 0, 0, 0, 0, 0, 0, 0, 0},
			Arousal:   [11]float32{0, 0, 0, 0, -0.05, 0, 0, -0.08, 0, -0.08, -0.05},
			Dominance: [11]float32{0, 0, 0.1, 0, 0, 0, 0, 0, 0.05, 0, 0.1},
		}
	case Mischievous:
		return WeightDeltas{
			Valence:   [11]float32{0, 0, 0, 0, 0, 0, -0.05, 0.1, 0, 0.08, 0},
			Arousal:   [11]float32{0, 0, 0, 0, 0, 0.1, 0, 0.1, 0, 0.1, 0.08},
			Dominance: [11]float32{0, 0, -0.08, 0, 0, 0, 0, 0, 0, 0, -0.1},
		}
	case Cute:
		return WeightDeltas{
			Valence:   [11]float32{0, 0.1, 0.15, 0.05, 0.05, 0, 0, 0, 0.1, 0, 0.08},
			Arousal:   [11]float32{0, 0.05, 0, 0, -0.05, -0.05, 0, 0, 0.05, 0, 0},
			Dominance: [11]float32{0, 0.05, 0.05, 0, 0, 0, 0, 0, 0, 0, 0.05},
		}
	case Stubborn:
		return WeightDeltas{
			Valence:   [11]float32{0, -0.08, -0.1, 0.08, 0.05, 0, 0, 0, 0, 0, 0},
			Arousal:   [11]float32{0, 0, 0, 0.08, 0.1, 0.08, 0, 0, 0, 0.05, 0},
			Dominance: [11]float32{0, 0, 0.1, 0, 0, 0, 0, 0, 0, 0.08, 0.15},
		}
	default:
		return WeightDeltas{}
	}
}

// ApplyDeltas adds delta to base elementwise, returning a new vector.
func ApplyDeltas(base, delta [11]float32) [11]float32 {
	var out [11]float32
	for i := range out {
		out[i] = base[i] + delta[i]
	}
	return out
}

// IdleAlpha returns the EMA alpha for the idle_time smoother channel,
// given the active persona. Higher alpha ramps idle_time up faster, so
// the robot reads as bored sooner.
func IdleAlpha(t Trait) float32 {
	switch t {
	case Stubborn:
		return 0.03
	case Obedient:
		return 0.05
	case Cute:
		return 0.08
	case Mischievous:
		return 0.15
	default:
		return 0.05
	}
}
