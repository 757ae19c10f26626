package persona

import "testing"

func TestIndexRoundTrip(t *testing.T) {
	for _, p := range All {
		got, ok := FromIndex(p.Index())
		if !ok || got != p {
			t.Fatalf("round-trip failed for %v: got %v ok=%v", p, got, ok)
		}
	}
	if _, ok := FromIndex(99); ok {
		t.Fatal("expected FromIndex(99) to fail")
	}
}

func TestNameRoundTrip(t *testing.T) {
	for _, p := range All {
		got, ok := FromName(p.String())
		if !ok || got != p {
			t.Fatalf("name round-trip failed for %v", p)
		}
	}
	if _, ok := FromName("grumpy"); ok {
		t.Fatal("expected FromName to fail for unknown name")
	}
}

func TestDeltasHaveElevenElements(t *testing.T) {
	for _, p := range All {
		d := Deltas(p)
		if len(d.Valence) != 11 || len(d.Arousal) != 11 || len(d.Dominance) != 11 {
			t.Fatalf("%v: unexpected delta length", p)
		}
	}
}

func TestApplyDeltasAdds(t *testing.T) {
	base := [11]float32{}
	delta := [11]float32{}
	for i := range base {
		base[i] = 1.0
		delta[i] = 0.1
	}
	out := ApplyDeltas(base, delta)
	for _, v := range out {
		if diff := v - 1.1; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("expected 1.1, got %v", v)
		}
	}
}

func TestStateGetSet(t *testing.T) {
	s := NewState(Obedient)
	if s.Get() != Obedient {
		t.Fatal("expected initial Obedient")
	}
	s.Set(Stubborn)
	if s.Get() != Stubborn {
		t.Fatal("expected Stubborn after Set")
	}
	if s.GetBlocking() != Stubborn {
		t.Fatal("expected GetBlocking to reflect committed value")
	}
}
