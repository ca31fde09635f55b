package vector

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNormalize_UnitLength(t *testing.T) {
	v := Normalize(Vector{3, 4})
	if !almostEqual(float64(v[0]), 0.6) || !almostEqual(float64(v[1]), 0.8) {
		t.Errorf("expected [0.6 0.8], got %v", v)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := Vector{1, 2, 3, 4}
	once := Normalize(v)
	twice := Normalize(once)
	for i := range once {
		if !almostEqual(float64(once[i]), float64(twice[i])) {
			t.Errorf("component %d: normalize(normalize(v))=%v, normalize(v)=%v", i, twice[i], once[i])
		}
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize(Vector{0, 0, 0})
	for i, x := range v {
		if x != 0 {
			t.Errorf("component %d: expected 0, got %v", i, x)
		}
	}
}

func TestCosine_Identical(t *testing.T) {
	sim, err := Cosine(Vector{1, 2, 3}, Vector{1, 2, 3})
	if err != nil {
		t.Fatalf("cosine failed: %v", err)
	}
	if !almostEqual(sim, 1.0) {
		t.Errorf("expected 1.0, got %v", sim)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	sim, err := Cosine(Vector{1, 0}, Vector{0, 1})
	if err != nil {
		t.Fatalf("cosine failed: %v", err)
	}
	if !almostEqual(sim, 0) {
		t.Errorf("expected 0, got %v", sim)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	a := make(Vector, 16)
	b := make(Vector, 32)
	_, err := Cosine(a, b)
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dimErr.Want != 16 || dimErr.Got != 32 {
		t.Errorf("expected want=16 got=32, have %+v", dimErr)
	}
}

func TestAccumulator_WeightedSum(t *testing.T) {
	var acc Accumulator
	if err := acc.Add(Vector{1, 0}, 1.0); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := acc.Add(Vector{0, 1}, 0.8); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	v := acc.Normalized()
	norm := math.Sqrt(1.0 + 0.64)
	if !almostEqual(float64(v[0]), 1.0/norm) || !almostEqual(float64(v[1]), 0.8/norm) {
		t.Errorf("unexpected weighted sum: %v", v)
	}
}

func TestAccumulator_DimensionMismatch(t *testing.T) {
	var acc Accumulator
	if err := acc.Add(make(Vector, 16), 1.0); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	err := acc.Add(make(Vector, 32), 0.8)
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
}

func TestQuery_AbsentPresent(t *testing.T) {
	if Absent().IsPresent() {
		t.Error("Absent should not be present")
	}
	q := Present(Vector{1})
	if !q.IsPresent() {
		t.Error("Present should be present")
	}
	v, ok := q.Vector()
	if !ok || len(v) != 1 {
		t.Errorf("unexpected vector: %v %v", v, ok)
	}
}

func TestResolveBlendWeight_Presets(t *testing.T) {
	cases := map[string]float64{
		"primary_strong": 0.9,
		"primary_focus":  0.7,
		"image_focus":    0.7,
		"balanced":       0.5,
		"prompt_focus":   0.3,
		"prompt_strong":  0.1,
	}
	for mode, want := range cases {
		got := ResolveBlendWeight(mode)
		if !almostEqual(got, want) {
			t.Errorf("mode %q: expected %v, got %v", mode, want, got)
		}
		if got < 0 || got > 1 {
			t.Errorf("mode %q: weight %v out of [0,1]", mode, got)
		}
	}
}

func TestResolveBlendWeight_UnknownFallsBack(t *testing.T) {
	for _, mode := range []string{"", "bogus", "PRIMARY", "semi_balanced"} {
		if got := ResolveBlendWeight(mode); !almostEqual(got, 0.5) {
			t.Errorf("mode %q: expected balanced 0.5, got %v", mode, got)
		}
	}
}

func TestBlend_EqualWeights(t *testing.T) {
	out, err := Blend(Vector{1, 0}, Vector{0, 1}, 0.5)
	if err != nil {
		t.Fatalf("blend failed: %v", err)
	}
	if !almostEqual(float64(out[0]), float64(out[1])) {
		t.Errorf("expected symmetric blend, got %v", out)
	}
	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if !almostEqual(norm, 1.0) {
		t.Errorf("blend output not unit length: %v", math.Sqrt(norm))
	}
}

func TestBlend_DimensionMismatch(t *testing.T) {
	_, err := Blend(make(Vector, 16), make(Vector, 32), 0.5)
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
}
