package cache

import (
	"errors"
	"testing"

	"github.com/tradarlab/tradar/internal/vector"
)

func TestGetOrCompute_Memoizes(t *testing.T) {
	c := New(4)
	calls := 0
	compute := func() (vector.Vector, error) {
		calls++
		return vector.Vector{1, 2, 3}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", compute)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(v) != 3 {
			t.Fatalf("unexpected vector: %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 compute call, got %d", calls)
	}
}

func TestGetOrCompute_DefensiveCopy(t *testing.T) {
	c := New(4)
	v1, _ := c.GetOrCompute("k", func() (vector.Vector, error) {
		return vector.Vector{1, 2, 3}, nil
	})
	v1[0] = 99

	v2, _ := c.GetOrCompute("k", func() (vector.Vector, error) {
		t.Fatal("compute should not run on hit")
		return nil, nil
	})
	if v2[0] != 1 {
		t.Errorf("cache corrupted by caller mutation: %v", v2)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(4)
	boom := errors.New("encode failed")
	_, err := c.GetOrCompute("k", func() (vector.Vector, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed compute should not be cached, len=%d", c.Len())
	}
}

func TestEviction_LRU(t *testing.T) {
	c := New(2)
	mk := func(x float32) func() (vector.Vector, error) {
		return func() (vector.Vector, error) { return vector.Vector{x}, nil }
	}

	c.GetOrCompute("a", mk(1))
	c.GetOrCompute("b", mk(2))
	// Touch "a" so "b" becomes the eviction candidate.
	c.GetOrCompute("a", mk(1))
	c.GetOrCompute("c", mk(3))

	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
	recomputed := false
	c.GetOrCompute("b", func() (vector.Vector, error) {
		recomputed = true
		return vector.Vector{2}, nil
	})
	if !recomputed {
		t.Error("expected b to have been evicted")
	}
	c.GetOrCompute("a", func() (vector.Vector, error) {
		t.Error("a should still be cached")
		return vector.Vector{1}, nil
	})
}

func TestKeys(t *testing.T) {
	if ImageKey([]byte("x")) == ImageKey([]byte("y")) {
		t.Error("distinct bytes should hash to distinct keys")
	}
	if TextKey("  Nike ") != TextKey("nike") {
		t.Error("text keys should be case-folded and trimmed")
	}
}
