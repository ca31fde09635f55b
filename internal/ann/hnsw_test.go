package ann

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

func randVec(dims int, rng *rand.Rand) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func testID(i int) string {
	return fmt.Sprintf("40-%07d", i)
}

// exactNN is the brute-force reference ranking.
func exactNN(query []float32, vectors [][]float32, ids []string, k int) []Result {
	ranked := make([]scored, len(vectors))
	for i, v := range vectors {
		ranked[i] = scored{pos: i, dist: cosineDistance(query, v)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Result, len(ranked))
	for i, s := range ranked {
		out[i] = Result{ID: ids[s.pos], Score: 1.0 - float64(s.dist)}
	}
	return out
}

func recall(got, want []Result) float64 {
	if len(want) == 0 {
		return 1.0
	}
	wanted := make(map[string]bool, len(want))
	for _, r := range want {
		wanted[r.ID] = true
	}
	hits := 0
	for _, r := range got {
		if wanted[r.ID] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

func fillIndex(idx *Index, n, dims int, rng *rand.Rand) ([][]float32, []string) {
	vectors := make([][]float32, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		vectors[i] = randVec(dims, rng)
		ids[i] = testID(i + 1)
		idx.Insert(ids[i], vectors[i])
	}
	return vectors, ids
}

func TestNew(t *testing.T) {
	idx := New(768)
	if idx.dims != 768 {
		t.Errorf("dims = %d, want 768", idx.dims)
	}
	if idx.M != DefaultM {
		t.Errorf("M = %d, want %d", idx.M, DefaultM)
	}
	if idx.Len() != 0 {
		t.Errorf("Len = %d, want 0", idx.Len())
	}
}

func TestSearchRecallSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	idx := New(32)
	vectors, ids := fillIndex(idx, 100, 32, rng)

	if idx.Len() != 100 {
		t.Fatalf("Len = %d, want 100", idx.Len())
	}

	query := randVec(32, rng)
	got := idx.Search(query, 5)
	if len(got) != 5 {
		t.Fatalf("got %d results, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted best first at %d: %f > %f", i, got[i].Score, got[i-1].Score)
		}
	}

	if r := recall(got, exactNN(query, vectors, ids, 5)); r < 0.6 {
		t.Errorf("recall = %.2f, want >= 0.6", r)
	}
}

func TestSearchRecallMedium(t *testing.T) {
	const (
		dims    = 128
		n       = 1000
		queries = 10
		k       = 10
	)
	rng := rand.New(rand.NewSource(123))
	idx := New(dims)
	vectors, ids := fillIndex(idx, n, dims, rng)

	total := 0.0
	for q := 0; q < queries; q++ {
		query := randVec(dims, rng)
		total += recall(idx.Search(query, k), exactNN(query, vectors, ids, k))
	}
	avg := total / queries
	if avg < 0.7 {
		t.Errorf("avg recall = %.2f, want >= 0.7", avg)
	}
	t.Logf("recall@%d over %d queries on %d vectors: %.2f", k, queries, n, avg)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(32)
	if got := idx.Search(randVec(32, rand.New(rand.NewSource(1))), 5); len(got) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(got))
	}
}

func TestSearchSingleEntry(t *testing.T) {
	idx := New(4)
	idx.Insert("40-0000042", []float32{1, 0, 0, 0})

	got := idx.Search([]float32{1, 0, 0, 0}, 5)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].ID != "40-0000042" {
		t.Errorf("ID = %s, want 40-0000042", got[0].ID)
	}
	if got[0].Score < 0.999 {
		t.Errorf("score = %f, want ~1 for identical vector", got[0].Score)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	idx := New(4)
	idx.Insert("40-0000001", []float32{1, 0, 0, 0})
	idx.Insert("40-0000001", []float32{0, 1, 0, 0})
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1 after duplicate insert", idx.Len())
	}
}

func TestHas(t *testing.T) {
	idx := New(4)
	idx.Insert("40-0000099", []float32{1, 0, 0, 0})
	if !idx.Has("40-0000099") {
		t.Error("Has(40-0000099) = false, want true")
	}
	if idx.Has("40-0000100") {
		t.Error("Has(40-0000100) = true, want false")
	}
}

func TestSearchEfWiderBeam(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	idx := New(64)
	vectors, ids := fillIndex(idx, 500, 64, rng)

	query := randVec(64, rng)
	want := exactNN(query, vectors, ids, 10)

	narrow := recall(idx.SearchEf(query, 10, 20), want)
	wide := recall(idx.SearchEf(query, 10, 200), want)
	t.Logf("recall@10: ef=20 %.2f, ef=200 %.2f", narrow, wide)

	if wide < narrow {
		t.Errorf("wider beam should not lose recall: ef=20 %.2f, ef=200 %.2f", narrow, wide)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float32
	}{
		{[]float32{1, 0}, []float32{1, 0}, 0},
		{[]float32{1, 0}, []float32{0, 1}, 1},
		{[]float32{1, 0}, []float32{-1, 0}, 2},
		{[]float32{}, []float32{}, 2},
		{[]float32{0, 0}, []float32{1, 0}, 2}, // zero norm is max distance
	}
	for _, tt := range tests {
		got := cosineDistance(tt.a, tt.b)
		if d := got - tt.want; d > 0.001 || d < -0.001 {
			t.Errorf("cosineDistance(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}
