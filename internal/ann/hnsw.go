// Package ann provides approximate nearest neighbor search using HNSW
// (Hierarchical Navigable Small World graphs).
//
// Pure Go, zero CGO, following Malkov & Yashunin (2018):
// "Efficient and robust approximate nearest neighbor using Hierarchical
// Navigable Small World graphs" — https://arxiv.org/abs/1603.09320
//
// tradar keeps one index per embedding space (dino, metaclip, text),
// keyed by trademark application number. Catalogs in the tens of
// thousands make brute-force marginal; HNSW keeps retrieval O(log N).
package ann

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// DefaultM is the default max connections per layer.
const DefaultM = 16

// DefaultEfConstruction is the default build-time beam width.
const DefaultEfConstruction = 200

// DefaultEfSearch is the default search-time beam width.
const DefaultEfSearch = 50

// Index is an in-memory HNSW index for one embedding space.
type Index struct {
	mu       sync.RWMutex
	graph    []graphNode
	byID     map[string]int // application number → graph position
	entry    int            // entry node position, -1 while empty
	topLevel int
	dims     int

	// Tuning parameters
	M              int     // max connections per layer
	Mmax0          int     // max connections for layer 0 (2*M)
	EfConstruction int     // build-time beam width
	EfSearch       int     // search-time beam width
	LevelMult      float64 // level generation multiplier: 1/ln(M)

	rng *rand.Rand
}

type graphNode struct {
	id     string // application number
	vector []float32
	links  [][]int // links[layer] holds neighbor positions
	level  int
}

// Result is a search hit. Score is cosine similarity (higher = more similar).
type Result struct {
	ID    string
	Score float64
}

// New creates an HNSW index for vectors of the given dimensionality.
func New(dims int) *Index {
	return NewWithParams(dims, DefaultM, DefaultEfConstruction, DefaultEfSearch)
}

// NewWithParams creates an HNSW index with custom parameters.
func NewWithParams(dims, m, efConstruction, efSearch int) *Index {
	if m < 2 {
		m = 2
	}
	return &Index{
		byID:           make(map[string]int),
		entry:          -1,
		topLevel:       -1,
		dims:           dims,
		M:              m,
		Mmax0:          2 * m,
		EfConstruction: efConstruction,
		EfSearch:       efSearch,
		LevelMult:      1.0 / math.Log(float64(m)),
		rng:            rand.New(rand.NewSource(42)),
	}
}

// Len returns the number of vectors in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.graph)
}

// Has reports whether the application number is indexed.
func (idx *Index) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byID[id]
	return ok
}

// Insert adds a vector under the given application number.
// Inserting an existing ID is a no-op.
func (idx *Index) Insert(id string, vector []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byID[id]; ok {
		return
	}

	pos := len(idx.graph)
	level := idx.sampleLevel()
	idx.graph = append(idx.graph, graphNode{
		id:     id,
		vector: vector,
		links:  make([][]int, level+1),
		level:  level,
	})
	idx.byID[id] = pos

	if idx.entry == -1 {
		idx.entry = pos
		idx.topLevel = level
		return
	}

	// Descend greedily through layers above the new node's level.
	ep := idx.entry
	for l := idx.topLevel; l > level; l-- {
		ep = idx.descend(vector, ep, l)
	}

	start := min(level, idx.topLevel)
	for l := start; l >= 0; l-- {
		found := idx.beamSearch(vector, ep, idx.EfConstruction, l)

		limit := idx.M
		if l == 0 {
			limit = idx.Mmax0
		}
		keep := len(found)
		if keep > limit {
			keep = limit
		}
		links := make([]int, keep)
		for i := range links {
			links[i] = found[i].pos
		}
		idx.graph[pos].links[l] = links

		// Link back, pruning any neighbor that goes over its cap.
		for _, other := range links {
			idx.graph[other].links[l] = append(idx.graph[other].links[l], pos)
			if len(idx.graph[other].links[l]) > limit {
				idx.graph[other].links[l] = idx.pruneLinks(other, idx.graph[other].links[l], limit)
			}
		}

		if len(found) > 0 {
			ep = found[0].pos
		}
	}

	if level > idx.topLevel {
		idx.entry = pos
		idx.topLevel = level
	}
}

// Search finds the K nearest neighbors to the query vector, best first.
func (idx *Index) Search(query []float32, k int) []Result {
	return idx.SearchEf(query, k, idx.EfSearch)
}

// SearchEf finds the K nearest neighbors with a custom beam width.
// Higher ef = better recall but slower; ef is raised to k if smaller.
func (idx *Index) SearchEf(query []float32, k, ef int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entry == -1 {
		return nil
	}
	if ef < k {
		ef = k
	}

	ep := idx.entry
	for l := idx.topLevel; l > 0; l-- {
		ep = idx.descend(query, ep, l)
	}

	found := idx.beamSearch(query, ep, ef, 0)
	if len(found) > k {
		found = found[:k]
	}
	out := make([]Result, len(found))
	for i, s := range found {
		out[i] = Result{ID: idx.graph[s.pos].id, Score: 1.0 - float64(s.dist)}
	}
	return out
}

// sampleLevel draws a node level from the geometric distribution.
func (idx *Index) sampleLevel() int {
	u := idx.rng.Float64()
	if u == 0 {
		u = 1e-10 // avoid log(0)
	}
	return int(math.Floor(-math.Log(u) * idx.LevelMult))
}

// descend walks one layer greedily, hopping to any closer neighbor
// until no link improves on the current position.
func (idx *Index) descend(query []float32, ep, layer int) int {
	best := cosineDistance(query, idx.graph[ep].vector)
	for moved := true; moved; {
		moved = false
		if layer >= len(idx.graph[ep].links) {
			continue
		}
		for _, next := range idx.graph[ep].links[layer] {
			if d := cosineDistance(query, idx.graph[next].vector); d < best {
				ep, best = next, d
				moved = true
			}
		}
	}
	return ep
}

// scored pairs a graph position with its distance to the query.
type scored struct {
	pos  int
	dist float32
}

// beamSearch runs the ef-wide beam at one layer and returns up to ef
// positions sorted ascending by distance.
func (idx *Index) beamSearch(query []float32, ep, ef, layer int) []scored {
	start := scored{pos: ep, dist: cosineDistance(query, idx.graph[ep].vector)}
	seen := map[int]bool{ep: true}

	frontier := &minHeap{start} // unexpanded, closest first
	nearest := &maxHeap{start}  // current best ef, farthest on top

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(scored)
		if cur.dist > (*nearest)[0].dist && nearest.Len() >= ef {
			break
		}
		if layer >= len(idx.graph[cur.pos].links) {
			continue
		}
		for _, next := range idx.graph[cur.pos].links[layer] {
			if seen[next] {
				continue
			}
			seen[next] = true
			d := cosineDistance(query, idx.graph[next].vector)
			if nearest.Len() < ef || d < (*nearest)[0].dist {
				heap.Push(frontier, scored{pos: next, dist: d})
				heap.Push(nearest, scored{pos: next, dist: d})
				if nearest.Len() > ef {
					heap.Pop(nearest)
				}
			}
		}
	}

	out := make([]scored, nearest.Len())
	copy(out, *nearest)
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

// pruneLinks cuts a neighbor list back to limit, keeping the closest.
func (idx *Index) pruneLinks(pos int, links []int, limit int) []int {
	vec := idx.graph[pos].vector
	ranked := make([]scored, len(links))
	for i, other := range links {
		ranked[i] = scored{pos: other, dist: cosineDistance(vec, idx.graph[other].vector)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	kept := make([]int, limit)
	for i := range kept {
		kept[i] = ranked[i].pos
	}
	return kept
}

type minHeap []scored

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any) { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }

type maxHeap []scored

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any) { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() any { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }

// cosineDistance returns 1 - cosine_similarity. Range [0, 2], lower = closer.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 2.0
	}
	return 1.0 - dot/(float32(math.Sqrt(float64(na)))*float32(math.Sqrt(float64(nb))))
}
