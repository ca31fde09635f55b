// Package backend wires the per-space in-memory vector indexes and the
// SQLite FTS5 lexical index behind the narrow search contracts the
// ranking pipeline consumes.
//
// Vector indexes are built once at construction from the embeddings
// stored for each space. Construction failures (a space whose stored
// vectors disagree on dimensionality, a nil store) are fatal; per-call
// failures are returned to the caller, which degrades that modality.
package backend

import (
	"context"
	"fmt"

	"github.com/tradarlab/tradar/internal/ann"
	"github.com/tradarlab/tradar/internal/store"
)

// Embedding space names. The two image spaces are scored independently
// and blended; the text space is scored against the text query vector.
const (
	SpaceDino         = "dino"
	SpaceMetaclipImg  = "metaclip_image"
	SpaceMetaclipText = "metaclip_text"
)

// ImageSpaces lists the image sub-spaces in blend order.
var ImageSpaces = []string{SpaceDino, SpaceMetaclipImg}

// VectorStore is the slice of the metadata store the vector backend needs.
type VectorStore interface {
	ListEmbeddings(ctx context.Context, space string) ([]store.StoredVector, error)
	FetchVectors(ctx context.Context, space string, ids []string) (map[string][]float32, error)
}

// VectorBackend serves approximate nearest-neighbor search over one HNSW
// index per embedding space, plus bulk exact-vector fetches for rescoring.
type VectorBackend struct {
	vs      VectorStore
	indexes map[string]*ann.Index
}

// NewVectorBackend builds one index per named space from the stored
// embeddings. An empty space is allowed (it contributes zero hits);
// mixed dimensionalities within a space are a construction error.
func NewVectorBackend(ctx context.Context, vs VectorStore, spaces []string) (*VectorBackend, error) {
	if vs == nil {
		return nil, fmt.Errorf("vector backend: nil store")
	}
	b := &VectorBackend{vs: vs, indexes: make(map[string]*ann.Index, len(spaces))}
	for _, space := range spaces {
		stored, err := vs.ListEmbeddings(ctx, space)
		if err != nil {
			return nil, fmt.Errorf("build index for space %q: %w", space, err)
		}
		b.indexes[space] = nil
		if len(stored) == 0 {
			continue
		}
		dims := len(stored[0].Vector)
		idx := ann.New(dims)
		for _, sv := range stored {
			if len(sv.Vector) != dims {
				return nil, fmt.Errorf("build index for space %q: %s has %d dims, space has %d",
					space, sv.ID, len(sv.Vector), dims)
			}
			idx.Insert(sv.ID, sv.Vector)
		}
		b.indexes[space] = idx
	}
	return b, nil
}

// Search returns up to topn hits from the named space, best first.
// An empty space yields no hits; an unknown space is an error.
func (b *VectorBackend) Search(ctx context.Context, space string, vector []float32, topn int) ([]store.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, ok := b.indexes[space]
	if !ok {
		return nil, fmt.Errorf("unknown embedding space %q", space)
	}
	if idx == nil {
		return nil, nil
	}
	results := idx.Search(vector, topn)
	hits := make([]store.Hit, len(results))
	for i, r := range results {
		hits[i] = store.Hit{ID: r.ID, Score: r.Score}
	}
	return hits, nil
}

// FetchVectors bulk-fetches the exact stored vectors for the given IDs.
// IDs with no stored embedding are simply absent from the result.
func (b *VectorBackend) FetchVectors(ctx context.Context, space string, ids []string) (map[string][]float32, error) {
	return b.vs.FetchVectors(ctx, space, ids)
}

// Insert adds a vector to an already-built index so a long-lived process
// can serve records ingested after startup. The first insert into an
// empty space fixes that space's dimensionality.
func (b *VectorBackend) Insert(space, id string, vector []float32) error {
	idx, ok := b.indexes[space]
	if !ok {
		return fmt.Errorf("unknown embedding space %q", space)
	}
	if idx == nil {
		idx = ann.New(len(vector))
		b.indexes[space] = idx
	}
	idx.Insert(id, vector)
	return nil
}

// Len reports the number of indexed vectors in a space.
func (b *VectorBackend) Len(space string) int {
	idx := b.indexes[space]
	if idx == nil {
		return 0
	}
	return idx.Len()
}

// LexicalStore is the slice of the metadata store the lexical backend needs.
type LexicalStore interface {
	SearchLexical(ctx context.Context, query string, topn int) ([]store.Hit, error)
}

// LexicalBackend serves BM25 keyword search over the FTS5 index.
type LexicalBackend struct {
	ls LexicalStore
}

func NewLexicalBackend(ls LexicalStore) (*LexicalBackend, error) {
	if ls == nil {
		return nil, fmt.Errorf("lexical backend: nil store")
	}
	return &LexicalBackend{ls: ls}, nil
}

// Search returns up to topn BM25 hits for the query text, best first.
// The same ID may appear once per stored field match; callers that need
// one score per ID keep the maximum.
func (b *LexicalBackend) Search(ctx context.Context, text string, topn int) ([]store.Hit, error) {
	hits, err := b.ls.SearchLexical(ctx, text, topn)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return hits, nil
}
