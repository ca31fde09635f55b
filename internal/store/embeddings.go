package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// AddEmbedding stores an embedding vector for a trademark in the named space.
// Replaces any existing embedding for the same (space, application number).
func (s *SQLiteStore) AddEmbedding(ctx context.Context, space, id string, vec []float32) error {
	blob := float32ToBytes(vec)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (space, application_number, vector, dimensions) VALUES (?, ?, ?, ?)
		 ON CONFLICT(space, application_number) DO UPDATE SET vector = excluded.vector, dimensions = excluded.dimensions`,
		space, id, blob, len(vec),
	)
	if err != nil {
		return fmt.Errorf("storing %s embedding for %s: %w", space, id, err)
	}
	return nil
}

// FetchVectors retrieves stored vectors for the given IDs in one query.
// IDs without a stored embedding in the space are absent from the map.
func (s *SQLiteStore) FetchVectors(ctx context.Context, space string, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	if len(ids) == 0 {
		return out, nil
	}

	placeholders, args := inClause(ids)
	args = append([]interface{}{space}, args...)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT application_number, vector FROM embeddings
		 WHERE space = ? AND application_number IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching %s vectors: %w", space, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		out[id] = bytesToFloat32(blob)
	}
	return out, rows.Err()
}

// ListEmbeddings returns every stored vector in a space, used to build the
// ANN index at startup.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context, space string) ([]StoredVector, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT application_number, vector FROM embeddings WHERE space = ?", space)
	if err != nil {
		return nil, fmt.Errorf("listing %s embeddings: %w", space, err)
	}
	defer rows.Close()

	var out []StoredVector
	for rows.Next() {
		var sv StoredVector
		var blob []byte
		if err := rows.Scan(&sv.ID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		sv.Vector = bytesToFloat32(blob)
		out = append(out, sv)
	}
	return out, rows.Err()
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
