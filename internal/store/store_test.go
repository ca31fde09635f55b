package store

import (
	"context"
	"testing"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTrademarks(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	records := []*Trademark{
		{ApplicationNumber: "4020200001", TitleKorean: "나이스커피", TitleEnglish: "Nice Coffee", Status: "등록", ClassCodes: []string{"30", "43"}, GoodsServices: "coffee beverages cafe services"},
		{ApplicationNumber: "4020200002", TitleKorean: "", TitleEnglish: "Star Tools", Status: "공고", ClassCodes: []string{"7"}, GoodsServices: "power tools drills"},
		{ApplicationNumber: "4020200003", TitleKorean: "한빛식품", TitleEnglish: "Hanbit Foods", Status: "심사중", ClassCodes: []string{"29"}, GoodsServices: "processed foods snacks"},
	}
	for _, tm := range records {
		if err := s.AddTrademark(ctx, tm); err != nil {
			t.Fatalf("failed to seed trademark: %v", err)
		}
	}
}

func TestBulkByIDs(t *testing.T) {
	s := newTestStore(t)
	seedTrademarks(t, s)
	ctx := context.Background()

	got, err := s.BulkByIDs(ctx, []string{"4020200001", "4020200003", "no-such-id"})
	if err != nil {
		t.Fatalf("bulk fetch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	tm := got["4020200001"]
	if tm == nil || tm.TitleKorean != "나이스커피" {
		t.Errorf("unexpected record: %+v", tm)
	}
	if len(tm.ClassCodes) != 2 || tm.ClassCodes[0] != "30" {
		t.Errorf("class codes not round-tripped: %v", tm.ClassCodes)
	}
	if _, ok := got["no-such-id"]; ok {
		t.Error("unknown ID should be absent, not present")
	}
}

func TestBulkByIDs_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.BulkByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("bulk fetch failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestEmbeddings_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{0.1, -0.2, 0.3, 0.4}
	if err := s.AddEmbedding(ctx, "dino", "4020200001", vec); err != nil {
		t.Fatalf("add embedding failed: %v", err)
	}
	if err := s.AddEmbedding(ctx, "metaclip", "4020200001", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("add embedding failed: %v", err)
	}

	got, err := s.FetchVectors(ctx, "dino", []string{"4020200001", "missing"})
	if err != nil {
		t.Fatalf("fetch vectors failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(got))
	}
	for i, x := range got["4020200001"] {
		if x != vec[i] {
			t.Errorf("component %d: expected %v, got %v", i, vec[i], x)
		}
	}
}

func TestListEmbeddings_SpaceScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddEmbedding(ctx, "dino", "a", []float32{1})
	s.AddEmbedding(ctx, "dino", "b", []float32{2})
	s.AddEmbedding(ctx, "metaclip", "a", []float32{3})

	all, err := s.ListEmbeddings(ctx, "dino")
	if err != nil {
		t.Fatalf("list embeddings failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 dino embeddings, got %d", len(all))
	}
}

func TestSearchLexical(t *testing.T) {
	s := newTestStore(t)
	seedTrademarks(t, s)
	ctx := context.Background()

	hits, err := s.SearchLexical(ctx, "coffee", 10)
	if err != nil {
		t.Fatalf("lexical search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "4020200001" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("expected positive score, got %v", hits[0].Score)
	}
}

func TestSearchLexical_MultiTermOR(t *testing.T) {
	s := newTestStore(t)
	seedTrademarks(t, s)
	ctx := context.Background()

	hits, err := s.SearchLexical(ctx, "coffee drills", 10)
	if err != nil {
		t.Fatalf("lexical search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits for OR query, got %d", len(hits))
	}
}

func TestSearchLexical_EmptyAndHostileInput(t *testing.T) {
	s := newTestStore(t)
	seedTrademarks(t, s)
	ctx := context.Background()

	hits, err := s.SearchLexical(ctx, "   ", 10)
	if err != nil || hits != nil {
		t.Errorf("empty query: expected nil hits and nil error, got %v %v", hits, err)
	}

	// FTS syntax characters must not produce a query error.
	if _, err := s.SearchLexical(ctx, `coffee" OR NEAR(`, 10); err != nil {
		t.Errorf("hostile input should be sanitized, got error: %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	seedTrademarks(t, s)
	ctx := context.Background()
	s.AddEmbedding(ctx, "dino", "4020200001", []float32{1})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if st.TrademarkCount != 3 {
		t.Errorf("expected 3 trademarks, got %d", st.TrademarkCount)
	}
	if st.EmbeddingCount != 1 {
		t.Errorf("expected 1 embedding, got %d", st.EmbeddingCount)
	}
	if len(st.Spaces) != 1 || st.Spaces[0] != "dino" {
		t.Errorf("unexpected spaces: %v", st.Spaces)
	}
}
