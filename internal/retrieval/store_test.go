package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the chunk_vectors table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE chunk_vectors (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			text_chunk TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			chunk_index INTEGER NOT NULL DEFAULT 0,
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (namespace, id)
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func records(doc string, n, dim int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:       RecordID(doc, i),
			Values:   unit(dim, i%dim),
			Metadata: Metadata{Text: fmt.Sprintf("%s text %d", doc, i), Page: 1 + i/10, ChunkIndex: i},
		}
	}
	return out
}

func TestRecordID(t *testing.T) {
	if got := RecordID("doc-1", 3); got != "doc-1-chunk-3" {
		t.Errorf("RecordID = %q, want doc-1-chunk-3", got)
	}
}

func TestSQLiteStore_UpsertAndQuery(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Upsert(ctx, "doc", records("doc", 8, 8)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Query(ctx, "doc", unit(8, 3), 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 5 {
		t.Fatalf("got %d matches, want 5", len(matches))
	}
	if matches[0].ID != "doc-chunk-3" {
		t.Errorf("best match = %s, want doc-chunk-3", matches[0].ID)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("best score = %f, want ~1", matches[0].Score)
	}
	if matches[0].Metadata.Text != "doc text 3" || matches[0].Metadata.ChunkIndex != 3 || matches[0].Metadata.Page != 1 {
		t.Errorf("metadata = %+v", matches[0].Metadata)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted at %d", i)
		}
	}
}

func TestSQLiteStore_NamespaceIsolation(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := s.Upsert(ctx, "a", records("a", 20, 4)); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if err := s.Upsert(ctx, "b", records("b", 20, 4)); err != nil {
		t.Fatalf("Upsert b: %v", err)
	}

	for _, ns := range []string{"a", "b"} {
		for hot := range 4 {
			matches, err := s.Query(ctx, ns, unit(4, hot), 50)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(matches) != 20 {
				t.Errorf("namespace %s: got %d matches, want 20", ns, len(matches))
			}
			for _, m := range matches {
				if m.ID[:len(ns)+1] != ns+"-" {
					t.Errorf("namespace %s returned foreign record %s", ns, m.ID)
				}
			}
		}
	}
}

func TestSQLiteStore_EmptyNamespace(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	matches, err := s.Query(context.Background(), "missing", unit(4, 0), 5)
	if err != nil {
		t.Fatalf("Query on empty namespace: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0", len(matches))
	}
}

func TestSQLiteStore_BatchedUpsert(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := s.Upsert(ctx, "big", records("big", 250, 16)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	n, err := s.Count(ctx, "big")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 250 {
		t.Errorf("Count = %d, want 250", n)
	}
}

func TestSQLiteStore_ZeroQueryVector(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()
	if err := s.Upsert(ctx, "doc", records("doc", 3, 4)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := s.Query(ctx, "doc", make([]float32, 4), 5)
	if err != nil || len(matches) != 0 {
		t.Errorf("got (%d matches, %v), want no matches for zero vector", len(matches), err)
	}
}

func TestForEachBatch_StopsOnError(t *testing.T) {
	recs := records("x", 250, 2)
	var calls []int
	err := forEachBatch(recs, UpsertBatchSize, func(batch []Record) error {
		calls = append(calls, len(batch))
		if len(calls) == 2 {
			return fmt.Errorf("boom")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error from second batch")
	}
	if len(calls) != 2 || calls[0] != 100 || calls[1] != 100 {
		t.Errorf("batches = %v, want [100 100] then stop", calls)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.125}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
