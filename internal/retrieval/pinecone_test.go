package retrieval

import (
	"context"
	"errors"
	"testing"
)

func TestPineconeInit_RequiresKeyAndIndex(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		index  string
	}{
		{"no key", "", "papers"},
		{"no index", "pc-key", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPineconeStore(tt.apiKey, tt.index)
			if err := s.Init(context.Background()); !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("Init() = %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestPineconeBeforeInit(t *testing.T) {
	s := NewPineconeStore("pc-key", "papers")
	ctx := context.Background()

	err := s.Upsert(ctx, "doc-1", []Record{{ID: "doc-1_0", Values: []float32{1, 0}}})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Upsert before Init = %v, want ErrNotInitialized", err)
	}
	if _, err := s.Query(ctx, "doc-1", []float32{1, 0}, 5); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Query before Init = %v, want ErrNotInitialized", err)
	}
}

func TestPineconeMetadataRoundTrip(t *testing.T) {
	want := Metadata{Text: "The capital of France is Paris.", Page: 3, ChunkIndex: 7}

	st, err := metadataToStruct(want)
	if err != nil {
		t.Fatalf("metadataToStruct: %v", err)
	}
	if got := metadataFromStruct(st); got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if got := metadataFromStruct(nil); got != (Metadata{}) {
		t.Errorf("metadataFromStruct(nil) = %+v, want zero", got)
	}
}
